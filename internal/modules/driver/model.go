// README: Driver aggregate definitions.
package driver

import (
	"time"

	"fastdelivery/internal/types"
)

type Driver struct {
	ID         types.ID
	Name       string
	Phone      string
	Vehicle    string
	IsOnline   bool
	IsApproved bool
	// CurrentOrder is non-nil only while the referenced order is active
	// (accepted_driver, preparing, in_delivery). It is mutated by the order
	// lifecycle, never by profile edits.
	CurrentOrder *types.ID
	PushToken    *string
	CreatedAt    time.Time
}

// ProfileUpdate carries the driver-editable profile fields; nil means
// leave unchanged.
type ProfileUpdate struct {
	Name      *string
	Phone     *string
	Vehicle   *string
	PushToken *string
}
