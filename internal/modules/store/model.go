// README: Store (merchant) aggregate definitions.
package store

import (
	"time"

	"fastdelivery/internal/types"
)

type Store struct {
	ID           types.ID
	BusinessName string
	Phone        string
	Address      string
	IsApproved   bool
	CreatedAt    time.Time
}
