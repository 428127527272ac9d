// README: Common value types shared across modules.
package types

// ID is an opaque entity identifier (UUID string).
type ID string

// Money is an amount in integer cents. Keeping cents avoids float drift
// when totals are derived from component prices.
type Money struct {
	Amount   int64
	Currency string
}

// Add returns the sum of two amounts in m's currency.
func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
