package domain

// Outcome is the expected result of a reservation attempt. None of these
// are errors.
type Outcome string

const (
	OutcomeReserved   Outcome = "RESERVED"
	OutcomeContended  Outcome = "CONTENDED"
	OutcomeOutOfStock Outcome = "OUT_OF_STOCK"
)
