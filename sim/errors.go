package sim

import "errors"

// Configuration errors: returned from constructors before any simulation runs.
var (
	ErrInvalidBlock  = errors.New("invalid block record")
	ErrInvalidConfig = errors.New("invalid engine config")
)

// Occupancy invariant errors. The engine checks IsFull before Increment and only
// retires parked vehicles, so seeing either of these means a logic error.
var (
	ErrBlockFull  = errors.New("block is full")
	ErrBlockEmpty = errors.New("block is empty")
)

// Action contract errors. Step returns these before mutating any state.
var (
	ErrActionLength = errors.New("action length does not match block count")
	ErrInvalidPrice = errors.New("price must be a finite non-negative number")
)
