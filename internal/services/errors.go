package services

import "errors"

var (
	// ErrInsufficientFunds is an expected business outcome, not a system
	// error: the balance does not cover the requested deduction.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrContention: a conditional write lost its race but the funds were
	// still sufficient at re-read. The caller decides whether to retry.
	ErrContention = errors.New("balance changed concurrently, retry")

	// ErrAlreadyProcessed: another caller won the claim and finished the
	// settlement. A normal skip signal.
	ErrAlreadyProcessed = errors.New("already processed")

	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("record not in a processable state")
	ErrStillPending = errors.New("order not settled yet")
)
