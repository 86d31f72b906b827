package model

import "errors"

var (
	// ErrInvalidAmount indicates a non-positive or sub-cent amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidState indicates a transition not allowed from the current status.
	ErrInvalidState = errors.New("invalid state")
	// ErrNotFound indicates a referenced account or obligation does not exist.
	ErrNotFound = errors.New("not found")
	// ErrArityMismatch indicates override arrays that do not match the declared count.
	ErrArityMismatch = errors.New("arity mismatch")
	// ErrInvalidCount indicates an installment count below two.
	ErrInvalidCount = errors.New("invalid installment count")
	// ErrInvalidTransfer indicates a transfer from an account to itself.
	ErrInvalidTransfer = errors.New("invalid transfer")
	// ErrInvalidType indicates a movement type other than debit or credit.
	ErrInvalidType = errors.New("invalid movement type")
)
