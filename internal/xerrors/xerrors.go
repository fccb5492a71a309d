// Package xerrors implements the error taxonomy from : validation
// errors become failed receipts, execution errors are normal receipt
// outcomes (not modeled as errors at all), invariant violations and I/O
// errors are fatal and unwind to the block runloop.
package xerrors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ValidationError is a static block/transaction validation failure (bad
// nonce, missing sender, wrong base fee, bad gas limit, RLP decode error,
// insufficient reserve balance). It fails the offending transaction or
// block but is not fatal to the runloop.
type ValidationError struct {
	Reason string
	cause  error
}

func NewValidationError(reason string, cause error) *ValidationError {
	return &ValidationError{Reason: reason, cause: cause}
}

func (e *ValidationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("validation: %s: %v", e.Reason, e.cause)
	}
	return fmt.Sprintf("validation: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.cause }

// InvariantViolation is a fatal internal-consistency failure (balance
// overflow/underflow, incarnation mismatch, unexpected absent account). It
// aborts the whole block.
type InvariantViolation struct {
	Reason string
	stack  error
}

func NewInvariantViolation(reason string) *InvariantViolation {
	return &InvariantViolation{Reason: reason, stack: errors.WithStack(errors.New(reason))}
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Reason)
}

// StackTrace exposes the captured stack, printed by the runloop under -v.
func (e *InvariantViolation) StackTrace() string {
	return fmt.Sprintf("%+v", e.stack)
}

// IOError is a fatal device/decode failure from the Trie Store. It aborts
// the runloop.
type IOError struct {
	Op    string
	cause error
}

func NewIOError(op string, cause error) *IOError {
	return &IOError{Op: op, cause: cause}
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error during %s: %v", e.Op, e.cause)
}

func (e *IOError) Unwrap() error { return e.cause }

// ReserveViolation marks a transaction reverted post-execution by the
// Reserve-Balance Tracker (): the EVM itself reported success, but
// the chain vetoes the state effects while keeping gas/nonce consumption.
type ReserveViolation struct {
	Address string
}

func (e *ReserveViolation) Error() string {
	return fmt.Sprintf("reserve balance violation for %s", e.Address)
}

// IsFatal reports whether err must abort the enclosing block (invariant
// violations, I/O errors) as opposed to merely failing one transaction
// (validation errors, reserve violations) or being a normal EVM outcome.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var inv *InvariantViolation
	var io *IOError
	return errors.As(err, &inv) || errors.As(err, &io)
}

// Result is a discriminated return carrying either a value or a categorized
// error, per "propagation policy".
type Result[T any] struct {
	Value T
	Err   error
}

func Ok[T any](v T) Result[T]        { return Result[T]{Value: v} }
func Err[T any](err error) Result[T] { var zero T; return Result[T]{Value: zero, Err: err} }

func (r Result[T]) IsOk() bool { return r.Err == nil }

// Unwrap returns the value, panicking if the result carries an error. Used
// only at call sites that have just checked IsOk().
func (r Result[T]) Unwrap() T {
	if r.Err != nil {
		panic(fmt.Sprintf("xerrors: Unwrap called on error result: %v", r.Err))
	}
	return r.Value
}
