// Package errs defines the error taxonomy shared by all graphseer packages.
//
// Every failure that crosses a package boundary is classified with a [Kind]
// so that callers can branch on the class of failure without string matching.
// Errors wrap their cause and participate in the standard errors.Is/As
// chains:
//
//	err := coordinator.Ingest(ctx, person)
//	if errs.IsKind(err, errs.KindDataConsistency) {
//	    // both stores may disagree — page someone
//	}
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an engine failure.
type Kind int

const (
	// KindUnknown is the zero value; errors of unknown class.
	KindUnknown Kind = iota

	// KindInvalidInput marks caller-supplied input that fails validation
	// (blank question, malformed options, nil entity).
	KindInvalidInput

	// KindConfiguration marks an unusable entity or engine configuration
	// (missing storage schema, invalid NodeableConfig).
	KindConfiguration

	// KindInjectionDefense marks an identifier that failed the safety regex.
	// The offending value is redacted in logs.
	KindInjectionDefense

	// KindEmbedding marks a failure of the embedding provider.
	KindEmbedding

	// KindGraphWrite marks a failed write to the graph store.
	KindGraphWrite

	// KindVectorWrite marks a failed write to the vector store.
	KindVectorWrite

	// KindDataConsistency marks a compensation failure: the graph and vector
	// stores may now disagree. Always logged at Error level by the raiser.
	KindDataConsistency

	// KindQueryGeneration marks exhausted retries while generating a query.
	KindQueryGeneration

	// KindQueryValidation marks a query that failed validation checks.
	KindQueryValidation

	// KindUnsafeQuery marks a query containing write operations when writes
	// were not allowed.
	KindUnsafeQuery

	// KindQueryExecution marks a graph store failure while running a query.
	KindQueryExecution

	// KindQueryTimeout marks a query cancelled by its execution deadline.
	// Never retried automatically.
	KindQueryTimeout

	// KindReadOnlyViolation marks a write keyword reaching the executor with
	// read_only set.
	KindReadOnlyViolation

	// KindResponseGeneration marks a failure while narrating results back
	// into an answer.
	KindResponseGeneration

	// KindCircuitOpen marks a call rejected by an open circuit breaker.
	// Surfaced to callers as "service temporarily unavailable".
	KindCircuitOpen
)

// String returns the snake_case name of the kind, matching the names used in
// configuration and log output.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindConfiguration:
		return "configuration"
	case KindInjectionDefense:
		return "injection_defense"
	case KindEmbedding:
		return "embedding"
	case KindGraphWrite:
		return "graph_write"
	case KindVectorWrite:
		return "vector_write"
	case KindDataConsistency:
		return "data_consistency"
	case KindQueryGeneration:
		return "query_generation"
	case KindQueryValidation:
		return "query_validation"
	case KindUnsafeQuery:
		return "unsafe_query"
	case KindQueryExecution:
		return "query_execution"
	case KindQueryTimeout:
		return "query_timeout"
	case KindReadOnlyViolation:
		return "read_only_violation"
	case KindResponseGeneration:
		return "response_generation"
	case KindCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Error is the concrete error type carried across package boundaries.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Op names the operation that failed, in "package: action" form
	// (e.g. "ingest: write vector point").
	Op string

	// Msg is a human-readable description. May be empty when Err says enough.
	Msg string

	// Err is the wrapped cause. May be nil for errors originating here.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": " + e.Kind.String()
	}
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// New creates an [Error] with no wrapped cause.
//
// All constructors return the error interface rather than *Error so that a
// nil result is a true nil and never a non-nil interface around a nil
// pointer.
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Newf creates an [Error] with a formatted message and no wrapped cause.
func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an [Error] around a cause. Returns nil when err is nil so it
// can be used directly on return values.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrapf creates an [Error] around a cause with an additional message.
func Wrapf(kind Kind, op string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Consistency creates a [KindDataConsistency] error that records both the
// primary failure and the failed compensation. Both causes remain reachable
// through errors.Is/As via the joined chain.
func Consistency(op string, primary, compensation error) error {
	return &Error{
		Kind: KindDataConsistency,
		Op:   op,
		Msg:  fmt.Sprintf("compensation failed after %v", primary),
		Err:  errors.Join(primary, compensation),
	}
}

// KindOf walks the error chain and returns the kind of the outermost [Error],
// or [KindUnknown] when the chain contains none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether the error chain contains an [Error] of kind k.
func IsKind(err error, k Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == k {
			return true
		}
		err = e.Err
	}
	return false
}

// Retryable reports whether the failure class is worth retrying under the
// resilience policy. Timeouts are deliberately excluded: a query that ran
// out of time once will run out of time again.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindEmbedding, KindGraphWrite, KindVectorWrite, KindQueryExecution:
		return true
	default:
		return false
	}
}
