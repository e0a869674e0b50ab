// Package longitudinal converts tabular data between the person-level (wide)
// and person-period (long) layouts used in longitudinal and event-history
// analysis, and derives life tables from person-period survival data.
//
// All operations are pure, synchronous transformations over in-memory tables.
// They validate their preconditions eagerly and fail fast; none of the error
// conditions below are retriable, and no missing value is ever silently
// invented or dropped.
package longitudinal

import "errors"

// Error kinds reported by the reshaping operations. Callers match them with
// errors.Is; the wrapped detail names the offending subject, column or
// occasion.
var (
	// ErrMalformedColumnPattern reports a per-occasion column whose name does
	// not follow the declared <attribute>_<occasion> pattern.
	ErrMalformedColumnPattern = errors.New("longitudinal: malformed column pattern")

	// ErrEmptyOccasionSet reports a widen request that resolves to zero
	// occasion columns.
	ErrEmptyOccasionSet = errors.New("longitudinal: empty occasion set")

	// ErrMisalignedOccasions reports an occasion present for one time-varying
	// attribute but absent for another, under the fail-fast policy.
	ErrMisalignedOccasions = errors.New("longitudinal: misaligned occasion set")

	// ErrTimeInvariantConflict reports a supposedly constant attribute whose
	// value varies across one subject's person-period rows.
	ErrTimeInvariantConflict = errors.New("longitudinal: time-invariant conflict")

	// ErrDuplicateSubjectOccasion reports more than one row for the same
	// (subject, occasion) pair, or a repeated subject in person-level input.
	ErrDuplicateSubjectOccasion = errors.New("longitudinal: duplicate subject-occasion")

	// ErrNonPositiveDuration reports an event time before the starting
	// period, or a duration cell that is missing or not an integer.
	ErrNonPositiveDuration = errors.New("longitudinal: non-positive duration")

	// ErrInvalidCensorFlag reports a censor-status cell outside its two
	// recognized states.
	ErrInvalidCensorFlag = errors.New("longitudinal: invalid censor flag")

	// ErrInvariantViolation reports input that breaks a structural invariant
	// the operation relies on, such as a non-monotone risk set. It indicates
	// a bug in whatever produced the input.
	ErrInvariantViolation = errors.New("longitudinal: invariant violation")
)
