package axe

import "fmt"

// ResultKind is the machine-checkable outcome of a lock decision.
type ResultKind int

const (
	// KindSuccess grants the request with nothing displaced.
	KindSuccess ResultKind = iota
	// KindSuccessWithPrecedingCancellation grants the request but requires
	// the caller to release and cancel the entries named in the result error.
	KindSuccessWithPrecedingCancellation
	// KindCancel rejects the request.
	KindCancel
)

// String returns the string representation of the result kind.
func (k ResultKind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindSuccessWithPrecedingCancellation:
		return "success-with-preceding-cancellation"
	case KindCancel:
		return "cancel"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Result is the outcome of a lock decision. Cancel results carry the typed
// contention error; preceding-cancellation results carry one or more
// CancellationError values (joined when a composite displaces several
// entries), extractable with PrecedingCancellations.
type Result struct {
	kind ResultKind
	err  error
}

// Success returns a plain grant.
func Success() Result {
	return Result{kind: KindSuccess}
}

// SuccessWithPrecedingCancellation returns a grant that displaces previously
// held entries. err names them, see CancellationError.
func SuccessWithPrecedingCancellation(err error) Result {
	return Result{kind: KindSuccessWithPrecedingCancellation, err: err}
}

// Cancel returns a rejection carrying the contention error.
func Cancel(err error) Result {
	return Result{kind: KindCancel, err: err}
}

// Kind returns the outcome kind.
func (r Result) Kind() ResultKind {
	return r.kind
}

// Granted reports whether the request may proceed.
func (r Result) Granted() bool {
	return r.kind != KindCancel
}

// Err returns the error payload: the contention error for Cancel, the
// cancellation error(s) for SuccessWithPrecedingCancellation, nil for
// Success.
func (r Result) Err() error {
	return r.err
}

// String returns the string representation of the result.
func (r Result) String() string {
	if r.err == nil {
		return r.kind.String()
	}
	return fmt.Sprintf("%s: %v", r.kind, r.err)
}
