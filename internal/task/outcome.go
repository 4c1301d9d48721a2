package task

import "fmt"

// Kind discriminates the Outcome variants.
type Kind int

const (
	// KindSuccess means the task completed without error.
	KindSuccess Kind = iota + 1

	// KindFailure is an expected, describable failure such as a non-zero
	// process exit.
	KindFailure

	// KindException is an unexpected error whose value is carried as-is.
	KindException

	// KindCancelled is a caller-requested interruption. It is not an error.
	KindCancelled
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	case KindException:
		return "exception"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the result of running a task. Build values with Success,
// Failure, Exception or Cancelled; the zero Outcome means "no outcome".
type Outcome struct {
	Kind Kind

	// Message is set for KindFailure only.
	Message string

	// Err is set for KindException only.
	Err error
}

// Success returns a successful outcome.
func Success() Outcome {
	return Outcome{Kind: KindSuccess}
}

// Failure returns a failed outcome carrying msg.
func Failure(msg string) Outcome {
	if msg == "" {
		msg = "task failed"
	}
	return Outcome{Kind: KindFailure, Message: msg}
}

// Exception returns an outcome carrying an unexpected error.
func Exception(err error) Outcome {
	return Outcome{Kind: KindException, Err: err}
}

// Cancelled returns a cancelled outcome.
func Cancelled() Outcome {
	return Outcome{Kind: KindCancelled}
}

// IsZero reports whether o is the zero Outcome.
func (o Outcome) IsZero() bool {
	return o.Kind == 0
}

// Failed reports whether o is a Failure or an Exception.
func (o Outcome) Failed() bool {
	return o.Kind == KindFailure || o.Kind == KindException
}

// String describes the outcome for logs.
func (o Outcome) String() string {
	switch o.Kind {
	case KindFailure:
		return fmt.Sprintf("failure: %s", o.Message)
	case KindException:
		return fmt.Sprintf("exception: %v", o.Err)
	default:
		return o.Kind.String()
	}
}

// PanicError carries a recovered panic value that is not an error.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
