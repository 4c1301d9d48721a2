package task

import "context"

// CallbackFunc is the work wrapped by a CallbackTask. Returning the zero
// Outcome with a nil error counts as Success.
type CallbackFunc func(ctx context.Context) (Outcome, error)

// FromFunc adapts a plain error-returning function.
func FromFunc(fn func() error) CallbackFunc {
	return func(context.Context) (Outcome, error) {
		return Outcome{}, fn()
	}
}

// CallbackTask wraps an arbitrary function as a task.
type CallbackTask struct {
	name string
	fn   CallbackFunc
}

// NewCallbackTask creates a callback task.
func NewCallbackTask(name string, fn CallbackFunc) *CallbackTask {
	return &CallbackTask{name: name, fn: fn}
}

// Name returns the task name.
func (t *CallbackTask) Name() string {
	return t.name
}

// Type returns TypeCallback.
func (t *CallbackTask) Type() string {
	return TypeCallback
}

// Run invokes the callback. Errors and panics become Exception.
func (t *CallbackTask) Run(ctx context.Context) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				out = Exception(err)
				return
			}
			out = Exception(&PanicError{Value: r})
		}
	}()

	o, err := t.fn(ctx)
	if err != nil {
		return Exception(err)
	}
	if o.IsZero() {
		return Success()
	}
	return o
}
