package framework

import "context"

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Initializer is implemented by Runnables requiring a startup step
// before any of the Runnables in the same Runner starts.
type Initializer interface {
	Init() error
}

// NameOf gets the name of a Named, or fallback otherwise.
func NameOf(v interface{}, fallback string) string {
	if named, ok := v.(Named); ok {
		return named.Name()
	}
	return fallback
}
