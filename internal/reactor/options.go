package reactor

import (
	"context"
	"log/slog"
)

// DefaultName is the reactor name used when WithName is not given.
const DefaultName = "reactor"

// FaultHandler receives fatal runtime faults: transform stage failures and
// reduce panics. It runs once, after the reactor has shut down.
type FaultHandler func(err error)

// PanicOnFault is the default FaultHandler. It re-panics with the fault so
// the host process crashes the same way an unrecovered panic would.
func PanicOnFault(err error) {
	panic(err)
}

// Option configures a Reactor.
type Option func(*options)

type options struct {
	name     string
	logger   *slog.Logger
	observer Observer
	onFault  FaultHandler
	ids      IDGenerator
	base     context.Context
}

func defaultOptions() options {
	return options{
		name:     DefaultName,
		observer: NopObserver{},
		onFault:  PanicOnFault,
		ids:      UUIDv7Generator{},
		base:     context.Background(),
	}
}

// WithName sets the reactor name used in logs and metrics labels.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver installs runtime hooks (metrics, tracing).
// Use Observers to install several.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithFaultHandler replaces PanicOnFault.
func WithFaultHandler(h FaultHandler) Option {
	return func(o *options) {
		if h != nil {
			o.onFault = h
		}
	}
}

// WithIDGenerator sets the generator for reactor and subscription IDs.
// Defaults to UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) {
		if g != nil {
			o.ids = g
		}
	}
}

// WithBaseContext parents the reactor's scope on ctx. Cancelling ctx stops
// the pipeline the same way Destroy does, except OnDestroy does not run.
func WithBaseContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.base = ctx
		}
	}
}
