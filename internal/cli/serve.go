package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/reactor/internal/httpapi"
	"github.com/roach88/reactor/internal/journal"
	"github.com/roach88/reactor/internal/reactor"
	"github.com/roach88/reactor/internal/telemetry"
	"github.com/roach88/reactor/internal/textfield"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr     string
	Database string

	// Listener overrides Addr (for testing).
	Listener net.Listener

	// IDs overrides the reactor ID generator (for testing).
	IDs reactor.IDGenerator
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a textfield reactor over HTTP",
		Long: `Start a textfield reactor and expose it over HTTP.

Actions are posted to /actions, the current state is at /state, and
/stream relays states, events and errors as server-sent events.
Metrics are served at /metrics. When a journal is configured every
observed state, event and error is recorded to it.

Example:
  reactor serve --addr :8080
  reactor serve --db ./reactor.db --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "journal database (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	log := opts.logger()
	cfg := opts.Config
	if opts.Addr != "" {
		cfg.Addr = opts.Addr
	}
	if opts.Database != "" {
		cfg.Journal = opts.Database
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancelCause(parentCtx)
	defer cancel(nil)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("received signal, shutting down", "signal", sig)
			cancel(nil)
		case <-ctx.Done():
		}
	}()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer scancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Error("error shutting down tracing", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := telemetry.NewMetrics(registry)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to register metrics", err)
	}

	reactorOpts := []reactor.Option{
		reactor.WithLogger(log),
		reactor.WithObserver(reactor.Observers(metrics, telemetry.NewTracing(telemetry.Tracer()))),
		reactor.WithFaultHandler(func(err error) {
			log.Error("reactor fault", "error", err)
			cancel(err)
		}),
	}
	if opts.IDs != nil {
		reactorOpts = append(reactorOpts, reactor.WithIDGenerator(opts.IDs))
	}
	r := textfield.New(textfield.State{}, reactorOpts...)
	defer r.Destroy()

	if cfg.Journal != "" {
		j, err := journal.Open(cfg.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if err := j.Close(); err != nil {
				log.Error("error closing journal", "error", err)
			}
		}()

		// Writes outlive the serve context so the tail of a shutdown is recorded.
		att, err := journal.Attach(context.Background(), j, r)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to attach journal", err)
		}
		defer func() {
			if err := att.Close(); err != nil {
				log.Error("journal write failed", "error", err)
			}
		}()
		log.Info("journal ready", "path", cfg.Journal)
	}

	api, err := httpapi.New(r,
		httpapi.WithLogger(log),
		httpapi.WithRegistry(registry),
		httpapi.WithCORSOrigins(cfg.CORSOrigins...),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create http api", err)
	}

	ln := opts.Listener
	if ln == nil {
		ln, err = net.Listen("tcp", cfg.Addr)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to listen", err)
		}
	}

	srv := &http.Server{
		Handler:     api.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	log.Info("server started", "addr", ln.Addr().String(), "reactor", r.ID())
	fmt.Fprintf(cmd.OutOrStdout(), "Serving reactor %s on %s\n", r.ID(), ln.Addr())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
	case <-ctx.Done():
	}

	// Destroy first so open streams end and the shutdown can drain.
	r.Destroy()

	sctx, scancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error("error shutting down server", "error", err)
	}

	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return WrapExitError(ExitFailure, "reactor fault", cause)
	}

	log.Info("server stopped gracefully")
	return nil
}
