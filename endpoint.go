// Package endpoint assembles the webhook endpoint: remote client, handler
// registry, dispatcher, subscription reconciler, verification emitter and the
// HTTP server, all driven by one core.Config.
package endpoint

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	gocmd "github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-webhook-endpoint/adapters/gocommand"
	"github.com/goliatone/go-webhook-endpoint/adapters/gologger"
	promadapter "github.com/goliatone/go-webhook-endpoint/adapters/prometheus"
	"github.com/goliatone/go-webhook-endpoint/command"
	"github.com/goliatone/go-webhook-endpoint/core"
	"github.com/goliatone/go-webhook-endpoint/handlers"
	"github.com/goliatone/go-webhook-endpoint/inbound"
	"github.com/goliatone/go-webhook-endpoint/query"
	"github.com/goliatone/go-webhook-endpoint/registration"
	"github.com/goliatone/go-webhook-endpoint/server"
	sqlstore "github.com/goliatone/go-webhook-endpoint/store/sql"
	"github.com/goliatone/go-webhook-endpoint/transport"
)

type Config = core.Config

func DefaultConfig() Config {
	return core.DefaultConfig()
}

type Option func(*Endpoint)

func WithLogger(logger core.Logger) Option {
	return func(e *Endpoint) {
		e.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(e *Endpoint) {
		e.loggerProvider = provider
	}
}

// WithRemoteClient replaces the REST client built from cfg.Remote.
func WithRemoteClient(client core.RemoteClient) Option {
	return func(e *Endpoint) {
		e.remote = client
	}
}

// WithLedger replaces the ledger opened from cfg.Ledger. The caller keeps
// ownership of ledger.
func WithLedger(ledger core.RegistrationLedger) Option {
	return func(e *Endpoint) {
		e.ledger = ledger
	}
}

// WithHandlers replaces the built-in handler set.
func WithHandlers(entries ...inbound.Entry) Option {
	return func(e *Endpoint) {
		e.entries = append([]inbound.Entry(nil), entries...)
	}
}

func WithMetrics(recorder *promadapter.Recorder) Option {
	return func(e *Endpoint) {
		e.metrics = recorder
	}
}

type Endpoint struct {
	cfg            Config
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        *promadapter.Recorder
	remote         core.RemoteClient
	entries        []inbound.Entry
	ledger         core.RegistrationLedger
	ownedLedger    *sqlstore.Ledger

	registry   *inbound.Registry
	dispatcher *inbound.Dispatcher
	reconciler *registration.Reconciler
	verifier   *registration.Verifier
	server     *server.Server
	commands   *gocommand.RegistryAdapter
	history    *query.ListRegistrationsQuery
	state      *query.RegistrationStateQuery

	mu            sync.Mutex
	subscriptions []commanddispatcher.Subscription
	closed        bool
	verifications sync.WaitGroup
}

// New wires every component from cfg. Close releases the command
// subscriptions and any ledger opened here.
func New(ctx context.Context, cfg Config, opts ...Option) (*Endpoint, error) {
	if err := cfg.Validate(); err != nil {
		return nil, core.BadInputError(err.Error(), nil)
	}
	e := &Endpoint{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.logger == nil && e.loggerProvider == nil {
		e.loggerProvider = gologger.NewProvider(gologger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format))
	}
	e.loggerProvider, e.logger = gologger.Resolve(cfg.ServiceName, e.loggerProvider, e.logger)
	if e.metrics == nil {
		e.metrics = promadapter.NewRecorder()
	}
	if e.remote == nil {
		e.remote = transport.NewClient(cfg.Remote, nil)
	}
	if e.entries == nil {
		e.entries = handlers.Entries(e.remote, e.namedLogger("handlers"))
	}
	if err := e.build(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Endpoint) build(ctx context.Context) error {
	registry, err := inbound.NewRegistry(e.entries...)
	if err != nil {
		return err
	}
	e.registry = registry

	e.dispatcher, err = inbound.NewDispatcher(registry,
		inbound.WithLogger(e.namedLogger("inbound")),
		inbound.WithMetricsRecorder(e.metrics),
	)
	if err != nil {
		return err
	}

	if e.ledger == nil && strings.TrimSpace(e.cfg.Ledger.Driver) != "" {
		ledger, err := sqlstore.OpenLedger(ctx, e.cfg.Ledger)
		if err != nil {
			return err
		}
		e.ownedLedger = ledger
		e.ledger = ledger
	}

	e.reconciler, err = registration.NewReconciler(e.remote,
		registration.WithLogger(e.namedLogger("registration")),
		registration.WithMetricsRecorder(e.metrics),
		registration.WithLedger(e.ledger),
	)
	if err != nil {
		return err
	}
	e.verifier, err = registration.NewVerifier(e.remote,
		registration.WithVerifierLogger(e.namedLogger("verification")),
		registration.WithVerifierMetrics(e.metrics),
		registration.WithVerifierTimeout(e.cfg.Verification.Timeout()),
	)
	if err != nil {
		return err
	}

	e.server, err = server.New(e.dispatcher,
		server.WithLogger(e.namedLogger("http")),
		server.WithMetricsRecorder(e.metrics),
		server.WithMetricsHandler(e.cfg.Server.MetricsPath, e.metrics.Handler()),
		server.WithGate(server.NewGate()),
		server.WithWebhookPath(e.cfg.Webhook.Path),
		server.WithMaxBodyBytes(e.cfg.Server.MaxBodyBytes),
	)
	if err != nil {
		return err
	}

	e.history = query.NewListRegistrationsQuery(e.ledger)
	e.state = query.NewRegistrationStateQuery(e.reconciler)
	return e.registerCommands()
}

func (e *Endpoint) registerCommands() error {
	e.commands = gocommand.NewRegistryAdapter(gocmd.NewRegistry())
	runnerOpts := gocommand.RunnerOptions(e.namedLogger("command"))
	reconcile, err := gocommand.RegisterAndSubscribe[command.ReconcileMessage](e.commands, command.NewReconcileCommand(e.reconciler), runnerOpts...)
	if err != nil {
		return err
	}
	e.track(reconcile)
	verify, err := gocommand.RegisterAndSubscribe[command.VerifyMessage](e.commands, command.NewVerifyCommand(e.verifier), runnerOpts...)
	if err != nil {
		return err
	}
	e.track(verify)
	history, err := gocommand.RegisterAndSubscribeQuery[query.ListRegistrationsMessage, []core.RegistrationEntry](e.commands, e.history, runnerOpts...)
	if err != nil {
		return err
	}
	e.track(history)
	state, err := gocommand.RegisterAndSubscribeQuery[query.RegistrationStateMessage, registration.State](e.commands, e.state, runnerOpts...)
	if err != nil {
		return err
	}
	e.track(state)
	return e.commands.Initialize()
}

func (e *Endpoint) track(subscription commanddispatcher.Subscription) {
	if subscription == nil {
		return
	}
	e.mu.Lock()
	e.subscriptions = append(e.subscriptions, subscription)
	e.mu.Unlock()
}

func (e *Endpoint) namedLogger(name string) core.Logger {
	if e.loggerProvider == nil {
		return glog.Ensure(e.logger)
	}
	return glog.Ensure(e.loggerProvider.GetLogger(name))
}

func (e *Endpoint) Config() Config {
	return e.cfg
}

func (e *Endpoint) Registry() *inbound.Registry {
	return e.registry
}

func (e *Endpoint) Gate() *server.Gate {
	return e.server.Gate()
}

func (e *Endpoint) Metrics() *promadapter.Recorder {
	return e.metrics
}

func (e *Endpoint) Handler() http.Handler {
	return e.server.Handler()
}

func (e *Endpoint) State() registration.State {
	state, err := gocommand.Query[query.RegistrationStateMessage, registration.State](context.Background(), query.RegistrationStateMessage{})
	if err != nil {
		return e.reconciler.State()
	}
	return state
}

// Desired is the subscription this process wants: the configured alias and
// url plus exactly the event types the registry handles.
func (e *Endpoint) Desired() core.DesiredSubscription {
	return registration.Desired(e.cfg.Webhook.Alias, e.cfg.Webhook.URL, e.registry.Types())
}

// Register reconciles the remote subscription through the command bus.
func (e *Endpoint) Register(ctx context.Context) (registration.Result, error) {
	if err := e.cfg.ValidateForRegistration(); err != nil {
		return registration.Result{}, core.BadInputError(err.Error(), nil)
	}
	result, ok, err := gocommand.DispatchResult[command.ReconcileMessage, registration.Result](ctx, command.ReconcileMessage{
		Desired: e.Desired(),
	})
	if err != nil {
		return registration.Result{}, err
	}
	if !ok {
		state := e.reconciler.State()
		if !state.Registered() {
			return registration.Result{}, core.InternalError("endpoint: reconcile finished without a result", nil)
		}
		result = registration.Result{
			Subscription: core.Subscription{ID: state.SubscriptionID, Alias: state.Alias},
			Action:       state.Action,
		}
	}
	return result, nil
}

// Verify emits the webhook.test event for subscription. Callers decide
// whether a failure matters.
func (e *Endpoint) Verify(ctx context.Context, subscription core.Subscription) error {
	return gocommand.Dispatch(ctx, command.VerifyMessage{Subscription: subscription})
}

func (e *Endpoint) History(ctx context.Context, limit int) ([]core.RegistrationEntry, error) {
	return gocommand.Query[query.ListRegistrationsMessage, []core.RegistrationEntry](ctx, query.ListRegistrationsMessage{
		Alias: e.cfg.Webhook.Alias,
		Limit: limit,
	})
}

// Run listens on the configured port and serves until ctx is done.
func (e *Endpoint) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", e.cfg.ListenAddr())
	if err != nil {
		return core.WrapError(err, goerrors.CategoryExternal, "endpoint: listen failed", core.ErrorTransportFailed, map[string]any{
			"addr": e.cfg.ListenAddr(),
		})
	}
	return e.Serve(ctx, listener)
}

// Serve starts the HTTP server on listener, then registers the subscription.
// Business traffic is held at 503 until registration succeeds; a failed
// registration shuts the server down and is returned. Verification runs in
// the background and never stops the server.
func (e *Endpoint) Serve(ctx context.Context, listener net.Listener) error {
	logger := e.namedLogger("endpoint")
	httpServer := &http.Server{
		Handler:           e.Handler(),
		ReadHeaderTimeout: e.cfg.Server.ReadHeaderTimeout(),
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()
	core.Log(ctx, logger, "info", "webhook endpoint listening", map[string]any{
		"addr":         listener.Addr().String(),
		"webhook_path": e.cfg.Webhook.Path,
	})

	result, err := e.Register(ctx)
	if err != nil {
		e.Gate().MarkFailed(err.Error())
		core.Log(ctx, logger, "error", "webhook registration failed", map[string]any{
			"alias":      e.cfg.Webhook.Alias,
			"error":      err.Error(),
			"error_code": core.TextCode(err),
		})
		e.shutdown(ctx, httpServer)
		return err
	}
	e.Gate().MarkRegistered(result.Subscription)
	if e.cfg.Verification.Enabled {
		e.verifyInBackground(ctx, result.Subscription)
	}

	select {
	case <-ctx.Done():
		e.shutdown(ctx, httpServer)
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return core.WrapError(err, goerrors.CategoryExternal, "endpoint: http server stopped", core.ErrorTransportFailed, nil)
	}
}

func (e *Endpoint) verifyInBackground(ctx context.Context, subscription core.Subscription) {
	e.verifications.Add(1)
	go func() {
		defer e.verifications.Done()
		verifyCtx := context.WithoutCancel(ctx)
		if timeout := e.cfg.Verification.Timeout(); timeout > 0 {
			var cancel context.CancelFunc
			verifyCtx, cancel = context.WithTimeout(verifyCtx, timeout)
			defer cancel()
		}
		// The verifier logs its own failure.
		_ = e.Verify(verifyCtx, subscription)
	}()
}

func (e *Endpoint) shutdown(ctx context.Context, httpServer *http.Server) {
	timeout := e.cfg.Server.ShutdownTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		core.Log(ctx, e.namedLogger("endpoint"), "warn", "http shutdown incomplete", map[string]any{
			"error": err.Error(),
		})
	}
	e.verifications.Wait()
}

// Close unsubscribes the command handlers and closes an owned ledger. It is
// safe to call more than once.
func (e *Endpoint) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	subscriptions := e.subscriptions
	e.subscriptions = nil
	e.mu.Unlock()

	for _, subscription := range subscriptions {
		subscription.Unsubscribe()
	}
	e.verifications.Wait()
	if e.ownedLedger != nil {
		return e.ownedLedger.Close()
	}
	return nil
}
