package gocommand

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	glog "github.com/goliatone/go-logger/glog"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

// RunnerOptions routes go-command runner failures to logger instead of the
// stdlib log package.
func RunnerOptions(logger glog.Logger) []runner.Option {
	return []runner.Option{
		runner.WithLogger(runnerLogger{logger: glog.Ensure(logger)}),
		runner.WithErrorHandler(func(error) {}),
	}
}

// runnerLogger receives printf style messages from the runner.
type runnerLogger struct {
	logger glog.Logger
}

func (l runnerLogger) Info(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l runnerLogger) Error(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

type handlerErrorKey struct{}

// handlerError holds the first error a subscribed handler returned during a
// single dispatch, before go-command rewrites its text code.
type handlerError struct {
	mu  sync.Mutex
	err error
}

func (h *handlerError) record(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err == nil {
		h.err = err
	}
}

func (h *handlerError) load() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func withHandlerError(ctx context.Context) (context.Context, *handlerError) {
	if ctx == nil {
		ctx = context.Background()
	}
	slot := &handlerError{}
	return context.WithValue(ctx, handlerErrorKey{}, slot), slot
}

func captureHandlerError(next func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		err := next(ctx)
		if err != nil {
			if slot, ok := ctx.Value(handlerErrorKey{}).(*handlerError); ok {
				slot.record(err)
			}
		}
		return err
	}
}

// handlerResult prefers the handler's own error over the dispatcher envelope.
// Lookup and context failures never reach a handler and pass through.
func handlerResult(slot *handlerError, dispatchErr error) error {
	if dispatchErr == nil {
		return nil
	}
	if err := slot.load(); err != nil {
		return err
	}
	return dispatchErr
}

func withCapture(runnerOpts []runner.Option) []runner.Option {
	opts := make([]runner.Option, 0, len(runnerOpts)+1)
	opts = append(opts, runnerOpts...)
	return append(opts, runner.WithMiddleware(captureHandlerError))
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, withCapture(runnerOpts)...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, withCapture(runnerOpts)...)
}

// Dispatch runs every command subscribed for T. A failing command's own error
// is returned as is.
func Dispatch[T any](ctx context.Context, msg T) error {
	ctx, slot := withHandlerError(ctx)
	return handlerResult(slot, commanddispatcher.Dispatch(ctx, msg))
}

// DispatchResult dispatches msg with a result collector attached to ctx and
// returns whatever the command stored. ok is false when nothing was stored.
func DispatchResult[T any, R any](ctx context.Context, msg T) (result R, ok bool, err error) {
	if err := ValidateMessageContract(msg); err != nil {
		return result, false, err
	}
	ctx, slot := withHandlerError(ctx)
	collector := command.NewResult[R]()
	if err := commanddispatcher.Dispatch(command.ContextWithResult(ctx, collector), msg); err != nil {
		return result, false, handlerResult(slot, err)
	}
	result, ok = collector.Load()
	return result, ok, nil
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	ctx, slot := withHandlerError(ctx)
	result, err := commanddispatcher.Query[T, R](ctx, msg)
	return result, handlerResult(slot, err)
}

// RegisterAndSubscribe registers cmd and subscribes it to the dispatcher.
// Callers own the returned subscription and must Unsubscribe on shutdown.
func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterQuery(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}
