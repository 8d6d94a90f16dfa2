package action

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	xerrors "ActionKit-Chain/internal/errors"
	"ActionKit-Chain/internal/network"
	"ActionKit-Chain/internal/wallet"
	"ActionKit-Chain/pkg/logger"

	"github.com/google/uuid"
)

// Outcome classifies a finished invocation.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeFailed means the handler reported a failure, rendered as the result.
	OutcomeFailed Outcome = "failed"
	// OutcomeRejected means validation or lookup stopped the call.
	OutcomeRejected Outcome = "rejected"
)

// Invocation records one call through the dispatcher.
type Invocation struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Provider  string         `json:"provider,omitempty"`
	Network   string         `json:"network"`
	Args      map[string]any `json:"args,omitempty"`
	Result    string         `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
	Outcome   Outcome        `json:"outcome"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
}

// Observer is notified after every invocation. Observers must not block.
type Observer interface {
	ObserveInvocation(ctx context.Context, inv Invocation)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, inv Invocation)

func (f ObserverFunc) ObserveInvocation(ctx context.Context, inv Invocation) { f(ctx, inv) }

// Dispatcher routes calls by name to the active action set.
type Dispatcher struct {
	registry  *Registry
	wallet    wallet.Wallet
	network   network.Network
	observers []Observer
	logger    *slog.Logger
	now       func() time.Time
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithNetwork overrides the network taken from the wallet.
func WithNetwork(n network.Network) DispatcherOption {
	return func(d *Dispatcher) {
		d.network = n
	}
}

// WithObserver adds an invocation observer.
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) {
		if o != nil {
			d.observers = append(d.observers, o)
		}
	}
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher binds a registry to a wallet. The active network is the
// wallet's unless WithNetwork says otherwise.
func NewDispatcher(registry *Registry, w wallet.Wallet, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		wallet:   w,
		logger:   logger.Named("action.dispatcher"),
		now:      time.Now,
	}
	if w != nil {
		d.network = w.Network()
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Network returns the active network.
func (d *Dispatcher) Network() network.Network {
	return d.network
}

// List returns the active actions.
func (d *Dispatcher) List() []Entry {
	return d.registry.Actions(d.network)
}

// Invoke validates args and runs the named action. Only ACTION_NOT_FOUND
// and VALIDATION errors are returned; every handler outcome is a string.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	inv := Invocation{
		ID:        uuid.NewString(),
		Action:    name,
		Network:   d.network.String(),
		Args:      args,
		StartedAt: d.now(),
	}

	entry, found, registered := d.registry.Lookup(name, d.network)
	if !found {
		reason := "not found"
		if registered {
			reason = fmt.Sprintf("is not supported on network %s", d.network)
		}
		err := xerrors.ActionNotFound(name, reason)
		d.finish(ctx, inv, "", err)
		return "", err
	}
	inv.Provider = entry.Provider

	validated, err := entry.Schema.Validate(args)
	if err != nil {
		d.finish(ctx, inv, "", err)
		return "", err
	}
	inv.Args = validated

	result, failure := run(ctx, entry, d.wallet, validated)
	inv.Outcome = OutcomeSucceeded
	if failure != nil {
		inv.Outcome = OutcomeFailed
		inv.Error = failure.Error()
		inv.ErrorCode = string(xerrors.CodeOf(failure))
	}
	d.finish(ctx, inv, result, nil)
	return result, nil
}

func (d *Dispatcher) finish(ctx context.Context, inv Invocation, result string, rejected error) {
	inv.Duration = d.now().Sub(inv.StartedAt)
	inv.Result = result
	if rejected != nil {
		inv.Outcome = OutcomeRejected
		inv.Error = rejected.Error()
		inv.ErrorCode = string(xerrors.CodeOf(rejected))
	}

	attrs := []any{
		slog.String("invocation_id", inv.ID),
		slog.String("action", inv.Action),
		slog.String("provider", inv.Provider),
		slog.String("network", inv.Network),
		slog.String("outcome", string(inv.Outcome)),
		slog.Duration("duration", inv.Duration),
	}
	switch inv.Outcome {
	case OutcomeSucceeded:
		d.logger.Debug("action invoked", attrs...)
	default:
		d.logger.Warn("action did not succeed", append(attrs, slog.String("error", inv.Error))...)
	}
	logger.Audit().Info("action_invocation", attrs...)

	for _, o := range d.observers {
		o.ObserveInvocation(ctx, inv)
	}
}
