package alerting

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ActionKit-Chain/internal/action"
	xerrors "ActionKit-Chain/internal/errors"
	"ActionKit-Chain/pkg/logger"
)

const defaultNotifyTimeout = 10 * time.Second

// Observer turns failed invocations into alert events. Delivery runs in
// the background so the dispatcher is never held up by a slow channel.
type Observer struct {
	dispatcher Dispatcher
	timeout    time.Duration
	wg         sync.WaitGroup
}

// NewObserver wraps dispatcher. A non positive timeout uses the default.
func NewObserver(dispatcher Dispatcher, timeout time.Duration) *Observer {
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &Observer{dispatcher: dispatcher, timeout: timeout}
}

// ObserveInvocation implements action.Observer.
func (o *Observer) ObserveInvocation(ctx context.Context, inv action.Invocation) {
	event, ok := EventFor(inv)
	if !ok || o.dispatcher == nil {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
		defer cancel()
		if err := o.dispatcher.Notify(notifyCtx, event); err != nil {
			logger.L().Error("alert delivery failed",
				slog.Any("error", err),
				slog.String("invocation_id", inv.ID),
			)
		}
	}()
}

// Wait blocks until pending deliveries finish.
func (o *Observer) Wait() {
	o.wg.Wait()
}

// EventFor reports whether inv should alert and builds its event. Only
// handler failures whose code is flagged for alerting qualify.
func EventFor(inv action.Invocation) (Event, bool) {
	if inv.Outcome != action.OutcomeFailed {
		return Event{}, false
	}
	code := xerrors.Code(inv.ErrorCode)
	if code == "" {
		code = xerrors.CodeUnknown
	}
	attrs := xerrors.AttributesOf(code)
	if !attrs.Alert {
		return Event{}, false
	}
	message := inv.Error
	if message == "" {
		message = attrs.Message
	}
	return Event{
		Code:         code,
		Message:      message,
		Severity:     attrs.Severity,
		InvocationID: inv.ID,
		Action:       inv.Action,
		Provider:     inv.Provider,
		Network:      inv.Network,
		Metadata:     map[string]string{"result": inv.Result},
		OccurredAt:   inv.StartedAt.Add(inv.Duration),
	}, true
}
