package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"ActionKit-Chain/internal/action"
	"ActionKit-Chain/pkg/logger"
)

const defaultPublishTimeout = 2 * time.Second

// Recorder publishes every invocation onto the audit queue.
type Recorder struct {
	producer Producer
	timeout  time.Duration
	logger   *slog.Logger
}

// NewRecorder wraps producer. A non positive timeout uses the default.
func NewRecorder(producer Producer, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Recorder{producer: producer, timeout: timeout, logger: logger.Named("audit.recorder")}
}

// ObserveInvocation implements action.Observer. Publish failures are
// logged and the invocation is dropped from the audit trail.
func (r *Recorder) ObserveInvocation(ctx context.Context, inv action.Invocation) {
	payload, err := json.Marshal(inv)
	if err != nil {
		r.logger.Error("encode invocation", slog.Any("error", err), slog.String("invocation_id", inv.ID))
		return
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.producer.Publish(publishCtx, payload); err != nil {
		r.logger.Error("publish invocation", slog.Any("error", err), slog.String("invocation_id", inv.ID))
	}
}
