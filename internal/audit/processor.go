package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"ActionKit-Chain/internal/action"
	xerrors "ActionKit-Chain/internal/errors"
	"ActionKit-Chain/pkg/logger"
)

// Repository is where processed invocations end up.
type Repository interface {
	Save(ctx context.Context, inv action.Invocation) error
}

// Processor consumes the audit queue into a Repository.
type Processor struct {
	repo        Repository
	consumer    Consumer
	workerCount int
	logger      *slog.Logger
}

// ProcessorOption customises a Processor.
type ProcessorOption func(*Processor)

// WithWorkerCount sets the number of consuming goroutines.
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// WithProcessorLogger sets the logger.
func WithProcessorLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProcessor builds a Processor with one worker.
func NewProcessor(repo Repository, consumer Consumer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		repo:        repo,
		consumer:    consumer,
		workerCount: 1,
		logger:      logger.Named("audit.processor"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start consumes until ctx is done.
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil || p.repo == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "audit processor is not configured")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.handle)
}

// handle saves one payload. Undecodable payloads are dropped; storage
// failures are returned so the queue can redeliver.
func (p *Processor) handle(ctx context.Context, payload []byte) error {
	var inv action.Invocation
	if err := json.Unmarshal(payload, &inv); err != nil {
		p.logger.Warn("drop malformed audit payload", slog.Any("error", err), slog.Int("bytes", len(payload)))
		return nil
	}
	if err := p.repo.Save(ctx, inv); err != nil {
		wrapped := xerrors.Wrap(xerrors.CodeStorageFailure, err, "save invocation",
			xerrors.WithMetadata("invocation_id", inv.ID))
		p.logger.Error("save invocation", slog.Any("error", wrapped), slog.String("invocation_id", inv.ID))
		return wrapped
	}
	p.logger.Debug("invocation stored", slog.String("invocation_id", inv.ID), slog.String("action", inv.Action))
	return nil
}
