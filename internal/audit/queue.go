package audit

import "context"

// Handler processes one queued payload.
type Handler func(ctx context.Context, payload []byte) error

// Producer puts payloads on the queue.
type Producer interface {
	Publish(ctx context.Context, payload []byte) error
	Close() error
}

// Consumer runs handlers over queued payloads until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue is both ends.
type Queue interface {
	Producer
	Consumer
}
