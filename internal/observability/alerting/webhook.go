package alerting

import (
	"context"
	"log/slog"

	"ActionKit-Chain/internal/httpclient"
	"ActionKit-Chain/pkg/logger"
)

// WebhookNotifier posts events as JSON.
type WebhookNotifier struct {
	URL    string
	Client *httpclient.Client
}

// NewWebhook builds a WebhookNotifier with its own rate limited client.
func NewWebhook(url string, opts ...httpclient.Option) *WebhookNotifier {
	return &WebhookNotifier{URL: url, Client: httpclient.New(opts...)}
}

func (n *WebhookNotifier) Channel() Channel { return ChannelWebhook }

func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	if n == nil || n.URL == "" {
		logger.L().Warn("webhook notifier has no URL, skipping", slog.String("invocation_id", event.InvocationID))
		return nil
	}
	client := n.Client
	if client == nil {
		client = httpclient.New()
	}
	return client.PostJSON(ctx, n.URL, event, nil)
}
