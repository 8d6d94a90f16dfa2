package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ActionKit-Chain/internal/action"
	xerrors "ActionKit-Chain/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	channel Channel
	err     error
	mu      sync.Mutex
	events  []Event
}

func (r *recordingNotifier) Channel() Channel { return r.channel }

func (r *recordingNotifier) Notify(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingNotifier) received() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func failed(code xerrors.Code) action.Invocation {
	return action.Invocation{
		ID:        "inv-1",
		Action:    "bridge_token",
		Provider:  "across",
		Network:   "base-sepolia",
		Result:    "Error bridging token: boom",
		Error:     "boom",
		ErrorCode: string(code),
		Outcome:   action.OutcomeFailed,
		StartedAt: time.Unix(1_700_000_000, 0),
		Duration:  time.Second,
	}
}

func TestEventFor(t *testing.T) {
	event, ok := EventFor(failed(xerrors.CodeExternalOperation))
	require.True(t, ok)
	assert.Equal(t, xerrors.CodeExternalOperation, event.Code)
	assert.Equal(t, xerrors.SeverityWarning, event.Severity)
	assert.Equal(t, "inv-1", event.InvocationID)
	assert.Equal(t, time.Unix(1_700_000_001, 0), event.OccurredAt)

	_, ok = EventFor(failed(xerrors.CodeValidation))
	assert.False(t, ok, "validation codes do not alert")

	inv := failed(xerrors.CodeExternalOperation)
	inv.Outcome = action.OutcomeSucceeded
	_, ok = EventFor(inv)
	assert.False(t, ok)

	event, ok = EventFor(failed(""))
	require.True(t, ok)
	assert.Equal(t, xerrors.CodeUnknown, event.Code)
}

func TestFanoutJoinsErrors(t *testing.T) {
	good := &recordingNotifier{channel: ChannelLog}
	bad := &recordingNotifier{channel: ChannelWebhook, err: errors.New("down")}
	fanout := NewFanout(good, nil, bad)
	assert.Equal(t, []Channel{ChannelLog, ChannelWebhook}, fanout.Channels())

	err := fanout.Notify(context.Background(), Event{Code: xerrors.CodeUnknown})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel webhook: down")
	assert.Len(t, good.received(), 1)
	assert.Len(t, bad.received(), 1)
}

func TestObserverDeliversInBackground(t *testing.T) {
	rec := &recordingNotifier{channel: ChannelLog}
	obs := NewObserver(NewFanout(rec), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	obs.ObserveInvocation(ctx, failed(xerrors.CodeExternalOperation))
	obs.ObserveInvocation(ctx, failed(xerrors.CodeValidation))
	cancel()
	obs.Wait()

	events := rec.received()
	require.Len(t, events, 1)
	assert.Equal(t, "bridge_token", events[0].Action)
}

func TestWebhookNotifier(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhook(srv.URL)
	event, _ := EventFor(failed(xerrors.CodeExternalOperation))
	require.NoError(t, n.Notify(context.Background(), event))
	assert.Equal(t, "inv-1", got.InvocationID)
	assert.Equal(t, "across", got.Provider)
}

func TestWebhookNotifierReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL).Notify(context.Background(), Event{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestLogNotifierNeverFails(t *testing.T) {
	n := &LogNotifier{}
	assert.NoError(t, n.Notify(context.Background(), Event{Severity: xerrors.SeverityCritical}))
}
