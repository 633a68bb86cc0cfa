package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"leavedesk/internal/config"
	"leavedesk/internal/events"
)

const (
	defaultWebhookTimeout = 5 * time.Second
	webhookQueueSize      = 256
	webhookSubscription   = "webhooks"
)

type webhookJob struct {
	hook config.WebhookConfig
	evt  events.Event
}

// WebhookDispatcher posts bus events to the configured hooks. Delivery runs
// on one worker so the publishing request never waits on a slow receiver.
type WebhookDispatcher struct {
	hooks  []config.WebhookConfig
	bus    *events.Bus
	client *http.Client
	log    zerolog.Logger

	// mu guards closed and every send on queue; Publish may still be
	// calling enqueue after Unsubscribe returns.
	mu     sync.Mutex
	closed bool
	queue  chan webhookJob
	done   chan struct{}
	once   sync.Once
}

// StartWebhooks subscribes to bus and starts delivering. It returns nil when
// no hook is enabled.
func StartWebhooks(bus *events.Bus, hooks []config.WebhookConfig, log zerolog.Logger) (*WebhookDispatcher, error) {
	var active []config.WebhookConfig
	for _, hook := range hooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		active = append(active, hook)
	}
	if len(active) == 0 || bus == nil {
		return nil, nil
	}
	d := &WebhookDispatcher{
		hooks:  active,
		bus:    bus,
		client: &http.Client{Timeout: defaultWebhookTimeout},
		log:    log,
		queue:  make(chan webhookJob, webhookQueueSize),
		done:   make(chan struct{}),
	}
	if err := bus.Subscribe(webhookSubscription, events.Filter{}, d.enqueue); err != nil {
		return nil, err
	}
	go d.run()
	return d, nil
}

func (d *WebhookDispatcher) enqueue(_ context.Context, evt events.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.log.Debug().Str("event", string(evt.Type)).Msg("webhooks closed, dropping event")
		return
	}
	for _, hook := range d.hooks {
		if !events.TypesOf(hook.Events).Matches(evt) {
			continue
		}
		select {
		case d.queue <- webhookJob{hook: hook, evt: evt}:
		default:
			d.log.Warn().Str("url", hook.URL).Str("event", string(evt.Type)).Msg("webhook queue full, dropping event")
		}
	}
}

func (d *WebhookDispatcher) run() {
	defer close(d.done)
	for job := range d.queue {
		if err := d.post(context.Background(), job.hook, job.evt); err != nil {
			d.log.Warn().Err(err).Str("url", job.hook.URL).Str("event", string(job.evt.Type)).Msg("webhook delivery failed")
		}
	}
}

// Close stops accepting events and waits for queued deliveries.
func (d *WebhookDispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.bus.Unsubscribe(webhookSubscription)
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	<-d.done
}

type webhookEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	LeaveID string `json:"leave_id,omitempty"`
	Role    string `json:"role,omitempty"`
	Action  string `json:"action,omitempty"`
	Actor   string `json:"actor,omitempty"`
	Message string `json:"message,omitempty"`
	TS      string `json:"ts"`
}

func (d *WebhookDispatcher) post(ctx context.Context, hook config.WebhookConfig, evt events.Event) error {
	delivery := uuid.NewString()
	data, err := json.Marshal(webhookEvent{
		ID:      delivery,
		Type:    string(evt.Type),
		LeaveID: evt.LeaveID,
		Role:    evt.Role,
		Action:  evt.Action,
		Actor:   evt.Actor,
		Message: evt.Message,
		TS:      evt.At.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	client := d.client
	if hook.TimeoutSeconds > 0 {
		client = &http.Client{Timeout: time.Duration(hook.TimeoutSeconds) * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Leavedesk-Event", string(evt.Type))
	req.Header.Set("X-Leavedesk-Delivery", delivery)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Leavedesk-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
