package hass

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrWebhookNotFound = errors.New("hass: webhook not registered")

// WebhookHandler receives the raw request body.
type WebhookHandler func(ctx context.Context, webhookID string, body []byte) error

type Webhook struct {
	Domain  string
	Name    string
	ID      string
	Handler WebhookHandler
}

type Webhooks struct {
	mu    sync.RWMutex
	hooks map[string]Webhook
}

func NewWebhooks() *Webhooks {
	return &Webhooks{hooks: map[string]Webhook{}}
}

// GenerateID returns a new unguessable webhook id.
func GenerateID() string {
	return uuid.New().String()
}

// Register binds id to h, replacing any previous registration.
func (w *Webhooks) Register(domain, name, id string, h WebhookHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hooks[id] = Webhook{Domain: domain, Name: name, ID: id, Handler: h}
}

// Unregister is a no-op for unknown ids.
func (w *Webhooks) Unregister(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.hooks, id)
}

func (w *Webhooks) Lookup(id string) (Webhook, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.hooks[id]
	return h, ok
}

// Handle routes body to the webhook registered under id.
func (w *Webhooks) Handle(ctx context.Context, id string, body []byte) error {
	h, ok := w.Lookup(id)
	if !ok {
		return ErrWebhookNotFound
	}
	return h.Handler(ctx, id, body)
}
