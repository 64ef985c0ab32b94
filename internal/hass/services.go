package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrServiceNotFound = errors.New("hass: service not found")

// ServiceCall is one invocation of domain.service with its raw JSON data.
type ServiceCall struct {
	Domain  string
	Service string
	Data    json.RawMessage
}

type ServiceHandler func(ctx context.Context, call ServiceCall) error

// Services maps domain.service to handlers. Registering an existing name
// replaces the handler.
type Services struct {
	mu       sync.RWMutex
	handlers map[string]ServiceHandler
}

func NewServices() *Services {
	return &Services{handlers: map[string]ServiceHandler{}}
}

func serviceKey(domain, service string) string { return domain + "." + service }

func (s *Services) Register(domain, service string, h ServiceHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[serviceKey(domain, service)] = h
}

func (s *Services) Remove(domain, service string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, serviceKey(domain, service))
}

func (s *Services) Has(domain, service string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.handlers[serviceKey(domain, service)]
	return ok
}

// Call runs the handler and blocks until it returns. Handler errors are
// returned unmodified.
func (s *Services) Call(ctx context.Context, domain, service string, data json.RawMessage) error {
	s.mu.RLock()
	h, ok := s.handlers[serviceKey(domain, service)]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrServiceNotFound, domain, service)
	}
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	return h(ctx, ServiceCall{Domain: domain, Service: service, Data: data})
}

// Names lists registered services as domain.service, sorted.
func (s *Services) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.handlers))
	for k := range s.handlers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
