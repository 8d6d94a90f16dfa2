package x402

import (
	"context"
	"net/url"
	"strings"
	"sync"
)

// ServiceStore holds services registered at runtime.
type ServiceStore interface {
	Add(ctx context.Context, serviceURL string) error
	List(ctx context.Context) ([]string, error)
}

// MemoryStore is a process local ServiceStore.
type MemoryStore struct {
	mu       sync.RWMutex
	services []string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Add records serviceURL once.
func (s *MemoryStore) Add(_ context.Context, serviceURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.services {
		if existing == serviceURL {
			return nil
		}
	}
	s.services = append(s.services, serviceURL)
	return nil
}

// List returns services in registration order.
func (s *MemoryStore) List(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.services...), nil
}

// registered merges the configured services with the store.
func (p *Provider) registered(ctx context.Context) ([]string, error) {
	dynamic, err := p.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(p.cfg.RegisteredServices)+len(dynamic))
	seen := make(map[string]bool, cap(out))
	for _, list := range [][]string{p.cfg.RegisteredServices, dynamic} {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out, nil
}

// allowed matches target against registered services by origin or by a
// prefix ending on a path boundary.
func allowed(target string, registered []string) bool {
	parsed, err := url.Parse(target)
	if err != nil {
		return false
	}
	origin := parsed.Scheme + "://" + parsed.Host
	for _, r := range registered {
		if origin == r {
			return true
		}
		if r == "" || !strings.HasPrefix(target, r) {
			continue
		}
		rest := target[len(r):]
		if rest == "" || strings.HasSuffix(r, "/") || strings.ContainsAny(rest[:1], "/?#") {
			return true
		}
	}
	return false
}
