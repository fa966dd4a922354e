// Package memory disponibiliza um storage em memória para desenvolvimento
// local e testes. Os contadores não são compartilhados entre processos.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hitcklife/yoryor-last-sub008/internal/core/ports"
)

type entry struct {
	count     int64
	expiresAt time.Time
}

type Storage struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

var (
	_ ports.CounterStore    = (*Storage)(nil)
	_ ports.TTLIntrospector = (*Storage)(nil)
)

type Option func(*Storage)

// WithClock substitui o relógio, útil em testes.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) { s.now = now }
}

func New(opts ...Option) *Storage {
	s := &Storage{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Storage) Get(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, _ := s.live(key, s.now())
	return e.count, nil
}

func (s *Storage) IncrementWithExpiry(_ context.Context, key string, window time.Duration) (int64, error) {
	if window <= 0 {
		return 0, fmt.Errorf("window must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.live(key, now)
	if !ok {
		e = entry{expiresAt: now.Add(window)}
	}
	e.count++
	s.entries[key] = e
	return e.count, nil
}

func (s *Storage) TTL(_ context.Context, key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.live(key, now)
	if !ok {
		return 0, false
	}
	return e.expiresAt.Sub(now), true
}

// Len devolve o número de chaves ainda guardadas, expiradas ou não.
func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cleanup remove as chaves expiradas.
func (s *Storage) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor limpa chaves expiradas periodicamente até o ctx encerrar.
// A função devolvida cancela o janitor e espera a goroutine terminar.
func (s *Storage) StartJanitor(ctx context.Context, every time.Duration) (stop func()) {
	if every <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ticker := time.NewTicker(every)

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// live deve ser chamado com o mutex travado.
func (s *Storage) live(key string, now time.Time) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return entry{}, false
	}
	if !now.Before(e.expiresAt) {
		delete(s.entries, key)
		return entry{}, false
	}
	return e, true
}
