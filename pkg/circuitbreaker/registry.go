package circuitbreaker

import (
	"errors"
	"sync"

	"github.com/sony/gobreaker"
)

// Registry hands out one breaker per key, created lazily from a template config.
type Registry struct {
	template Config
	mu       sync.Mutex
	breakers map[string]*Wrapper
}

func NewRegistry(template Config) *Registry {
	return &Registry{
		template: template,
		breakers: make(map[string]*Wrapper),
	}
}

func (r *Registry) Get(key string) *Wrapper {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.breakers[key]; ok {
		return w
	}

	cfg := r.template
	cfg.Name = key
	w := NewWrapper(cfg)
	r.breakers[key] = w
	return w
}

func IsOpenError(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
