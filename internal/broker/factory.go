package broker

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps serviceUrl schemes to driver dialers.
type Registry struct {
	mu            sync.RWMutex
	dialers       map[string]Dialer
	drivers       map[string]string
	defaultDriver string
}

func NewRegistry(defaultDriver string) *Registry {
	return &Registry{
		dialers:       make(map[string]Dialer),
		drivers:       make(map[string]string),
		defaultDriver: defaultDriver,
	}
}

// Register binds every scheme to d. The driver name is used for scheme-less
// URLs and as a metrics label.
func (r *Registry) Register(driver string, d Dialer, schemes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(schemes) == 0 {
		schemes = []string{driver}
	}
	for _, s := range schemes {
		r.dialers[s] = d
		r.drivers[s] = driver
	}
}

// Resolve parses serviceURL and picks its dialer. The returned endpoint has
// its scheme filled in when the URL had none.
func (r *Registry) Resolve(serviceURL string) (Dialer, Endpoint, string, error) {
	ep, err := ParseEndpoint(serviceURL)
	if err != nil {
		return nil, Endpoint{}, "", err
	}
	if ep.Scheme == "" {
		ep.Scheme = r.defaultDriver
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.dialers[ep.Scheme]
	if !ok {
		return nil, Endpoint{}, "", fmt.Errorf("%w %q (supported: %v)", ErrUnsupportedScheme, ep.Scheme, r.schemesLocked())
	}
	return d, ep, r.drivers[ep.Scheme], nil
}

func (r *Registry) schemesLocked() []string {
	out := make([]string, 0, len(r.dialers))
	for s := range r.dialers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
