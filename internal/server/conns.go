package server

import (
	"net"
	"net/http"
	"sync"
)

// ConnRegistry tracks open connections through http.Server.ConnState so they
// can be closed when a graceful shutdown runs out of time.
type ConnRegistry struct {
	mu    sync.Mutex
	conns map[net.Conn]http.ConnState
}

func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{conns: make(map[net.Conn]http.ConnState)}
}

// Track is an http.Server.ConnState hook.
func (r *ConnRegistry) Track(conn net.Conn, state http.ConnState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch state {
	case http.StateClosed, http.StateHijacked:
		delete(r.conns, conn)
	default:
		r.conns[conn] = state
	}
}

func (r *ConnRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Active counts connections with a request in progress.
func (r *ConnRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, st := range r.conns {
		if st == http.StateActive {
			n++
		}
	}
	return n
}

// CloseAll closes every tracked connection and returns how many were closed.
func (r *ConnRegistry) CloseAll() int {
	r.mu.Lock()
	conns := make([]net.Conn, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[net.Conn]http.ConnState)
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return len(conns)
}
