package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
)

var errSinkClosed = errors.New("event sink closed")

var keepaliveComment = []byte(":keepalive\n\n")

// sseSink frames events onto one response. Events and keepalive comments
// share a mutex so frames never interleave. Nothing is written once the
// request context is done or the sink is stopped.
type sseSink struct {
	ctx context.Context
	w   gin.ResponseWriter

	mu     sync.Mutex
	closed bool

	stopKeepalive chan struct{}
	wg            sync.WaitGroup
}

func newSSESink(ctx context.Context, w gin.ResponseWriter) *sseSink {
	return &sseSink{
		ctx:           ctx,
		w:             w,
		stopKeepalive: make(chan struct{}),
	}
}

func (s *sseSink) WriteEvent(name, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSinkClosed
	}
	if err := s.ctx.Err(); err != nil {
		return err
	}

	if err := sse.Encode(s.w, sse.Event{Event: name, Data: data}); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}

// keepalive writes a comment frame every interval until stop is called.
// A non-positive interval disables it.
func (s *sseSink) keepalive(interval time.Duration) {
	if interval <= 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopKeepalive:
				return
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				if err := s.writeComment(); err != nil {
					return
				}
			}
		}
	}()
}

func (s *sseSink) writeComment() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.ctx.Err() != nil {
		return errSinkClosed
	}
	if _, err := s.w.Write(keepaliveComment); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}

// stop ends the keepalive goroutine and refuses further writes. It must be
// called before the handler returns.
func (s *sseSink) stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopKeepalive)
	s.wg.Wait()
}
