package stream

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"

	"streamview/internal/logger"
	"streamview/pkg/cel"
	"streamview/pkg/jsoncodec"
	"streamview/pkg/metrics"
	"streamview/pkg/models"
)

// Session is the consumer side the bridge drives.
type Session interface {
	Connect(ctx context.Context) error
	Messages(ctx context.Context) iter.Seq[models.NormalizedMessage]
	Err() error
	Close()
	Driver() string
}

type Config struct {
	Filter  string
	Where   *cel.Filter
	Verbose bool
}

type Bridge struct {
	cfg    Config
	logger logger.Logger
}

func NewBridge(cfg Config, log logger.Logger) *Bridge {
	return &Bridge{cfg: cfg, logger: log}
}

// Run streams messages from sess to sink until the sequence ends, the sink
// fails or ctx is done. sess is closed exactly once on every path, and as
// soon as ctx is done so a pending receive is released. Nothing is written to
// sink after ctx is done.
func (b *Bridge) Run(ctx context.Context, sess Session, sink Sink) error {
	closeSession := sync.OnceFunc(sess.Close)
	defer closeSession()
	stop := context.AfterFunc(ctx, closeSession)
	defer stop()

	if err := b.emit(ctx, sink, EventInfo, InfoEvent{Message: MsgConnecting}); err != nil {
		return err
	}

	if err := sess.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		_ = b.emit(ctx, sink, EventError, b.connectErrorEvent(err))
		return err
	}

	if err := b.emit(ctx, sink, EventInfo, InfoEvent{Message: MsgConnected}); err != nil {
		return err
	}

	driver := sess.Driver()
	metrics.StreamStarted(driver)
	outcome := "ended"
	defer func() { metrics.StreamEnded(driver, outcome) }()

	var sinkErr error
	for msg := range sess.Messages(ctx) {
		ok, err := b.accept(ctx, msg)
		if err != nil {
			metrics.IncStreamMessage(driver, "filter_error")
			b.logger.DebugwCtx(ctx, "Filter evaluation failed", "message_id", msg.ID, "error", err)
			if b.cfg.Verbose {
				if sinkErr = b.emit(ctx, sink, EventError, ErrorEvent{Error: MsgFilterFailed, Detail: err.Error()}); sinkErr != nil {
					break
				}
			}
			continue
		}
		if !ok {
			metrics.IncStreamMessage(driver, "filtered")
			continue
		}

		if sinkErr = b.emit(ctx, sink, EventMessage, msg); sinkErr != nil {
			break
		}
		metrics.IncStreamMessage(driver, "emitted")
	}

	if ctx.Err() != nil {
		outcome = "subscriber_gone"
		return nil
	}
	if sinkErr != nil {
		outcome = "write_failed"
		return sinkErr
	}

	sessErr := sess.Err()
	if sessErr != nil {
		outcome = "failed"
		if err := b.emit(ctx, sink, EventError, ErrorEvent{Error: sessErr.Error()}); err != nil {
			return err
		}
	}
	if err := b.emit(ctx, sink, EventInfo, InfoEvent{Message: MsgStreamClosed}); err != nil {
		return err
	}
	return sessErr
}

func (b *Bridge) accept(ctx context.Context, msg models.NormalizedMessage) (bool, error) {
	if !Matches(msg, b.cfg.Filter) {
		return false, nil
	}
	if b.cfg.Where == nil {
		return true, nil
	}
	return b.cfg.Where.Match(ctx, msg)
}

func (b *Bridge) emit(ctx context.Context, sink Sink, name string, body any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := jsoncodec.MarshalString(body)
	if err != nil {
		msg, isMessage := body.(models.NormalizedMessage)
		if !isMessage {
			return fmt.Errorf("encode %s event: %w", name, err)
		}
		data = msg.Data
	}

	return sink.WriteEvent(name, data)
}

func (b *Bridge) connectErrorEvent(err error) ErrorEvent {
	ev := ErrorEvent{Error: err.Error()}
	if !b.cfg.Verbose {
		return ev
	}

	if cause := errors.Unwrap(err); cause != nil {
		ev.Cause = cause.Error()
	}

	chain := make([]string, 0, 4)
	for e := err; e != nil; e = errors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T: %s", e, e.Error()))
	}
	ev.Stack = strings.Join(chain, "\n")
	return ev
}
