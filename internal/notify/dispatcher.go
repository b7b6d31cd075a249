package notify

import (
	"context"
	"io"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultBufferSize is the size of the event buffer
	DefaultBufferSize = 1000

	// FlushInterval is how often buffered events are handed to the sinks
	FlushInterval = 2 * time.Second

	// batchSize flushes early once this many events are waiting
	batchSize = 100

	// sinkTimeout bounds one sink write
	sinkTimeout = 10 * time.Second
)

// Dispatcher buffers events and writes them to its sinks in batches from a
// background goroutine
type Dispatcher struct {
	sinks  []Sink
	buffer chan Event
	stopCh chan struct{}
	wg     sync.WaitGroup
	logger log.FieldLogger
	now    func() time.Time
}

// NewDispatcher creates a dispatcher. Call Start before emitting.
func NewDispatcher(logger log.FieldLogger, bufferSize int, sinks ...Sink) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Dispatcher{
		sinks:  sinks,
		buffer: make(chan Event, bufferSize),
		stopCh: make(chan struct{}),
		logger: logger.WithField("component", "notify"),
		now:    time.Now,
	}
}

// Emit queues ev (non-blocking). A full buffer drops the event.
func (d *Dispatcher) Emit(ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = d.now()
	}
	select {
	case d.buffer <- ev:
	default:
		d.logger.WithField("kind", ev.Kind).Debug("notification buffer full, event dropped")
	}
}

// Start begins the background writer
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.writer(ctx)
	}()
}

// Stop flushes what is buffered, waits for the writer and closes sinks
// that hold connections
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	d.wg.Wait()

	for _, s := range d.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				d.logger.WithError(err).WithField("sink", s.Name()).Warn("closing notification sink failed")
			}
		}
	}
}

func (d *Dispatcher) writer(ctx context.Context) {
	ticker := time.NewTicker(FlushInterval)
	defer ticker.Stop()

	var batch []Event

	for {
		select {
		case <-ctx.Done():
			d.flush(batch)
			d.drainAndFlush()
			return
		case <-d.stopCh:
			d.flush(batch)
			d.drainAndFlush()
			return
		case ev := <-d.buffer:
			batch = append(batch, ev)
			if len(batch) >= batchSize {
				d.flush(batch)
				batch = nil
			}
		case <-ticker.C:
			if len(batch) > 0 {
				d.flush(batch)
				batch = nil
			}
		}
	}
}

func (d *Dispatcher) drainAndFlush() {
	var batch []Event
	for {
		select {
		case ev := <-d.buffer:
			batch = append(batch, ev)
		default:
			d.flush(batch)
			return
		}
	}
}

// flush hands batch to every sink. Sink failures are logged and the events
// are not retried.
func (d *Dispatcher) flush(batch []Event) {
	if len(batch) == 0 {
		return
	}
	for _, s := range d.sinks {
		// the caller's context may already be cancelled during shutdown
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		err := s.Write(ctx, batch)
		cancel()
		if err != nil {
			d.logger.WithError(err).WithFields(log.Fields{
				"sink":   s.Name(),
				"events": len(batch),
			}).Warn("notification sink write failed")
		}
	}
}
