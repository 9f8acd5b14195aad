// Package telemetry forwards readings to message brokers from a goroutine of
// its own. Readings cross over as encoded bytes through a bounded queue; the
// acquisition side never blocks and never shares state with the worker.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/itohio/wally/pkg/sensor"
)

// DefaultQueueSize bounds the hand-off queue.
const DefaultQueueSize = 64

const sendTimeout = 5 * time.Second

// Message is an encoded reading.
type Message struct {
	Key     string // sensor name
	Payload []byte // JSON encoded sensor.Reading
}

// Sink delivers messages to one broker.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message) error
	Close() error
}

// Observer is told about drops and deliveries, typically *metrics.Metrics.
type Observer interface {
	ObserveDrop()
	ObserveSend(sink string, err error)
}

// Publisher is a reading observer feeding a bounded queue drained by Run.
type Publisher struct {
	queue    chan Message
	sinks    []Sink
	observer Observer
	dropped  atomic.Uint64
}

// NewPublisher creates a publisher. observer may be nil.
func NewPublisher(size int, observer Observer, sinks ...Sink) *Publisher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Publisher{
		queue:    make(chan Message, size),
		sinks:    sinks,
		observer: observer,
	}
}

// ObserveReading encodes r on the caller's goroutine and queues it. When the
// queue is full the reading is dropped.
func (p *Publisher) ObserveReading(r sensor.Reading) {
	payload, err := json.Marshal(r)
	if err != nil {
		log.WithError(err).WithField("sensor", r.Sensor).Warn("encode reading")
		return
	}

	select {
	case p.queue <- Message{Key: r.Sensor, Payload: payload}:
	default:
		p.dropped.Add(1)
		if p.observer != nil {
			p.observer.ObserveDrop()
		}
	}
}

// Dropped returns the number of readings lost to a full queue.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Pending returns the number of queued messages.
func (p *Publisher) Pending() int {
	return len(p.queue)
}

// Run delivers queued messages to every sink until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-p.queue:
			p.deliver(ctx, msg)
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, msg Message) {
	for _, s := range p.sinks {
		sctx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := s.Send(sctx, msg)
		cancel()

		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).WithFields(log.Fields{"sink": s.Name(), "sensor": msg.Key}).Warn("telemetry send failed")
		}
		if p.observer != nil {
			p.observer.ObserveSend(s.Name(), err)
		}
	}
}

// Close closes every sink.
func (p *Publisher) Close() error {
	var errs []error
	for _, s := range p.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
