// Package ingest runs the telemetry ingestion pipeline: normalize, cache,
// persist, evaluate constraints, and latch shipment violations.
package ingest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/rmoraes/coldtrace/internal/monitor/cache"
	"github.com/rmoraes/coldtrace/internal/monitor/domain"
	"github.com/rmoraes/coldtrace/internal/monitor/storage"
)

// Config controls pipeline queueing and persistence behavior.
type Config struct {
	// QueueSize bounds the inbound payload queue. When the queue is full the
	// newest message is dropped and recorded, never blocking the bus
	// delivery goroutine.
	QueueSize int
	// Workers is the number of processing workers. Readings are routed to a
	// worker by shipment key, preserving per-shipment order while letting
	// distinct shipments proceed in parallel.
	Workers int
	// WriteTimeout bounds each reading's persistence work, retries included.
	// On expiry the reading is dropped and recorded; the pipeline moves on.
	WriteTimeout time.Duration
	// RetryInterval is the base delay between persistence retries.
	RetryInterval time.Duration
}

func (cfg Config) normalized() Config {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 100 * time.Millisecond
	}
	return cfg
}

const workerQueueSize = 32

// Pipeline consumes raw bus payloads and drives them through the ingestion
// path. It owns all writes to the latest-reading cache and the reading store.
type Pipeline struct {
	cfg   Config
	store storage.Store
	cache *cache.Latest
	clock func() time.Time

	queue   chan []byte
	workers []chan domain.Reading
	wg      sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// New creates a pipeline writing through the given cache and store.
func New(store storage.Store, latest *cache.Latest, cfg Config) (*Pipeline, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if latest == nil {
		return nil, fmt.Errorf("cache is required")
	}
	cfg = cfg.normalized()

	p := &Pipeline{
		cfg:   cfg,
		store: store,
		cache: latest,
		clock: time.Now,
		queue: make(chan []byte, cfg.QueueSize),
		done:  make(chan struct{}),
	}
	p.workers = make([]chan domain.Reading, cfg.Workers)
	for i := range p.workers {
		p.workers[i] = make(chan domain.Reading, workerQueueSize)
	}
	return p, nil
}

// Enqueue hands one raw payload to the pipeline. It never blocks: when the
// queue is full the payload is dropped and the drop is recorded.
func (p *Pipeline) Enqueue(payload []byte) {
	select {
	case <-p.done:
		return
	default:
	}

	select {
	case p.queue <- payload:
	default:
		log.Printf("ingest queue full, dropping message (%d bytes)", len(payload))
		p.recordEvent(storage.IngestEvent{
			Kind:    storage.EventKindOverflow,
			Outcome: storage.OutcomeDropped,
			Detail:  "queue full",
		})
	}
}

// Run starts the dispatcher and workers and blocks until ctx is done. On
// shutdown the already-queued payloads are drained before workers stop.
func (p *Pipeline) Run(ctx context.Context) error {
	p.startOnce.Do(func() {
		for i := range p.workers {
			p.wg.Add(1)
			go p.worker(p.workers[i])
		}
	})

	for {
		select {
		case <-ctx.Done():
			p.shutdown()
			return ctx.Err()
		case payload := <-p.queue:
			p.dispatch(payload)
		}
	}
}

func (p *Pipeline) shutdown() {
	p.stopOnce.Do(func() {
		close(p.done)
		// Drain payloads that arrived before shutdown.
		for {
			select {
			case payload := <-p.queue:
				p.dispatch(payload)
				continue
			default:
			}
			break
		}
		for i := range p.workers {
			close(p.workers[i])
		}
		p.wg.Wait()
	})
}

// dispatch normalizes one payload and routes it to a worker by shipment key.
func (p *Pipeline) dispatch(payload []byte) {
	reading, err := domain.ParseReading(payload, p.clock())
	if err != nil {
		log.Printf("ingest: %v", err)
		p.recordEvent(storage.IngestEvent{
			Kind:    storage.EventKindDecode,
			Outcome: storage.OutcomeDropped,
			Detail:  err.Error(),
		})
		return
	}

	key := cache.GeneralKey
	if reading.HasShipment {
		key = reading.ShipmentID
	}
	slot := int(uint64(key) % uint64(len(p.workers)))
	p.workers[slot] <- reading
}

func (p *Pipeline) worker(readings <-chan domain.Reading) {
	defer p.wg.Done()
	for reading := range readings {
		p.process(reading)
	}
}

// process writes one reading through the dual-state store and evaluates the
// shipment's constraints. Readings without a shipment id only touch the
// sentinel cache slot.
func (p *Pipeline) process(reading domain.Reading) {
	p.cache.Put(reading)
	if !reading.HasShipment {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.WriteTimeout)
	defer cancel()

	if err := p.persist(ctx, reading); err != nil {
		log.Printf("ingest: persist reading for shipment %d: %v", reading.ShipmentID, err)
		p.recordEvent(storage.IngestEvent{
			Kind:       storage.EventKindReading,
			ShipmentID: reading.ShipmentID,
			Outcome:    storage.OutcomeDropped,
			Detail:     err.Error(),
		})
		return
	}

	outcome := storage.OutcomeStored
	violated, err := p.evaluate(ctx, reading)
	if err != nil {
		log.Printf("ingest: evaluate constraints for shipment %d: %v", reading.ShipmentID, err)
	} else if violated {
		outcome = storage.OutcomeViolation
	}

	p.recordEvent(storage.IngestEvent{
		Kind:       storage.EventKindReading,
		ShipmentID: reading.ShipmentID,
		Outcome:    outcome,
	})
}

// persist retries the latest-slot upsert with backoff inside the write
// timeout. The upsert itself is atomic at the storage layer.
func (p *Pipeline) persist(ctx context.Context, reading domain.Reading) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.cfg.RetryInterval

	attempt := func() (struct{}, error) {
		err := p.store.UpsertLatestReading(ctx,
			reading.ShipmentID,
			reading.Temperature,
			reading.Humidity,
			reading.Timestamp,
		)
		return struct{}{}, err
	}
	_, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(expo),
		backoff.WithMaxElapsedTime(p.cfg.WriteTimeout),
	)
	return err
}

// evaluate joins the reading against the shipment's item thresholds and
// latches the violation flag when any bound is exceeded. The flag is one-way:
// in-range readings never clear it.
func (p *Pipeline) evaluate(ctx context.Context, reading domain.Reading) (bool, error) {
	items, err := p.store.ItemThresholds(ctx, reading.ShipmentID)
	if err != nil {
		return false, err
	}
	if !domain.Violates(reading, items) {
		return false, nil
	}
	if err := p.store.FlagShipmentViolated(ctx, reading.ShipmentID); err != nil {
		return true, err
	}
	return true, nil
}

func (p *Pipeline) recordEvent(event storage.IngestEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.WriteTimeout)
	defer cancel()
	event.CreatedAt = p.clock().UTC()
	if err := p.store.AppendIngestEvent(ctx, event); err != nil {
		log.Printf("ingest: record event: %v", err)
	}
}
