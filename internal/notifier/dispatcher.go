package notifier

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"

	"LedgerApi/internal/model"
)

// Deliverer performs the fan-out for one transaction.
type Deliverer interface {
	Deliver(ctx context.Context, t model.Transaction)
}

// Dispatcher decouples delivery from the request path. Transactions are
// sharded by owner onto fixed worker queues; Notify never blocks and drops
// the event when the shard's queue is full.
type Dispatcher struct {
	deliverer Deliverer
	queues    []chan model.Transaction
	workers   int
	logger    zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts workers goroutines, each draining a queue of queueSize.
func NewDispatcher(deliverer Deliverer, workers, queueSize int, logger zerolog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	queues := make([]chan model.Transaction, workers)
	for i := range queues {
		queues[i] = make(chan model.Transaction, queueSize)
	}

	d := &Dispatcher{
		deliverer: deliverer,
		queues:    queues,
		workers:   workers,
		logger:    logger,
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.processDeliveries(i)
	}

	return d
}

func (d *Dispatcher) getShard(ownerID string) int {
	h := fnv.New32a()
	h.Write([]byte(ownerID))
	return int(h.Sum32() % uint32(d.workers))
}

func (d *Dispatcher) Notify(t model.Transaction) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn().Str("transaction_id", t.ID).Msg("dispatcher closed, webhook event dropped")
		return
	}

	select {
	case d.queues[d.getShard(t.OwnerID)] <- t:
	default:
		d.logger.Warn().Str("transaction_id", t.ID).Msg("webhook queue full, event dropped")
	}
}

// Delivery runs on a background context so it outlives the request that
// produced the transaction.
func (d *Dispatcher) processDeliveries(shardIndex int) {
	defer d.wg.Done()
	for t := range d.queues[shardIndex] {
		d.deliverer.Deliver(context.Background(), t)
	}
}

// Shutdown stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for i := range d.queues {
		close(d.queues[i])
	}
	d.mu.Unlock()

	d.wg.Wait()
}
