// Package loader fetches and decodes tiles on a bounded pool of workers.
package loader

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/jaennil/guide_helper/backend/hips/internal/tile"
	"github.com/jaennil/guide_helper/backend/hips/internal/tilecache"
	"github.com/jaennil/guide_helper/backend/hips/pkg/logger"
	"github.com/jaennil/guide_helper/backend/hips/pkg/metrics"
	"github.com/jaennil/guide_helper/backend/hips/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrClosed    = errors.New("loader closed")
	ErrQueueFull = errors.New("loader queue full")
)

type Fetcher interface {
	Fetch(ctx context.Context, req tilecache.Request) ([]byte, error)
}

type Decoder interface {
	Decode(raw []byte, format string) (*tile.Buffer, error)
}

// DiskReader is the read side of the disk cache.
type DiskReader interface {
	Get(tile.Key) ([]byte, bool, error)
}

type Config struct {
	Workers   int
	QueueSize int
}

type job struct {
	handle  tilecache.Handle
	req     tilecache.Request
	reply   func(tilecache.Completion)
	index   int
	started bool
	cancel  context.CancelFunc
}

// Pool serves requests in ascending priority order, FIFO among equals.
type Pool struct {
	config  Config
	fetcher Fetcher
	decoder Decoder
	disk    DiskReader
	logger  logger.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  jobQueue
	jobs   map[tilecache.Handle]*job
	next   tilecache.Handle
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ tilecache.Loader = (*Pool)(nil)

// NewPool starts the workers. disk may be nil, in which case every cache read
// misses.
func NewPool(config Config, fetcher Fetcher, decoder Decoder, disk DiskReader, l logger.Logger) *Pool {
	if config.Workers < 1 {
		config.Workers = runtime.NumCPU() * 3
	}
	if config.QueueSize < 1 {
		config.QueueSize = 10000
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		config:  config,
		fetcher: fetcher,
		decoder: decoder,
		disk:    disk,
		logger:  l,
		jobs:    make(map[tilecache.Handle]*job),
		ctx:     ctx,
		cancel:  cancel,
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < config.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

func (p *Pool) Submit(req tilecache.Request, reply func(tilecache.Completion)) tilecache.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.next++
	h := p.next

	if p.closed || len(p.queue) >= p.config.QueueSize {
		err := ErrQueueFull
		if p.closed {
			err = ErrClosed
		}
		go reply(tilecache.Completion{Key: req.Key, Generation: req.Generation, Err: err})
		return h
	}

	j := &job{handle: h, req: req, reply: reply}
	p.jobs[h] = j
	heap.Push(&p.queue, j)
	p.cond.Signal()
	return h
}

func (p *Pool) Cancel(h tilecache.Handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	j, ok := p.jobs[h]
	if !ok {
		return false
	}
	if !j.started {
		heap.Remove(&p.queue, j.index)
		delete(p.jobs, h)
		return true
	}
	j.cancel()
	return false
}

// Pending returns the number of queued jobs.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Close stops the workers. Queued jobs are answered with ErrClosed.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	queued := make([]*job, 0, len(p.queue))
	for len(p.queue) > 0 {
		queued = append(queued, heap.Pop(&p.queue).(*job))
	}
	p.cond.Broadcast()
	p.mu.Unlock()

	p.cancel()
	for _, j := range queued {
		j.reply(tilecache.Completion{Key: j.req.Key, Generation: j.req.Generation, Err: ErrClosed})
	}
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		j := heap.Pop(&p.queue).(*job)
		j.started = true
		ctx, cancel := context.WithCancel(p.ctx)
		j.cancel = cancel
		p.mu.Unlock()

		comp := p.run(ctx, j.req)
		cancel()

		p.mu.Lock()
		delete(p.jobs, j.handle)
		p.mu.Unlock()

		j.reply(comp)
	}
}

func (p *Pool) run(ctx context.Context, req tilecache.Request) tilecache.Completion {
	ctx, span := telemetry.Tracer().Start(ctx, "tile.load")
	defer span.End()
	span.SetAttributes(
		attribute.String("hips.tile", req.Key.String()),
		attribute.String("hips.source", req.Source.String()),
		attribute.Int("hips.priority", int(req.Priority)),
	)

	start := time.Now()
	comp := tilecache.Completion{Key: req.Key, Generation: req.Generation, FromNetwork: req.Source == tilecache.SourceNet}

	raw, err := p.read(ctx, req)
	if err == nil {
		comp.Buffer, err = p.decoder.Decode(raw, req.Survey.Format)
	}
	comp.Err = err

	metrics.LoadLatency.WithLabelValues(req.Source.String()).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, tilecache.ErrCacheMiss) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Debug("tile load failed", "key", req.Key.String(), "error", err)
	}
	return comp
}

func (p *Pool) read(ctx context.Context, req tilecache.Request) ([]byte, error) {
	if req.Source == tilecache.SourceNet {
		return p.fetcher.Fetch(ctx, req)
	}
	if p.disk == nil {
		return nil, tilecache.ErrCacheMiss
	}
	data, ok, err := p.disk.Get(req.Key)
	if err != nil {
		// a broken disk cache only costs a network fetch
		return nil, fmt.Errorf("%w: %v", tilecache.ErrCacheMiss, err)
	}
	if !ok {
		return nil, tilecache.ErrCacheMiss
	}
	return data, nil
}

type jobQueue []*job

func (q jobQueue) Len() int { return len(q) }

func (q jobQueue) Less(i, j int) bool {
	if q[i].req.Priority != q[j].req.Priority {
		return q[i].req.Priority < q[j].req.Priority
	}
	return q[i].handle < q[j].handle
}

func (q jobQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *jobQueue) Push(x any) {
	j := x.(*job)
	j.index = len(*q)
	*q = append(*q, j)
}

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.index = -1
	*q = old[:n-1]
	return j
}
