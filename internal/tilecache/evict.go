package tilecache

import (
	"sort"
	"sync"

	"github.com/jaennil/guide_helper/backend/hips/internal/tile"
	"github.com/jaennil/guide_helper/backend/hips/pkg/logger"
	"github.com/jaennil/guide_helper/backend/hips/pkg/metrics"
)

func (c *Cache) evictIfNeeded() {
	if c.used > c.budget {
		c.Evict()
	}
}

// Evict frees ready tiles outside the visible set, least recently touched
// first, until the cache fits its budget. Visible tiles are never evicted,
// so the cache may stay over budget. It returns the number of evicted tiles.
func (c *Cache) Evict() int {
	if c.used <= c.budget {
		return 0
	}

	victims := make([]*tile.Tile, 0)
	for k, t := range c.tiles {
		if t.State == tile.Ready && !c.IsVisible(k) {
			victims = append(victims, t)
		}
	}
	sort.Slice(victims, func(i, j int) bool {
		a, b := victims[i], victims[j]
		if !a.LastTouched.Equal(b.LastTouched) {
			return a.LastTouched.Before(b.LastTouched)
		}
		return a.Key.Less(b.Key)
	})

	n := 0
	for _, t := range victims {
		if c.used <= c.budget {
			break
		}
		c.evict(t)
		n++
	}
	if c.used > c.budget {
		c.logger.Debug("cache over budget after eviction", "survey", c.survey.ID, "used", c.used, "budget", c.budget)
	}
	metrics.CacheUsedBytes.WithLabelValues(c.survey.ID).Set(float64(c.used))
	return n
}

func (c *Cache) evict(t *tile.Tile) {
	if t.FromNetwork && c.writer != nil && t.Payload != nil && len(t.Payload.Raw) > 0 {
		if c.writer.enqueue(t.Key, t.Payload.Raw) {
			c.onDisk[t.Key] = struct{}{}
		}
	}
	c.used -= uint64(t.ByteSize)
	t.Transition(tile.Unknown)
	delete(c.tiles, t.Key)
	metrics.TileEvictions.WithLabelValues(c.survey.ID).Inc()
	c.logger.Debug("tile evicted", "key", t.Key.String())
}

type diskWrite struct {
	key  tile.Key
	data []byte
}

// diskWriter performs write-backs off the owner goroutine. A full queue drops
// the write instead of blocking eviction.
type diskWriter struct {
	disk   DiskCache
	queue  chan diskWrite
	logger logger.Logger
	wg     sync.WaitGroup
}

func newDiskWriter(disk DiskCache, size int, l logger.Logger) *diskWriter {
	if size < 1 {
		size = 64
	}
	w := &diskWriter{
		disk:   disk,
		queue:  make(chan diskWrite, size),
		logger: l,
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *diskWriter) run() {
	defer w.wg.Done()
	for job := range w.queue {
		if err := w.disk.Set(job.key, job.data); err != nil {
			w.logger.Warn("disk cache write-back failed", "key", job.key.String(), "error", err)
			metrics.DiskWriteBackFailures.Inc()
		}
	}
}

func (w *diskWriter) enqueue(k tile.Key, data []byte) bool {
	select {
	case w.queue <- diskWrite{key: k, data: data}:
		return true
	default:
		w.logger.Warn("disk cache write queue full, dropping tile", "key", k.String())
		metrics.DiskWriteBackFailures.Inc()
		return false
	}
}

// close waits for queued writes to finish.
func (w *diskWriter) close() {
	close(w.queue)
	w.wg.Wait()
}
