package cache

import (
	"time"

	"github.com/jaennil/guide_helper/backend/hips/internal/tile"
	"github.com/jaennil/guide_helper/backend/hips/pkg/metrics"
)

// Instrumented records the latency of every operation of the wrapped store.
type Instrumented struct {
	Store
	Backend string
}

func (c Instrumented) Get(k tile.Key) ([]byte, bool, error) {
	defer c.observe("get", time.Now())
	return c.Store.Get(k)
}

func (c Instrumented) Set(k tile.Key, v []byte) error {
	defer c.observe("set", time.Now())
	return c.Store.Set(k, v)
}

func (c Instrumented) Keys(survey string) ([]tile.Key, error) {
	if l, ok := c.Store.(Lister); ok {
		return l.Keys(survey)
	}
	return nil, nil
}

func (c Instrumented) observe(op string, start time.Time) {
	metrics.DiskOperationDuration.WithLabelValues(c.Backend, op).Observe(time.Since(start).Seconds())
}
