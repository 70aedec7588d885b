// Package tilecache keeps the decoded tiles of one survey in memory, decides
// which tiles to load for a viewport and evicts under memory pressure.
//
// A Cache is owned by a single goroutine. Loader workers never touch it: they
// report through Completions, which the owner drains into OnLoaded.
package tilecache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jaennil/guide_helper/backend/hips/internal/moc"
	"github.com/jaennil/guide_helper/backend/hips/internal/tile"
	"github.com/jaennil/guide_helper/backend/hips/pkg/healpix"
	"github.com/jaennil/guide_helper/backend/hips/pkg/logger"
	"github.com/jaennil/guide_helper/backend/hips/pkg/metrics"
)

var ErrInvalidViewport = errors.New("invalid viewport")

const DefaultMaxVisible = 1 << 14

// allskyPriority puts mosaic loads ahead of every ranked tile.
const allskyPriority = -1

type Options struct {
	Budget      uint64
	MaxInflight int
	// MaxVisible bounds the tiles a single visibility pass may enumerate.
	MaxVisible int
	// Disk enables write-back of evicted network tiles when non-nil.
	Disk       DiskCache
	WriteQueue int
	Splitter   Splitter
	Clock      func() time.Time
	Logger     logger.Logger
}

type Cache struct {
	survey   tile.Survey
	loader   Loader
	splitter Splitter
	clock    func() time.Time
	logger   logger.Logger

	tiles       map[tile.Key]*tile.Tile
	budget      uint64
	used        uint64
	maxInflight int
	maxVisible  int
	seq         uint64
	generation  uint64
	visible     map[tile.Key]struct{}
	inflight    map[tile.Key]Handle
	onDisk      map[tile.Key]struct{}
	scanAborted bool

	completions chan Completion
	done        chan struct{}
	writer      *diskWriter
}

func New(survey tile.Survey, loader Loader, opts Options) (*Cache, error) {
	if err := survey.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxInflight < 1 {
		opts.MaxInflight = 8
	}
	if opts.MaxVisible < 1 {
		opts.MaxVisible = DefaultMaxVisible
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOp()
	}

	c := &Cache{
		survey:      survey,
		loader:      loader,
		splitter:    opts.Splitter,
		clock:       opts.Clock,
		logger:      opts.Logger,
		tiles:       make(map[tile.Key]*tile.Tile),
		budget:      opts.Budget,
		maxInflight: opts.MaxInflight,
		maxVisible:  opts.MaxVisible,
		visible:     make(map[tile.Key]struct{}),
		inflight:    make(map[tile.Key]Handle),
		onDisk:      make(map[tile.Key]struct{}),
		// at most maxInflight loads are outstanding, so posting never blocks
		completions: make(chan Completion, opts.MaxInflight+1),
		done:        make(chan struct{}),
	}
	if opts.Disk != nil {
		c.writer = newDiskWriter(opts.Disk, opts.WriteQueue, c.logger)
	}
	return c, nil
}

func (c *Cache) Survey() tile.Survey { return c.survey }
func (c *Cache) Used() uint64        { return c.used }
func (c *Cache) Budget() uint64      { return c.budget }
func (c *Cache) ScanAborted() bool   { return c.scanAborted }

// Completions delivers loader results to the owning goroutine.
func (c *Cache) Completions() <-chan Completion {
	return c.completions
}

func (c *Cache) post(comp Completion) {
	select {
	case c.completions <- comp:
	case <-c.done:
	}
}

// Drain applies every completion already queued and returns their number.
func (c *Cache) Drain() int {
	n := 0
	for {
		select {
		case comp := <-c.completions:
			c.OnLoaded(comp)
			n++
		default:
			return n
		}
	}
}

// SeedDiskIndex marks keys known to be present in the disk cache.
func (c *Cache) SeedDiskIndex(keys []tile.Key) {
	for _, k := range keys {
		c.onDisk[k] = struct{}{}
	}
}

// Viewport is the part of the sky on display.
type Viewport struct {
	Center healpix.Point
	// Radius in degrees.
	Radius float64
	Order  uint8
	Slice  int
}

// ComputeVisible returns the keys needed to draw vp, most urgent first, and
// remembers them as the visible set. Pixels outside the survey coverage are
// skipped.
func (c *Cache) ComputeVisible(vp Viewport) ([]tile.Key, error) {
	if vp.Order > c.survey.MaxOrder {
		return nil, fmt.Errorf("%w: order %d above survey max order %d", ErrInvalidViewport, vp.Order, c.survey.MaxOrder)
	}
	if vp.Slice < 0 || vp.Slice >= c.survey.Slices() {
		return nil, fmt.Errorf("%w: slice %d out of range", ErrInvalidViewport, vp.Slice)
	}
	if vp.Radius < 0 {
		return nil, fmt.Errorf("%w: negative radius", ErrInvalidViewport)
	}

	type ranked struct {
		addr healpix.Address
		dist float64
	}
	pixels, err := healpix.QueryDiscLimit(vp.Order, vp.Center, vp.Radius, c.maxVisible)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidViewport, err)
	}
	cands := make([]ranked, 0, len(pixels))
	for _, a := range pixels {
		if c.survey.Coverage != nil && !c.survey.Coverage.Intersects(a) {
			continue
		}
		cands = append(cands, ranked{a, healpix.Distance(vp.Center, a.Center())})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].addr.Pixel < cands[j].addr.Pixel
	})

	keys := make([]tile.Key, len(cands))
	c.visible = make(map[tile.Key]struct{}, len(cands)+1)
	for i, r := range cands {
		keys[i] = c.survey.Key(r.addr.Order, r.addr.Pixel, vp.Slice)
		c.visible[keys[i]] = struct{}{}
	}
	if c.survey.HasAllsky(vp.Order) && len(keys) > 0 {
		ak := tile.AllskyKey(c.survey.ID, vp.Order)
		ak.Extra = vp.Slice
		c.visible[ak] = struct{}{}
	}
	return keys, nil
}

// IsVisible reports whether k belongs to the last visibility pass.
func (c *Cache) IsVisible(k tile.Key) bool {
	_, ok := c.visible[k]
	return ok
}

// Request queues every key that is neither ready nor pending. The position of
// a key in keys is its priority; rank 0 is the most urgent. Pending keys only
// get their priority updated.
func (c *Cache) Request(keys []tile.Key) {
	metrics.TileRequests.WithLabelValues(c.survey.ID).Add(float64(len(keys)))

	for rank, k := range keys {
		if c.survey.HasAllsky(k.Order) && !k.IsAllsky() {
			if c.split(k) {
				continue
			}
			ak := tile.AllskyKey(k.Survey, k.Order)
			ak.Extra = k.Extra
			c.want(ak, allskyPriority)
			continue
		}
		c.want(k, int32(rank))
	}

	c.dispatch()
}

func (c *Cache) want(k tile.Key, priority int32) {
	now := c.clock()
	t, ok := c.tiles[k]
	if !ok {
		t = tile.New(k, now)
		c.tiles[k] = t
	}
	t.Priority = priority

	switch t.State {
	case tile.Unknown, tile.Error:
		t.Transition(tile.Asking)
		t.Err = nil
		if _, ok := c.onDisk[k]; ok {
			t.Transition(tile.ToLoadFromCache)
		} else {
			t.Transition(tile.ToLoadFromNet)
		}
		c.seq++
		t.Seq = c.seq
	case tile.Ready:
		t.LastTouched = now
	}
}

func (c *Cache) dispatch() {
	if len(c.inflight) >= c.maxInflight {
		return
	}

	queued := make([]*tile.Tile, 0)
	for _, t := range c.tiles {
		if t.State.IsQueued() {
			queued = append(queued, t)
		}
	}
	sort.Slice(queued, func(i, j int) bool {
		if queued[i].Priority != queued[j].Priority {
			return queued[i].Priority < queued[j].Priority
		}
		return queued[i].Seq < queued[j].Seq
	})

	for _, t := range queued {
		if len(c.inflight) >= c.maxInflight {
			return
		}
		c.submit(t)
	}
}

func (c *Cache) submit(t *tile.Tile) {
	src := SourceNet
	if t.State == tile.ToLoadFromCache {
		src = SourceCache
		t.Transition(tile.LoadingFromCache)
	} else {
		t.Transition(tile.LoadingFromNet)
	}
	c.generation++
	t.Generation = c.generation

	h := c.loader.Submit(Request{
		Key:        t.Key,
		Survey:     c.survey,
		Priority:   t.Priority,
		Source:     src,
		Generation: t.Generation,
	}, c.post)
	c.inflight[t.Key] = h

	metrics.TileDispatches.WithLabelValues(c.survey.ID, src.String()).Inc()
	c.logger.Debug("tile dispatched", "key", t.Key.String(), "source", src.String(), "priority", t.Priority)
}

// OnLoaded applies a loader result. Results for tiles that were evicted,
// aborted or re-dispatched since the request was made are discarded.
func (c *Cache) OnLoaded(comp Completion) {
	defer c.dispatch()

	t, ok := c.tiles[comp.Key]
	if !ok || t.Generation != comp.Generation || !(t.State.IsLoading() || t.State == tile.Aborting) {
		c.logger.Debug("stale tile completion discarded", "key", comp.Key.String())
		metrics.TileCompletions.WithLabelValues(c.survey.ID, "stale").Inc()
		return
	}
	delete(c.inflight, comp.Key)

	if t.State == tile.Aborting {
		t.Transition(tile.Unknown)
		delete(c.tiles, comp.Key)
		metrics.TileCompletions.WithLabelValues(c.survey.ID, "aborted").Inc()
		return
	}

	err := comp.Err
	if err == nil && comp.Buffer == nil {
		err = errors.New("loader returned no payload")
	}

	switch {
	case err == nil:
		t.SetPayload(comp.Buffer, comp.FromNetwork, c.clock())
		c.used += uint64(t.ByteSize)
		metrics.TileCompletions.WithLabelValues(c.survey.ID, "ready").Inc()
		c.evictIfNeeded()
	case errors.Is(err, ErrCacheMiss) && t.State == tile.LoadingFromCache:
		delete(c.onDisk, comp.Key)
		t.Transition(tile.ToLoadFromNet)
		c.seq++
		t.Seq = c.seq
		metrics.TileCompletions.WithLabelValues(c.survey.ID, "cache_miss").Inc()
	default:
		t.Fail(err)
		c.logger.Warn("tile load failed", "key", comp.Key.String(), "error", err)
		metrics.TileCompletions.WithLabelValues(c.survey.ID, "error").Inc()
	}
	metrics.CacheUsedBytes.WithLabelValues(c.survey.ID).Set(float64(c.used))
}

// AbortOffscreen cancels loads of tiles missing from the last visibility
// pass. Queued tiles are dropped; in-flight ones wait in Aborting for the
// loader to acknowledge unless it confirms the job never started.
func (c *Cache) AbortOffscreen() int {
	n := 0
	for k, t := range c.tiles {
		if c.IsVisible(k) {
			continue
		}
		switch {
		case t.State.IsLoading():
			t.Transition(tile.Aborting)
			n++
			if h, ok := c.inflight[k]; ok && c.loader.Cancel(h) {
				t.Transition(tile.Unknown)
				delete(c.inflight, k)
				delete(c.tiles, k)
			}
		case t.State.IsQueued():
			t.Transition(tile.Unknown)
			delete(c.tiles, k)
			n++
		}
	}
	c.dispatch()
	return n
}

// View is a read-only snapshot of a tile.
type View struct {
	Key         tile.Key
	State       tile.State
	Priority    int32
	ByteSize    uint32
	FromNetwork bool
	Err         error
	Payload     *tile.Buffer
}

// Tile returns the current view of k. Accessing a tile at the all-sky order
// cuts it out of a ready mosaic on first use.
func (c *Cache) Tile(k tile.Key) (View, bool) {
	if c.survey.HasAllsky(k.Order) && !k.IsAllsky() {
		c.split(k)
	}
	t, ok := c.tiles[k]
	if !ok {
		return View{Key: k, State: tile.Unknown}, false
	}
	if t.State == tile.Ready {
		t.LastTouched = c.clock()
	}
	return View{
		Key:         t.Key,
		State:       t.State,
		Priority:    t.Priority,
		ByteSize:    t.ByteSize,
		FromNetwork: t.FromNetwork,
		Err:         t.Err,
		Payload:     t.Payload,
	}, true
}

// split materializes k from its all-sky mosaic. It reports whether k is ready
// afterwards.
func (c *Cache) split(k tile.Key) bool {
	if t, ok := c.tiles[k]; ok {
		if t.State == tile.Ready {
			t.LastTouched = c.clock()
			return true
		}
		if t.State != tile.Unknown {
			return false
		}
	}
	ak := tile.AllskyKey(k.Survey, k.Order)
	ak.Extra = k.Extra
	at, ok := c.tiles[ak]
	if !ok || at.State != tile.Ready || c.splitter == nil {
		return false
	}

	buf, err := c.splitter.Split(at.Payload, k.Order, k.Pixel)
	if err != nil {
		c.logger.Warn("failed to split all-sky tile", "key", k.String(), "error", err)
		return false
	}

	t, ok := c.tiles[k]
	if !ok {
		t = tile.New(k, c.clock())
		c.tiles[k] = t
	}
	// a local decode walks the disk path of the state machine synchronously
	t.Transition(tile.Asking)
	t.Transition(tile.ToLoadFromCache)
	t.Transition(tile.LoadingFromCache)
	t.SetPayload(buf, false, c.clock())
	c.used += uint64(t.ByteSize)
	c.evictIfNeeded()
	return true
}

// ScanCoverage builds the coverage of the ready tiles accepted by keep. The
// scan stops when ctx is done and the cache remembers it was aborted.
func (c *Cache) ScanCoverage(ctx context.Context, keep func(*tile.Tile) bool, maxOrder uint8) (*moc.MOC, error) {
	c.scanAborted = false

	ready := make([]*tile.Tile, 0, len(c.tiles))
	for _, t := range c.tiles {
		if t.State == tile.Ready && !t.Key.IsAllsky() {
			ready = append(ready, t)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].Key.Less(ready[j].Key) })

	selected := make([]*tile.Tile, 0, len(ready))
	for i, t := range ready {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				c.scanAborted = true
				return nil, fmt.Errorf("coverage scan aborted: %w", err)
			}
		}
		if keep == nil || keep(t) {
			selected = append(selected, t)
		}
	}

	frame := moc.FrameICRS
	if c.survey.Coverage != nil {
		frame = c.survey.Coverage.Frame()
	}
	return moc.FromTileScan(selected, nil, maxOrder, frame)
}

type Stats struct {
	Survey      string         `json:"survey"`
	Tiles       int            `json:"tiles"`
	UsedBytes   uint64         `json:"used_bytes"`
	BudgetBytes uint64         `json:"budget_bytes"`
	Inflight    int            `json:"inflight"`
	Visible     int            `json:"visible"`
	ByState     map[string]int `json:"by_state"`
	ScanAborted bool           `json:"scan_aborted"`
}

func (c *Cache) Stats() Stats {
	s := Stats{
		Survey:      c.survey.ID,
		Tiles:       len(c.tiles),
		UsedBytes:   c.used,
		BudgetBytes: c.budget,
		Inflight:    len(c.inflight),
		Visible:     len(c.visible),
		ByState:     make(map[string]int),
		ScanAborted: c.scanAborted,
	}
	for _, t := range c.tiles {
		s.ByState[t.State.String()]++
	}
	return s
}

// Teardown cancels every load and drops every tile.
func (c *Cache) Teardown() {
	for k, h := range c.inflight {
		c.loader.Cancel(h)
		delete(c.inflight, k)
	}
	for k, t := range c.tiles {
		if tile.CanTransition(t.State, tile.Unknown) {
			t.Transition(tile.Unknown)
		}
		delete(c.tiles, k)
	}
	c.visible = make(map[tile.Key]struct{})
	c.used = 0
	metrics.CacheUsedBytes.WithLabelValues(c.survey.ID).Set(0)
}

// Close tears the cache down and stops the disk writer. Completions posted
// afterwards are dropped.
func (c *Cache) Close() {
	c.Teardown()
	close(c.done)
	if c.writer != nil {
		c.writer.close()
	}
}
