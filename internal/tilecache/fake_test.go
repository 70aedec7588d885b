package tilecache

import (
	"sync"
	"testing"
	"time"

	"github.com/jaennil/guide_helper/backend/hips/internal/tile"
	"github.com/stretchr/testify/require"
)

type pending struct {
	handle Handle
	req    Request
	reply  func(Completion)
}

// fakeLoader records submissions and answers them on demand.
type fakeLoader struct {
	next     Handle
	pending  []pending
	history  []Request
	cancelOK bool
	cancels  int
}

func (f *fakeLoader) Submit(req Request, reply func(Completion)) Handle {
	f.next++
	f.pending = append(f.pending, pending{handle: f.next, req: req, reply: reply})
	f.history = append(f.history, req)
	return f.next
}

func (f *fakeLoader) Cancel(h Handle) bool {
	f.cancels++
	if !f.cancelOK {
		return false
	}
	for i, p := range f.pending {
		if p.handle == h {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (f *fakeLoader) take(k tile.Key) (pending, bool) {
	for i := len(f.pending) - 1; i >= 0; i-- {
		if f.pending[i].req.Key == k {
			p := f.pending[i]
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return p, true
		}
	}
	return pending{}, false
}

func (f *fakeLoader) keys() []tile.Key {
	out := make([]tile.Key, len(f.pending))
	for i, p := range f.pending {
		out[i] = p.req.Key
	}
	return out
}

// complete answers the latest request for k and applies the result.
func complete(t *testing.T, c *Cache, f *fakeLoader, k tile.Key, buf *tile.Buffer, err error) {
	t.Helper()
	p, ok := f.take(k)
	require.True(t, ok, "no pending request for %s", k)
	p.reply(Completion{
		Key:         k,
		Generation:  p.req.Generation,
		Buffer:      buf,
		FromNetwork: p.req.Source == SourceNet,
		Err:         err,
	})
	c.Drain()
}

func sized(n uint32) *tile.Buffer {
	return &tile.Buffer{Format: "png", Raw: make([]byte, 4), Size: n}
}

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.now = f.now.Add(time.Second)
	return f.now
}

type fakeDisk struct {
	mu   sync.Mutex
	data map[tile.Key][]byte
}

func (d *fakeDisk) Set(k tile.Key, v []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.data == nil {
		d.data = make(map[tile.Key][]byte)
	}
	d.data[k] = v
	return nil
}

func (d *fakeDisk) has(k tile.Key) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.data[k]
	return ok
}

type fakeSplitter struct {
	size uint32
}

func (s fakeSplitter) Split(_ *tile.Buffer, _ uint8, _ uint64) (*tile.Buffer, error) {
	return &tile.Buffer{Format: "png", Size: s.size}, nil
}

func testSurvey() tile.Survey {
	return tile.Survey{ID: "dss", Kind: tile.KindImage, Format: "png", MaxOrder: 9, AllskyOrder: -1}
}

func newTestCache(t *testing.T, s tile.Survey, opts Options) (*Cache, *fakeLoader) {
	t.Helper()
	f := &fakeLoader{}
	if opts.Clock == nil {
		opts.Clock = (&fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}).Now
	}
	c, err := New(s, f, opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, f
}

func key(pixel uint64) tile.Key {
	return tile.Key{Survey: "dss", Order: 3, Pixel: pixel}
}

func markVisible(c *Cache, keys ...tile.Key) {
	c.visible = make(map[tile.Key]struct{}, len(keys))
	for _, k := range keys {
		c.visible[k] = struct{}{}
	}
}
