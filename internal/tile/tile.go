// Package tile defines cache keys, cached tiles and the tile state machine.
package tile

import (
	"fmt"
	"image"
	"math"
	"time"

	"github.com/jaennil/guide_helper/backend/hips/pkg/healpix"
)

// AllskyPixel marks the key of a merged all-sky mosaic.
const AllskyPixel = math.MaxUint64

// Key identifies one cache entry.
type Key struct {
	Survey string
	Order  uint8
	Pixel  uint64
	// Extra is the cube slice, 0 for plain surveys.
	Extra int
}

func AllskyKey(survey string, order uint8) Key {
	return Key{Survey: survey, Order: order, Pixel: AllskyPixel}
}

func (k Key) IsAllsky() bool {
	return k.Pixel == AllskyPixel
}

func (k Key) Address() healpix.Address {
	return healpix.Address{Order: k.Order, Pixel: k.Pixel}
}

func (k Key) String() string {
	if k.IsAllsky() {
		return fmt.Sprintf("%s/%d/allsky[%d]", k.Survey, k.Order, k.Extra)
	}
	return fmt.Sprintf("%s/%d/%d[%d]", k.Survey, k.Order, k.Pixel, k.Extra)
}

// Less orders keys by survey, order, pixel and slice.
func (k Key) Less(o Key) bool {
	if k.Survey != o.Survey {
		return k.Survey < o.Survey
	}
	if k.Order != o.Order {
		return k.Order < o.Order
	}
	if k.Pixel != o.Pixel {
		return k.Pixel < o.Pixel
	}
	return k.Extra < o.Extra
}

// Buffer is a decoded tile payload.
type Buffer struct {
	Format string
	// Raw holds the encoded bytes, written back to disk cache on eviction.
	Raw   []byte
	Image *image.RGBA
	Size  uint32
}

// Tile is one cache entry.
type Tile struct {
	Key         Key
	State       State
	Payload     *Buffer
	ByteSize    uint32
	Priority    int32
	LastTouched time.Time
	FromNetwork bool
	Err         error

	// Generation identifies the current dispatch; stale completions carry an
	// older value.
	Generation uint64
	// Seq is the FIFO position assigned when the tile was last queued.
	Seq uint64
}

func New(k Key, now time.Time) *Tile {
	return &Tile{Key: k, State: Unknown, LastTouched: now}
}

func (t *Tile) Address() healpix.Address {
	return t.Key.Address()
}

// SetPayload stores a decoded buffer and moves the tile to Ready.
func (t *Tile) SetPayload(b *Buffer, fromNetwork bool, now time.Time) {
	t.Transition(Ready)
	t.Payload = b
	t.ByteSize = b.Size
	t.FromNetwork = fromNetwork
	t.Err = nil
	t.LastTouched = now
}

// release drops the payload after the tile has left Ready.
func (t *Tile) release() {
	t.Payload = nil
	t.ByteSize = 0
}

// Fail records a load error.
func (t *Tile) Fail(err error) {
	t.Transition(Error)
	t.Err = err
}
