package tilecache

import (
	"errors"

	"github.com/jaennil/guide_helper/backend/hips/internal/tile"
)

// ErrCacheMiss is reported by a loader when a disk cache read finds nothing.
// The cache then falls back to the network.
var ErrCacheMiss = errors.New("tile not in disk cache")

type Source uint8

const (
	SourceCache Source = iota
	SourceNet
)

func (s Source) String() string {
	if s == SourceCache {
		return "cache"
	}
	return "net"
}

// Request asks a loader to fetch and decode one tile.
type Request struct {
	Key        tile.Key
	Survey     tile.Survey
	Priority   int32
	Source     Source
	Generation uint64
}

// Completion reports the outcome of a Request.
type Completion struct {
	Key         tile.Key
	Generation  uint64
	Buffer      *tile.Buffer
	FromNetwork bool
	Err         error
}

type Handle uint64

// Loader performs fetches asynchronously. reply must be called exactly once
// per submitted request unless Cancel returned true for it.
type Loader interface {
	Submit(req Request, reply func(Completion)) Handle
	// Cancel is advisory. It returns true when the request was dropped before
	// it started, in which case reply is never called.
	Cancel(h Handle) bool
}

// DiskCache receives payloads of evicted network tiles.
type DiskCache interface {
	Set(k tile.Key, v []byte) error
}

// Splitter cuts one tile out of an all-sky mosaic.
type Splitter interface {
	Split(allsky *tile.Buffer, order uint8, pixel uint64) (*tile.Buffer, error)
}
