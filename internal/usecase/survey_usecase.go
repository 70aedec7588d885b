package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jaennil/guide_helper/backend/hips/internal/moc"
	"github.com/jaennil/guide_helper/backend/hips/internal/tile"
	"github.com/jaennil/guide_helper/backend/hips/internal/tilecache"
	"github.com/jaennil/guide_helper/backend/hips/pkg/logger"
)

var ErrSurveyNotFound = errors.New("survey not found")

type SurveyUseCase struct {
	sessions map[string]*Session
	logger   logger.Logger
}

func NewSurveyUseCase(l logger.Logger, sessions ...*Session) *SurveyUseCase {
	m := make(map[string]*Session, len(sessions))
	for _, s := range sessions {
		m[s.ID()] = s
	}
	return &SurveyUseCase{
		sessions: m,
		logger:   l,
	}
}

func (uc *SurveyUseCase) session(id string) (*Session, error) {
	s, ok := uc.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSurveyNotFound, id)
	}
	return s, nil
}

func (uc *SurveyUseCase) Surveys() []tile.Survey {
	out := make([]tile.Survey, 0, len(uc.sessions))
	for _, s := range uc.sessions {
		out = append(out, s.cache.Survey())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TileStatus tells a client whether to draw a tile, a spinner or an error
// placeholder.
type TileStatus struct {
	Order    uint8  `json:"order"`
	Pixel    uint64 `json:"pixel"`
	Slice    int    `json:"slice"`
	State    string `json:"state"`
	Priority int32  `json:"priority"`
	Error    string `json:"error,omitempty"`
}

// View runs a visibility pass: it requests the visible tiles, aborts loads
// that left the view and reports the state of every visible tile.
func (uc *SurveyUseCase) View(ctx context.Context, id string, vp tilecache.Viewport) ([]TileStatus, error) {
	s, err := uc.session(id)
	if err != nil {
		return nil, err
	}

	var out []TileStatus
	var viewErr error
	err = s.Do(ctx, func(c *tilecache.Cache) {
		keys, err := c.ComputeVisible(vp)
		if err != nil {
			viewErr = err
			return
		}
		c.Request(keys)
		if n := c.AbortOffscreen(); n > 0 {
			uc.logger.Debug("aborted offscreen tiles", "survey", id, "count", n)
		}

		out = make([]TileStatus, len(keys))
		for i, k := range keys {
			v, _ := c.Tile(k)
			out[i] = TileStatus{
				Order:    k.Order,
				Pixel:    k.Pixel,
				Slice:    k.Extra,
				State:    v.State.String(),
				Priority: v.Priority,
			}
			if v.Err != nil {
				out[i].Error = v.Err.Error()
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return out, viewErr
}

// Tile returns the current view of one tile.
func (uc *SurveyUseCase) Tile(ctx context.Context, id string, order uint8, pixel uint64, slice int) (tilecache.View, error) {
	s, err := uc.session(id)
	if err != nil {
		return tilecache.View{}, err
	}

	var v tilecache.View
	err = s.Do(ctx, func(c *tilecache.Cache) {
		v, _ = c.Tile(c.Survey().Key(order, pixel, slice))
	})
	return v, err
}

func (uc *SurveyUseCase) Stats(ctx context.Context, id string) (tilecache.Stats, error) {
	s, err := uc.session(id)
	if err != nil {
		return tilecache.Stats{}, err
	}

	var st tilecache.Stats
	err = s.Do(ctx, func(c *tilecache.Cache) {
		st = c.Stats()
	})
	return st, err
}

// Coverage builds the coverage of the tiles currently loaded with data.
func (uc *SurveyUseCase) Coverage(ctx context.Context, id string, maxOrder uint8) (*moc.MOC, error) {
	s, err := uc.session(id)
	if err != nil {
		return nil, err
	}

	var m *moc.MOC
	var scanErr error
	err = s.Do(ctx, func(c *tilecache.Cache) {
		m, scanErr = c.ScanCoverage(ctx, func(t *tile.Tile) bool {
			return t.ByteSize > 0
		}, maxOrder)
	})
	if err != nil {
		return nil, err
	}
	return m, scanErr
}
