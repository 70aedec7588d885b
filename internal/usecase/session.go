package usecase

import (
	"context"

	"github.com/jaennil/guide_helper/backend/hips/internal/tilecache"
	"github.com/jaennil/guide_helper/backend/hips/pkg/logger"
)

// Session owns the tile cache of one survey. Every access to the cache runs
// on the session goroutine, interleaved with loader completions.
type Session struct {
	cache  *tilecache.Cache
	cmds   chan func(*tilecache.Cache)
	logger logger.Logger
}

func NewSession(c *tilecache.Cache, l logger.Logger) *Session {
	return &Session{
		cache:  c,
		cmds:   make(chan func(*tilecache.Cache)),
		logger: l,
	}
}

func (s *Session) ID() string {
	return s.cache.Survey().ID
}

// Run serves commands and completions until ctx is done, then closes the
// cache.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("survey session started", "survey", s.ID())
	defer s.logger.Info("survey session stopped", "survey", s.ID())
	defer s.cache.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-s.cmds:
			cmd(s.cache)
		case comp := <-s.cache.Completions():
			s.cache.OnLoaded(comp)
		}
	}
}

// Do runs fn on the session goroutine and waits for it.
func (s *Session) Do(ctx context.Context, fn func(*tilecache.Cache)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan struct{})
	cmd := func(c *tilecache.Cache) {
		fn(c)
		close(done)
	}

	select {
	case s.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
