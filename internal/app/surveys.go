package app

import (
	"fmt"

	"github.com/jaennil/guide_helper/backend/hips/internal/moc"
	"github.com/jaennil/guide_helper/backend/hips/internal/tile"
	"github.com/jaennil/guide_helper/backend/hips/pkg/config"
)

func buildSurvey(s config.Survey) (tile.Survey, error) {
	kind, err := tile.ParseKind(s.Kind)
	if err != nil {
		return tile.Survey{}, fmt.Errorf("survey %s: %w", s.ID, err)
	}

	out := tile.Survey{
		ID:          s.ID,
		Kind:        kind,
		BaseURL:     s.BaseURL,
		Format:      s.Format,
		Depth:       s.Depth,
		MaxOrder:    s.MaxOrder,
		AllskyOrder: -1,
	}
	if s.AllskyOrder != nil {
		out.AllskyOrder = *s.AllskyOrder
	}
	if s.Coverage != "" {
		cov, err := moc.ParseASCII(s.Coverage, moc.Frame(s.Frame))
		if err != nil {
			return tile.Survey{}, fmt.Errorf("survey %s coverage: %w", s.ID, err)
		}
		out.Coverage = cov
	}

	return out, out.Validate()
}
