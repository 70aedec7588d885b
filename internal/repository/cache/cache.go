package cache

import (
	"fmt"
	"strconv"

	"github.com/jaennil/guide_helper/backend/hips/internal/tile"
)

// Store persists encoded tiles between sessions.
type Store interface {
	Get(tile.Key) ([]byte, bool, error)
	Set(tile.Key, []byte) error
}

// Lister is implemented by stores able to enumerate what they hold.
type Lister interface {
	Keys(survey string) ([]tile.Key, error)
}

// keyFor renders a flat, unique key used by the key-value backends.
func keyFor(k tile.Key) string {
	pix := strconv.FormatUint(k.Pixel, 10)
	if k.IsAllsky() {
		pix = "allsky"
	}
	return fmt.Sprintf("tile:%s:%d:%s:%d", k.Survey, k.Order, pix, k.Extra)
}

func parseKey(s string) (tile.Key, error) {
	var k tile.Key
	parts := splitKey(s)
	if len(parts) != 5 || parts[0] != "tile" {
		return k, fmt.Errorf("malformed tile key %q", s)
	}
	order, err := strconv.ParseUint(parts[2], 10, 8)
	if err != nil {
		return k, fmt.Errorf("malformed tile key %q: %w", s, err)
	}
	extra, err := strconv.Atoi(parts[4])
	if err != nil {
		return k, fmt.Errorf("malformed tile key %q: %w", s, err)
	}
	k = tile.Key{Survey: parts[1], Order: uint8(order), Extra: extra}
	if parts[3] == "allsky" {
		k.Pixel = tile.AllskyPixel
		return k, nil
	}
	if k.Pixel, err = strconv.ParseUint(parts[3], 10, 64); err != nil {
		return k, fmt.Errorf("malformed tile key %q: %w", s, err)
	}
	return k, nil
}

func splitKey(s string) []string {
	parts := make([]string, 0, 5)
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
