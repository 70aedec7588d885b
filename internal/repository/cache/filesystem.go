package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jaennil/guide_helper/backend/hips/internal/tile"
)

// FilesystemCache mirrors the HiPS directory layout under Root:
// <survey>/Norder<o>/Dir<d>/Npix<p>[_<slice>].
type FilesystemCache struct {
	Root string
}

var _ Store = (*FilesystemCache)(nil)

func NewFilesystemCache(root string) (*FilesystemCache, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache root: %w", err)
	}
	return &FilesystemCache{Root: root}, nil
}

func (c *FilesystemCache) Get(k tile.Key) ([]byte, bool, error) {
	content, err := os.ReadFile(c.keyToPath(k))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return content, true, nil
}

func (c *FilesystemCache) Set(k tile.Key, v []byte) error {
	path := c.keyToPath(k)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	// write then rename so readers never see a partial tile
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, v, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (c *FilesystemCache) keyToPath(k tile.Key) string {
	dir := filepath.Join(c.Root, k.Survey, fmt.Sprintf("Norder%d", k.Order))
	if k.IsAllsky() {
		return filepath.Join(dir, fmt.Sprintf("Allsky_%d", k.Extra))
	}
	name := fmt.Sprintf("Npix%d", k.Pixel)
	if k.Extra != 0 {
		name = fmt.Sprintf("Npix%d_%d", k.Pixel, k.Extra)
	}
	return filepath.Join(dir, fmt.Sprintf("Dir%d", k.Pixel/10000*10000), name)
}

var _ Lister = (*FilesystemCache)(nil)

// Keys walks the survey directory. Files that do not follow the layout are
// skipped.
func (c *FilesystemCache) Keys(survey string) ([]tile.Key, error) {
	keys := make([]tile.Key, 0)
	root := filepath.Join(c.Root, survey)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if k, ok := pathToKey(survey, filepath.ToSlash(rel)); ok {
			keys = append(keys, k)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan filesystem cache: %w", err)
	}
	return keys, nil
}

func pathToKey(survey, rel string) (tile.Key, bool) {
	k := tile.Key{Survey: survey}
	parts := strings.Split(rel, "/")
	if len(parts) < 2 {
		return k, false
	}
	var order uint8
	if _, err := fmt.Sscanf(parts[0], "Norder%d", &order); err != nil {
		return k, false
	}
	k.Order = order
	name := parts[len(parts)-1]

	if len(parts) == 2 {
		if _, err := fmt.Sscanf(name, "Allsky_%d", &k.Extra); err != nil {
			return k, false
		}
		k.Pixel = tile.AllskyPixel
		return k, true
	}
	if len(parts) != 3 || strings.HasSuffix(name, ".tmp") {
		return k, false
	}
	pix, slice, found := strings.Cut(strings.TrimPrefix(name, "Npix"), "_")
	p, err := strconv.ParseUint(pix, 10, 64)
	if err != nil || !strings.HasPrefix(name, "Npix") {
		return k, false
	}
	k.Pixel = p
	if found {
		if k.Extra, err = strconv.Atoi(slice); err != nil {
			return k, false
		}
	}
	return k, true
}
