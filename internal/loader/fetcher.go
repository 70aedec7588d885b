package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	perrors "github.com/jmgilman/go/errors"

	"github.com/jaennil/guide_helper/backend/hips/internal/tile"
	"github.com/jaennil/guide_helper/backend/hips/internal/tilecache"
	"github.com/jaennil/guide_helper/backend/hips/pkg/logger"
)

// HTTPFetcher downloads tiles from a HiPS server.
type HTTPFetcher struct {
	httpClient *http.Client
	userAgent  string
	logger     logger.Logger
}

var _ Fetcher = (*HTTPFetcher)(nil)

func NewHTTPFetcher(timeout time.Duration, userAgent string, l logger.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
		logger:    l,
	}
}

// TileURL follows the HiPS layout: Norder<o>/Dir<d>/Npix<p>.<ext>, with a
// _<slice> suffix for cubes and Norder<o>/Allsky.<ext> for mosaics.
func TileURL(s tile.Survey, k tile.Key) string {
	ext := s.Format
	if ext == "jpeg" {
		ext = "jpg"
	}
	base := strings.TrimRight(s.BaseURL, "/")

	name := fmt.Sprintf("Npix%d", k.Pixel)
	dir := fmt.Sprintf("/Dir%d", k.Pixel/10000*10000)
	if k.IsAllsky() {
		name = "Allsky"
		dir = ""
	}
	if s.Kind == tile.KindCube && k.Extra != 0 {
		name = fmt.Sprintf("%s_%d", name, k.Extra)
	}
	return fmt.Sprintf("%s/Norder%d%s/%s.%s", base, k.Order, dir, name, ext)
}

func (f *HTTPFetcher) Fetch(ctx context.Context, req tilecache.Request) ([]byte, error) {
	url := TileURL(req.Survey, req.Key)
	f.logger.Debug("fetching tile", "url", url)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.CodeInvalidInput, "failed to create request")
	}
	httpReq.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, perrors.WithContext(perrors.Wrap(err, perrors.CodeNetwork, "failed to fetch tile"), "url", url)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, perrors.WithContext(perrors.New(perrors.CodeNotFound, "tile not found on server"), "url", url)
	case resp.StatusCode != http.StatusOK:
		return nil, perrors.WithContext(perrors.Newf(perrors.CodeNetwork, "server returned status %d", resp.StatusCode), "url", url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.CodeNetwork, "failed to read tile data")
	}

	f.logger.Debug("fetched tile", "url", url, "size", len(data))
	return data, nil
}
