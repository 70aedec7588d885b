package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	perrors "github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaennil/guide_helper/backend/hips/internal/tile"
	"github.com/jaennil/guide_helper/backend/hips/internal/tilecache"
	"github.com/jaennil/guide_helper/backend/hips/pkg/logger"
)

func TestTileURL(t *testing.T) {
	s := tile.Survey{ID: "dss", Kind: tile.KindImage, BaseURL: "https://alasky.example/DSS/", Format: "jpeg"}

	assert.Equal(t, "https://alasky.example/DSS/Norder3/Dir0/Npix42.jpg", TileURL(s, s.Key(3, 42, 0)))
	assert.Equal(t, "https://alasky.example/DSS/Norder9/Dir120000/Npix123456.jpg", TileURL(s, s.Key(9, 123456, 0)))
	assert.Equal(t, "https://alasky.example/DSS/Norder3/Allsky.jpg", TileURL(s, tile.AllskyKey("dss", 3)))

	cube := tile.Survey{ID: "cube", Kind: tile.KindCube, Depth: 8, BaseURL: "http://h", Format: "fits"}
	assert.Equal(t, "http://h/Norder4/Dir0/Npix7_3.fits", TileURL(cube, cube.Key(4, 7, 3)))
	assert.Equal(t, "http://h/Norder4/Dir0/Npix7.fits", TileURL(cube, cube.Key(4, 7, 0)))
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/Norder3/Dir0/Npix1.png":
			_, _ = w.Write([]byte("tile"))
		case "/Norder3/Dir0/Npix2.png":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := tile.Survey{ID: "dss", Kind: tile.KindImage, BaseURL: srv.URL, Format: "png"}
	f := NewHTTPFetcher(time.Second, "test-agent", logger.NewNoOp())

	data, err := f.Fetch(context.Background(), tilecache.Request{Key: s.Key(3, 1, 0), Survey: s})
	require.NoError(t, err)
	assert.Equal(t, "tile", string(data))

	_, err = f.Fetch(context.Background(), tilecache.Request{Key: s.Key(3, 2, 0), Survey: s})
	require.Error(t, err)
	assert.Equal(t, perrors.CodeNetwork, perrors.GetCode(err))

	_, err = f.Fetch(context.Background(), tilecache.Request{Key: s.Key(3, 3, 0), Survey: s})
	require.Error(t, err)
	assert.Equal(t, perrors.CodeNotFound, perrors.GetCode(err))
}
