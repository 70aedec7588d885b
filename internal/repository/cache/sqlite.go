package cache

import (
	"database/sql"
	"embed"
	"time"

	"github.com/jaennil/guide_helper/backend/hips/internal/tile"
	"github.com/jaennil/guide_helper/backend/hips/pkg/logger"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

type SQLiteCache struct {
	db     *sql.DB
	logger logger.Logger
}

func NewSQLiteCache(path string, l logger.Logger) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	err = db.Ping()
	if err != nil {
		return nil, err
	}

	c := &SQLiteCache{
		db:     db,
		logger: l,
	}

	err = c.runMigrations()
	if err != nil {
		return nil, err
	}

	l.Info("sqlite cache initialized", "path", path)

	return c, nil
}

func (c *SQLiteCache) runMigrations() error {
	goose.SetBaseFS(migrations)

	err := goose.SetDialect("sqlite3")
	if err != nil {
		return err
	}

	err = goose.Up(c.db, "migrations")
	if err != nil {
		return err
	}

	return nil
}

var (
	_ Store  = (*SQLiteCache)(nil)
	_ Lister = (*SQLiteCache)(nil)
)

// npix is stored as a signed integer; the all-sky marker wraps to -1.
func npix(k tile.Key) int64 {
	return int64(k.Pixel)
}

func (c *SQLiteCache) Get(k tile.Key) ([]byte, bool, error) {
	c.logger.Debug("sqlite cache get", "key", k.String())

	query := `SELECT tile_data
	FROM tile_cache
	WHERE survey = ? AND norder = ? AND npix = ? AND slice = ?`

	var tileData []byte
	err := c.db.QueryRow(query, k.Survey, k.Order, npix(k), k.Extra).Scan(&tileData)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		c.logger.Error("sqlite cache get failed", "key", k.String(), "error", err)
		return nil, false, err
	}

	return tileData, true, nil
}

func (c *SQLiteCache) Set(k tile.Key, v []byte) error {
	c.logger.Debug("sqlite cache set", "key", k.String(), "size", len(v))

	query := `INSERT INTO tile_cache (survey, norder, npix, slice, tile_data, stored_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(survey, norder, npix, slice) DO UPDATE SET tile_data = excluded.tile_data, stored_at = excluded.stored_at`

	_, err := c.db.Exec(query, k.Survey, k.Order, npix(k), k.Extra, v, time.Now().UTC())
	if err != nil {
		c.logger.Error("sqlite cache set failed", "key", k.String(), "error", err)
		return err
	}

	return nil
}

func (c *SQLiteCache) Keys(survey string) ([]tile.Key, error) {
	rows, err := c.db.Query(`SELECT norder, npix, slice FROM tile_cache WHERE survey = ?`, survey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]tile.Key, 0)
	for rows.Next() {
		var order uint8
		var pix int64
		var slice int
		if err := rows.Scan(&order, &pix, &slice); err != nil {
			return nil, err
		}
		keys = append(keys, tile.Key{Survey: survey, Order: order, Pixel: uint64(pix), Extra: slice})
	}
	return keys, rows.Err()
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
