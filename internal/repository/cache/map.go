package cache

import (
	"sync"

	"github.com/jaennil/guide_helper/backend/hips/internal/tile"
)

type MapCache struct {
	m *TypedSyncMap
}

type TypedSyncMap struct {
	m sync.Map
}

func (c *TypedSyncMap) Load(k tile.Key) ([]byte, bool) {
	v, exists := c.m.Load(k)
	if !exists {
		return nil, false
	}
	return v.([]byte), exists
}

func (c *TypedSyncMap) Store(k tile.Key, v []byte) {
	c.m.Store(k, v)
}

func (c *TypedSyncMap) Range(f func(k tile.Key, v []byte) bool) {
	c.m.Range(func(k, v any) bool {
		return f(k.(tile.Key), v.([]byte))
	})
}

func NewMapCache() *MapCache {
	return &MapCache{
		m: &TypedSyncMap{},
	}
}

var (
	_ Store  = (*MapCache)(nil)
	_ Lister = (*MapCache)(nil)
)

func (c *MapCache) Get(k tile.Key) ([]byte, bool, error) {
	v, exists := c.m.Load(k)
	return v, exists, nil
}

func (c *MapCache) Set(k tile.Key, v []byte) error {
	buf := make([]byte, len(v))
	copy(buf, v)
	c.m.Store(k, buf)
	return nil
}

func (c *MapCache) Keys(survey string) ([]tile.Key, error) {
	keys := make([]tile.Key, 0)
	c.m.Range(func(k tile.Key, _ []byte) bool {
		if k.Survey == survey {
			keys = append(keys, k)
		}
		return true
	})
	return keys, nil
}
