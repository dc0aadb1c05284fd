package aggregator

import (
	"sync"

	"github.com/user/boxd-office/internal/domain"
)

// DetailMap is the slug-keyed result store shared by the workers.
type DetailMap struct {
	mu sync.RWMutex
	m  map[string]domain.DetailRecord
}

func NewDetailMap(size int) *DetailMap {
	return &DetailMap{m: make(map[string]domain.DetailRecord, size)}
}

func (d *DetailMap) Store(rec domain.DetailRecord) {
	d.mu.Lock()
	d.m[rec.Slug] = rec
	d.mu.Unlock()
}

// Snapshot copies the current contents.
func (d *DetailMap) Snapshot() map[string]domain.DetailRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]domain.DetailRecord, len(d.m))
	for k, v := range d.m {
		out[k] = v
	}
	return out
}
