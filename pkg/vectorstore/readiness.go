package vectorstore

import (
	"context"
	"strings"
	"sync"
)

type readinessCache struct {
	mu    sync.RWMutex
	ready map[string]bool
}

func (r *readinessCache) get(collection string) (bool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ok, seen := r.ready[collection]
	return ok, seen
}

func (r *readinessCache) set(collection string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready == nil {
		r.ready = map[string]bool{}
	}
	r.ready[collection] = ok
}

// EnsureReady verifies the collection exists with the configured vector
// dimensionality and distance. The verdict is cached per process so steady
// state pays one probe per collection. It logs and returns false on any
// problem rather than surfacing an error.
func (c *Client) EnsureReady(ctx context.Context, collection string) bool {
	if c == nil {
		return false
	}
	if ok, seen := c.readiness.get(collection); seen {
		return ok
	}

	ctx = c.logg.WithCollection(ctx, collection)
	info, err := c.CollectionInfo(ctx, collection)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "collection readiness probe failed")
		// Transient failures are not cached so the next call re-probes.
		return false
	}

	ok := true
	if c.cfg.VectorDim > 0 && info.VectorSize != c.cfg.VectorDim {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"want": c.cfg.VectorDim,
			"got":  info.VectorSize,
		}), "collection vector size mismatch")
		ok = false
	}
	if c.cfg.Distance != "" && !strings.EqualFold(info.Distance, c.cfg.Distance) {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"want": c.cfg.Distance,
			"got":  info.Distance,
		}), "collection distance mismatch")
		ok = false
	}

	c.readiness.set(collection, ok)
	return ok
}

// resetReadiness clears the cached verdicts. Test hook.
func (c *Client) resetReadiness() {
	c.readiness.mu.Lock()
	defer c.readiness.mu.Unlock()
	c.readiness.ready = nil
}
