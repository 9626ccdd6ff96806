// Package cache persists detect results to disk so repeat comparisons of
// the same file pair under the same detection config skip re-tokenizing
// and re-fingerprinting.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"

	"github.com/havenly/codematch/pkg/engine"
)

// ResultCache stores engine.Result values keyed by file content + config.
type ResultCache struct {
	dir     string
	ttl     time.Duration
	enabled bool
}

// New creates a result cache rooted at dir. A disabled cache answers every
// Get as a miss and every Set as a no-op, so callers don't need to branch
// on whether caching is turned on.
func New(dir string, ttlHours int, enabled bool) (*ResultCache, error) {
	if !enabled {
		return &ResultCache{enabled: false}, nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	return &ResultCache{
		dir:     dir,
		ttl:     time.Duration(ttlHours) * time.Hour,
		enabled: true,
	}, nil
}

// Key derives a cache key from both files' contents and a signature of the
// detection config that would produce the result, so a threshold or
// k-gram size change invalidates stale entries instead of serving them.
func Key(aContent, bContent []byte, configSignature string) string {
	h := blake3.New()
	h.Write(aContent)
	h.Write(bContent)
	h.Write([]byte(configSignature))
	return hex.EncodeToString(h.Sum(nil))
}

type entry struct {
	Timestamp time.Time     `json:"timestamp"`
	Result    engine.Result `json:"result"`
}

// Get returns the cached result for key, if present and not expired.
func (c *ResultCache) Get(key string) (engine.Result, bool) {
	if !c.enabled {
		return engine.Result{}, false
	}

	path := c.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.Result{}, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return engine.Result{}, false
	}

	if time.Since(e.Timestamp) > c.ttl {
		os.Remove(path)
		return engine.Result{}, false
	}

	return e.Result, true
}

// Set stores result under key.
func (c *ResultCache) Set(key string, result engine.Result) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(entry{Timestamp: time.Now(), Result: result})
	if err != nil {
		return err
	}

	return os.WriteFile(c.path(key), data, 0600)
}

// Clear removes every cached entry.
func (c *ResultCache) Clear() error {
	if !c.enabled {
		return nil
	}
	return os.RemoveAll(c.dir)
}

func (c *ResultCache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}
