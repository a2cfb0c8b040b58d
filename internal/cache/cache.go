package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/mkrasilnikov/gapminer/internal/llm"
)

// ResponseCache remembers parsed extraction payloads keyed by source id and
// prompt fingerprint, so re-running a pipeline over unchanged documents does
// not re-spend LLM budget. Entries live in memory for the current process
// and, when a directory is configured, in JSON files that survive restarts.
// The fingerprint covers the full rendered prompt, so any change to the
// phrase config, prompt template, or passage set invalidates the entry.
type ResponseCache struct {
	mem *gocache.Cache
	dir string
	ttl time.Duration
}

// New creates a response cache. An empty dir keeps the cache memory-only.
func New(ttl time.Duration, dir string) *ResponseCache {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &ResponseCache{
		mem: gocache.New(ttl, 10*time.Minute),
		dir: dir,
		ttl: ttl,
	}
}

// persisted is the on-disk entry shape.
type persisted struct {
	Payload   *llm.ExtractionPayload `json:"payload"`
	ExpiresAt time.Time              `json:"expires_at"`
}

// Lookup returns the cached payload for one extraction call, checking the
// memory tier first and falling back to disk. Disk hits are promoted.
func (c *ResponseCache) Lookup(sourceID, prompt string) (*llm.ExtractionPayload, bool) {
	fp := fingerprint(sourceID, prompt)

	if v, ok := c.mem.Get(fp); ok {
		return v.(*llm.ExtractionPayload), true
	}
	if c.dir == "" {
		return nil, false
	}

	data, err := os.ReadFile(c.entryPath(fp))
	if err != nil {
		return nil, false
	}
	var entry persisted
	if err := json.Unmarshal(data, &entry); err != nil || entry.Payload == nil {
		return nil, false
	}
	if time.Now().After(entry.ExpiresAt) {
		_ = os.Remove(c.entryPath(fp))
		return nil, false
	}

	c.mem.SetDefault(fp, entry.Payload)
	return entry.Payload, true
}

// Store records the payload of a successful extraction call.
func (c *ResponseCache) Store(sourceID, prompt string, payload *llm.ExtractionPayload) error {
	fp := fingerprint(sourceID, prompt)
	c.mem.SetDefault(fp, payload)

	if c.dir == "" {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.Marshal(persisted{Payload: payload, ExpiresAt: time.Now().Add(c.ttl)})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := os.WriteFile(c.entryPath(fp), data, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Purge drops every entry from both tiers.
func (c *ResponseCache) Purge() error {
	c.mem.Flush()
	if c.dir == "" {
		return nil
	}
	return os.RemoveAll(c.dir)
}

func (c *ResponseCache) entryPath(fp string) string {
	return filepath.Join(c.dir, fp+".json")
}

func fingerprint(sourceID, prompt string) string {
	h := sha256.Sum256([]byte(sourceID + "\x00" + prompt))
	return hex.EncodeToString(h[:])
}
