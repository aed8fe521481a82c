// Package ttscache caches synthesized speech in two tiers: a small
// in-memory LRU for the hottest phrases and a disk tier that survives
// restarts and backs the audio-serving endpoint. Synthesis per key is
// single-flight, so a burst of identical turns costs one provider call.
package ttscache

import (
	"container/list"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultMaxEntries is the memory-tier capacity.
const DefaultMaxEntries = 50

// Tier names where a lookup was satisfied.
type Tier string

const (
	TierMemory Tier = "memory"
	TierDisk   Tier = "disk"
	TierSynth  Tier = "synth"
)

// Request identifies one utterance to synthesize. Every field participates
// in the cache key: the same text in a different voice is a different entry.
type Request struct {
	Text   string
	Model  string
	Voice  string
	Speed  float64
	Format string // audio container, e.g. "mp3"
}

// Key returns the stable identity of the request.
func (r Request) Key() string {
	h := sha1.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s",
		r.Model, r.Voice, strconv.FormatFloat(r.Speed, 'f', -1, 64), r.Format, r.Text)
	return hex.EncodeToString(h.Sum(nil))
}

// FileName returns the disk-tier file name for the request. The name is
// hash-derived, so it is safe to expose on the audio endpoint.
func (r Request) FileName() string {
	return "tts_" + r.Key() + "." + r.Format
}

// SynthesizeFunc produces audio bytes for a cache miss.
type SynthesizeFunc func(ctx context.Context) ([]byte, error)

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	MemoryEntries int
	MemoryHits    uint64
	DiskHits      uint64
	Misses        uint64
}

type memEntry struct {
	key   string
	audio []byte
}

// Cache is the two-tier TTS cache. Safe for concurrent use.
type Cache struct {
	dir        string
	maxEntries int
	sf         singleflight.Group

	mu      sync.Mutex
	byKey   map[string]*list.Element
	byUse   *list.List // front = most recently used
	memHits uint64
	dskHits uint64
	misses  uint64
}

// Option is a functional option for New.
type Option func(*Cache)

// WithMaxEntries overrides the memory-tier capacity.
func WithMaxEntries(n int) Option {
	return func(c *Cache) { c.maxEntries = n }
}

// New returns a Cache writing its disk tier under dir, creating the
// directory if needed.
func New(dir string, opts ...Option) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tts cache: create dir: %w", err)
	}
	c := &Cache{
		dir:        dir,
		maxEntries: DefaultMaxEntries,
		byKey:      make(map[string]*list.Element),
		byUse:      list.New(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Dir returns the disk-tier directory.
func (c *Cache) Dir() string { return c.dir }

// Get checks both tiers without synthesizing. A disk hit is promoted into
// memory.
func (c *Cache) Get(req Request) ([]byte, Tier, bool) {
	key := req.Key()

	c.mu.Lock()
	if el, ok := c.byKey[key]; ok {
		c.byUse.MoveToFront(el)
		c.memHits++
		audio := el.Value.(*memEntry).audio
		c.mu.Unlock()
		return audio, TierMemory, true
	}
	c.mu.Unlock()

	audio, err := os.ReadFile(filepath.Join(c.dir, req.FileName()))
	if err != nil {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, "", false
	}

	c.mu.Lock()
	c.dskHits++
	c.insertLocked(key, audio)
	c.mu.Unlock()
	return audio, TierDisk, true
}

// GetOrSynthesize returns cached audio or calls synth exactly once per key
// across concurrent callers, persisting the result to both tiers.
func (c *Cache) GetOrSynthesize(ctx context.Context, req Request, synth SynthesizeFunc) ([]byte, Tier, error) {
	if audio, tier, ok := c.Get(req); ok {
		return audio, tier, nil
	}

	key := req.Key()
	v, err, _ := c.sf.Do(key, func() (any, error) {
		// A concurrent caller may have filled the cache while we waited.
		if audio, _, ok := c.Get(req); ok {
			return audio, nil
		}
		audio, err := synth(ctx)
		if err != nil {
			return nil, err
		}
		c.store(req, audio)
		return audio, nil
	})
	if err != nil {
		return nil, "", err
	}
	return v.([]byte), TierSynth, nil
}

// Put stores pre-synthesized audio in both tiers. Used by warmup.
func (c *Cache) Put(req Request, audio []byte) {
	c.store(req, audio)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		MemoryEntries: len(c.byKey),
		MemoryHits:    c.memHits,
		DiskHits:      c.dskHits,
		Misses:        c.misses,
	}
}

func (c *Cache) store(req Request, audio []byte) {
	path := filepath.Join(c.dir, req.FileName())
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		// Memory tier still works without the file.
		slog.Warn("tts cache: disk write failed", "path", path, "error", err)
	}

	c.mu.Lock()
	c.insertLocked(req.Key(), audio)
	c.mu.Unlock()
}

func (c *Cache) insertLocked(key string, audio []byte) {
	if el, ok := c.byKey[key]; ok {
		el.Value.(*memEntry).audio = audio
		c.byUse.MoveToFront(el)
		return
	}
	c.byKey[key] = c.byUse.PushFront(&memEntry{key: key, audio: audio})
	for len(c.byKey) > c.maxEntries {
		last := c.byUse.Back()
		if last == nil {
			break
		}
		c.byUse.Remove(last)
		delete(c.byKey, last.Value.(*memEntry).key)
	}
}
