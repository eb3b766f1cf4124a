// Package cache implements the optional Chunk Cache: an on-disk store of
// previously fetched byte ranges, populated asynchronously so request
// handlers never block on disk writes, and pruned on a schedule by TTL and
// total size.
package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/cloudslice/reductionist/pkg/logging"
	"github.com/cloudslice/reductionist/pkg/metrics"
	"github.com/cloudslice/reductionist/pkg/request"
)

// AuthMode selects how the cache reconciles entries against caller
// identity, independent of whether the key format includes %auth.
type AuthMode int

const (
	// AuthNone shares entries across every caller, no probe.
	AuthNone AuthMode = iota
	// AuthPerIdentity performs no probe. Entries are kept apart per identity
	// only when the key format includes %auth; the mode itself does not
	// change how keys are built.
	AuthPerIdentity
	// AuthSharedWithCheck shares entries but calls the authorization probe
	// before serving a hit, so a caller can only read what it could itself fetch.
	AuthSharedWithCheck
)

// AuthChecker probes whether a set of credentials is accepted for a given
// entry's source object, used only in AuthSharedWithCheck mode. Its
// signature matches objectstore.Router.IsAuthorized so the router's method
// value can be wired in directly.
type AuthChecker func(ctx context.Context, backend request.Backend, loc request.Locator, creds request.Credentials) (bool, error)

const indexShards = 32

type entry struct {
	size    int64
	insert  time.Time
}

// Cache is the disk-backed chunk cache. Its in-memory index exists purely
// to make pruning decisions (age, total size) without re-stat'ing the whole
// tree on every cycle; the directory itself remains the durable record.
type Cache struct {
	dir         string
	ttl         time.Duration
	sizeLimit   int64
	queueSize   int
	authMode    AuthMode
	keyFormat   string
	authCheck   AuthChecker
	log         logging.Logger
	metrics     *metrics.Metrics

	shards      [indexShards]shard

	queue       chan writeJob
	dropped     func()
	wg          sync.WaitGroup
}

type shard struct {
	mu      sync.Mutex
	entries map[string]entry
}

type writeJob struct {
	key  string
	data []byte
}

type Config struct {
	Dir         string
	TTL         time.Duration
	SizeLimit   int64
	QueueSize   int
	AuthMode    AuthMode
	KeyFormat   string
	AuthCheck   AuthChecker
	// OnDrop is invoked each time a write is dropped for backpressure; wired
	// to the cache_writes_dropped_total metric.
	OnDrop func()
	// Metrics, if set, receives the write queue's depth after every enqueue
	// and drain so the cache_queue_depth gauge tracks the live backlog.
	Metrics *metrics.Metrics
}

func New(cfg Config, log logging.Logger) (*Cache, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	c := &Cache{
		dir:       cfg.Dir,
		ttl:       cfg.TTL,
		sizeLimit: cfg.SizeLimit,
		queueSize: cfg.QueueSize,
		authMode:  cfg.AuthMode,
		keyFormat: cfg.KeyFormat,
		authCheck: cfg.AuthCheck,
		log:       logging.Component(log, "cache"),
		metrics:   cfg.Metrics,
		queue:     make(chan writeJob, cfg.QueueSize),
		dropped:   cfg.OnDrop,
	}
	for i := range c.shards {
		c.shards[i].entries = make(map[string]entry)
	}
	if err := c.rebuildIndex(); err != nil {
		return nil, fmt.Errorf("rebuilding cache index: %w", err)
	}
	return c, nil
}

func (c *Cache) shardFor(key string) *shard {
	h := xxhash.Sum64String(key)
	return &c.shards[h%uint64(len(c.shards))]
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key[:2], key)
}

// Get returns a cached buffer for key, or ok=false on a miss. In
// AuthSharedWithCheck mode the caller must separately confirm authorization
// via Authorized before trusting a hit for access control purposes — Get
// itself only reports presence.
func (c *Cache) Get(key string) ([]byte, bool) {
	sh := c.shardFor(key)
	sh.mu.Lock()
	_, ok := sh.entries[key]
	sh.mu.Unlock()
	if !ok {
		return nil, false
	}

	data, err := os.ReadFile(c.path(key))
	if err != nil {
		// The index and disk disagreed (e.g. pruned concurrently); treat as a miss.
		return nil, false
	}
	return data, true
}

// Authorized runs the configured auth probe when the cache is operating in
// AuthSharedWithCheck mode; it is a no-op success in the other two modes,
// where access is already scoped by key space or by trust. Callers must
// confirm authorization via Authorized before trusting a Get hit whenever
// the cache is running in AuthSharedWithCheck mode.
func (c *Cache) Authorized(ctx context.Context, backend request.Backend, loc request.Locator, creds request.Credentials) (bool, error) {
	if c.authMode != AuthSharedWithCheck || c.authCheck == nil {
		return true, nil
	}
	return c.authCheck(ctx, backend, loc, creds)
}

// Put enqueues (key, data) for asynchronous write. If the queue is full the
// write is dropped rather than blocking the caller, per the cache's
// overload policy.
func (c *Cache) Put(key string, data []byte) {
	select {
	case c.queue <- writeJob{key: key, data: data}:
		if c.metrics != nil {
			c.metrics.SetQueueDepth(len(c.queue))
		}
	default:
		if c.dropped != nil {
			c.dropped()
		}
	}
}

// Run drains the write queue and periodically prunes until ctx is
// cancelled, mirroring the request orchestrator's errgroup-coordinated
// background workers.
func (c *Cache) Run(ctx context.Context, pruneInterval time.Duration) error {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-c.queue:
			if err := c.writeEntry(job.key, job.data); err != nil {
				c.log.WithError(err).WithField("key", job.key).Warn("cache write failed")
			}
			if c.metrics != nil {
				c.metrics.SetQueueDepth(len(c.queue))
			}
		case <-ticker.C:
			c.prune()
		}
	}
}

func (c *Cache) writeEntry(key string, data []byte) error {
	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".incomplete"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}

	sh := c.shardFor(key)
	sh.mu.Lock()
	sh.entries[key] = entry{size: int64(len(data)), insert: time.Now()}
	sh.mu.Unlock()
	return nil
}

// rebuildIndex scans the cache directory at startup, dropping entries older
// than TTL and recording the rest so size/age accounting survives restart.
func (c *Cache) rebuildIndex() error {
	cutoff := time.Now().Add(-c.ttl)
	return filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if filepath.Ext(path) == ".incomplete" {
			os.Remove(path)
			return nil
		}
		key := filepath.Base(path)
		if c.ttl > 0 && info.ModTime().Before(cutoff) {
			os.Remove(path)
			return nil
		}
		sh := c.shardFor(key)
		sh.mu.Lock()
		sh.entries[key] = entry{size: info.Size(), insert: info.ModTime()}
		sh.mu.Unlock()
		return nil
	})
}

type keyedEntry struct {
	key string
	entry
}

// prune deletes entries older than TTL, then — if the cache is still over
// its size limit — evicts least-recently-inserted entries until under it.
func (c *Cache) prune() {
	var all []keyedEntry
	var total int64
	cutoff := time.Now().Add(-c.ttl)

	for i := range c.shards {
		sh := &c.shards[i]
		sh.mu.Lock()
		for k, e := range sh.entries {
			if c.ttl > 0 && e.insert.Before(cutoff) {
				delete(sh.entries, k)
				os.Remove(c.path(k))
				continue
			}
			all = append(all, keyedEntry{key: k, entry: e})
			total += e.size
		}
		sh.mu.Unlock()
	}

	if c.sizeLimit <= 0 || total <= c.sizeLimit {
		return
	}

	sortByInsertAsc(all)
	for _, ke := range all {
		if total <= c.sizeLimit {
			break
		}
		sh := c.shardFor(ke.key)
		sh.mu.Lock()
		delete(sh.entries, ke.key)
		sh.mu.Unlock()
		os.Remove(c.path(ke.key))
		total -= ke.size
	}
}

func sortByInsertAsc(all []keyedEntry) {
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j].insert.Before(all[j-1].insert); j-- {
			all[j], all[j-1] = all[j-1], all[j]
		}
	}
}
