package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/groupcache"
)

// CachedDirectoryConfig configures CachedDirectory.
type CachedDirectoryConfig struct {
	// GroupName distinguishes this group's cache from others in the same
	// process. Must be unique per underlying Directory instance.
	GroupName string

	// CacheSizeBytes is the max size of the in-process cache. Defaults to 8MB.
	CacheSizeBytes int64

	// TTL is how long a resolved record is considered fresh. Cache keys embed
	// a timestamp rounded to this interval, so entries expire naturally as
	// time advances rather than via explicit invalidation. Zero disables
	// expiration (entries live until evicted by size).
	TTL time.Duration
}

// CachedDirectory memoizes GetService/GetRepository/FindByKey lookups with
// groupcache. Scope validation and grant verification repeatedly resolve
// the same resource keys within a short window; this avoids redundant round
// trips to the backing Directory.
type CachedDirectory struct {
	source Directory
	group  *groupcache.Group
	ttl    time.Duration
}

type cachedRecord struct {
	Kind ResourceType `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// NewCachedDirectory wraps source with a groupcache-backed memoization layer.
func NewCachedDirectory(source Directory, cfg CachedDirectoryConfig) *CachedDirectory {
	if cfg.GroupName == "" {
		cfg.GroupName = "directory"
	}
	if cfg.CacheSizeBytes == 0 {
		cfg.CacheSizeBytes = 8 << 20
	}

	cd := &CachedDirectory{source: source, ttl: cfg.TTL}

	getter := groupcache.GetterFunc(func(ctx context.Context, key string, dest groupcache.Sink) error {
		resourceKey := stripTTLSuffix(key)

		res, err := source.FindByKey(ctx, resourceKey)
		if err != nil {
			return err
		}

		var raw json.RawMessage
		var kind ResourceType
		switch r := res.(type) {
		case *Service:
			kind = ResourceTypeService
			raw, err = json.Marshal(r)
		case *Repository:
			kind = ResourceTypeRepository
			raw, err = json.Marshal(r)
		default:
			return fmt.Errorf("unexpected resource type %T", res)
		}
		if err != nil {
			return fmt.Errorf("failed to marshal cache entry: %w", err)
		}

		entryBytes, err := json.Marshal(cachedRecord{Kind: kind, Data: raw})
		if err != nil {
			return fmt.Errorf("failed to marshal cache record: %w", err)
		}
		return dest.SetBytes(entryBytes)
	})

	cd.group = groupcache.NewGroup(cfg.GroupName, cfg.CacheSizeBytes, getter)
	return cd
}

func (c *CachedDirectory) cacheKey(key string) string {
	if c.ttl <= 0 {
		return key
	}
	bucket := time.Now().Truncate(c.ttl).Unix()
	return fmt.Sprintf("%s:ttl:%d", key, bucket)
}

func stripTTLSuffix(key string) string {
	const marker = ":ttl:"
	for i := 0; i+len(marker) <= len(key); i++ {
		if key[i:i+len(marker)] == marker {
			return key[:i]
		}
	}
	return key
}

func (c *CachedDirectory) FindByKey(ctx context.Context, key string) (Resource, error) {
	var cached []byte
	if err := c.group.Get(ctx, c.cacheKey(key), groupcache.AllocatingByteSliceSink(&cached)); err != nil {
		return nil, err
	}

	var rec cachedRecord
	if err := json.Unmarshal(cached, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached directory record: %w", err)
	}

	switch rec.Kind {
	case ResourceTypeService:
		var s Service
		if err := json.Unmarshal(rec.Data, &s); err != nil {
			return nil, err
		}
		return &s, nil
	case ResourceTypeRepository:
		var r Repository
		if err := json.Unmarshal(rec.Data, &r); err != nil {
			return nil, err
		}
		return &r, nil
	default:
		return nil, fmt.Errorf("unknown cached resource kind %q", rec.Kind)
	}
}

func (c *CachedDirectory) GetService(ctx context.Context, id string) (*Service, error) {
	res, err := c.FindByKey(ctx, id)
	if err != nil {
		return nil, err
	}
	svc, ok := res.(*Service)
	if !ok {
		return nil, ErrNotFound
	}
	return svc, nil
}

func (c *CachedDirectory) GetRepository(ctx context.Context, id string) (*Repository, error) {
	res, err := c.FindByKey(ctx, id)
	if err != nil {
		return nil, err
	}
	repo, ok := res.(*Repository)
	if !ok {
		return nil, ErrNotFound
	}
	return repo, nil
}

// Authenticate, GetServiceByLocation and GetParent pass straight through:
// they aren't on the scope-validation hot path this cache targets.
func (c *CachedDirectory) Authenticate(ctx context.Context, clientID, clientSecret string) (*Client, error) {
	return c.source.Authenticate(ctx, clientID, clientSecret)
}

func (c *CachedDirectory) GetServiceByLocation(ctx context.Context, url string) (*Service, error) {
	return c.source.GetServiceByLocation(ctx, url)
}

func (c *CachedDirectory) GetParent(ctx context.Context, r Resource) (Organisation, error) {
	return c.source.GetParent(ctx, r)
}
