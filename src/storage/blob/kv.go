package blob

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/patrickmn/go-cache"
	"github.com/username/easyledger/backend/src/logger"
)

// KV is the key-value blob surface the store persists documents through.
// Each key holds one whole serialized collection.
type KV interface {
	Get(key string) (value []byte, found bool, err error)
	Set(key string, value []byte) error
	Remove(key string) error
}

// CacheKV is a transient in-process KV on go-cache. Items never expire.
// When a snapshot path is configured the contents are loaded at open and
// written back by Save/Close.
type CacheKV struct {
	items        *cache.Cache
	snapshotPath string
}

// NewCacheKV returns an empty, purely in-memory KV.
func NewCacheKV() *CacheKV {
	return &CacheKV{items: cache.New(cache.NoExpiration, 0)}
}

// OpenCacheKV returns a KV seeded from snapshotPath when that file exists.
func OpenCacheKV(snapshotPath string) (*CacheKV, error) {
	kv := NewCacheKV()
	kv.snapshotPath = snapshotPath
	if snapshotPath == "" {
		return kv, nil
	}

	f, err := os.Open(snapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		logger.L.Info("No blob snapshot found, starting empty", "path", snapshotPath)
		return kv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open blob snapshot %s: %w", snapshotPath, err)
	}
	defer f.Close()

	if err := kv.items.Load(f); err != nil {
		return nil, fmt.Errorf("load blob snapshot %s: %w", snapshotPath, err)
	}
	logger.L.Info("Blob snapshot loaded", "path", snapshotPath, "keys", kv.items.ItemCount())
	return kv, nil
}

func (k *CacheKV) Get(key string) ([]byte, bool, error) {
	v, found := k.items.Get(key)
	if !found {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, fmt.Errorf("key %s holds %T, want []byte", key, v)
	}
	return b, true, nil
}

func (k *CacheKV) Set(key string, value []byte) error {
	k.items.Set(key, value, cache.NoExpiration)
	return nil
}

func (k *CacheKV) Remove(key string) error {
	k.items.Delete(key)
	return nil
}

// Save writes the snapshot file if one is configured. The file is replaced
// atomically through a rename.
func (k *CacheKV) Save() error {
	if k.snapshotPath == "" {
		return nil
	}
	dir := filepath.Dir(k.snapshotPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".blob-snapshot-*")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := k.items.Save(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), k.snapshotPath); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	logger.L.Debug("Blob snapshot saved", "path", k.snapshotPath)
	return nil
}

func (k *CacheKV) Close() error {
	return k.Save()
}
