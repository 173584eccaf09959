package build

import (
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goplus/pkgsmith/platform"
)

// Workspace directory layout:
//
//	workDir/
//	  <name>/                             # recipe-level dir (cacheDir)
//	    .cache.json                       # build cache: maps key → buildEntry
//	    <version>/
//	      source/<OS>/<arch>/             # fetched tree
//	      source/<OS>/<arch>.source.json  # fetch marker
//	      build/<OS>/<arch>/<type>[/<variant>]/
//	      stage/<OS>/<arch>/<type>/<variant>/
//	      package/<OS>/<arch>/<type>/     # package root
const cacheFile = ".cache.json"

// buildEntry contains metadata about a single successful build.
type buildEntry struct {
	// Metadata is the path of the published package-info.json.
	Metadata  string    `json:"metadata"`
	Version   string    `json:"version"`
	BuildID   string    `json:"build_id"`
	BuildTime time.Time `json:"build_time"`
}

// buildCache maps "<version>-<OS>-<arch>-<build-type>-<option hash>" keys to
// their build entries.
type buildCache struct {
	Cache map[string]*buildEntry `json:"cache"`
}

func cacheKey(version string, t platform.Triple, optionHash string) string {
	return strings.Join([]string{version, t.OS, t.Arch, t.BuildType, optionHash}, "-")
}

func (c *buildCache) get(key string) (*buildEntry, bool) {
	entry, ok := c.Cache[key]
	return entry, ok
}

func (c *buildCache) set(key string, entry *buildEntry) {
	if c.Cache == nil {
		c.Cache = make(map[string]*buildEntry)
	}
	c.Cache[key] = entry
}

// dropVersion removes the entries built from exactly version.
func (c *buildCache) dropVersion(version string) {
	maps.DeleteFunc(c.Cache, func(_ string, e *buildEntry) bool {
		return e.Version == version
	})
}

// cacheDir returns the recipe-level directory: workDir/<name>.
func (b *Builder) cacheDir(name string) string {
	return filepath.Join(b.workDir, name)
}

// loadCache reads the cache file of a recipe. A missing file is an empty cache.
func (b *Builder) loadCache(name string) (*buildCache, error) {
	data, err := os.ReadFile(filepath.Join(b.cacheDir(name), cacheFile))
	if os.IsNotExist(err) {
		return &buildCache{}, nil
	}
	if err != nil {
		return nil, err
	}
	var cache buildCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, err
	}
	return &cache, nil
}

// saveCache writes the cache file of a recipe.
func (b *Builder) saveCache(name string, cache *buildCache) error {
	dir := b.cacheDir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, cacheFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, cacheFile))
}

// updateCache applies fn to the recipe's cache under its lock and saves it.
func (b *Builder) updateCache(name string, fn func(*buildCache)) error {
	unlock := b.lockRecipe(name)
	defer unlock()
	cache, err := b.loadCache(name)
	if err != nil {
		// Start over from a corrupt cache.
		cache = &buildCache{}
	}
	fn(cache)
	return b.saveCache(name, cache)
}

// lookup returns the entry for key when its package-info.json still exists.
func (b *Builder) lookup(name, key string) (*buildEntry, bool) {
	unlock := b.lockRecipe(name)
	defer unlock()
	cache, err := b.loadCache(name)
	if err != nil {
		return nil, false
	}
	entry, ok := cache.get(key)
	if !ok {
		return nil, false
	}
	if _, err := os.Stat(entry.Metadata); err != nil {
		return nil, false
	}
	return entry, true
}

// lockRecipe serializes cache access for one recipe within the process.
func (b *Builder) lockRecipe(name string) (unlock func()) {
	b.mu.Lock()
	if b.locks == nil {
		b.locks = make(map[string]*sync.Mutex)
	}
	l, ok := b.locks[name]
	if !ok {
		l = new(sync.Mutex)
		b.locks[name] = l
	}
	b.mu.Unlock()
	l.Lock()
	return l.Unlock
}
