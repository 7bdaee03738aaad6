package describe

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tomyedwab/d1sql/d1"
)

// CacheDirName is the query cache directory under a project root.
const CacheDirName = ".d1sql"

// Entry is the content of one cache file.
type Entry struct {
	Query    string       `json:"query"`
	Describe *d1.Describe `json:"describe"`
	Hash     string       `json:"hash"`
}

// Cache stores one Describe per query text, for builds that cannot reach
// the emulator.
type Cache struct {
	Dir string
}

func NewCache(dir string) *Cache {
	return &Cache{Dir: dir}
}

// QueryHash is the hex SHA-256 digest of query.
func QueryHash(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}

// Path is the file holding query's entry.
func (c *Cache) Path(query string) string {
	return filepath.Join(c.Dir, "query-"+QueryHash(query)+".json")
}

func (c *Cache) Exists() bool {
	info, err := os.Stat(c.Dir)
	return err == nil && info.IsDir()
}

// Load reads query's entry.
func (c *Cache) Load(query string) (*d1.Describe, error) {
	data, err := os.ReadFile(c.Path(query))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &d1.ConfigurationError{Message: "there is no cached data for this query; run `d1sql prepare` to update the query cache"}
	}
	if err != nil {
		return nil, fmt.Errorf("describe: read cache: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("describe: parse cache file %s: %w", c.Path(query), err)
	}
	if e.Describe == nil {
		return nil, fmt.Errorf("describe: cache file %s has no describe data", c.Path(query))
	}
	return e.Describe, nil
}

// Marshal renders the cache file content for query.
func Marshal(query string, desc *d1.Describe) ([]byte, error) {
	data, err := json.MarshalIndent(Entry{Query: query, Describe: desc, Hash: QueryHash(query)}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("describe: serialize cache entry: %w", err)
	}
	return append(data, '\n'), nil
}

// Store writes query's entry, replacing any previous one.
func (c *Cache) Store(query string, desc *d1.Describe) error {
	data, err := Marshal(query, desc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("describe: create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(c.Dir, ".query-*.tmp")
	if err != nil {
		return fmt.Errorf("describe: write cache: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("describe: write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("describe: write cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.Path(query)); err != nil {
		return fmt.Errorf("describe: write cache: %w", err)
	}
	return nil
}

// Queries lists the query text of every entry in the cache.
func (c *Cache) Queries() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(c.Dir, "query-*.json"))
	if err != nil {
		return nil, err
	}
	var queries []string
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("describe: read cache: %w", err)
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("describe: parse cache file %s: %w", f, err)
		}
		queries = append(queries, e.Query)
	}
	return queries, nil
}

// Prune removes entries whose query is not in keep and returns how many
// were removed.
func (c *Cache) Prune(keep []string) (int, error) {
	wanted := make(map[string]bool, len(keep))
	for _, q := range keep {
		wanted[filepath.Base(c.Path(q))] = true
	}
	files, err := filepath.Glob(filepath.Join(c.Dir, "query-*.json"))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range files {
		if wanted[filepath.Base(f)] {
			continue
		}
		if err := os.Remove(f); err != nil {
			return removed, fmt.Errorf("describe: prune cache: %w", err)
		}
		removed++
	}
	return removed, nil
}
