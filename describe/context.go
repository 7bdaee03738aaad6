package describe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/tomyedwab/d1sql/d1"
	"github.com/tomyedwab/d1sql/sqlproxy/host"
)

// Context is the state shared by every describe call of one build: the
// project roots and the emulator connection, opened on first use.
type Context struct {
	ModuleRoot    string
	WorkspaceRoot string

	// Offline skips the emulator and answers from the query cache only.
	Offline bool

	Logger *slog.Logger

	mu       sync.Mutex
	emulator *host.SQLHost
	dbPath   string
}

// NewContext finds the module root (the nearest directory holding go.mod)
// and the workspace root (the nearest holding go.work) starting at dir.
// Without a go.mod, dir itself is the module root; without a go.work, the
// workspace root is the module root.
func NewContext(dir string) (*Context, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("describe: %w", err)
	}
	c := &Context{ModuleRoot: abs, WorkspaceRoot: abs, Logger: slog.Default()}
	if root, ok := findUp(abs, "go.mod"); ok {
		c.ModuleRoot = root
		c.WorkspaceRoot = root
	}
	if root, ok := findUp(c.ModuleRoot, "go.work"); ok {
		c.WorkspaceRoot = root
	}
	return c, nil
}

func findUp(dir, name string) (string, bool) {
	for {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Roots returns the directories searched for the emulator and the cache,
// module root first.
func (c *Context) Roots() []string {
	roots := []string{c.ModuleRoot}
	if c.WorkspaceRoot != "" && !slices.Contains(roots, c.WorkspaceRoot) {
		roots = append(roots, c.WorkspaceRoot)
	}
	return roots
}

// Emulator returns a host over the located emulator database, opening it
// on the first call.
func (c *Context) Emulator() (*host.SQLHost, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.emulator != nil {
		return c.emulator, nil
	}
	path, err := LocateEmulator(c.Roots()...)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open("sqlite3", "file:"+path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("describe: open emulator %s: %w", path, err)
	}
	// Pragmas are per connection; a D1 session is one connection.
	db.SetMaxOpenConns(1)
	c.logger().Debug("describe: opened D1 emulator", "path", path)
	c.emulator = host.NewSQLHost(db).WithLogger(c.logger())
	c.dbPath = path
	return c.emulator, nil
}

// EmulatorPath is the database file behind Emulator, empty until it opens.
func (c *Context) EmulatorPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dbPath
}

// Cache returns the query cache of the first root that has one, or one
// under the module root when none exists yet.
func (c *Context) Cache() *Cache {
	for _, root := range c.Roots() {
		cache := NewCache(filepath.Join(root, CacheDirName))
		if cache.Exists() {
			return cache
		}
	}
	return NewCache(filepath.Join(c.ModuleRoot, CacheDirName))
}

// Describe resolves query against the emulator when one is found, keeping
// the cache in step, and against the cache otherwise.
func (c *Context) Describe(ctx context.Context, query string) (*d1.Describe, error) {
	desc, err := c.describe(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("describe %q: %w", query, err)
	}
	return desc, nil
}

func (c *Context) describe(ctx context.Context, query string) (*d1.Describe, error) {
	cache := c.Cache()
	if !c.Offline {
		h, err := c.Emulator()
		switch {
		case err == nil:
			desc, err := h.Describe(ctx, query)
			if err != nil {
				return nil, err
			}
			if cache.Exists() {
				if err := cache.Store(query, desc); err != nil {
					return nil, err
				}
			}
			return desc, nil
		case !errors.Is(err, ErrNoEmulator):
			return nil, err
		}
	}
	if !cache.Exists() {
		return nil, errNothingToDescribe
	}
	return cache.Load(query)
}

// Prepare describes every query against the emulator and writes the
// results to the cache, creating it if needed.
func (c *Context) Prepare(ctx context.Context, queries ...string) (*Cache, error) {
	h, err := c.Emulator()
	if err != nil {
		return nil, err
	}
	cache := c.Cache()
	for _, q := range queries {
		desc, err := h.Describe(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("describe %q: %w", q, err)
		}
		if err := cache.Store(q, desc); err != nil {
			return nil, err
		}
	}
	c.logger().Debug("describe: prepared query cache", "dir", cache.Dir, "queries", len(queries))
	return cache, nil
}

// Close releases the emulator connection.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.emulator == nil {
		return nil
	}
	err := c.emulator.DB().Close()
	c.emulator = nil
	c.dbPath = ""
	return err
}

func (c *Context) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
