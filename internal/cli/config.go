package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/tomyedwab/d1sql/d1"
	"github.com/tomyedwab/d1sql/describe"
)

// DefaultConfigFile is read from the project directory when --config is
// not given.
const DefaultConfigFile = "d1sql.yaml"

// Config is the content of d1sql.yaml.
type Config struct {
	// Root is the project directory, relative to the config file.
	Root string `yaml:"root,omitempty"`

	// Offline answers describe calls from the query cache only.
	Offline bool `yaml:"offline,omitempty"`

	Pragmas PragmaConfig  `yaml:"pragmas,omitempty"`
	Queries []QueryConfig `yaml:"queries,omitempty"`

	dir string
}

// PragmaConfig holds the PRAGMA toggles applied by exec and run.
type PragmaConfig struct {
	CaseSensitiveLike     bool `yaml:"case_sensitive_like,omitempty"`
	IgnoreCheckConstraint bool `yaml:"ignore_check_constraint,omitempty"`
	LegacyAlterTable      bool `yaml:"legacy_alter_table,omitempty"`
	RecursiveTriggers     bool `yaml:"recursive_triggers,omitempty"`
	UnorderedSelects      bool `yaml:"unordered_selects,omitempty"`
	ForeignKeys           bool `yaml:"foreign_keys,omitempty"`
	DeferForeignKeys      bool `yaml:"defer_foreign_keys,omitempty"`
}

// Apply sets the toggles on o.
func (p PragmaConfig) Apply(o d1.ConnectOptions) d1.ConnectOptions {
	return o.
		CaseSensitiveLike(p.CaseSensitiveLike).
		IgnoreCheckConstraint(p.IgnoreCheckConstraint).
		LegacyAlterTable(p.LegacyAlterTable).
		RecursiveTriggers(p.RecursiveTriggers).
		UnorderedSelects(p.UnorderedSelects).
		ForeignKeys(p.ForeignKeys).
		DeferForeignKeys(p.DeferForeignKeys)
}

// QueryConfig declares one statement of the application and the Go types
// it is used with.
type QueryConfig struct {
	Name    string         `yaml:"name"`
	SQL     string         `yaml:"sql"`
	Params  []string       `yaml:"params,omitempty"`
	Columns []ColumnConfig `yaml:"columns,omitempty"`
}

type ColumnConfig struct {
	Name string `yaml:"name,omitempty"`
	Type string `yaml:"type"`
}

// LoadConfig reads the config at path. A missing file yields an empty
// config unless required is set.
func LoadConfig(path string, required bool) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{dir: filepath.Dir(abs)}
	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, q := range cfg.Queries {
		if q.Name == "" {
			return nil, fmt.Errorf("%s: query %d has no name", path, i+1)
		}
		if q.SQL == "" {
			return nil, fmt.Errorf("%s: query %q has no sql", path, q.Name)
		}
	}
	return cfg, nil
}

// ProjectDir is the directory describe.NewContext starts from.
func (c *Config) ProjectDir() string {
	switch {
	case c.Root == "":
		return c.dir
	case filepath.IsAbs(c.Root):
		return c.Root
	default:
		return filepath.Join(c.dir, c.Root)
	}
}

// QuerySQL lists the SQL of every declared query.
func (c *Config) QuerySQL() []string {
	out := make([]string, len(c.Queries))
	for i, q := range c.Queries {
		out[i] = q.SQL
	}
	return out
}

// Declarations resolves the declared Go types of q. A query that declares
// no params or no columns leaves that side unchecked.
func (q QueryConfig) Declarations() ([]reflect.Type, []describe.ColumnType, error) {
	var params []reflect.Type
	if q.Params != nil {
		params = make([]reflect.Type, len(q.Params))
		for i, name := range q.Params {
			t, err := describe.ParseGoType(name)
			if err != nil {
				return nil, nil, fmt.Errorf("query %q parameter %d: %w", q.Name, i+1, err)
			}
			params[i] = t
		}
	}
	var columns []describe.ColumnType
	if q.Columns != nil {
		columns = make([]describe.ColumnType, len(q.Columns))
		for i, col := range q.Columns {
			t, err := describe.ParseGoType(col.Type)
			if err != nil {
				return nil, nil, fmt.Errorf("query %q column %d: %w", q.Name, i, err)
			}
			columns[i] = describe.ColumnType{Name: col.Name, Type: t}
		}
	}
	return params, columns, nil
}
