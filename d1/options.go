package d1

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tomyedwab/d1sql/affinity"
)

// Pragmas is the set of PRAGMA toggles applied when a connection opens.
type Pragmas uint8

const (
	PragmaCaseSensitiveLike Pragmas = 1 << iota
	PragmaIgnoreCheckConstraint
	PragmaLegacyAlterTable
	PragmaRecursiveTriggers
	PragmaUnorderedSelects
	PragmaForeignKeys
	PragmaDeferForeignKeys
)

// SQLite spells two of the toggles differently from their option names.
var pragmaNames = [...]string{
	"case_sensitive_like",
	"ignore_check_constraints",
	"legacy_alter_table",
	"recursive_triggers",
	"reverse_unordered_selects",
	"foreign_keys",
	"defer_foreign_keys",
}

// Names returns the PRAGMA names that are on, in canonical order.
func (p Pragmas) Names() []string {
	var out []string
	for i, name := range pragmaNames {
		if p&(1<<i) != 0 {
			out = append(out, name)
		}
	}
	return out
}

// SQL renders the enabled toggles as newline separated statements, or ""
// when none are on.
func (p Pragmas) SQL() string {
	names := p.Names()
	lines := make([]string, len(names))
	for i, name := range names {
		lines[i] = "PRAGMA " + name + " = on"
	}
	return strings.Join(lines, "\n")
}

// ConnectOptions configures a Connection. It is a value; every setter
// returns a modified copy.
type ConnectOptions struct {
	binding   Binding
	pragmas   Pragmas
	logger    *slog.Logger
	stmtLevel slog.Level
}

// NewConnectOptions returns options for connecting through b.
func NewConnectOptions(b Binding) ConnectOptions {
	return ConnectOptions{binding: b, stmtLevel: slog.LevelDebug}
}

// ParseConnectOptions always fails: a D1 database is only reachable
// through a binding.
func ParseConnectOptions(url string) (ConnectOptions, error) {
	return ConnectOptions{}, ErrURLUnsupported
}

func (o ConnectOptions) set(p Pragmas, on bool) ConnectOptions {
	if on {
		o.pragmas |= p
	} else {
		o.pragmas &^= p
	}
	return o
}

func (o ConnectOptions) CaseSensitiveLike(on bool) ConnectOptions {
	return o.set(PragmaCaseSensitiveLike, on)
}

func (o ConnectOptions) IgnoreCheckConstraint(on bool) ConnectOptions {
	return o.set(PragmaIgnoreCheckConstraint, on)
}

func (o ConnectOptions) LegacyAlterTable(on bool) ConnectOptions {
	return o.set(PragmaLegacyAlterTable, on)
}

func (o ConnectOptions) RecursiveTriggers(on bool) ConnectOptions {
	return o.set(PragmaRecursiveTriggers, on)
}

func (o ConnectOptions) UnorderedSelects(on bool) ConnectOptions {
	return o.set(PragmaUnorderedSelects, on)
}

func (o ConnectOptions) ForeignKeys(on bool) ConnectOptions {
	return o.set(PragmaForeignKeys, on)
}

func (o ConnectOptions) DeferForeignKeys(on bool) ConnectOptions {
	return o.set(PragmaDeferForeignKeys, on)
}

// Pragmas returns the toggles that are on.
func (o ConnectOptions) Pragmas() Pragmas { return o.pragmas }

// WithLogger sets the logger. The default is slog.Default().
func (o ConnectOptions) WithLogger(l *slog.Logger) ConnectOptions {
	o.logger = l
	return o
}

// LogStatements sets the level statements are logged at.
func (o ConnectOptions) LogStatements(level slog.Level) ConnectOptions {
	o.stmtLevel = level
	return o
}

// Connect opens a connection. If any PRAGMA toggle is on, the PRAGMAs are
// sent to the host in one exec call first.
func (o ConnectOptions) Connect(ctx context.Context) (*Connection, error) {
	if o.binding == nil {
		return nil, &ConfigurationError{Message: "no D1 binding configured"}
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	exec := affinity.NewExecutor()
	c := &Connection{
		exec:      exec,
		db:        affinity.Bind(exec, o.binding),
		logger:    logger,
		stmtLevel: o.stmtLevel,
	}
	if sql := o.pragmas.SQL(); sql != "" {
		c.logStatement(ctx, "exec", sql, 0)
		err := affinity.Do(ctx, exec, func(ctx context.Context, t *affinity.Turn) error {
			if _, err := c.db.Get(t).Exec(ctx, sql); err != nil {
				return NewHostError("exec", err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Connect opens a connection through b with default options.
func Connect(ctx context.Context, b Binding) (*Connection, error) {
	return NewConnectOptions(b).Connect(ctx)
}
