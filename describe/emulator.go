package describe

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tomyedwab/d1sql/d1"
)

// EmulatorDir is where wrangler keeps local D1 databases, relative to the
// project root.
var EmulatorDir = filepath.Join(".wrangler", "state", "v3", "d1", "miniflare-D1DatabaseObject")

const setupHint = "run `wrangler d1 migrations create <BINDING> <MIGRATION>` and " +
	"`wrangler d1 migrations apply <BINDING> --local` to set up the local D1 emulator"

var (
	// ErrNoEmulator is returned when no root holds an emulator database.
	ErrNoEmulator = &d1.ConfigurationError{Message: "no D1 emulator database found; " + setupHint}

	errNothingToDescribe = &d1.ConfigurationError{Message: "neither a D1 emulator database nor a " + CacheDirName +
		" query cache was found; " + setupHint + ", or run `d1sql prepare` where the emulator is available to create the cache"}
)

// LocateEmulator returns the single *.sqlite file in the emulator
// directory of the first root that has one.
func LocateEmulator(roots ...string) (string, error) {
	for _, root := range roots {
		dir := filepath.Join(root, EmulatorDir)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		files, err := filepath.Glob(filepath.Join(dir, "*.sqlite"))
		if err != nil {
			return "", fmt.Errorf("describe: %w", err)
		}
		sort.Strings(files)
		switch len(files) {
		case 0:
			return "", ErrNoEmulator
		case 1:
			return files[0], nil
		default:
			return "", &d1.ConfigurationError{Message: fmt.Sprintf(
				"found %d D1 emulator databases in %s; only a single D1 binding is supported", len(files), dir)}
		}
	}
	return "", ErrNoEmulator
}
