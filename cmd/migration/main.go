// Command migration applies the override store schema with golang-migrate.
//
//	migration up | down [n] | version | force <v> | goto <v>
package main

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"

	"github.com/riskibarqy/apex-leaderboard/internal/platform/logging"
)

var errUsage = errors.New("usage")

var defaultMigrationDirs = []string{"./db/migrations", "/app/db/migrations"}

// migrator is the subset of *migrate.Migrate the commands use.
type migrator interface {
	Up() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	Migrate(version uint) error
}

type command func(m migrator, args []string, logger *logging.Logger, out io.Writer) error

var commands = map[string]command{
	"up":      cmdUp,
	"down":    cmdDown,
	"version": cmdVersion,
	"force":   cmdForce,
	"goto":    cmdGoto,
	"migrate": cmdGoto,
}

func main() {
	_ = godotenv.Load()

	logger := logging.NewConsole(logging.LevelInfo).Named("migration")
	defer func() { _ = logger.Sync() }()

	if err := run(os.Args[1:], logger); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		logger.Error("migration failed", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(args []string, logger *logging.Logger) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[strings.ToLower(strings.TrimSpace(args[0]))]
	if !ok {
		return errUsage
	}

	dbURL := strings.TrimSpace(os.Getenv("DB_URL"))
	if dbURL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	dbURL = withPreparedBinaryFlag(dbURL, envBool("DB_DISABLE_PREPARED_BINARY_RESULT"))

	dir, err := migrationsDir()
	if err != nil {
		return err
	}
	source := "file://" + filepath.ToSlash(dir)

	m, err := migrate.New(source, dbURL)
	if err != nil {
		return fmt.Errorf("create migrator for %s: %w", source, err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err := errors.Join(srcErr, dbErr); err != nil {
			logger.Warn("close migrator", "error", err)
		}
	}()

	return cmd(m, args[1:], logger.With("source", source), os.Stdout)
}

func cmdUp(m migrator, _ []string, logger *logging.Logger, _ io.Writer) error {
	if err := noChangeOK(m.Up(), logger); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	logger.Info("migrations applied")
	return nil
}

func cmdDown(m migrator, args []string, logger *logging.Logger, _ io.Writer) error {
	steps := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(strings.TrimSpace(args[0]))
		if err != nil || n <= 0 {
			return fmt.Errorf("down steps must be a positive integer, got %q", args[0])
		}
		steps = n
	}
	if err := noChangeOK(m.Steps(-steps), logger); err != nil {
		return fmt.Errorf("migrate down %d: %w", steps, err)
	}
	logger.Info("rolled back migrations", "steps", steps)
	return nil
}

func cmdVersion(m migrator, _ []string, _ *logging.Logger, out io.Writer) error {
	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		fmt.Fprintln(out, "version: none")
		fmt.Fprintln(out, "dirty: false")
		return nil
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	}
	fmt.Fprintf(out, "version: %d\ndirty: %t\n", version, dirty)
	return nil
}

func cmdForce(m migrator, args []string, logger *logging.Logger, _ io.Writer) error {
	version, err := versionArg(args, "force")
	if err != nil {
		return err
	}
	if err := m.Force(int(version)); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	logger.Info("forced version", "version", version)
	return nil
}

func cmdGoto(m migrator, args []string, logger *logging.Logger, _ io.Writer) error {
	version, err := versionArg(args, "goto")
	if err != nil {
		return err
	}
	if err := noChangeOK(m.Migrate(version), logger); err != nil {
		return fmt.Errorf("migrate to %d: %w", version, err)
	}
	logger.Info("migrated", "version", version)
	return nil
}

// versionArg parses a non-negative version that also fits in an int, which
// Force requires.
func versionArg(args []string, name string) (uint, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%s requires a version argument", name)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(args[0]), 10, 0)
	if err != nil || v > uint64(^uint(0)>>1) {
		return 0, fmt.Errorf("invalid %s version %q", name, args[0])
	}
	return uint(v), nil
}

func noChangeOK(err error, logger *logging.Logger) error {
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migration changes")
		return nil
	}
	return err
}

func migrationsDir() (string, error) {
	candidates := append([]string{os.Getenv("MIGRATIONS_DIR"), os.Getenv("MIGRATIONS_PATH")}, defaultMigrationDirs...)
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			return abs, nil
		}
	}
	return "", fmt.Errorf("migration directory not found (checked MIGRATIONS_DIR, MIGRATIONS_PATH, %s)", strings.Join(defaultMigrationDirs, ", "))
}

// withPreparedBinaryFlag mirrors the API's DSN handling so both binaries
// behave the same behind a transaction pooler.
func withPreparedBinaryFlag(raw string, enabled bool) string {
	if !enabled {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return raw
	}
	q := u.Query()
	if !q.Has("disable_prepared_binary_result") {
		q.Set("disable_prepared_binary_result", "yes")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err == nil {
		return v
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "yes", "y", "on":
		return true
	}
	return false
}

func printUsage(w io.Writer) {
	name := filepath.Base(os.Args[0])
	fmt.Fprintf(w, "usage: %s <up|down|version|force|goto> [args]\n", name)
	fmt.Fprintln(w, "examples:")
	for _, example := range []string{"up", "down 1", "version", "force 1", "goto 1"} {
		fmt.Fprintf(w, "  %s %s\n", name, example)
	}
}
