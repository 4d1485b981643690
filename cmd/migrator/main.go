package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/pflag"
)

const (
	storagePathFlag   = "storage-path"
	migrationPathFlag = "migrations-path"
	downFlag          = "down"
)

type flags struct {
	storagePath    string
	migrationsPath string
	down           bool
}

func main() {
	f := getFlagsValues()
	validateFlags(f)
	makeMigrations(f)
}

type MigrationLogger struct {
	logger  *slog.Logger
	verbose bool
}

func NewMigrationLogger() *MigrationLogger {
	return &MigrationLogger{
		logger:  slog.Default(),
		verbose: true,
	}
}

func (ml *MigrationLogger) Printf(format string, v ...any) {
	ml.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (ml *MigrationLogger) Verbose() bool {
	return ml.verbose
}

func getFlagsValues() flags {
	storagePath := pflag.StringP(storagePathFlag, "s", "", "postgres DSN of the cart store")
	migrationsPath := pflag.StringP(migrationPathFlag, "m", "migrations", "migrations directory")
	down := pflag.Bool(downFlag, false, "roll back every migration")
	pflag.Parse()
	return flags{
		storagePath:    *storagePath,
		migrationsPath: *migrationsPath,
		down:           *down,
	}
}

func validateFlags(f flags) {
	var errs []error

	if f.storagePath == "" {
		errs = append(errs, fmt.Errorf("--%s flag: required", storagePathFlag))
	}

	if f.migrationsPath == "" {
		errs = append(errs, fmt.Errorf("--%s flag: required", migrationPathFlag))
	}

	if len(errs) != 0 {
		slog.Error("too few args", "err", errors.Join(errs...))
		fallDown()
	}
}

// databaseURL accepts the same DSN the service uses and points it at the
// pgx v5 driver.
func databaseURL(dsn string) string {
	for _, scheme := range []string{"postgres://", "postgresql://", "pgx5://"} {
		if rest, ok := strings.CutPrefix(dsn, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return "pgx5://" + dsn
}

func makeMigrations(f flags) {
	m, err := migrate.New(
		fmt.Sprintf("file://%s", f.migrationsPath),
		databaseURL(f.storagePath),
	)
	if err != nil {
		slog.Error("failed to migrate", "err", err)
		fallDown()
	}
	defer m.Close()

	m.Log = NewMigrationLogger()

	apply, verb := m.Up, "applied"
	if f.down {
		apply, verb = m.Down, "rolled back"
	}

	if err := apply(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.Log.Printf("no migrations to apply")
			return
		}
		slog.Error("failed to migrate", "err", err)
		fallDown()
	}
	m.Log.Printf("migrations %s", verb)
}

func fallDown() {
	os.Exit(2)
}
