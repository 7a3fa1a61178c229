package sqlite

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

type Migrator struct {
	store *SqlStore
	log   *zap.Logger
}

func NewMigrator(store *SqlStore, log *zap.Logger) *Migrator {
	return &Migrator{
		store: store,
		log:   log,
	}
}

// Up applies every script in source whose version is above the database's
// user_version, in version order.
func (m *Migrator) Up(ctx context.Context, source embed.FS) error {
	list, err := source.ReadDir(".")
	if err != nil {
		return err
	}

	var scripts []string
	for _, f := range list {
		if strings.HasSuffix(f.Name(), ".sql") {
			scripts = append(scripts, f.Name())
		}
	}
	if len(scripts) == 0 {
		return nil
	}
	sort.Strings(scripts)

	current, err := m.store.userVersion()
	if err != nil {
		return err
	}

	final, err := scriptVersion(scripts[len(scripts)-1])
	if err != nil {
		return err
	}
	if final > current {
		m.log.Debug("Bringing up kv migrations", zap.Int("migration_count", final-current))
	}

	for _, n := range scripts {
		v, err := scriptVersion(n)
		if err != nil {
			return err
		}

		// re-read so a script that jumps ahead is never followed by an older one
		c, err := m.store.userVersion()
		if err != nil {
			return err
		}
		if v <= c {
			continue
		}

		m.log.Debug("Executing kv migration", zap.String("migration_name", n))
		script, err := source.ReadFile(n)
		if err != nil {
			return err
		}
		if err := m.store.execTrans(ctx, string(script)); err != nil {
			return fmt.Errorf("migration %s: %w", n, err)
		}
	}

	return nil
}

// extract the version number as an integer from a file named like "0002_migration_name.sql"
func scriptVersion(filename string) (int, error) {
	vString := strings.Split(filename, "_")[0]
	return strconv.Atoi(vString)
}
