// Package progressor upgrades the on-disk data format when the server
// starts against a store written by an older release.
package progressor

import (
	"context"
	"encoding/json"
	"time"

	"enceladus/pkg/models"
	"enceladus/pkg/state/logger"
	"enceladus/pkg/store/db/storedb"
	"enceladus/pkg/store/keys"

	"github.com/cockroachdb/errors"
)

const (
	systemVersionKey    = "system:version"
	systemInProgressKey = "system:migration_in_progress"
)

// CurrentVersion is the data format this build writes.
const CurrentVersion = "2"

// stores without a version marker predate versioning
const defaultStoredVersion = "1"

// Backend is the key/value surface migrations run against.
type Backend interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Scan(prefix string, fn func(key string, value []byte) error) error
}

type migration struct {
	to  string
	run func(ctx context.Context, db Backend) error
}

// migrations are applied in order; each moves the store to its "to" version.
var migrations = []migration{
	{to: "2", run: migrateTo2},
}

// Run brings db up to CurrentVersion and reports whether anything ran.
func Run(ctx context.Context, db Backend) (bool, error) {
	stored, err := StoredVersion(db)
	if err != nil {
		return false, err
	}
	if stored == CurrentVersion {
		return false, nil
	}
	if marker, err := db.Get(systemInProgressKey); err == nil {
		logger.Warn("progressor_resuming_interrupted", "marker", string(marker))
	}

	ran := false
	for _, m := range migrations {
		if m.to <= stored {
			continue
		}
		if err := startMigration(db, stored, m.to); err != nil {
			return ran, err
		}
		if err := m.run(ctx, db); err != nil {
			logger.Error("progressor_migration_handler_failed", "from", stored, "to", m.to, "error", err)
			return ran, errors.Wrapf(err, "migrate %s -> %s", stored, m.to)
		}
		if err := finishMigration(db, m.to); err != nil {
			return ran, err
		}
		stored, ran = m.to, true
	}
	if stored != CurrentVersion {
		// no migration bridges the gap; record the version so the check is not repeated
		if err := db.Set(systemVersionKey, []byte(CurrentVersion)); err != nil {
			return ran, errors.Wrap(err, "persist version")
		}
		ran = true
	}
	return ran, nil
}

// StoredVersion returns the data format recorded in db.
func StoredVersion(db Backend) (string, error) {
	v, err := db.Get(systemVersionKey)
	if err != nil {
		if storedb.IsNotFound(err) {
			return defaultStoredVersion, nil
		}
		logger.Error("progressor_read_version_failed", "error", err)
		return "", errors.Wrap(err, "read stored version")
	}
	return string(v), nil
}

// startMigration writes the in-progress marker and logs the start of a migration.
func startMigration(db Backend, from, to string) error {
	marker := map[string]string{"from": from, "to": to, "started_at": time.Now().UTC().Format(time.RFC3339)}
	mb, _ := json.Marshal(marker)
	if err := db.Set(systemInProgressKey, mb); err != nil {
		logger.Error("progressor_write_inprogress_failed", "error", err)
		return errors.Wrap(err, "write in-progress marker")
	}
	logger.Info("migration_start", "from", from, "to", to)
	return nil
}

// finishMigration persists the new version and clears the in-progress marker.
func finishMigration(db Backend, to string) error {
	if err := db.Set(systemVersionKey, []byte(to)); err != nil {
		logger.Error("progressor_persist_version_failed", "version", to, "error", err)
		return errors.Wrap(err, "persist new version")
	}
	if err := db.Delete(systemInProgressKey); err != nil {
		logger.Error("progressor_delete_inprogress_failed", "error", err)
	}
	logger.Info("migration_done", "to", to)
	return nil
}

// migrateTo2 fills in the defaults later releases rely on: a language on
// every user and non-null id lists on every thread. It is idempotent.
func migrateTo2(ctx context.Context, db Backend) error {
	users, err := rewrite(ctx, db, keys.UserTable, func(u *models.User) bool {
		if u.Lang != "" {
			return false
		}
		u.Lang = models.DefaultLang
		return true
	})
	if err != nil {
		return err
	}
	threads, err := rewrite(ctx, db, keys.ThreadTable, func(th *models.Thread) bool {
		changed := false
		if th.SectionsID == nil {
			th.SectionsID, changed = []int64{}, true
		}
		if th.EventsID == nil {
			th.EventsID, changed = []int64{}, true
		}
		if th.EventColumnHeaders == nil {
			th.EventColumnHeaders, changed = []string{}, true
		}
		return changed
	})
	if err != nil {
		return err
	}
	logger.Info("migration_rows_rewritten", "users", users, "threads", threads)
	return nil
}

// rewrite applies fix to every row of table and stores the rows it changed.
// Writes happen after the scan so the iterator never sees its own updates.
func rewrite[T any](ctx context.Context, db Backend, table string, fix func(*T) bool) (int, error) {
	pending := map[string][]byte{}
	err := db.Scan(keys.GenTablePrefix(table), func(key string, value []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := keys.ParseEntityKey(key); err != nil {
			logger.Warn("migration_stray_key", "key", key, "error", err)
			return nil
		}
		var row T
		if err := json.Unmarshal(value, &row); err != nil {
			logger.Error("migration_unmarshal_failed", "key", key, "error", err)
			return nil
		}
		if !fix(&row) {
			return nil
		}
		nb, err := json.Marshal(row)
		if err != nil {
			return err
		}
		pending[key] = nb
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "scan %s", table)
	}
	for key, value := range pending {
		if err := db.Set(key, value); err != nil {
			return 0, errors.Wrapf(err, "save %s", key)
		}
	}
	return len(pending), nil
}
