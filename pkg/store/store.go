package store

import (
	"enceladus/pkg/models"
	"enceladus/pkg/state/logger"
	"enceladus/pkg/store/db/storedb"
	"enceladus/pkg/store/keys"
	"enceladus/pkg/store/locks"
)

// ErrNotFound is returned (wrapped) when a row is absent.
var ErrNotFound = storedb.ErrNotFound

// Backend is the key/value surface the tables need. *storedb.DB is the
// production implementation.
type Backend interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Scan(prefix string, fn func(key string, value []byte) error) error
	NextSeq(key string) (int64, error)
	Close() error
}

// Store groups the entity tables over one backend.
type Store struct {
	db Backend

	Threads  *Table[models.Thread]
	Sections *Table[models.Section]
	Events   *Table[models.Event]
	Users    *Table[models.User]
}

func New(db Backend) *Store {
	writeLocks := locks.NewSet()
	return &Store{
		db:       db,
		Threads:  newTable[models.Thread](models.KindThread, keys.ThreadTable, db, writeLocks),
		Sections: newTable[models.Section](models.KindSection, keys.SectionTable, db, writeLocks),
		Events:   newTable[models.Event](models.KindEvent, keys.EventTable, db, writeLocks),
		Users:    newTable[models.User](models.KindUser, keys.UserTable, db, writeLocks),
	}
}

// Open opens (or creates) the pebble store at path.
func Open(path string) (*Store, error) {
	db, err := storedb.Open(path)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

func OpenInMemory() (*Store, error) {
	db, err := storedb.OpenInMemory()
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// Backend exposes the raw key/value layer for maintenance tasks such as
// format migrations.
func (s *Store) Backend() Backend {
	return s.db
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	logger.Info("store_closing")
	return s.db.Close()
}

func IsNotFound(err error) bool {
	return storedb.IsNotFound(err)
}
