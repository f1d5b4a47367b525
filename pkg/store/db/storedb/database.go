package storedb

import (
	"strconv"
	"sync"

	"enceladus/pkg/state/logger"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

var ErrNotFound = errors.New("key not found")

var errClosed = errors.New("pebble not opened; call storedb.Open first")

// DB is the pebble handle backing every entity table.
type DB struct {
	client *pebble.DB
	path   string
	memory bool

	// serializes id sequence read-modify-write
	seqMu sync.Mutex
}

func Open(path string) (*DB, error) {
	opts := &pebble.Options{
		DisableWAL: false,
	}
	client, err := pebble.Open(path, opts)
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, errors.Wrapf(err, "open pebble at %s", path)
	}
	logger.Info("pebble_opened", "path", path)
	return &DB{client: client, path: path}, nil
}

// OpenInMemory opens a pebble instance on an in-memory filesystem.
func OpenInMemory() (*DB, error) {
	client, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, errors.Wrap(err, "open in-memory pebble")
	}
	return &DB{client: client, memory: true}, nil
}

func (d *DB) Path() string {
	return d.path
}

func (d *DB) Ready() bool {
	return d != nil && d.client != nil
}

func (d *DB) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	if err := d.client.Close(); err != nil {
		return err
	}
	d.client = nil
	return nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// WriteOpt syncs durable stores and skips fsync for in-memory ones.
func (d *DB) WriteOpt(requestSync bool) *pebble.WriteOptions {
	if requestSync && !d.memory {
		return pebble.Sync
	}
	return pebble.NoSync
}

func (d *DB) Get(key string) ([]byte, error) {
	if !d.Ready() {
		return nil, errClosed
	}
	v, closer, err := d.client.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			logger.Debug("get_key_missing", "key", key)
			return nil, ErrNotFound
		}
		logger.Error("get_key_failed", "key", key, "error", err)
		return nil, err
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	logger.Debug("get_key_ok", "key", key, "len", len(out))
	return out, nil
}

func (d *DB) Set(key string, value []byte) error {
	if !d.Ready() {
		return errClosed
	}
	if err := d.client.Set([]byte(key), value, d.WriteOpt(true)); err != nil {
		logger.Error("save_key_failed", "key", key, "error", err)
		return err
	}
	logger.Debug("save_key_ok", "key", key, "len", len(value))
	return nil
}

func (d *DB) Delete(key string) error {
	if !d.Ready() {
		return errClosed
	}
	if err := d.client.Delete([]byte(key), d.WriteOpt(true)); err != nil {
		logger.Error("delete_key_failed", "key", key, "error", err)
		return err
	}
	logger.Debug("delete_key_ok", "key", key)
	return nil
}

// Scan visits every key under prefix in key order. Values handed to fn are
// only valid for the duration of the call.
func (d *DB) Scan(prefix string, fn func(key string, value []byte) error) error {
	if !d.Ready() {
		return errClosed
	}
	iter, err := d.client.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixUpperBound([]byte(prefix)),
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(string(iter.Key()), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// NextSeq increments and returns the counter stored at key. The first call
// returns 1.
func (d *DB) NextSeq(key string) (int64, error) {
	d.seqMu.Lock()
	defer d.seqMu.Unlock()

	var cur int64
	raw, err := d.Get(key)
	switch {
	case err == nil:
		cur, err = strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "corrupt sequence %s", key)
		}
	case IsNotFound(err):
	default:
		return 0, err
	}
	next := cur + 1
	if err := d.Set(key, []byte(strconv.FormatInt(next, 10))); err != nil {
		return 0, err
	}
	return next, nil
}

func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
