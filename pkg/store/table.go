package store

import (
	"encoding/json"

	"enceladus/pkg/models"
	"enceladus/pkg/state/logger"
	"enceladus/pkg/store/keys"
	"enceladus/pkg/store/locks"

	"github.com/cockroachdb/errors"
)

// Table stores JSON encoded rows of one kind keyed by integer id.
type Table[T any] struct {
	kind  models.Kind
	name  string
	db    Backend
	locks *locks.Set
}

func newTable[T any](kind models.Kind, name string, db Backend, l *locks.Set) *Table[T] {
	return &Table[T]{kind: kind, name: name, db: db, locks: l}
}

func (t *Table[T]) Kind() models.Kind {
	return t.kind
}

func (t *Table[T]) key(id int64) string {
	return keys.GenEntityKey(t.name, id)
}

func (t *Table[T]) Get(id int64) (T, error) {
	var zero T
	raw, err := t.db.Get(t.key(id))
	if err != nil {
		if IsNotFound(err) {
			return zero, errors.Wrapf(ErrNotFound, "%s %d", t.kind, id)
		}
		return zero, errors.Wrapf(err, "load %s %d", t.kind, id)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, errors.Wrapf(err, "decode %s %d", t.kind, id)
	}
	return v, nil
}

// List returns every row in id order. Keys under the table prefix that are
// not entity keys are skipped.
func (t *Table[T]) List() ([]T, error) {
	out := make([]T, 0)
	err := t.db.Scan(keys.GenTablePrefix(t.name), func(key string, value []byte) error {
		if parts, err := keys.ParseEntityKey(key); err != nil || parts.Table != t.name {
			logger.Warn("store_stray_key", "table", t.name, "key", key)
			return nil
		}
		var v T
		if err := json.Unmarshal(value, &v); err != nil {
			return errors.Wrapf(err, "decode %s", key)
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", t.kind)
	}
	return out, nil
}

// Insert allocates the next id, lets build produce the row and persists it.
func (t *Table[T]) Insert(build func(id int64) (T, error)) (T, error) {
	var zero T
	id, err := t.db.NextSeq(keys.GenSequenceKey(t.name))
	if err != nil {
		return zero, errors.Wrapf(err, "allocate %s id", t.kind)
	}
	v, err := build(id)
	if err != nil {
		return zero, err
	}
	if err := t.write(id, v); err != nil {
		return zero, err
	}
	return v, nil
}

// Update reads the current row, hands it to apply and writes the result
// while holding the row's write lock. Any error from apply aborts the write,
// so apply doubles as a compare-and-swap predicate.
func (t *Table[T]) Update(id int64, apply func(cur T) (T, error)) (T, error) {
	var zero T
	unlock := t.locks.Lock(t.key(id))
	defer unlock()

	cur, err := t.Get(id)
	if err != nil {
		return zero, err
	}
	next, err := apply(cur)
	if err != nil {
		return zero, err
	}
	if err := t.write(id, next); err != nil {
		return zero, err
	}
	return next, nil
}

func (t *Table[T]) Delete(id int64) error {
	key := t.key(id)
	unlock := t.locks.Lock(key)
	defer unlock()

	if _, err := t.db.Get(key); err != nil {
		if IsNotFound(err) {
			return errors.Wrapf(ErrNotFound, "%s %d", t.kind, id)
		}
		return errors.Wrapf(err, "load %s %d", t.kind, id)
	}
	if err := t.db.Delete(key); err != nil {
		return errors.Wrapf(err, "delete %s %d", t.kind, id)
	}
	return nil
}

func (t *Table[T]) write(id int64, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s %d", t.kind, id)
	}
	if err := t.db.Set(t.key(id), raw); err != nil {
		return errors.Wrapf(err, "save %s %d", t.kind, id)
	}
	return nil
}
