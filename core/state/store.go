package state

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"

	"ecdpchain/storage"
)

type entry struct {
	value   []byte
	deleted bool
}

// Store provides RLP-encoded key/value access to chain state with nested write
// overlays. Every runtime call executes inside Atomic so a failing call leaves
// no partial writes behind. Store is not safe for concurrent use; the runtime
// serialises access.
type Store struct {
	db     storage.Database
	layers []map[string]*entry
}

// NewStore creates a state store backed by the provided database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

// Atomic runs fn inside a fresh write overlay. The overlay is merged into the
// parent (or flushed to the database at the outermost level) when fn succeeds
// and discarded when it returns an error or panics.
func (s *Store) Atomic(fn func() error) (err error) {
	s.layers = append(s.layers, make(map[string]*entry))
	depth := len(s.layers)
	committed := false
	defer func() {
		if !committed && len(s.layers) >= depth {
			s.layers = s.layers[:depth-1]
		}
	}()
	if err = fn(); err != nil {
		return err
	}
	top := s.layers[depth-1]
	s.layers = s.layers[:depth-1]
	committed = true
	if len(s.layers) > 0 {
		parent := s.layers[len(s.layers)-1]
		for key, e := range top {
			parent[key] = e
		}
		return nil
	}
	return s.flush(top)
}

// Depth reports how many overlays are currently open.
func (s *Store) Depth() int { return len(s.layers) }

func (s *Store) flush(layer map[string]*entry) error {
	keys := make([]string, 0, len(layer))
	for key := range layer {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		e := layer[key]
		var err error
		if e.deleted {
			err = s.db.Delete([]byte(key))
		} else {
			err = s.db.Put([]byte(key), e.value)
		}
		if err != nil {
			return fmt.Errorf("state: flush %q: %w", key, err)
		}
	}
	return nil
}

func (s *Store) get(key []byte) ([]byte, bool, error) {
	for i := len(s.layers) - 1; i >= 0; i-- {
		if e, ok := s.layers[i][string(key)]; ok {
			if e.deleted {
				return nil, false, nil
			}
			return e.value, true, nil
		}
	}
	value, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *Store) put(key, value []byte) error {
	if len(s.layers) == 0 {
		return s.db.Put(key, value)
	}
	s.layers[len(s.layers)-1][string(key)] = &entry{value: value}
	return nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (s *Store) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return s.put(key, encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (s *Store) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := s.get(key)
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVGetList decodes an RLP list stored under key into the slice pointed to by
// out. When no value is present the destination is set to an empty slice.
func (s *Store) KVGetList(key []byte, out interface{}) error {
	ok, err := s.KVGet(key, out)
	if err != nil || ok {
		return err
	}
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("kv: destination must be a non-nil pointer")
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Slice {
		return fmt.Errorf("kv: destination must point to a slice")
	}
	elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
	return nil
}

// KVDelete removes key from state.
func (s *Store) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	if len(s.layers) == 0 {
		return s.db.Delete(key)
	}
	s.layers[len(s.layers)-1][string(key)] = &entry{deleted: true}
	return nil
}

// KVIterate walks every live key under prefix in ascending order starting at
// start (inclusive). Pending overlay writes are visible to the walk.
func (s *Store) KVIterate(prefix, start []byte, fn func(key, raw []byte) bool) error {
	if len(s.layers) == 0 {
		return s.db.Iterate(prefix, start, fn)
	}
	merged := make(map[string]*entry)
	if err := s.db.Iterate(prefix, start, func(key, value []byte) bool {
		merged[string(key)] = &entry{value: value}
		return true
	}); err != nil {
		return err
	}
	for _, layer := range s.layers {
		for key, e := range layer {
			if !strings.HasPrefix(key, string(prefix)) {
				continue
			}
			if len(start) > 0 && key < string(start) {
				continue
			}
			merged[key] = e
		}
	}
	keys := make([]string, 0, len(merged))
	for key, e := range merged {
		if e.deleted {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if !fn([]byte(key), merged[key].value) {
			return nil
		}
	}
	return nil
}

// Decode is a helper for KVIterate callbacks.
func Decode(raw []byte, out interface{}) error {
	return rlp.DecodeBytes(raw, out)
}
