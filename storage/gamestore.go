package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/MatrixLabsTech/crystal-caves-zk/core"
	"github.com/MatrixLabsTech/crystal-caves-zk/crypto"
)

// registerPrefix records a state-key prefix into statePrefixes so that
// ComputeRoot() always covers it.  All prefix constants must be declared
// via this function; manually editing statePrefixes is not required.
func registerPrefix(p string) string {
	statePrefixes = append(statePrefixes, p)
	return p
}

// statePrefixes is populated automatically by registerPrefix() below.
// ComputeRoot() iterates these prefixes to build the full game-state view.
var statePrefixes []string

var (
	prefixConfig = registerPrefix("cfg:")
	prefixGame   = registerPrefix("game:")
	prefixUser   = registerPrefix("user:")
	prefixMined  = registerPrefix("mined:")
)

const (
	keyConfig    = "cfg:active"
	keyGameState = "game:state"
)

// minedMarker is the stored value for a (user, blockHash) mined flag.
// Membership is what matters; the value never changes.
var minedMarker = []byte{1}

type storeSnapshot struct {
	dirty   map[string][]byte
	deleted map[string]bool
}

// GameStore implements core.Store on top of a DB with in-memory write
// buffer, snapshot/rollback, and deterministic state-root computation.
type GameStore struct {
	db        DB
	dirty     map[string][]byte
	deleted   map[string]bool
	snapshots []storeSnapshot
}

// NewGameStore creates a GameStore backed by db.
func NewGameStore(db DB) *GameStore {
	return &GameStore{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// ---- internal helpers ----

func (s *GameStore) get(key string) ([]byte, error) {
	if s.deleted[key] {
		return nil, core.ErrNotFound
	}
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *GameStore) set(key string, val []byte) {
	delete(s.deleted, key)
	s.dirty[key] = val
}

func (s *GameStore) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.set(key, data)
	return nil
}

// ---- Config ----

func (s *GameStore) GetConfig() (*core.GameConfig, error) {
	data, err := s.get(keyConfig)
	if err != nil {
		return nil, err
	}
	var cfg core.GameConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *GameStore) SetConfig(cfg *core.GameConfig) error {
	return s.setJSON(keyConfig, cfg)
}

// ---- Game state ----

func (s *GameStore) GetGameState() (*core.GameState, error) {
	data, err := s.get(keyGameState)
	if err != nil {
		return nil, err
	}
	var gs core.GameState
	if err := json.Unmarshal(data, &gs); err != nil {
		return nil, err
	}
	return &gs, nil
}

func (s *GameStore) SetGameState(gs *core.GameState) error {
	return s.setJSON(keyGameState, gs)
}

// ---- Users ----

func (s *GameStore) GetUser(address string) (*core.UserState, error) {
	data, err := s.get(prefixUser + address)
	if err != nil {
		return nil, err
	}
	var u core.UserState
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *GameStore) SetUser(u *core.UserState) error {
	return s.setJSON(prefixUser+u.Address, u)
}

func (s *GameStore) HasUser(address string) (bool, error) {
	_, err := s.get(prefixUser + address)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ---- Mined set ----

func minedKey(address, blockHash string) string {
	return prefixMined + address + ":" + blockHash
}

func (s *GameStore) IsMined(address, blockHash string) (bool, error) {
	_, err := s.get(minedKey(address, blockHash))
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *GameStore) MarkMined(address, blockHash string) error {
	s.set(minedKey(address, blockHash), minedMarker)
	return nil
}

// ---- Snapshot / Rollback / Commit ----

// Snapshot saves the current write buffer and returns a snapshot ID.
func (s *GameStore) Snapshot() (int, error) {
	snap := storeSnapshot{
		dirty:   make(map[string][]byte, len(s.dirty)),
		deleted: make(map[string]bool, len(s.deleted)),
	}
	for k, v := range s.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		snap.dirty[k] = cp
	}
	for k, v := range s.deleted {
		snap.deleted[k] = v
	}
	s.snapshots = append(s.snapshots, snap)
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the write buffer to a previously saved snapshot.
// The snapshot maps are deep-copied so that subsequent writes cannot corrupt them.
func (s *GameStore) RevertToSnapshot(id int) error {
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	snap := s.snapshots[id]

	dirty := make(map[string][]byte, len(snap.dirty))
	for k, v := range snap.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		dirty[k] = cp
	}
	deleted := make(map[string]bool, len(snap.deleted))
	for k, v := range snap.deleted {
		deleted[k] = v
	}

	s.dirty = dirty
	s.deleted = deleted
	s.snapshots = s.snapshots[:id]
	return nil
}

// ComputeRoot returns the deterministic hash of the complete game state.
// It merges all persisted entries (scanned from DB by the known state
// prefixes) with the current write buffer, then hashes the sorted key-value
// pairs using length-prefix encoding.  It does NOT flush or modify state,
// so operators can audit mid-operation.
func (s *GameStore) ComputeRoot() string {
	merged := make(map[string][]byte)
	for _, prefix := range statePrefixes {
		it := s.db.NewIterator([]byte(prefix))
		for it.Next() {
			k := string(it.Key())
			v := make([]byte, len(it.Value()))
			copy(v, it.Value())
			merged[k] = v
		}
		it.Release()
	}

	for k, v := range s.dirty {
		merged[k] = v
	}
	for k := range s.deleted {
		delete(merged, k)
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, k := range keys {
		v := merged[k]
		kb := []byte(k)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(kb)))
		buf.Write(lenBuf[:])
		buf.Write(kb)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		buf.Write(lenBuf[:])
		buf.Write(v)
	}
	return crypto.Hash(buf.Bytes())
}

// Commit atomically flushes the write buffer to the underlying DB via a
// WriteBatch and then clears it. The engine calls Commit exactly once per
// successful mutating operation, after all checks and ledger updates.
func (s *GameStore) Commit() error {
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	for k := range s.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.dirty = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	s.snapshots = nil
	return nil
}
