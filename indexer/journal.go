// Package indexer persists the engine's notification events as a durable,
// ordered log so external consumers can replay what happened (admissions,
// mined blocks, depth unlocks, difficulty moves, claims) without scanning
// full game state.
package indexer

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/MatrixLabsTech/crystal-caves-zk/core"
	"github.com/MatrixLabsTech/crystal-caves-zk/events"
	"github.com/MatrixLabsTech/crystal-caves-zk/storage"
)

const (
	prefixEntry   = "log:entry:"
	prefixUserLog = "log:user:"
	keySeq        = "log:seq"
)

// Entry is one persisted event with its position in the log.
type Entry struct {
	Seq   uint64       `json:"seq"`
	Event events.Event `json:"event"`
}

// Journal subscribes to every engine event and appends it to an ordered,
// grow-only log keyed by a monotonic sequence number, with a per-user
// secondary index.
type Journal struct {
	mu      sync.Mutex
	db      storage.DB
	nextSeq uint64
}

// New creates a Journal backed by db and subscribes it to all event types.
// The sequence counter resumes from the persisted value.
func New(db storage.DB, emitter *events.Emitter) (*Journal, error) {
	j := &Journal{db: db}
	data, err := db.Get([]byte(keySeq))
	switch {
	case errors.Is(err, core.ErrNotFound):
		j.nextSeq = 0
	case err != nil:
		return nil, fmt.Errorf("journal: load sequence: %w", err)
	default:
		j.nextSeq = binary.BigEndian.Uint64(data)
	}
	for _, typ := range events.All {
		emitter.Subscribe(typ, j.onEvent)
	}
	return j, nil
}

// Len returns the number of persisted entries.
func (j *Journal) Len() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.nextSeq
}

// Entries returns up to limit entries starting at sequence number from.
func (j *Journal) Entries(from uint64, limit int) ([]Entry, error) {
	j.mu.Lock()
	end := j.nextSeq
	j.mu.Unlock()

	var out []Entry
	for seq := from; seq < end && len(out) < limit; seq++ {
		data, err := j.db.Get(entryKey(seq))
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("journal unmarshal seq %d: %w", seq, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// SeqsByUser returns the sequence numbers of all entries for user.
func (j *Journal) SeqsByUser(user string) ([]uint64, error) {
	data, err := j.db.Get([]byte(prefixUserLog + user))
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var seqs []uint64
	if err := json.Unmarshal(data, &seqs); err != nil {
		return nil, fmt.Errorf("journal unmarshal user index: %w", err)
	}
	return seqs, nil
}

// ---- event handler ----

func (j *Journal) onEvent(ev events.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()

	seq := j.nextSeq
	entry := Entry{Seq: seq, Event: ev}
	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("[journal] marshal seq %d: %v", seq, err)
		return
	}

	batch := j.db.NewBatch()
	batch.Set(entryKey(seq), data)
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq+1)
	batch.Set([]byte(keySeq), seqBuf[:])
	if err := batch.Write(); err != nil {
		log.Printf("[journal] write seq %d: %v", seq, err)
		return
	}
	j.nextSeq = seq + 1

	if ev.User != "" {
		if err := j.appendUserSeq(ev.User, seq); err != nil {
			log.Printf("[journal] user index %s: %v", ev.User, err)
		}
	}
}

func (j *Journal) appendUserSeq(user string, seq uint64) error {
	seqs, err := j.SeqsByUser(user)
	if err != nil {
		return err
	}
	seqs = append(seqs, seq)
	data, err := json.Marshal(seqs)
	if err != nil {
		return err
	}
	return j.db.Set([]byte(prefixUserLog+user), data)
}

func entryKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%016x", prefixEntry, seq))
}
