package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble"
	"github.com/phuslu/log"
	"github.com/segmentio/ksuid"
	"github.com/ssargent/sysconf/pkg/logging"
)

const (
	snapshotPrefix = "snap/"
	// Value header: [Compression(1)][Fingerprint(8)]
	snapshotHeaderSize = 9
)

// Errors
var (
	ErrSnapshotNotFound = &SnapshotError{"snapshot not found"}
	ErrSnapshotCorrupt  = &SnapshotError{"snapshot fingerprint mismatch"}
)

// SnapshotError represents a snapshot store error
type SnapshotError struct {
	Message string
}

func (e *SnapshotError) Error() string {
	return e.Message
}

// Snapshot describes one stored buffer
type Snapshot struct {
	ID          ksuid.KSUID     `json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	Fingerprint uint64          `json:"fingerprint"`
	Compression CompressionType `json:"-"`
	StoredSize  int             `json:"stored_size"`
}

// SnapshotStore keeps a history of SYSCONF buffers in pebble. Keys are
// k-sortable ksuids, so iteration order is creation order.
type SnapshotStore struct {
	db          *pebble.DB
	compression CompressionType
	codec       Codec
	logger      *log.Logger
}

// OpenSnapshotStore opens or creates a snapshot store at path
func OpenSnapshotStore(path string, compression CompressionType, logger *log.Logger) (*SnapshotStore, error) {
	codec, err := CodecFor(compression)
	if err != nil {
		return nil, err
	}

	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}

	return &SnapshotStore{
		db:          db,
		compression: compression,
		codec:       codec,
		logger:      logging.OrDiscard(logger),
	}, nil
}

func snapshotKey(id ksuid.KSUID) []byte {
	return append([]byte(snapshotPrefix), id.Bytes()...)
}

// Fingerprint returns the xxhash64 of a raw buffer
func Fingerprint(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// Create stores data as a new snapshot. When data is identical to the latest
// snapshot nothing is written and the latest snapshot is returned with
// created == false.
func (s *SnapshotStore) Create(data []byte) (snap *Snapshot, created bool, err error) {
	fp := Fingerprint(data)

	latest, err := s.Latest()
	if err != nil && !errors.Is(err, ErrSnapshotNotFound) {
		return nil, false, err
	}
	if latest != nil && latest.Fingerprint == fp {
		s.logger.Debug().Str("id", latest.ID.String()).Msg("snapshot unchanged, skipping")
		return latest, false, nil
	}

	id := ksuid.New()
	if latest != nil && ksuid.Compare(id, latest.ID) <= 0 {
		id = latest.ID.Next()
	}

	payload, err := s.codec.Compress(data)
	if err != nil {
		return nil, false, err
	}

	value := make([]byte, snapshotHeaderSize, snapshotHeaderSize+len(payload))
	value[0] = byte(s.compression)
	binary.BigEndian.PutUint64(value[1:], fp)
	value = append(value, payload...)

	if err := s.db.Set(snapshotKey(id), value, pebble.Sync); err != nil {
		return nil, false, err
	}

	snap = &Snapshot{
		ID:          id,
		CreatedAt:   id.Time(),
		Fingerprint: fp,
		Compression: s.compression,
		StoredSize:  len(value),
	}
	s.logger.Info().Str("id", id.String()).Int("stored_size", len(value)).Str("compression", s.compression.String()).Msg("snapshot created")

	return snap, true, nil
}

func decodeSnapshotHeader(id ksuid.KSUID, value []byte) (*Snapshot, error) {
	if len(value) < snapshotHeaderSize {
		return nil, fmt.Errorf("%w: %s header truncated", ErrSnapshotCorrupt, id)
	}

	return &Snapshot{
		ID:          id,
		CreatedAt:   id.Time(),
		Compression: CompressionType(value[0]),
		Fingerprint: binary.BigEndian.Uint64(value[1:snapshotHeaderSize]),
		StoredSize:  len(value),
	}, nil
}

// Get returns the raw buffer of a snapshot after checking its fingerprint
func (s *SnapshotStore) Get(id ksuid.KSUID) ([]byte, *Snapshot, error) {
	value, closer, err := s.db.Get(snapshotKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
		}
		return nil, nil, err
	}
	defer closer.Close()

	snap, err := decodeSnapshotHeader(id, value)
	if err != nil {
		return nil, nil, err
	}

	codec, err := CodecFor(snap.Compression)
	if err != nil {
		return nil, nil, err
	}

	// Decompress may alias its input; copy before the closer releases value
	payload := append([]byte(nil), value[snapshotHeaderSize:]...)
	data, err := codec.Decompress(payload)
	if err != nil {
		return nil, nil, err
	}
	if Fingerprint(data) != snap.Fingerprint {
		return nil, nil, fmt.Errorf("%w: %s", ErrSnapshotCorrupt, id)
	}

	return data, snap, nil
}

func (s *SnapshotStore) newIter() (*pebble.Iterator, error) {
	return s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(snapshotPrefix),
		UpperBound: []byte("snap0"), // '0' follows '/'
	})
}

func idFromKey(key []byte) (ksuid.KSUID, error) {
	return ksuid.FromBytes(key[len(snapshotPrefix):])
}

// List returns all snapshots, oldest first
func (s *SnapshotStore) List() ([]Snapshot, error) {
	iter, err := s.newIter()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Snapshot
	for iter.First(); iter.Valid(); iter.Next() {
		id, err := idFromKey(iter.Key())
		if err != nil {
			return nil, err
		}
		snap, err := decodeSnapshotHeader(id, iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}

	return out, iter.Error()
}

// Latest returns the newest snapshot
func (s *SnapshotStore) Latest() (*Snapshot, error) {
	iter, err := s.newIter()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	if !iter.Last() {
		if err := iter.Error(); err != nil {
			return nil, err
		}
		return nil, ErrSnapshotNotFound
	}

	id, err := idFromKey(iter.Key())
	if err != nil {
		return nil, err
	}
	return decodeSnapshotHeader(id, iter.Value())
}

// Delete removes a snapshot
func (s *SnapshotStore) Delete(id ksuid.KSUID) error {
	return s.db.Delete(snapshotKey(id), pebble.Sync)
}

// Prune deletes all but the newest keep snapshots and returns how many were removed
func (s *SnapshotStore) Prune(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	snaps, err := s.List()
	if err != nil {
		return 0, err
	}
	if len(snaps) <= keep {
		return 0, nil
	}

	removed := 0
	for _, snap := range snaps[:len(snaps)-keep] {
		if err := s.Delete(snap.ID); err != nil {
			return removed, err
		}
		removed++
	}

	s.logger.Info().Int("removed", removed).Int("kept", keep).Msg("snapshots pruned")
	return removed, nil
}

// Close closes the underlying database
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}
