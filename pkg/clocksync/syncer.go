// Package clocksync corrects the console's RTC counter bias stored in
// SYSCONF using a reference time.
package clocksync

import (
	"context"
	"fmt"
	"time"

	"github.com/phuslu/log"
	"github.com/ssargent/sysconf/pkg/logging"
	"github.com/ssargent/sysconf/pkg/storage"
	"github.com/ssargent/sysconf/pkg/store"
)

// CounterBiasEntry is the SYSCONF entry holding the RTC counter bias (Long)
const CounterBiasEntry = "IPL.CB"

// TimeSource supplies the signed difference between reference and local time
type TimeSource interface {
	Delta(ctx context.Context) (int64, error)
}

// Snapshotter records the buffer before it is overwritten
type Snapshotter interface {
	Create(data []byte) (*storage.Snapshot, bool, error)
}

// Config controls a sync run
type Config struct {
	Retries    int           // Attempts at fetching the reference time (minimum 1)
	RetryDelay time.Duration // Pause between attempts
	DryRun     bool          // Compute the new bias without saving
}

// Result reports what a sync run did
type Result struct {
	Delta        int64  `json:"delta"`
	PreviousBias uint32 `json:"previous_bias"`
	NewBias      uint32 `json:"new_bias"`
	SnapshotID   string `json:"snapshot_id,omitempty"`
	Saved        bool   `json:"saved"`
}

// Syncer runs one load-modify-save session per call to Run
type Syncer struct {
	storage   store.ReadWriter
	time      TimeSource
	snapshots Snapshotter
	config    Config
	logger    *log.Logger
}

// NewSyncer creates a syncer. snapshots may be nil.
func NewSyncer(rw store.ReadWriter, ts TimeSource, snapshots Snapshotter, config Config, logger *log.Logger) *Syncer {
	if config.Retries < 1 {
		config.Retries = 1
	}

	return &Syncer{
		storage:   rw,
		time:      ts,
		snapshots: snapshots,
		config:    config,
		logger:    logging.OrDiscard(logger),
	}
}

func (s *Syncer) fetchDelta(ctx context.Context) (int64, error) {
	var lastErr error
	for attempt := 1; attempt <= s.config.Retries; attempt++ {
		delta, err := s.time.Delta(ctx)
		if err == nil {
			return delta, nil
		}
		lastErr = err

		if attempt == s.config.Retries {
			break
		}
		s.logger.Warn().Err(err).Int("attempt", attempt).Msg("reference time fetch failed, retrying")

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(s.config.RetryDelay):
		}
	}

	return 0, fmt.Errorf("fetch reference time after %d attempts: %w", s.config.Retries, lastErr)
}

// Run fetches the reference time, adds the delta to the stored counter bias
// and saves the buffer. Any failure aborts the session before save.
func (s *Syncer) Run(ctx context.Context) (*Result, error) {
	delta, err := s.fetchDelta(ctx)
	if err != nil {
		return nil, err
	}

	conf, err := store.Load(s.storage)
	if err != nil {
		return nil, fmt.Errorf("load sysconf: %w", err)
	}
	original := conf.Bytes()

	bias, err := conf.Uint32(CounterBiasEntry)
	if err != nil {
		return nil, fmt.Errorf("read counter bias: %w", err)
	}

	result := &Result{
		Delta:        delta,
		PreviousBias: bias,
		NewBias:      uint32(int64(bias) + delta),
	}

	if err := store.ReplaceValue(conf, CounterBiasEntry, result.NewBias); err != nil {
		return nil, fmt.Errorf("write counter bias: %w", err)
	}

	s.logger.Info().
		Int64("delta", delta).
		Uint32("previous_bias", result.PreviousBias).
		Uint32("new_bias", result.NewBias).
		Bool("dry_run", s.config.DryRun).
		Msg("counter bias computed")

	if s.config.DryRun {
		return result, nil
	}

	if s.snapshots != nil {
		snap, _, err := s.snapshots.Create(original)
		if err != nil {
			return nil, fmt.Errorf("snapshot sysconf: %w", err)
		}
		result.SnapshotID = snap.ID.String()
	}

	if err := conf.Save(s.storage); err != nil {
		return nil, fmt.Errorf("save sysconf: %w", err)
	}
	result.Saved = true

	s.logger.Info().Uint32("new_bias", result.NewBias).Msg("wrote new counter bias to SYSCONF")
	return result, nil
}
