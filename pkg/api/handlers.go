package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phuslu/log"
	"github.com/segmentio/ksuid"
	"github.com/ssargent/sysconf/pkg/logging"
	"github.com/ssargent/sysconf/pkg/query"
	"github.com/ssargent/sysconf/pkg/storage"
	"github.com/ssargent/sysconf/pkg/store"
)

// maxBodySize bounds PUT bodies. A hex encoded big array is at most 128 KiB.
const maxBodySize = 1 << 20

// Server holds the API server state. Requests are serialized so that each
// one sees a complete load-modify-save cycle.
type Server struct {
	mu        sync.Mutex
	storage   store.ReadWriter
	snapshots SnapshotService
	syncer    ClockSyncer
	config    ServerConfig
	metrics   *Metrics
	logger    *log.Logger
}

// NewServer creates a new API server
func NewServer(deps Dependencies, config ServerConfig, metrics *Metrics) *Server {
	return &Server{
		storage:   deps.Storage,
		snapshots: deps.Snapshots,
		syncer:    deps.Syncer,
		config:    config,
		metrics:   metrics,
		logger:    logging.OrDiscard(deps.Logger),
	}
}

// statusFor maps store and snapshot errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, storage.ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrTypeMismatch):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrUnknownType), errors.Is(err, store.ErrCorrupt),
		errors.Is(err, storage.ErrSnapshotCorrupt):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) load() (*store.Store, error) {
	start := time.Now()
	conf, err := store.Load(s.storage)
	s.metrics.RecordStoreOperation("load", err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}
	s.metrics.UpdateEntryCount(conf.Count())

	return conf, nil
}

// save snapshots the original buffer, when snapshots are configured, and
// writes conf back. It returns the snapshot ID.
func (s *Server) save(conf *store.Store, original []byte) (string, error) {
	var snapshotID string
	if s.snapshots != nil {
		snap, _, err := s.snapshots.Create(original)
		s.metrics.RecordSnapshotOperation("create", err == nil)
		if err != nil {
			return "", fmt.Errorf("snapshot sysconf: %w", err)
		}
		snapshotID = snap.ID.String()
	}

	start := time.Now()
	err := conf.Save(s.storage)
	s.metrics.RecordStoreOperation("save", err == nil, time.Since(start))
	if err != nil {
		return "", err
	}
	s.pruneSnapshots()

	return snapshotID, nil
}

// pruneSnapshots trims the snapshot store to config.SnapshotKeep. A failed
// prune does not fail the write that triggered it.
func (s *Server) pruneSnapshots() {
	if s.snapshots == nil || s.config.SnapshotKeep <= 0 {
		return
	}

	removed, err := s.snapshots.Prune(s.config.SnapshotKeep)
	s.metrics.RecordSnapshotOperation("prune", err == nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("snapshot prune failed")
		return
	}
	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Int("keep", s.config.SnapshotKeep).Msg("pruned snapshots")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, map[string]string{"status": "healthy"})
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	where := r.URL.Query()["where"]
	queries := make([]query.FieldQuery, 0, len(where))
	for _, cond := range where {
		q, err := query.Parse(cond)
		if err != nil {
			sendError(w, fmt.Sprintf("Invalid where condition: %v", err), http.StatusBadRequest)
			return
		}
		queries = append(queries, q)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conf, err := s.load()
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to load sysconf: %v", err), statusFor(err))
		return
	}

	entries, err := conf.Entries()
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to decode entries: %v", err), statusFor(err))
		return
	}

	entries = query.Filter(entries, queries)
	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newEntryView(e))
	}
	sendSuccess(w, views)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s.mu.Lock()
	defer s.mu.Unlock()

	conf, err := s.load()
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to load sysconf: %v", err), statusFor(err))
		return
	}

	e, err := conf.Get(name)
	if err != nil {
		sendError(w, err.Error(), statusFor(err))
		return
	}
	sendSuccess(w, newEntryView(e))
}

func (s *Server) handleSetEntry(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req SetEntryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		sendError(w, "Invalid JSON in request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conf, err := s.load()
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to load sysconf: %v", err), statusFor(err))
		return
	}

	e, err := conf.Get(name)
	if err != nil {
		sendError(w, err.Error(), statusFor(err))
		return
	}

	kind := req.Kind
	if kind == "" {
		kind = store.DefaultKind(e.Class)
	}
	raw, err := store.ParseValue(kind, req.Value)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	original := conf.Bytes()
	start := time.Now()
	err = conf.Replace(name, raw)
	s.metrics.RecordStoreOperation("replace", err == nil, time.Since(start))
	if err != nil {
		sendError(w, err.Error(), statusFor(err))
		return
	}

	snapshotID, err := s.save(conf, original)
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to save sysconf: %v", err), statusFor(err))
		return
	}

	updated, err := conf.Get(name)
	if err != nil {
		sendError(w, err.Error(), statusFor(err))
		return
	}

	s.logger.Info().Str("entry", name).Str("value", store.FormatValue(updated)).Msg("entry replaced")
	sendSuccess(w, SetEntryResponse{Entry: newEntryView(updated), SnapshotID: snapshotID})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conf, err := s.load()
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to load sysconf: %v", err), statusFor(err))
		return
	}

	resp := CheckResponse{Valid: true, Entries: conf.Count()}
	if err := conf.Validate(); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
	}
	sendSuccess(w, resp)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		sendError(w, "Clock sync is not configured", http.StatusServiceUnavailable)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.syncer.Run(r.Context())
	if err != nil {
		s.metrics.RecordSync(false, 0)
		sendError(w, fmt.Sprintf("Sync failed: %v", err), statusFor(err))
		return
	}
	s.metrics.RecordSync(true, result.Delta)
	if result.SnapshotID != "" {
		s.pruneSnapshots()
	}
	sendSuccess(w, result)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		sendError(w, "Snapshots are not configured", http.StatusServiceUnavailable)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snaps, err := s.snapshots.List()
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to list snapshots: %v", err), statusFor(err))
		return
	}
	sendSuccess(w, snaps)
}

func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		sendError(w, "Snapshots are not configured", http.StatusServiceUnavailable)
		return
	}

	id, err := ksuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, "Invalid snapshot id", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, _, err := s.snapshots.Get(id)
	if err != nil {
		s.metrics.RecordSnapshotOperation("restore", false)
		sendError(w, err.Error(), statusFor(err))
		return
	}

	restored, err := store.FromBytes(data)
	if err != nil {
		s.metrics.RecordSnapshotOperation("restore", false)
		sendError(w, err.Error(), statusFor(err))
		return
	}

	// The buffer being replaced is kept as a snapshot of its own when it
	// can still be read.
	var original []byte
	if current, err := s.load(); err == nil {
		original = current.Bytes()
	} else {
		s.logger.Warn().Err(err).Msg("current sysconf unreadable, restoring without snapshot")
	}

	var snapshotID string
	if original != nil {
		snapshotID, err = s.save(restored, original)
	} else {
		err = restored.Save(s.storage)
	}
	s.metrics.RecordSnapshotOperation("restore", err == nil)
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to restore snapshot: %v", err), statusFor(err))
		return
	}

	s.logger.Info().Str("id", id.String()).Msg("snapshot restored")
	sendSuccess(w, map[string]string{"restored": id.String(), "snapshot_id": snapshotID})
}
