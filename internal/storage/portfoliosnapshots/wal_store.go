// Package portfoliosnapshots journals observed portfolio states to a write-ahead log.
package portfoliosnapshots

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/basket/internal/domain"
)

const (
	defaultDir   = "./wal/portfolio"
	segmentLimit = 1000
	maxSegments  = 100
	keyPrefix    = "portfolio:"
)

var errNotInitialized = errors.New("portfolio snapshot journal is not initialized")

// WALStore appends one record per observed snapshot, keyed by phase.
type WALStore struct {
	mu  sync.Mutex
	wal *gowal.Wal
}

// NewWALStore opens the journal under dir, recovering records written by earlier runs.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultDir
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "portfolio_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open portfolio journal in %s", dir)
	}

	return &WALStore{wal: wal}, nil
}

// Save appends snapshot. The phase is part of the record key and is required.
func (s *WALStore) Save(snapshot domain.PortfolioSnapshot) error {
	if s == nil || s.wal == nil {
		return errNotInitialized
	}
	if snapshot.Phase != domain.PhasePre && snapshot.Phase != domain.PhasePost {
		return errors.Errorf("unknown snapshot phase %q", snapshot.Phase)
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "encode portfolio snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wal.Write(s.wal.CurrentIndex()+1, keyPrefix+snapshot.Phase, payload); err != nil {
		return errors.Wrapf(err, "append %s snapshot of cycle %s", snapshot.Phase, snapshot.CycleID)
	}
	return nil
}

// Last returns the newest journaled snapshot of phase, or nil when there is none.
// Segments rotated out of the journal are not visible.
func (s *WALStore) Last(phase string) (*domain.PortfolioSnapshot, error) {
	if s == nil || s.wal == nil {
		return nil, errNotInitialized
	}

	var last *gowal.Record
	for record := range s.wal.Iterator() {
		if record.Key != keyPrefix+phase {
			continue
		}
		r := record
		last = &r
	}
	if last == nil {
		return nil, nil
	}

	var snapshot domain.PortfolioSnapshot
	if err := json.Unmarshal(last.Value, &snapshot); err != nil {
		return nil, errors.Wrapf(err, "decode portfolio snapshot at index %d", last.Index)
	}
	return &snapshot, nil
}

// Close flushes and closes the journal.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errNotInitialized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
