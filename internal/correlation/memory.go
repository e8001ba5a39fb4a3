package correlation

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryStore is the default in-process Store. Records do not survive a
// restart; a job in flight at that moment becomes unroutable.
type MemoryStore struct {
	mu       sync.Mutex
	records  map[string]Record
	ttl      time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates an in-memory store. When ttl is positive a
// background sweeper evicts records older than ttl, covering jobs whose
// callback never arrives.
func NewMemoryStore(ttl time.Duration, logger *slog.Logger) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]Record),
		ttl:     ttl,
		logger:  logger,
		stop:    make(chan struct{}),
	}

	if ttl > 0 {
		go s.sweepLoop()
	}

	return s
}

func (s *MemoryStore) Register(_ context.Context, jobID, destination string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[jobID]; ok {
		return ErrAlreadyExists
	}

	s.records[jobID] = Record{
		JobID:       jobID,
		Destination: destination,
		CreatedAt:   time.Now(),
	}

	return nil
}

func (s *MemoryStore) ResolveAndRemove(_ context.Context, jobID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[jobID]
	if !ok {
		return "", ErrNotFound
	}

	delete(s.records, jobID)
	return rec.Destination, nil
}

func (s *MemoryStore) Remove(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[jobID]; !ok {
		return ErrNotFound
	}

	delete(s.records, jobID)
	return nil
}

// Len returns the number of live records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Close stops the TTL sweeper.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

func (s *MemoryStore) sweepLoop() {
	interval := s.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

// sweep evicts records older than the TTL. Evicted jobs are permanently
// unroutable; a late callback for one is acknowledged as unknown.
func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range s.records {
		if now.Sub(rec.CreatedAt) > s.ttl {
			delete(s.records, id)
			s.logger.Warn("Evicting expired job record",
				slog.String("job_id", id),
				slog.Time("created_at", rec.CreatedAt),
			)
		}
	}
}
