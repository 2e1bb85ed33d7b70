package textbook

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Status is the lifecycle state of a textbook record.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Textbook is one uploaded volume and its processing state.
type Textbook struct {
	ID         string
	Subject    string
	Title      string
	Filename   string
	SizeBytes  int64
	Status     Status
	Error      string
	UploadedAt time.Time
	UpdatedAt  time.Time
}

// Store persists textbook records.
type Store interface {
	Put(ctx context.Context, tb Textbook) error
	Get(ctx context.Context, id string) (Textbook, error)
	List(ctx context.Context) ([]Textbook, error)
}

// Processor extracts and indexes a textbook's content. Process is called
// once per upload; the returned error marks the record failed.
type Processor interface {
	Process(ctx context.Context, tb Textbook) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Textbook
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Textbook)}
}

func (s *MemoryStore) Put(ctx context.Context, tb Textbook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[tb.ID] = tb
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Textbook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tb, ok := s.records[id]
	if !ok {
		return Textbook{}, ErrNotFound
	}
	return tb, nil
}

// List returns records ordered by upload time, oldest first.
func (s *MemoryStore) List(ctx context.Context) ([]Textbook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Textbook, 0, len(s.records))
	for _, tb := range s.records {
		out = append(out, tb)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})
	return out, nil
}

// Service manages textbook uploads and their processing lifecycle.
type Service struct {
	store     Store
	processor Processor
	now       func() time.Time
}

// NewService builds a Service over the given store and processor. A nil
// processor leaves uploads in the uploaded state.
func NewService(store Store, processor Processor) *Service {
	return &Service{store: store, processor: processor, now: time.Now}
}

// Upload registers a new textbook and runs it through the processor. The
// record ends up completed or failed; with no processor configured it
// stays uploaded.
func (s *Service) Upload(ctx context.Context, subject, title, filename string, sizeBytes int64) (Textbook, error) {
	if filename == "" || sizeBytes <= 0 {
		return Textbook{}, ErrEmptyUpload
	}

	now := s.now()
	tb := Textbook{
		ID:         uuid.New().String(),
		Subject:    subject,
		Title:      title,
		Filename:   filename,
		SizeBytes:  sizeBytes,
		Status:     StatusUploaded,
		UploadedAt: now,
		UpdatedAt:  now,
	}
	if err := s.store.Put(ctx, tb); err != nil {
		return Textbook{}, fmt.Errorf("failed to store upload: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Service.Upload",
		"id":       tb.ID,
		"filename": filename,
		"size":     sizeBytes,
	}).Info("Textbook uploaded")

	if s.processor == nil {
		return tb, nil
	}
	return s.process(ctx, tb)
}

func (s *Service) process(ctx context.Context, tb Textbook) (Textbook, error) {
	tb.Status = StatusProcessing
	tb.Error = ""
	tb.UpdatedAt = s.now()
	if err := s.store.Put(ctx, tb); err != nil {
		return Textbook{}, fmt.Errorf("failed to mark processing: %w", err)
	}

	if err := s.processor.Process(ctx, tb); err != nil {
		tb.Status = StatusFailed
		tb.Error = err.Error()
		tb.UpdatedAt = s.now()
		logrus.WithFields(logrus.Fields{
			"function": "Service.process",
			"id":       tb.ID,
			"error":    err.Error(),
		}).Error("Textbook processing failed")
		if putErr := s.store.Put(ctx, tb); putErr != nil {
			return Textbook{}, fmt.Errorf("failed to mark failed: %w", putErr)
		}
		return tb, nil
	}

	tb.Status = StatusCompleted
	tb.UpdatedAt = s.now()
	if err := s.store.Put(ctx, tb); err != nil {
		return Textbook{}, fmt.Errorf("failed to mark completed: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"function": "Service.process",
		"id":       tb.ID,
	}).Info("Textbook processing completed")
	return tb, nil
}

// Get returns one record by ID.
func (s *Service) Get(ctx context.Context, id string) (Textbook, error) {
	return s.store.Get(ctx, id)
}

// List returns all records.
func (s *Service) List(ctx context.Context) ([]Textbook, error) {
	return s.store.List(ctx)
}

// RetryProcessing resets a failed record back to processing. The pipeline
// has no requeue mechanism, so only the status changes; the returned error
// is always ErrRetryUnsupported wrapped with the record ID so callers can
// surface the limitation.
func (s *Service) RetryProcessing(ctx context.Context, id string) (Textbook, error) {
	tb, err := s.store.Get(ctx, id)
	if err != nil {
		return Textbook{}, err
	}

	tb.Status = StatusProcessing
	tb.Error = ""
	tb.UpdatedAt = s.now()
	if err := s.store.Put(ctx, tb); err != nil {
		return Textbook{}, fmt.Errorf("failed to reset status: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Service.RetryProcessing",
		"id":       id,
	}).Warn("Retry resets status only; work is not requeued")

	return tb, fmt.Errorf("textbook %s: %w", id, ErrRetryUnsupported)
}
