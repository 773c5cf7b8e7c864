package jobs

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/siftlabs/sift/internal/types"
)

// Manager owns the job table. All mutations of a job funnel through it
// under a per-job lock, so concurrent progress updates and a
// cancellation cannot interleave into an inconsistent state; the table
// itself supports concurrent status polling during updates.
type Manager struct {
	mu     sync.RWMutex
	jobs   map[string]*jobEntry
	logger *slog.Logger
	now    func() time.Time
}

type jobEntry struct {
	mu     sync.Mutex
	record Record
}

// NewManager creates an empty job manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		jobs:   make(map[string]*jobEntry),
		logger: logger,
		now:    time.Now,
	}
}

// Create allocates a new job record in StatusPending and returns its id.
func (m *Manager) Create(categories []types.Category, provider, model string, totalRows int) string {
	record := Record{
		ID:         uuid.New().String(),
		Status:     StatusPending,
		CreatedAt:  m.now().UTC(),
		TotalRows:  totalRows,
		Categories: categories,
		Provider:   provider,
		Model:      model,
	}

	m.mu.Lock()
	m.jobs[record.ID] = &jobEntry{record: record}
	m.mu.Unlock()

	m.logger.Info("job created", "job_id", record.ID, "provider", provider, "model", model, "total_rows", totalRows)
	return record.ID
}

// Get returns a copy of the job record.
func (m *Manager) Get(jobID string) (Record, bool) {
	entry, ok := m.entry(jobID)
	if !ok {
		return Record{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return cloneRecord(entry.record), true
}

// List returns copies of all job records, newest first.
func (m *Manager) List() []Record {
	m.mu.RLock()
	entries := make([]*jobEntry, 0, len(m.jobs))
	for _, e := range m.jobs {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		records = append(records, cloneRecord(e.record))
		e.mu.Unlock()
	}
	sortRecordsByCreation(records)
	return records
}

// UpdateProgress moves a job into StatusProcessing (setting StartedAt
// on the first transition) and records row progress. ProgressPercent is
// always recomputed from ProcessedRows. Returns false when the job is
// unknown; callers must check. A job already in a terminal state is
// left untouched so a progress update can never overwrite a
// cancellation.
func (m *Manager) UpdateProgress(jobID string, processedRows int, currentRowID string) bool {
	entry, ok := m.entry(jobID)
	if !ok {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.record.Status.Terminal() {
		return false
	}

	if entry.record.Status != StatusProcessing {
		entry.record.Status = StatusProcessing
		if entry.record.StartedAt == nil {
			now := m.now().UTC()
			entry.record.StartedAt = &now
		}
	}

	if processedRows < 0 {
		processedRows = 0
	}
	if processedRows > entry.record.TotalRows {
		processedRows = entry.record.TotalRows
	}
	entry.record.ProcessedRows = processedRows
	entry.record.CurrentRowID = currentRowID
	if entry.record.TotalRows > 0 {
		entry.record.ProgressPercent = float64(processedRows) / float64(entry.record.TotalRows) * 100
	}
	return true
}

// Complete moves a job into a terminal success/failure state. Only
// StatusCompleted and StatusFailed are valid; anything else is refused,
// as is completing a job that is already terminal.
func (m *Manager) Complete(jobID string, status Status) bool {
	if status != StatusCompleted && status != StatusFailed {
		return false
	}
	entry, ok := m.entry(jobID)
	if !ok {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.record.Status.Terminal() {
		return false
	}

	entry.record.Status = status
	entry.record.CurrentRowID = ""
	now := m.now().UTC()
	entry.record.CompletedAt = &now

	m.logger.Info("job completed", "job_id", jobID, "status", status,
		"processed_rows", entry.record.ProcessedRows, "total_rows", entry.record.TotalRows)
	return true
}

// Cancel requests cancellation. It succeeds only while the job is
// pending or processing; a second attempt, or cancellation of a
// completed/failed job, returns false and leaves state unchanged.
func (m *Manager) Cancel(jobID string) bool {
	entry, ok := m.entry(jobID)
	if !ok {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.record.Status != StatusPending && entry.record.Status != StatusProcessing {
		return false
	}

	entry.record.Status = StatusCancelled
	now := m.now().UTC()
	entry.record.CompletedAt = &now

	m.logger.Info("job cancelled", "job_id", jobID, "processed_rows", entry.record.ProcessedRows)
	return true
}

// IsCancelled reports whether cancellation has been requested. The
// processor checks this between rows; cancellation is cooperative,
// never preemptive.
func (m *Manager) IsCancelled(jobID string) bool {
	entry, ok := m.entry(jobID)
	if !ok {
		return false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.record.Status == StatusCancelled
}

// AppendError records a job-level error message.
func (m *Manager) AppendError(jobID string, msg string) bool {
	entry, ok := m.entry(jobID)
	if !ok {
		return false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.record.Errors = append(entry.record.Errors, msg)
	return true
}

func (m *Manager) entry(jobID string) (*jobEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.jobs[jobID]
	return e, ok
}

func cloneRecord(r Record) Record {
	out := r
	out.Categories = append([]types.Category(nil), r.Categories...)
	out.Errors = append([]string(nil), r.Errors...)
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

func sortRecordsByCreation(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
