package facts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// MemorySource keeps tables in process. Used for local development and tests.
type MemorySource struct {
	tables map[EventCategory][]Record
	mu     sync.RWMutex
}

// NewMemorySource creates an empty in-memory source
func NewMemorySource() *MemorySource {
	return &MemorySource{
		tables: make(map[EventCategory][]Record),
	}
}

// LoadMemorySource reads a JSON fixture of the form {"calls": [{...}], "goals": [...]}
func LoadMemorySource(path string) (*MemorySource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}

	var raw map[EventCategory][]Record
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}

	src := NewMemorySource()
	for category, rows := range raw {
		src.Set(category, rows)
	}
	return src, nil
}

// Set replaces the rows of category
func (s *MemorySource) Set(category EventCategory, rows []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[category] = rows
}

// Append adds rows to category, creating the table if needed
func (s *MemorySource) Append(category EventCategory, rows ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[category] = append(s.tables[category], rows...)
}

// ReadEventRows returns a copy of the rows of category
func (s *MemorySource) ReadEventRows(ctx context.Context, category EventCategory) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.tables[category]
	if !ok {
		return nil, ErrSourceNotFound
	}
	out := make([]Record, len(rows))
	copy(out, rows)
	return out, nil
}

// PutRecords appends rows to category. Row ids are not kept.
func (s *MemorySource) PutRecords(ctx context.Context, category EventCategory, rowIDs []string, rows []Record) error {
	if len(rowIDs) != len(rows) {
		return fmt.Errorf("row ids (%d) and rows (%d) differ in length", len(rowIDs), len(rows))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Append(category, rows...)
	return nil
}
