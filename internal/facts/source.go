package facts

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// EventCategory names one tabular source ("sheet") of raw rows
type EventCategory string

const (
	CategoryCalls      EventCategory = "calls"
	CategoryAttendance EventCategory = "attendance"
	CategoryQuality    EventCategory = "quality"
	CategoryTasks      EventCategory = "tasks"
	CategoryCoaching   EventCategory = "coaching"
	CategoryGoals      EventCategory = "goals"

	// CategoryCampaigns is the campaign directory (campaign -> department)
	CategoryCampaigns EventCategory = "campaigns"
	// CategoryLegacy is the flat pre-aggregated sheet used when the primary pipeline fails
	CategoryLegacy EventCategory = "okr_legacy"
)

// ActivityCategories are the event sources folded by the aggregator, in read order
var ActivityCategories = []EventCategory{
	CategoryCalls,
	CategoryAttendance,
	CategoryQuality,
	CategoryTasks,
	CategoryCoaching,
}

// AllCategories lists every table a source may be asked for
var AllCategories = []EventCategory{
	CategoryCalls,
	CategoryAttendance,
	CategoryQuality,
	CategoryTasks,
	CategoryCoaching,
	CategoryGoals,
	CategoryCampaigns,
	CategoryLegacy,
}

// ErrSourceNotFound is returned by a Source when the table for a category does not exist
var ErrSourceNotFound = errors.New("source not found")

// Source is the external tabular data store
type Source interface {
	ReadEventRows(ctx context.Context, category EventCategory) ([]Record, error)
}

// Reader is the fact reader the scoring pipeline is written against.
// Missing tables read as empty.
type Reader struct {
	source Source
	logger zerolog.Logger
}

// NewReader creates a new Reader over source
func NewReader(source Source, logger zerolog.Logger) *Reader {
	return &Reader{
		source: source,
		logger: logger.With().Str("component", "fact_reader").Logger(),
	}
}

// ReadEventRows reads every row of category into an indexed table
func (r *Reader) ReadEventRows(ctx context.Context, category EventCategory) (*Table, error) {
	rows, err := r.source.ReadEventRows(ctx, category)
	if err != nil {
		if errors.Is(err, ErrSourceNotFound) {
			r.logger.Debug().Str("category", string(category)).Msg("source missing, treating as empty")
			return NewTable(nil), nil
		}
		return nil, fmt.Errorf("failed to read %s rows: %w", category, err)
	}
	return NewTable(rows), nil
}

// CampaignToDepartment returns the campaign directory as campaign name -> department
func (r *Reader) CampaignToDepartment(ctx context.Context) (map[string]string, error) {
	table, err := r.ReadEventRows(ctx, CategoryCampaigns)
	if err != nil {
		return nil, err
	}

	directory := make(map[string]string, table.Len())
	for _, row := range table.Rows {
		campaign := table.String(row, Field{"Campaign", "CampaignName", "Name"})
		if campaign == "" {
			continue
		}
		directory[campaign] = table.String(row, FieldDepartment)
	}
	return directory, nil
}
