package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/dennisdiepolder/monti/okr/internal/facts"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// rowIDColumns are the source columns reused as row ids when present
var rowIDColumns = facts.Field{facts.RowKeyAttribute, "ID", "Id"}

// Loader copies every category table of a source into a sink
type Loader struct {
	source facts.Source
	sink   RecordSink
	logger zerolog.Logger
}

// NewLoader creates a new Loader
func NewLoader(source facts.Source, sink RecordSink, logger zerolog.Logger) *Loader {
	return &Loader{
		source: source,
		sink:   sink,
		logger: logger.With().Str("component", "loader").Logger(),
	}
}

// Load copies the given categories and returns the number of rows written per
// category. Categories missing from the source are skipped.
func (l *Loader) Load(ctx context.Context, categories []facts.EventCategory) (map[facts.EventCategory]int, error) {
	written := make(map[facts.EventCategory]int, len(categories))

	for _, category := range categories {
		rows, err := l.source.ReadEventRows(ctx, category)
		if errors.Is(err, facts.ErrSourceNotFound) {
			l.logger.Debug().Str("category", string(category)).Msg("category not in source, skipping")
			continue
		}
		if err != nil {
			return written, fmt.Errorf("failed to read %s: %w", category, err)
		}
		if len(rows) == 0 {
			continue
		}

		table := facts.NewTable(rows)
		ids := make([]string, len(rows))
		for i, row := range rows {
			ids[i] = table.String(row, rowIDColumns)
			if ids[i] == "" {
				ids[i] = uuid.NewString()
			}
		}

		if err := l.sink.PutRecords(ctx, category, ids, rows); err != nil {
			return written, err
		}
		written[category] = len(rows)

		l.logger.Info().
			Str("category", string(category)).
			Int("rows", len(rows)).
			Msg("category loaded")
	}

	return written, nil
}
