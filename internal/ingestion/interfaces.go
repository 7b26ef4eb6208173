package ingestion

import (
	"context"

	"github.com/dennisdiepolder/monti/okr/internal/facts"
)

// RecordSink stores raw rows of one event category (DynamoDB tables, memory)
type RecordSink interface {
	PutRecords(ctx context.Context, category facts.EventCategory, rowIDs []string, rows []facts.Record) error
}
