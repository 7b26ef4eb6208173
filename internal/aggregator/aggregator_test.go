package aggregator

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/okr/internal/facts"
	"github.com/dennisdiepolder/monti/okr/internal/period"
	"github.com/dennisdiepolder/monti/okr/internal/types"
	"github.com/rs/zerolog"
)

func newTestAggregator(src facts.Source) *Aggregator {
	logger := zerolog.New(&bytes.Buffer{})
	clock := func() time.Time { return time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC) }
	return NewAggregator(
		facts.NewReader(src, logger),
		period.NewResolverWithClock(clock, logger),
		Options{},
		logger,
	)
}

func fixtureSource() *facts.MemorySource {
	src := facts.NewMemorySource()
	src.Set(facts.CategoryCampaigns, []facts.Record{
		{"Campaign": "Acme", "Department": "Sales"},
		{"Campaign": "Beta", "Department": "Support"},
		{"Campaign": "Dormant", "Department": "Support"},
	})
	src.Set(facts.CategoryCalls, []facts.Record{
		{"Campaign": "Acme", "Agent": "alice", "CallDate": "2024-03-05T09:00:00Z", "TalkTime": 6, "CSAT": 5, "Wrapup": "Sale closed"},
		{"Campaign": "Acme", "Agent": "bob", "CallDate": "2024-03-07T15:30:00Z", "TalkTime": "4", "CSAT": "n/a", "Wrapup": "callback"},
		{"Campaign": "Acme", "Agent": "alice", "CallDate": "2024-03-12", "TalkTime": 10},
		{"Campaign": "Beta", "Agent": "carol", "CallDate": "2024-03-04", "Wrapup": "RESOLVED"},
		{"Campaign": "", "Agent": "nobody", "CallDate": "2024-03-05"},
		{"Campaign": "Acme", "Agent": "dave"},
		{"Campaign": "Legacy", "Agent": "erin", "CallDate": "2023-01-01"},
	})
	src.Set(facts.CategoryAttendance, []facts.Record{
		{"Campaign": "Acme", "Agent": "alice", "ShiftDate": "2024-03-05", "DurationMin": 480},
	})
	src.Set(facts.CategoryQuality, []facts.Record{
		{"Campaign": "Acme", "Agent": "alice", "AuditDate": "2024-03-06", "Percentage": "90%"},
		{"Campaign": "Acme", "Agent": "bob", "AuditDate": "2024-03-06", "Percentage": 70},
	})
	src.Set(facts.CategoryTasks, []facts.Record{
		{"Campaign": "Acme", "Owner": "alice", "CompletedDate": "2024-03-06", "Status": "Done"},
		{"Campaign": "Acme", "Owner": "alice", "CompletedDate": "2024-03-06", "Status": ""},
		{"Campaign": "Acme", "Owner": "bob", "CompletedDate": "2024-03-06", "Status": "In progress"},
	})
	src.Set(facts.CategoryCoaching, []facts.Record{
		{"Campaign": "Acme", "CoacheeName": "bob", "SessionDate": "2024-03-08", "Rating": 4},
	})
	return src
}

func TestAggregateFoldsAdmittedRows(t *testing.T) {
	agg := newTestAggregator(fixtureSource())

	result, err := agg.Aggregate(context.Background(), types.GranularityWeek, "2024-W10", types.Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := result.CampaignNames(); !reflect.DeepEqual(got, []string{"Acme", "Beta"}) {
		t.Fatalf("expected active campaigns [Acme Beta], got %v", got)
	}

	acme := result.Campaigns["Acme"]
	tests := []struct {
		name string
		got  any
		want any
	}{
		{"calls", acme.Calls, 2},
		{"talk minutes", acme.TalkMinutes, 10.0},
		{"csat sum", acme.CSATSum, 5.0},
		{"csat count", acme.CSATCount, 1},
		{"resolved", acme.Resolved, 1},
		{"attendance", acme.AttendanceMinutes, 480.0},
		{"qa sum", acme.QASum, 160.0},
		{"qa count", acme.QACount, 2},
		{"tasks total", acme.TasksTotal, 3},
		{"tasks completed", acme.TasksCompleted, 2},
		{"feedback sum", acme.FeedbackSum, 4.0},
		{"feedback count", acme.FeedbackCount, 1},
		{"records", acme.Records, 9},
		{"agents", acme.Agents(), []string{"alice", "bob"}},
		{"first activity", acme.FirstActivity, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"last activity", acme.LastActivity, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, tt.got)
			}
		})
	}

	if result.Campaigns["Beta"].Resolved != 1 {
		t.Errorf("expected case-insensitive resolved match for Beta")
	}
	if result.Admitted[facts.CategoryCalls] != 3 {
		t.Errorf("expected 3 admitted calls, got %d", result.Admitted[facts.CategoryCalls])
	}
}

func TestAggregateConsideredCampaigns(t *testing.T) {
	agg := newTestAggregator(fixtureSource())

	result, err := agg.Aggregate(context.Background(), types.GranularityWeek, "2024-W10", types.Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Acme", "Beta", "Dormant", "Legacy"}
	if !reflect.DeepEqual(result.Considered, want) {
		t.Errorf("expected considered %v, got %v", want, result.Considered)
	}
	if _, ok := result.Campaigns["Dormant"]; ok {
		t.Error("campaign without admitted rows must be absent")
	}

	filtered, err := agg.Aggregate(context.Background(), types.GranularityWeek, "2024-W10", types.Filter{Campaign: "Beta"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(filtered.Considered, []string{"Beta"}) {
		t.Errorf("expected considered narrowed to [Beta], got %v", filtered.Considered)
	}
}

func TestAggregateFilters(t *testing.T) {
	tests := []struct {
		name      string
		filter    types.Filter
		campaigns []string
		calls     int
	}{
		{"agent", types.Filter{Agent: "bob"}, []string{"Acme"}, 1},
		{"campaign", types.Filter{Campaign: "Beta"}, []string{"Beta"}, 1},
		{"department", types.Filter{Department: "Support"}, []string{"Beta"}, 1},
		{"no match", types.Filter{Department: "Finance"}, []string{}, 0},
	}

	agg := newTestAggregator(fixtureSource())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := agg.Aggregate(context.Background(), types.GranularityWeek, "2024-W10", tt.filter)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := result.CampaignNames(); !reflect.DeepEqual(got, tt.campaigns) {
				t.Errorf("expected campaigns %v, got %v", tt.campaigns, got)
			}
			if result.Admitted[facts.CategoryCalls] != tt.calls {
				t.Errorf("expected %d admitted calls, got %d", tt.calls, result.Admitted[facts.CategoryCalls])
			}
		})
	}
}

func TestAggregateCustomKeywords(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	clock := func() time.Time { return time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC) }
	agg := NewAggregator(
		facts.NewReader(fixtureSource(), logger),
		period.NewResolverWithClock(clock, logger),
		Options{ResolvedKeywords: []string{" Callback "}},
		logger,
	)

	result, err := agg.Aggregate(context.Background(), types.GranularityWeek, "2024-W10", types.Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.Campaigns["Acme"].Resolved; got != 1 {
		t.Errorf("expected only the callback call to be resolved, got %d", got)
	}
}

func TestAggregateMissingSourcesAreEmpty(t *testing.T) {
	agg := newTestAggregator(facts.NewMemorySource())

	result, err := agg.Aggregate(context.Background(), types.GranularityMonth, "2024-03", types.Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Campaigns) != 0 || result.Goals.Len() != 0 {
		t.Errorf("expected empty result, got %d campaigns", len(result.Campaigns))
	}
}

type brokenSource struct{}

func (brokenSource) ReadEventRows(context.Context, facts.EventCategory) ([]facts.Record, error) {
	return nil, errors.New("sheet service unavailable")
}

func TestAggregateReaderFailure(t *testing.T) {
	agg := newTestAggregator(brokenSource{})

	if _, err := agg.Aggregate(context.Background(), types.GranularityWeek, "2024-W10", types.Filter{}); err == nil {
		t.Fatal("expected reader failure to propagate")
	}
}
