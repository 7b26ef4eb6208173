package facts

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Record is one raw row as returned by a tabular source. Values are
// whatever the source decoded: strings, float64/int, bool, time.Time or nil.
type Record map[string]any

// Field is an ordered list of accepted column names for one logical field
type Field []string

// Logical fields shared by the event categories
var (
	FieldCampaign    = Field{"Campaign", "CampaignName", "Program", "Queue"}
	FieldAgent       = Field{"ToSFUser", "Agent", "UserName", "Owner", "AgentName", "CoacheeName"}
	FieldDepartment  = Field{"Department", "Dept", "BusinessUnit"}
	FieldTalkTime    = Field{"TalkTimeMinutes", "TalkMinutes", "TalkTime", "CallDurationMin"}
	FieldCSAT        = Field{"CSAT", "CSATScore", "Satisfaction", "CustomerSatisfaction"}
	FieldWrapup      = Field{"WrapupLabel", "Wrapup", "Disposition", "Outcome"}
	FieldDuration    = Field{"DurationMin", "DurationMinutes", "Minutes", "Duration"}
	FieldQAPercent   = Field{"Percentage", "QAScore", "FinalScore", "Score"}
	FieldTaskStatus  = Field{"Status", "TaskStatus", "State"}
	FieldRating      = Field{"Rating", "FeedbackScore", "Score"}
	FieldCategory    = Field{"Category", "OKRCategory"}
	FieldMetric      = Field{"Metric", "MetricName", "KPI"}
	FieldTarget      = Field{"Target", "TargetValue", "Goal"}
	FieldDeadline    = Field{"Deadline", "DueDate", "TargetDate", "EndDate"}
	FieldPeriod      = Field{"Period", "PeriodID"}
	FieldGranularity = Field{"Granularity"}
)

// DateFields lists the activity-date aliases per event category
var DateFields = map[EventCategory]Field{
	CategoryCalls:      {"CallDate", "Date", "Timestamp", "CreatedAt"},
	CategoryAttendance: {"AttendanceDate", "ShiftDate", "Date", "Timestamp"},
	CategoryQuality:    {"AuditDate", "EvaluationDate", "CallDate", "Date", "Timestamp"},
	CategoryTasks:      {"CompletedDate", "CompletedAt", "DueDate", "Date", "CreatedAt"},
	CategoryCoaching:   {"SessionDate", "CoachingDate", "Date", "Timestamp"},
	CategoryGoals:      {"Deadline", "DueDate", "TargetDate", "EndDate"},
}

// Table is a batch of rows read from one source, with a normalized column
// index built once for the whole batch.
type Table struct {
	Rows []Record

	// normalized column name -> original column names seen in the batch
	columns map[string][]string
}

// NewTable indexes the column names of rows
func NewTable(rows []Record) *Table {
	columns := make(map[string][]string)
	for _, row := range rows {
		for key := range row {
			norm := normalizeKey(key)
			if !containsString(columns[norm], key) {
				columns[norm] = append(columns[norm], key)
			}
		}
	}
	return &Table{Rows: rows, columns: columns}
}

// Len returns the number of rows in the batch
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Resolve returns the first non-empty value of field in row, trying aliases in order
func (t *Table) Resolve(row Record, field Field) (any, bool) {
	for _, alias := range field {
		for _, key := range t.columns[normalizeKey(alias)] {
			v, ok := row[key]
			if ok && !isEmpty(v) {
				return v, true
			}
		}
	}
	return nil, false
}

// String resolves field as a trimmed string ("" when absent)
func (t *Table) String(row Record, field Field) string {
	v, ok := t.Resolve(row, field)
	if !ok {
		return ""
	}
	return AsString(v)
}

// Number resolves field as a finite float64
func (t *Table) Number(row Record, field Field) (float64, bool) {
	v, ok := t.Resolve(row, field)
	if !ok {
		return 0, false
	}
	return AsNumber(v)
}

// Time resolves field as a timestamp
func (t *Table) Time(row Record, field Field) (time.Time, bool) {
	v, ok := t.Resolve(row, field)
	if !ok {
		return time.Time{}, false
	}
	return AsTime(v)
}

// Columns returns the original column names whose normalized form starts with prefix
func (t *Table) Columns(prefix string) []string {
	prefix = normalizeKey(prefix)
	var out []string
	for norm, keys := range t.columns {
		if strings.HasPrefix(norm, prefix) {
			out = append(out, keys...)
		}
	}
	return out
}

// AsString renders v as a trimmed string
func AsString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return ""
	}
}

// AsNumber coerces v into a finite float64. Strings may carry a trailing "%".
func AsNumber(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case int32:
		f = float64(val)
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(val), "%")
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// AsTime coerces v into a UTC timestamp. Strings without a zone are read as UTC.
func AsTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return time.Time{}, false
		}
		return val.UTC(), true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
