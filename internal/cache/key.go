package cache

import (
	"net/url"
	"strings"

	"github.com/dennisdiepolder/monti/okr/internal/types"
)

// KeyVersion is bumped whenever the cached payload shape changes
const KeyVersion = "v1"

// Key builds the cache key of one scorecard request:
// okr:v1:<granularity>:<period>:<agent>:<campaign>:<department>
func Key(g types.Granularity, periodID string, filter types.Filter) string {
	return strings.Join([]string{
		"okr",
		KeyVersion,
		escape(string(g)),
		escape(periodID),
		escape(filter.Agent),
		escape(filter.Campaign),
		escape(filter.Department),
	}, ":")
}

// GranularityPrefix is the key prefix shared by every request of g
func GranularityPrefix(g types.Granularity) string {
	return "okr:" + KeyVersion + ":" + escape(string(g)) + ":"
}

// escape keeps separators and glob characters out of key components
func escape(s string) string {
	return url.QueryEscape(s)
}
