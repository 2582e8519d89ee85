// Package countdown reads a numeric countdown from a screen region.
package countdown

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
)

// MaxSeconds is the longest countdown a format accepts. Larger totals are
// treated as misreads.
const MaxSeconds = math.MaxInt32

// Arity tags a time format by how many numeric groups it captures and
// therefore how those groups convert to seconds.
type Arity int

const (
	AritySeconds Arity = iota + 1 // s
	ArityMS                       // m, s
	ArityHMS                      // h, m, s
)

func (a Arity) String() string {
	switch a {
	case AritySeconds:
		return "seconds"
	case ArityMS:
		return "minutes:seconds"
	case ArityHMS:
		return "hours:minutes:seconds"
	default:
		return fmt.Sprintf("Arity(%d)", int(a))
	}
}

// Groups is the number of capture groups a pattern of this arity defines.
func (a Arity) Groups() int { return int(a) }

// ToSeconds converts captured groups to total seconds. len(groups) must equal
// a.Groups().
func (a Arity) ToSeconds(groups []int) int {
	wide := make([]int64, len(groups))
	for i, g := range groups {
		wide[i] = int64(g)
	}
	return int(a.toSeconds(wide))
}

func (a Arity) toSeconds(groups []int64) int64 {
	switch a {
	case ArityHMS:
		return groups[0]*3600 + groups[1]*60 + groups[2]
	case ArityMS:
		return groups[0]*60 + groups[1]
	case AritySeconds:
		return groups[0]
	default:
		panic(fmt.Sprintf("countdown: unknown arity %d", int(a)))
	}
}

// TimeFormat is a compiled countdown pattern with its conversion rule.
type TimeFormat struct {
	Pattern string
	Arity   Arity
	re      *regexp.Regexp
}

// NewTimeFormat compiles pattern and derives its arity from the number of
// capture groups. Patterns with fewer than 1 or more than 3 groups are rejected.
func NewTimeFormat(pattern string) (TimeFormat, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return TimeFormat{}, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	n := re.NumSubexp()
	if n < 1 || n > 3 {
		return TimeFormat{}, fmt.Errorf("pattern %q has %d capture groups, want 1 to 3", pattern, n)
	}
	return TimeFormat{Pattern: pattern, Arity: Arity(n), re: re}, nil
}

// MustTimeFormat is like NewTimeFormat but panics on error.
func MustTimeFormat(pattern string) TimeFormat {
	f, err := NewTimeFormat(pattern)
	if err != nil {
		panic(err)
	}
	return f
}

// Match looks for the pattern in text and converts the groups to seconds.
// matched is false when the pattern does not occur, a group is not a
// non-negative integer, or the total exceeds MaxSeconds.
func (f TimeFormat) Match(text string) (seconds int, matched bool) {
	if f.re == nil {
		return 0, false
	}
	m := f.re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	groups := make([]int64, 0, len(m)-1)
	for _, g := range m[1:] {
		// 32-bit groups keep the int64 total below overflow
		v, err := strconv.ParseInt(g, 10, 32)
		if err != nil || v < 0 {
			return 0, false
		}
		groups = append(groups, v)
	}
	total := f.Arity.toSeconds(groups)
	if total > MaxSeconds {
		return 0, false
	}
	return int(total), true
}

func (f TimeFormat) String() string { return f.Pattern }

// CompileFormats compiles patterns in order, failing on the first bad one.
func CompileFormats(patterns []string) ([]TimeFormat, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("no countdown formats")
	}
	out := make([]TimeFormat, 0, len(patterns))
	for _, p := range patterns {
		f, err := NewTimeFormat(p)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// ValidatePatterns returns the candidates that compile into a usable format,
// logging each rejection.
func ValidatePatterns(candidates []string) []string {
	valid := make([]string, 0, len(candidates))
	for _, p := range candidates {
		if _, err := NewTimeFormat(p); err != nil {
			slog.Warn("rejected countdown format", "pattern", p, "error", err)
			continue
		}
		valid = append(valid, p)
	}
	return valid
}

// DefaultPatterns are tried in this order: h:mm:ss, m分ss秒, n秒.
var DefaultPatterns = []string{
	`(\d{1,2}):(\d{2}):(\d{2})`,
	`(\d{1,2})分(\d{2})秒`,
	`(\d+)秒`,
}
