// Package duration parses the short duration tokens used by moderation and
// scheduling commands.
package duration

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	singleUnit = regexp.MustCompile(`(?i)^\s*(\d+)\s*([smhd])\s*$`)
	compound   = regexp.MustCompile(`^(?:(\d+)h)?(?:(\d+)m)?$`)
)

var units = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// Parse accepts a single "<n><unit>" token such as 10s, 5m, 2h or 1d.
// The second result is false for empty, malformed, zero or overflowing input.
func Parse(text string) (time.Duration, bool) {
	match := singleUnit.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return scale(n, units[strings.ToLower(match[2])])
}

// ParseCompound accepts "<n>h<n>m" where either part may be omitted, e.g.
// 1h30m, 2h or 45m.
func ParseCompound(text string) (time.Duration, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return 0, false
	}
	match := compound.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	var total time.Duration
	for i, unit := range []time.Duration{time.Hour, time.Minute} {
		raw := match[i+1]
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, false
		}
		part, ok := scale(n, unit)
		if !ok && n != 0 {
			return 0, false
		}
		if total > math.MaxInt64-part {
			return 0, false
		}
		total += part
	}
	if total <= 0 {
		return 0, false
	}
	return total, true
}

// Format renders d the way users type it, largest units first.
func Format(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	var b strings.Builder
	for _, step := range []struct {
		unit   time.Duration
		suffix string
	}{{24 * time.Hour, "d"}, {time.Hour, "h"}, {time.Minute, "m"}, {time.Second, "s"}} {
		if n := d / step.unit; n > 0 {
			b.WriteString(strconv.FormatInt(int64(n), 10))
			b.WriteString(step.suffix)
			d -= n * step.unit
		}
	}
	if b.Len() == 0 {
		return "0s"
	}
	return b.String()
}

func scale(n int64, unit time.Duration) (time.Duration, bool) {
	if n <= 0 || n > math.MaxInt64/int64(unit) {
		return 0, false
	}
	return time.Duration(n) * unit, true
}
