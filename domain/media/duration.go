package media

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseISODuration converts the provider's ISO-8601 duration strings
// ("PT1H2M3S", "P2DT4H", "PT0S") to total seconds. Weeks and date components
// beyond days do not occur in provider payloads and are rejected.
func ParseISODuration(s string) (int64, error) {
	orig := s
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("duration %q: missing P prefix", orig)
	}
	s = s[1:]

	datePart := s
	timePart := ""
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		datePart, timePart = s[:i], s[i+1:]
		if timePart == "" {
			return 0, fmt.Errorf("duration %q: empty time section", orig)
		}
	}
	if datePart == "" && timePart == "" {
		return 0, fmt.Errorf("duration %q: empty", orig)
	}

	var total int64
	var err error
	if total, err = parseDurationPart(datePart, map[byte]int64{'D': 86400}, orig); err != nil {
		return 0, err
	}
	t, err := parseDurationPart(timePart, map[byte]int64{'H': 3600, 'M': 60, 'S': 1}, orig)
	if err != nil {
		return 0, err
	}
	return total + t, nil
}

func parseDurationPart(s string, units map[byte]int64, orig string) (int64, error) {
	var total int64
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			continue
		}
		mult, ok := units[c]
		if !ok {
			return 0, fmt.Errorf("duration %q: unexpected designator %q", orig, string(c))
		}
		if start == i {
			return 0, fmt.Errorf("duration %q: designator %q without digits", orig, string(c))
		}
		n, err := strconv.ParseInt(s[start:i], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("duration %q: %v", orig, err)
		}
		total += n * mult
		start = i + 1
	}
	if start != len(s) {
		return 0, fmt.Errorf("duration %q: trailing digits without designator", orig)
	}
	return total, nil
}
