package core

import (
	"strconv"
	"strings"
	"time"
)

// Month is a calendar month, 1 (January) through 12 (December).
type Month int

func (m Month) Valid() bool {
	return m >= 1 && m <= 12
}

func (m Month) String() string {
	if !m.Valid() {
		return "Month(" + strconv.Itoa(int(m)) + ")"
	}
	return time.Month(m).String()
}

// ParseMonth parses a month query value. It accepts "3", "03", "March" and
// "mar" (case-insensitive). The boolean reports whether a value was present;
// an empty string yields (0, false, nil).
func ParseMonth(s string) (Month, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}

	if n, err := strconv.Atoi(s); err == nil {
		m := Month(n)
		if !m.Valid() {
			return 0, true, ErrInvalidMonth
		}
		return m, true, nil
	}

	lower := strings.ToLower(s)
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if lower == name || lower == name[:3] {
			return Month(m), true, nil
		}
	}
	return 0, true, ErrInvalidMonth
}
