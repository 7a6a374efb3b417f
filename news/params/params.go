// Package params parses command flags and the time filters users type in.
package params

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the only accepted date format.
const DateLayout = "2006-01-02"

var (
	// ErrInvalidWhen reports a relative time outside the <n><h|d|m> grammar.
	ErrInvalidWhen = errors.New("invalid relative time")
	// ErrInvalidDate reports a date that is not strict YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")
	// ErrDateRange reports a from date after the to date.
	ErrDateRange = errors.New("from date is after to date")
	// ErrInvalidDays reports a non-numeric day filter.
	ErrInvalidDays = errors.New("invalid number of days")

	whenRe = regexp.MustCompile(`^([0-9]+)([hdm])$`)
)

// ExtractFlags scans text for "-x value" tokens and returns the values of the known flags.
// A flag token is "-" followed by a letter and word characters; its value is every
// following token up to the next flag token. Unknown flags are dropped.
func ExtractFlags(text string, known ...string) map[string]string {
	allowed := make(map[string]struct{}, len(known))
	for _, k := range known {
		allowed[k] = struct{}{}
	}

	out := make(map[string]string)
	var (
		name  string
		value []string
		open  bool
	)
	flush := func() {
		if !open {
			return
		}
		if _, ok := allowed[name]; ok {
			out[name] = strings.Join(value, " ")
		}
		open = false
		value = nil
	}
	for _, tok := range strings.Fields(text) {
		if flag, ok := flagName(tok); ok {
			flush()
			name, open = flag, true
			continue
		}
		if open {
			value = append(value, tok)
		}
	}
	flush()
	return out
}

func flagName(tok string) (string, bool) {
	if len(tok) < 2 || tok[0] != '-' {
		return "", false
	}
	name := tok[1:]
	if !isLetter(rune(name[0])) {
		return "", false
	}
	for _, r := range name {
		if !isLetter(r) && !(r >= '0' && r <= '9') && r != '_' {
			return "", false
		}
	}
	return name, true
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// ValidateWhen checks a relative time such as "12h", "5d" or "2m".
func ValidateWhen(s string) error {
	m := whenRe.FindStringSubmatch(s)
	if m == nil {
		return ErrInvalidWhen
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return ErrInvalidWhen
	}
	return nil
}

// ParseDate parses a strict YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// ValidateRange parses both dates and requires from <= to.
func ValidateRange(from, to string) error {
	f, err := ParseDate(from)
	if err != nil {
		return err
	}
	t, err := ParseDate(to)
	if err != nil {
		return err
	}
	if f.After(t) {
		return ErrDateRange
	}
	return nil
}

// ParseDays parses the day filter of -f. Negative values floor at 0.
func ParseDays(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, ErrInvalidDays
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}
