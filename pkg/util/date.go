package util

import (
    "strconv"
    "time"
)

// ParseTime tries RFC3339, RFC3339Nano, date-only and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    if t, err := time.Parse(time.RFC3339, s); err == nil {
        return t, true
    }
    if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
        return t, true
    }
    if t, err := time.Parse(time.DateOnly, s); err == nil {
        return t, true
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        return time.Unix(ts, 0), true
    }
    return time.Time{}, false
}

// ParsePeriod converts a period code into a half-open UTC range [from, to).
// Supported codes are YYYY (a calendar year) and YYYYQn (a quarter).
func ParsePeriod(code string) (time.Time, time.Time, bool) {
    switch len(code) {
    case 4:
        year, ok := parseYear(code)
        if !ok {
            return time.Time{}, time.Time{}, false
        }
        from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
        return from, from.AddDate(1, 0, 0), true
    case 6:
        year, ok := parseYear(code[:4])
        if !ok || code[4] != 'Q' || code[5] < '1' || code[5] > '4' {
            return time.Time{}, time.Time{}, false
        }
        q := int(code[5] - '0')
        from := time.Date(year, time.Month(3*(q-1)+1), 1, 0, 0, 0, 0, time.UTC)
        return from, from.AddDate(0, 3, 0), true
    default:
        return time.Time{}, time.Time{}, false
    }
}

func parseYear(s string) (int, bool) {
    for _, r := range s {
        if r < '0' || r > '9' {
            return 0, false
        }
    }
    y, err := strconv.Atoi(s)
    if err != nil {
        return 0, false
    }
    return y, true
}
