// Package dates implements the textual schedule-date encoding used by the
// visit store: day, three-letter month abbreviation and a 2- or 4-digit year
// separated by dashes (e.g. "5-Jan-2026", "05-jan-26"). Values are parsed
// once at the persistence boundary; all interval arithmetic happens on the
// underlying time.Time. A value that does not parse stays invalid and is
// excluded from grid matching, never coerced to the current date.
package dates

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var monthAbbrev = map[string]time.Month{
	"jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"apr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dec": time.December,
}

// ScheduleDate is a calendar day carried in the d-mmm-y(yyy) wire format.
// The zero value is invalid.
type ScheduleDate struct {
	Time  time.Time
	Valid bool
}

// New builds a valid ScheduleDate truncated to the day in UTC.
func New(t time.Time) ScheduleDate {
	return ScheduleDate{
		Time:  time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
		Valid: true,
	}
}

// Parse decodes the textual format. It fails on anything ambiguous or
// malformed rather than guessing.
func Parse(raw string) (ScheduleDate, error) {
	parts := strings.Split(strings.TrimSpace(raw), "-")
	if len(parts) != 3 {
		return ScheduleDate{}, fmt.Errorf("schedule date %q: expected d-mmm-y parts", raw)
	}

	day, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || day < 1 || day > 31 {
		return ScheduleDate{}, fmt.Errorf("schedule date %q: invalid day", raw)
	}

	monthKey := strings.ToLower(strings.TrimSpace(parts[1]))
	month, ok := monthAbbrev[monthKey]
	if !ok {
		return ScheduleDate{}, fmt.Errorf("schedule date %q: unknown month %q", raw, parts[1])
	}

	yearRaw := strings.TrimSpace(parts[2])
	if len(yearRaw) != 2 && len(yearRaw) != 4 {
		return ScheduleDate{}, fmt.Errorf("schedule date %q: year must be 2 or 4 digits", raw)
	}
	year, err := strconv.Atoi(yearRaw)
	if err != nil || year < 0 {
		return ScheduleDate{}, fmt.Errorf("schedule date %q: invalid year", raw)
	}
	if len(yearRaw) == 2 {
		year += 2000
	}

	candidate := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if candidate.Day() != day || candidate.Month() != month {
		return ScheduleDate{}, fmt.Errorf("schedule date %q: day out of range for month", raw)
	}
	return ScheduleDate{Time: candidate, Valid: true}, nil
}

// String renders the canonical d-Mmm-yyyy form, or empty for invalid dates.
func (d ScheduleDate) String() string {
	if !d.Valid {
		return ""
	}
	return fmt.Sprintf("%d-%s-%04d", d.Time.Day(), d.Time.Format("Jan"), d.Time.Year())
}

// AddDays returns the date shifted by n days. Invalid dates stay invalid.
func (d ScheduleDate) AddDays(n int) ScheduleDate {
	if !d.Valid {
		return d
	}
	return New(d.Time.AddDate(0, 0, n))
}

// Before reports strict calendar ordering. Invalid dates compare false.
func (d ScheduleDate) Before(other ScheduleDate) bool {
	return d.Valid && other.Valid && d.Time.Before(other.Time)
}

// After reports strict calendar ordering. Invalid dates compare false.
func (d ScheduleDate) After(other ScheduleDate) bool {
	return d.Valid && other.Valid && d.Time.After(other.Time)
}

// Equal reports same-day equality between two valid dates.
func (d ScheduleDate) Equal(other ScheduleDate) bool {
	return d.Valid && other.Valid && d.Time.Equal(other.Time)
}

// InRange reports whether the date falls inside [start, end] inclusive.
// Invalid dates match no range.
func (d ScheduleDate) InRange(start, end time.Time) bool {
	if !d.Valid {
		return false
	}
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return !d.Time.Before(s) && !d.Time.After(e)
}

// DaysBetween returns the absolute whole-day distance between two valid dates.
func DaysBetween(a, b ScheduleDate) int {
	if !a.Valid || !b.Valid {
		return 0
	}
	diff := int(b.Time.Sub(a.Time).Hours() / 24)
	if diff < 0 {
		diff = -diff
	}
	return diff
}

// Scan implements sql.Scanner. Stored values that do not parse leave the
// date invalid without failing the row scan, so projection can exclude them.
func (d *ScheduleDate) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = ScheduleDate{}
		return nil
	case time.Time:
		*d = New(v)
		return nil
	case string:
		parsed, err := Parse(v)
		if err != nil {
			*d = ScheduleDate{}
			return nil
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	default:
		return fmt.Errorf("schedule date: unsupported scan type %T", src)
	}
}

// Value implements driver.Valuer, serialising back to the textual format.
func (d ScheduleDate) Value() (driver.Value, error) {
	if !d.Valid {
		return nil, nil
	}
	return d.String(), nil
}

// MarshalJSON renders the canonical string, or null when invalid.
func (d ScheduleDate) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(d.String())), nil
}

// UnmarshalJSON accepts the textual format or null.
func (d *ScheduleDate) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*d = ScheduleDate{}
		return nil
	}
	unquoted, err := strconv.Unquote(raw)
	if err != nil {
		return fmt.Errorf("schedule date: %w", err)
	}
	parsed, err := Parse(unquoted)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
