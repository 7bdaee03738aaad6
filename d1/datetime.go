package d1

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Date is a calendar date with no time or zone, stored as "YYYY-MM-DD".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Format(dateLayout)
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(text []byte) error {
	v, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// TimeOfDay is a wall-clock time with no date or zone.
type TimeOfDay struct {
	Hour, Minute, Second, Nanosecond int
}

// TimeOfDayOf returns the wall clock of t in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay{Hour: h, Minute: m, Second: s, Nanosecond: t.Nanosecond()}
}

const timeOfDayLayout = "15:04:05.999999999"

// Accepted text forms for a time of day. Any zone suffix is parsed and
// dropped.
var timeOfDayLayouts = []string{
	"15:04:05.999999999",
	"15:04",
	"15:04Z",
	"15:04:05.999999999Z",
	"15:04-07:00",
	"15:04:05.999999999-07:00",
}

// ParseTimeOfDay parses any of the accepted time-of-day forms.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range timeOfDayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDayOf(t), nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("d1: cannot parse %q as a time of day", s)
}

func (t TimeOfDay) String() string {
	return time.Date(0, 1, 1, t.Hour, t.Minute, t.Second, t.Nanosecond, time.UTC).Format(timeOfDayLayout)
}

func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TimeOfDay) UnmarshalText(text []byte) error {
	v, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Naive datetime forms tried after RFC 3339. Strings without a zone are
// taken as UTC.
var dateTimeLayouts = func() []string {
	suffixes := []string{
		"15:04:05.999999999",
		"15:04",
		"15:04Z",
		"15:04-07:00",
		"15:04:05.999999999Z",
		"15:04:05.999999999-07:00",
	}
	var out []string
	for _, sep := range []string{" ", "T"} {
		for _, s := range suffixes {
			out = append(out, dateLayout+sep+s)
		}
	}
	return out
}()

// ParseDateTime parses an RFC 3339 timestamp or one of the naive
// "YYYY-MM-DD HH:MM[:SS[.fff]]" forms.
func ParseDateTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("d1: cannot parse %q as a datetime", s)
}

// FormatDateTime renders t the way datetimes are bound: RFC 3339 with
// nanoseconds and no trailing "Z" for UTC.
func FormatDateTime(t time.Time) string {
	return strings.TrimSuffix(t.Format(time.RFC3339Nano), "Z")
}

// julianUnixEpoch is 1970-01-01T00:00:00Z as a Julian day number.
const julianUnixEpoch = 2440587.5

var errJulianRange = errors.New("julian day out of range")

// FromJulianDay converts a fractional Julian day into a UTC time.
func FromJulianDay(day float64) (time.Time, error) {
	secs := (day - julianUnixEpoch) * 86400
	if math.IsNaN(secs) || math.IsInf(secs, 0) || math.Abs(secs) > 1<<62 {
		return time.Time{}, errJulianRange
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC(), nil
}

// decodeDateTime reads a datetime from its Text, Integer (unix seconds) or
// Real (Julian day) storage.
func decodeDateTime(raw any, ti TypeInfo) (time.Time, error) {
	switch ti.StorageClass() {
	case TypeText:
		s, ok := raw.(string)
		if !ok {
			break
		}
		return ParseDateTime(s)
	case TypeInteger:
		n, ok := asInt64(raw)
		if !ok {
			break
		}
		return time.Unix(n, 0).UTC(), nil
	case TypeReal:
		f, ok := asFloat(raw)
		if !ok {
			break
		}
		return FromJulianDay(f)
	}
	return time.Time{}, fmt.Errorf("cannot decode %s as a datetime", ti)
}
