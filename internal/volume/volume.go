// Package volume turns per-day volume rows into fixed length chart series.
package volume

import (
	"fmt"
	"time"

	"alcyxob/fittrack/internal/domain"
)

type Range string

const (
	Range7Days    Range = "7days"
	Range8Weeks   Range = "8weeks"
	Range12Months Range = "12months"
)

const dateLayout = "2006-01-02"

func ParseRange(s string) (Range, error) {
	switch r := Range(s); r {
	case Range7Days, Range8Weeks, Range12Months:
		return r, nil
	}
	return "", &domain.ValidationError{Field: "range", Message: fmt.Sprintf("unknown range %q, expected 7days, 8weeks or 12months", s)}
}

// Buckets is the fixed series length of the range.
func (r Range) Buckets() int {
	switch r {
	case Range7Days:
		return 7
	case Range8Weeks:
		return 8
	case Range12Months:
		return 12
	}
	return 0
}

type Bucket struct {
	Label  string    `json:"label"`
	Start  time.Time `json:"start"`
	Volume float64   `json:"volume"`
}

// Formatter buckets volume rows. WeekStart only affects the 8 weeks range.
type Formatter struct {
	WeekStart time.Weekday
}

var defaultFormatter = Formatter{WeekStart: time.Monday}

// FormatVolumeData buckets rows with Monday-start weeks.
func FormatVolumeData(rows []domain.DailyVolume, r Range, today time.Time) ([]Bucket, error) {
	return defaultFormatter.Format(rows, r, today)
}

type window struct {
	first time.Time
	next  func(time.Time) time.Time
	label string
}

func (f Formatter) window(r Range, today time.Time) (window, error) {
	day := domain.DateOnly(today)
	switch r {
	case Range7Days:
		return window{
			first: day.AddDate(0, 0, -6),
			next:  func(t time.Time) time.Time { return t.AddDate(0, 0, 1) },
			label: "Jan 2",
		}, nil
	case Range8Weeks:
		offset := (int(day.Weekday()) - int(f.WeekStart) + 7) % 7
		return window{
			first: day.AddDate(0, 0, -offset-7*7),
			next:  func(t time.Time) time.Time { return t.AddDate(0, 0, 7) },
			label: "Jan 2",
		}, nil
	case Range12Months:
		monthStart := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		return window{
			first: monthStart.AddDate(0, -11, 0),
			next:  func(t time.Time) time.Time { return t.AddDate(0, 1, 0) },
			label: "Jan 2006",
		}, nil
	}
	return window{}, &domain.ValidationError{Field: "range", Message: fmt.Sprintf("unknown range %q", r)}
}

// WindowStart is the first day covered by the range ending today. Rows older than it never count.
func (f Formatter) WindowStart(r Range, today time.Time) (time.Time, error) {
	w, err := f.window(r, today)
	if err != nil {
		return time.Time{}, err
	}
	return w.first, nil
}

// Format returns r.Buckets() buckets in ascending order ending with the bucket holding today.
// Buckets without rows have volume 0. Rows outside the window or with unparsable dates are ignored.
func (f Formatter) Format(rows []domain.DailyVolume, r Range, today time.Time) ([]Bucket, error) {
	w, err := f.window(r, today)
	if err != nil {
		return nil, err
	}
	buckets := layout(w.first, r.Buckets(), w.next, w.label)

	windowEnd := w.next(buckets[len(buckets)-1].Start)
	for _, row := range rows {
		date, err := time.Parse(dateLayout, row.Date)
		if err != nil {
			continue
		}
		if date.Before(buckets[0].Start) || !date.Before(windowEnd) {
			continue
		}
		for i := len(buckets) - 1; i >= 0; i-- {
			if !date.Before(buckets[i].Start) {
				buckets[i].Volume += row.Volume
				break
			}
		}
	}

	return buckets, nil
}

func layout(first time.Time, n int, next func(time.Time) time.Time, labelLayout string) []Bucket {
	buckets := make([]Bucket, n)
	start := first
	for i := range buckets {
		buckets[i] = Bucket{Label: start.Format(labelLayout), Start: start}
		start = next(start)
	}
	return buckets
}
