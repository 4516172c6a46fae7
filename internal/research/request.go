package research

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dyike/StockAnalyzerAI/consts"
	"github.com/dyike/StockAnalyzerAI/internal/crew"
)

const (
	// research window relative to today
	limitDays        = 365
	maxDays          = 10
	defaultStartDays = 40
)

var (
	ErrEmptyTicker   = errors.New("Please fill the ticket field")
	ErrStartAfterEnd = errors.New("Start date must be lower than End date")
	ErrOutOfRange    = errors.New("dates out of range")
)

// Bounds is the date window a research request must fall in.
type Bounds struct {
	Min          time.Time
	Max          time.Time
	DefaultStart time.Time
}

func BoundsAt(now time.Time) Bounds {
	today := Day(now)
	return Bounds{
		Min:          today.AddDate(0, 0, -limitDays),
		Max:          today.AddDate(0, 0, -maxDays),
		DefaultStart: today.AddDate(0, 0, -defaultStartDays),
	}
}

// Contains reports whether d lies in [Min, Max], both ends included.
func (b Bounds) Contains(d time.Time) bool {
	d = Day(d)
	return !d.Before(b.Min) && !d.After(b.Max)
}

// Clamp moves d into the window.
func (b Bounds) Clamp(d time.Time) time.Time {
	d = Day(d)
	if d.Before(b.Min) {
		return b.Min
	}
	if d.After(b.Max) {
		return b.Max
	}
	return d
}

// RangeError is returned for a date outside the research window.
type RangeError struct {
	Min, Max time.Time
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("Dates must be between %s and %s", e.Min.Format(consts.DateLayout), e.Max.Format(consts.DateLayout))
}

func (e *RangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

// Request is one research submission.
type Request struct {
	Ticker string
	Start  time.Time
	End    time.Time
}

// Validate checks the ticker first, then the date order, then the window.
func (r Request) Validate(b Bounds) error {
	if strings.TrimSpace(r.Ticker) == "" {
		return ErrEmptyTicker
	}
	if Day(r.Start).After(Day(r.End)) {
		return ErrStartAfterEnd
	}
	if !b.Contains(r.Start) || !b.Contains(r.End) {
		return &RangeError{Min: b.Min, Max: b.Max}
	}
	return nil
}

// Inputs are the kickoff inputs for the request, dates as YYYY-MM-DD.
func (r Request) Inputs() crew.Inputs {
	return crew.Inputs{
		consts.Input_Ticket:  strings.TrimSpace(r.Ticker),
		consts.Input_DtStart: r.Start.Format(consts.DateLayout),
		consts.Input_DtEnd:   r.End.Format(consts.DateLayout),
	}
}

// ParseDate parses a YYYY-MM-DD value, returning fallback when value is empty.
func ParseDate(value string, fallback time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	d, err := time.Parse(consts.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return d, nil
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
