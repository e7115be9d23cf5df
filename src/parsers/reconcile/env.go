// backend/src/parsers/reconcile/env.go
package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/username/tradejournal/backend/src/brokers"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/utils"
)

var ErrUnparseableDate = errors.New("unparseable date")

// RowError reports the first data row that could not be turned into a trade.
type RowError struct {
	Row int // 1-based data row index
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Env holds the settings of one import call and collects its warnings. It is
// call-scoped and must not be shared between imports.
type Env struct {
	Dates      *utils.DateParser
	DateFormat utils.DateFormat

	warnings  []models.ImportWarning
	degraded  map[int]bool
	tradeRows []int
	parsed    map[timeKey]parsedTime
}

type timeKey struct {
	row   int
	field models.Field
}

type parsedTime struct {
	t  time.Time
	ok bool
}

func NewEnv(dates *utils.DateParser, format utils.DateFormat) *Env {
	if dates == nil {
		dates = utils.NewDateParser(utils.FallbackNow)
	}
	return &Env{Dates: dates, DateFormat: format, degraded: make(map[int]bool)}
}

// Warn records a non-fatal degradation.
func (e *Env) Warn(w models.ImportWarning) {
	if w.Kind == models.WarningDateFallback {
		if e.degraded == nil {
			e.degraded = make(map[int]bool)
		}
		e.degraded[w.Row] = true
	}
	e.warnings = append(e.warnings, w)
}

// Warnings returns the warnings recorded so far in the order they happened.
func (e *Env) Warnings() []models.ImportWarning {
	return append([]models.ImportWarning{}, e.warnings...)
}

// DegradedRows counts distinct rows that received at least one fallback date.
func (e *Env) DegradedRows() int {
	return len(e.degraded)
}

// Time parses a timestamp field of leg. ok is false when the fallback value
// was used; under the fail policy that becomes a RowError instead. Each
// row and field is parsed and reported once per import.
func (e *Env) Time(leg models.Leg, f models.Field) (t time.Time, ok bool, err error) {
	if tv, isTime := leg.Mapped[f].(time.Time); isTime {
		return tv.UTC(), true, nil
	}
	key := timeKey{row: leg.Row, field: f}
	if p, seen := e.parsed[key]; seen {
		return p.t, p.ok, nil
	}
	text := leg.Mapped.Text(f)
	t, ok = e.Dates.Parse(text, e.DateFormat)
	if ok {
		e.remember(key, t, true)
		return t, true, nil
	}
	if e.Dates.FailsOnFallback() {
		return time.Time{}, false, &RowError{Row: leg.Row, Err: fmt.Errorf("%w: %s %q", ErrUnparseableDate, f, text)}
	}
	e.Warn(models.ImportWarning{
		Row:     leg.Row,
		Kind:    models.WarningDateFallback,
		Field:   f,
		Message: fmt.Sprintf("could not parse %q, used fallback %s", text, t.Format(time.RFC3339)),
	})
	e.remember(key, t, false)
	return t, false, nil
}

func (e *Env) remember(key timeKey, t time.Time, ok bool) {
	if e.parsed == nil {
		e.parsed = make(map[timeKey]parsedTime)
	}
	e.parsed[key] = parsedTime{t: t, ok: ok}
}

// MapLegs runs the field mapper over every leg in place. A failing or
// panicking derivation is reported as a RowError for that leg.
func MapLegs(legs []models.Leg, profile brokers.BrokerProfile) error {
	for i := range legs {
		mapped, err := mapLeg(legs[i], profile)
		if err != nil {
			return &RowError{Row: legs[i].Row, Err: err}
		}
		legs[i].Mapped = mapped
	}
	return nil
}

func mapLeg(leg models.Leg, profile brokers.BrokerProfile) (mapped models.MappedRow, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("recovered panic: %v", p)
		}
	}()
	return brokers.MapRow(leg.Raw, profile.Aliases)
}

// TradeRows returns, for every trade produced so far, the data row it was
// anchored on.
func (e *Env) TradeRows() []int {
	return append([]int{}, e.tradeRows...)
}
