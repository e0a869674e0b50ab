package longitudinal

import (
	"fmt"
	"sort"

	"panelcore/pkg/frame"
)

// LifeTableOptions names the person-period survival columns to tabulate.
type LifeTableOptions struct {
	// Subject names the subject identifier column.
	Subject string
	// Period and Event name the period and indicator columns. They default
	// to "period" and "event", matching ExpandSurvival output.
	Period string
	Event  string
}

// LifeTableRow is one discrete period of a life table.
type LifeTableRow struct {
	Period   int     `json:"period"`
	Risk     int     `json:"risk"`
	Events   int     `json:"events"`
	Censored int     `json:"censored"`
	Hazard   float64 `json:"hazard"`
}

// LifeTable aggregates person-period survival data by period. Hazard is the
// descriptive per-period estimate events/risk; no standard errors and no
// model fitting.
type LifeTable struct {
	Rows []LifeTableRow `json:"rows"`
}

// BuildLifeTable groups person-period survival rows by period and counts the
// risk set, events and censorings per period, in ascending period order from
// the minimum present. The input must satisfy the expansion invariants: per
// subject one row per contiguous period, the event indicator 1 at most once
// and only on the final row. Violations, including a non-monotone risk-set
// sequence, report ErrInvariantViolation.
func BuildLifeTable(t frame.Table, opts LifeTableOptions) (LifeTable, error) {
	subjectCol, ok := t.Column(opts.Subject)
	if !ok {
		return LifeTable{}, fmt.Errorf("longitudinal: subject column %s not found", opts.Subject)
	}
	periodName := opts.Period
	if periodName == "" {
		periodName = "period"
	}
	eventName := opts.Event
	if eventName == "" {
		eventName = "event"
	}
	periodCol, ok := t.Column(periodName)
	if !ok {
		return LifeTable{}, fmt.Errorf("longitudinal: period column %s not found", periodName)
	}
	eventCol, ok := t.Column(eventName)
	if !ok {
		return LifeTable{}, fmt.Errorf("longitudinal: event column %s not found", eventName)
	}

	type seq struct {
		periods map[int]int64 // period -> indicator
		last    int
	}
	subjects := make(map[frame.Value]*seq)
	for r := 0; r < t.NumRows(); r++ {
		id := subjectCol.Value(r)
		if id.IsMissing() {
			return LifeTable{}, fmt.Errorf("%w: missing subject identifier at row %d", ErrInvariantViolation, r)
		}
		period64, ok := periodCol.Value(r).AsInteger()
		if !ok {
			return LifeTable{}, fmt.Errorf("%w: row %d has a missing or non-integer period", ErrInvariantViolation, r)
		}
		period := int(period64)
		indicator, ok := eventCol.Value(r).AsInteger()
		if !ok || (indicator != 0 && indicator != 1) {
			return LifeTable{}, fmt.Errorf("%w: row %d has event indicator outside 0/1", ErrInvariantViolation, r)
		}
		acc, exists := subjects[id]
		if !exists {
			acc = &seq{periods: make(map[int]int64), last: period}
			subjects[id] = acc
		}
		if _, dup := acc.periods[period]; dup {
			return LifeTable{}, fmt.Errorf("%w: subject %s repeats period %d", ErrInvariantViolation, cellText(id), period)
		}
		acc.periods[period] = indicator
		if period > acc.last {
			acc.last = period
		}
	}
	if len(subjects) == 0 {
		return LifeTable{}, nil
	}

	risk := make(map[int]int)
	events := make(map[int]int)
	censors := make(map[int]int)
	for id, acc := range subjects {
		first := acc.last
		for period := range acc.periods {
			if period < first {
				first = period
			}
		}
		for period := first; period <= acc.last; period++ {
			indicator, present := acc.periods[period]
			if !present {
				return LifeTable{}, fmt.Errorf("%w: subject %s is missing period %d", ErrInvariantViolation, cellText(id), period)
			}
			if indicator == 1 && period != acc.last {
				return LifeTable{}, fmt.Errorf("%w: subject %s has an event before its final period", ErrInvariantViolation, cellText(id))
			}
			risk[period]++
			if indicator == 1 {
				events[period]++
			}
		}
		if acc.periods[acc.last] == 0 {
			censors[acc.last]++
		}
	}

	periods := make([]int, 0, len(risk))
	for period := range risk {
		periods = append(periods, period)
	}
	sort.Ints(periods)
	for i := 1; i < len(periods); i++ {
		if periods[i] != periods[i-1]+1 {
			return LifeTable{}, fmt.Errorf("%w: period %d absent from the risk sequence", ErrInvariantViolation, periods[i-1]+1)
		}
	}

	rows := make([]LifeTableRow, 0, len(periods))
	for i, period := range periods {
		row := LifeTableRow{
			Period:   period,
			Risk:     risk[period],
			Events:   events[period],
			Censored: censors[period],
			Hazard:   float64(events[period]) / float64(risk[period]),
		}
		if i > 0 {
			prev := rows[i-1]
			if row.Risk != prev.Risk-prev.Events-prev.Censored {
				return LifeTable{}, fmt.Errorf("%w: risk set %d in period %d, want %d", ErrInvariantViolation, row.Risk, period, prev.Risk-prev.Events-prev.Censored)
			}
		}
		rows = append(rows, row)
	}
	return LifeTable{Rows: rows}, nil
}

// Table renders the life table as a frame with columns period, risk, events,
// censored and hazard.
func (lt LifeTable) Table() (frame.Table, error) {
	n := len(lt.Rows)
	periods := make([]int64, n)
	risks := make([]int64, n)
	events := make([]int64, n)
	censored := make([]int64, n)
	hazards := make([]float64, n)
	for i, row := range lt.Rows {
		periods[i] = int64(row.Period)
		risks[i] = int64(row.Risk)
		events[i] = int64(row.Events)
		censored[i] = int64(row.Censored)
		hazards[i] = row.Hazard
	}
	return frame.New(
		frame.IntegerColumn("period", periods, nil),
		frame.IntegerColumn("risk", risks, nil),
		frame.IntegerColumn("events", events, nil),
		frame.IntegerColumn("censored", censored, nil),
		frame.NumberColumn("hazard", hazards, nil),
	)
}
