package longitudinal

import (
	"fmt"

	"panelcore/pkg/frame"
)

// SurvivalOptions configures the event-history expansion.
type SurvivalOptions struct {
	// Subject names the subject identifier column.
	Subject string
	// Duration names the integer event/censoring time column.
	Duration string
	// Censor names the status column: true or 1 means the subject was
	// censored, false or 0 means the event was observed.
	Censor string
	// Start is the first generated period, inclusive. Periods are unit-width
	// integers; the only recognized starts are 1 (the textbook convention)
	// and 0.
	Start int
	// Period and Event name the generated columns. They default to "period"
	// and "event".
	Period string
	Event  string
}

// ExpandSurvival converts person-level event-history data into one row per
// integer period from Start through the subject's duration inclusive. The
// generated indicator is 1 only on the final row of a subject whose status
// denotes an observed event; every other row, including a censored subject's
// final row, stays 0. All remaining columns are treated as time-invariant
// covariates and copied into every generated row.
func ExpandSurvival(t frame.Table, opts SurvivalOptions) (frame.Table, error) {
	subjectCol, ok := t.Column(opts.Subject)
	if !ok {
		return frame.Table{}, fmt.Errorf("longitudinal: subject column %s not found", opts.Subject)
	}
	durationCol, ok := t.Column(opts.Duration)
	if !ok {
		return frame.Table{}, fmt.Errorf("longitudinal: duration column %s not found", opts.Duration)
	}
	censorCol, ok := t.Column(opts.Censor)
	if !ok {
		return frame.Table{}, fmt.Errorf("longitudinal: censor column %s not found", opts.Censor)
	}
	if opts.Start != 0 && opts.Start != 1 {
		return frame.Table{}, fmt.Errorf("longitudinal: start period must be 0 or 1, got %d", opts.Start)
	}
	periodName := opts.Period
	if periodName == "" {
		periodName = "period"
	}
	eventName := opts.Event
	if eventName == "" {
		eventName = "event"
	}

	var covariates []string
	for _, name := range t.Names() {
		switch name {
		case opts.Subject, opts.Duration, opts.Censor:
			continue
		case periodName, eventName:
			return frame.Table{}, fmt.Errorf("longitudinal: column %s collides with a generated column", name)
		}
		covariates = append(covariates, name)
	}

	schema := make([]frame.ColumnInfo, 0, 3+len(covariates))
	schema = append(schema,
		frame.ColumnInfo{Name: opts.Subject, Kind: subjectCol.Kind()},
		frame.ColumnInfo{Name: periodName, Kind: frame.KindInteger},
		frame.ColumnInfo{Name: eventName, Kind: frame.KindInteger},
	)
	for _, name := range covariates {
		col, _ := t.Column(name)
		schema = append(schema, frame.ColumnInfo{Name: name, Kind: col.Kind()})
	}
	builder, err := frame.NewBuilder(schema)
	if err != nil {
		return frame.Table{}, err
	}

	seen := make(map[frame.Value]struct{}, t.NumRows())
	row := make([]frame.Value, len(schema))
	for r := 0; r < t.NumRows(); r++ {
		id := subjectCol.Value(r)
		if id.IsMissing() {
			return frame.Table{}, fmt.Errorf("%w: missing subject identifier at row %d", ErrInvariantViolation, r)
		}
		if _, dup := seen[id]; dup {
			return frame.Table{}, fmt.Errorf("%w: subject %s has more than one person-level row", ErrDuplicateSubjectOccasion, cellText(id))
		}
		seen[id] = struct{}{}

		duration, ok := durationCol.Value(r).AsInteger()
		if !ok {
			return frame.Table{}, fmt.Errorf("%w: subject %s has a missing or non-integer duration", ErrNonPositiveDuration, cellText(id))
		}
		if duration < int64(opts.Start) {
			return frame.Table{}, fmt.Errorf("%w: subject %s has duration %d before start period %d", ErrNonPositiveDuration, cellText(id), duration, opts.Start)
		}
		censored, ok := censorState(censorCol.Value(r))
		if !ok {
			return frame.Table{}, fmt.Errorf("%w: subject %s has censor value %s", ErrInvalidCensorFlag, cellText(id), cellText(censorCol.Value(r)))
		}

		for p := int64(opts.Start); p <= duration; p++ {
			indicator := int64(0)
			if p == duration && !censored {
				indicator = 1
			}
			row[0] = id
			row[1] = frame.Integer(p)
			row[2] = frame.Integer(indicator)
			for i, name := range covariates {
				cell, _ := t.Cell(r, name)
				row[3+i] = cell
			}
			if err := builder.Append(row...); err != nil {
				return frame.Table{}, err
			}
		}
	}
	return builder.Table()
}

// censorState maps a censor-status cell onto its two recognized states:
// censored (true, 1) or event observed (false, 0).
func censorState(v frame.Value) (censored, ok bool) {
	if b, isBool := v.AsBool(); isBool {
		return b, true
	}
	if n, isInt := v.AsInteger(); isInt {
		switch n {
		case 0:
			return false, true
		case 1:
			return true, true
		}
	}
	return false, false
}
