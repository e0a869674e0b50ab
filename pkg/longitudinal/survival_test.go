package longitudinal_test

import (
	"errors"
	"testing"

	"panelcore/pkg/frame"
	"panelcore/pkg/longitudinal"
)

func survivalTable(t *testing.T, ids []int64, durations []int64, censors []int64) frame.Table {
	t.Helper()
	table, err := frame.New(
		frame.IntegerColumn("id", ids, nil),
		frame.IntegerColumn("years", durations, nil),
		frame.IntegerColumn("censor", censors, nil),
	)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	return table
}

func TestExpandSurvivalEventIndicator(t *testing.T) {
	table := survivalTable(t, []int64{1}, []int64{5}, []int64{0})
	long, err := longitudinal.ExpandSurvival(table, longitudinal.SurvivalOptions{
		Subject:  "id",
		Duration: "years",
		Censor:   "censor",
		Start:    1,
	})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if long.NumRows() != 5 {
		t.Fatalf("want 5 rows for T=5, got %d", long.NumRows())
	}
	want := []int64{0, 0, 0, 0, 1}
	for r := 0; r < 5; r++ {
		period, _ := long.Cell(r, "period")
		if v, _ := period.AsInteger(); v != int64(r+1) {
			t.Fatalf("row %d period = %d, want %d", r, v, r+1)
		}
		event, _ := long.Cell(r, "event")
		if v, _ := event.AsInteger(); v != want[r] {
			t.Fatalf("row %d event = %d, want %d", r, v, want[r])
		}
	}
}

func TestExpandSurvivalCensoredSubject(t *testing.T) {
	table := survivalTable(t, []int64{1}, []int64{5}, []int64{1})
	long, err := longitudinal.ExpandSurvival(table, longitudinal.SurvivalOptions{
		Subject:  "id",
		Duration: "years",
		Censor:   "censor",
		Start:    1,
	})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	for r := 0; r < long.NumRows(); r++ {
		event, _ := long.Cell(r, "event")
		if v, _ := event.AsInteger(); v != 0 {
			t.Fatalf("censored subject must have all-zero indicators, row %d = %d", r, v)
		}
	}
}

func TestExpandSurvivalTwoSubjects(t *testing.T) {
	table := survivalTable(t, []int64{7, 8}, []int64{3, 3}, []int64{1, 0})
	long, err := longitudinal.ExpandSurvival(table, longitudinal.SurvivalOptions{
		Subject:  "id",
		Duration: "years",
		Censor:   "censor",
		Start:    1,
	})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if long.NumRows() != 6 {
		t.Fatalf("want 6 rows, got %d", long.NumRows())
	}
	type row struct{ id, period, event int64 }
	want := []row{
		{7, 1, 0}, {7, 2, 0}, {7, 3, 0},
		{8, 1, 0}, {8, 2, 0}, {8, 3, 1},
	}
	for r, w := range want {
		id, _ := long.Cell(r, "id")
		period, _ := long.Cell(r, "period")
		event, _ := long.Cell(r, "event")
		gotID, _ := id.AsInteger()
		gotPeriod, _ := period.AsInteger()
		gotEvent, _ := event.AsInteger()
		if gotID != w.id || gotPeriod != w.period || gotEvent != w.event {
			t.Fatalf("row %d = (%d,%d,%d), want (%d,%d,%d)", r, gotID, gotPeriod, gotEvent, w.id, w.period, w.event)
		}
	}
}

func TestExpandSurvivalStartZero(t *testing.T) {
	table := survivalTable(t, []int64{1}, []int64{2}, []int64{0})
	long, err := longitudinal.ExpandSurvival(table, longitudinal.SurvivalOptions{
		Subject:  "id",
		Duration: "years",
		Censor:   "censor",
		Start:    0,
	})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if long.NumRows() != 3 {
		t.Fatalf("start 0 through duration 2 should yield 3 rows, got %d", long.NumRows())
	}
	first, _ := long.Cell(0, "period")
	if v, _ := first.AsInteger(); v != 0 {
		t.Fatalf("first period = %d, want 0", v)
	}
}

func TestExpandSurvivalCopiesCovariates(t *testing.T) {
	table, err := frame.New(
		frame.IntegerColumn("id", []int64{1}, nil),
		frame.IntegerColumn("weeks", []int64{2}, nil),
		frame.IntegerColumn("censor", []int64{0}, nil),
		frame.StringColumn("treatment", []string{"drug"}, nil),
	)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	long, err := longitudinal.ExpandSurvival(table, longitudinal.SurvivalOptions{
		Subject:  "id",
		Duration: "weeks",
		Censor:   "censor",
		Start:    1,
	})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	for r := 0; r < long.NumRows(); r++ {
		cell, ok := long.Cell(r, "treatment")
		if !ok {
			t.Fatalf("covariate column dropped")
		}
		if s, _ := cell.AsString(); s != "drug" {
			t.Fatalf("row %d treatment = %q", r, s)
		}
	}
}

func TestExpandSurvivalBooleanCensor(t *testing.T) {
	table, err := frame.New(
		frame.IntegerColumn("id", []int64{1}, nil),
		frame.IntegerColumn("years", []int64{2}, nil),
		frame.BoolColumn("censor", []bool{true}, nil),
	)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	long, err := longitudinal.ExpandSurvival(table, longitudinal.SurvivalOptions{
		Subject:  "id",
		Duration: "years",
		Censor:   "censor",
		Start:    1,
	})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	last, _ := long.Cell(long.NumRows()-1, "event")
	if v, _ := last.AsInteger(); v != 0 {
		t.Fatalf("true censor flag should suppress the event indicator")
	}
}

func TestExpandSurvivalErrors(t *testing.T) {
	opts := longitudinal.SurvivalOptions{Subject: "id", Duration: "years", Censor: "censor", Start: 1}

	zero := survivalTable(t, []int64{1}, []int64{0}, []int64{0})
	if _, err := longitudinal.ExpandSurvival(zero, opts); !errors.Is(err, longitudinal.ErrNonPositiveDuration) {
		t.Fatalf("want ErrNonPositiveDuration for T=0, got %v", err)
	}

	missing, err := frame.New(
		frame.IntegerColumn("id", []int64{1}, nil),
		frame.IntegerColumn("years", []int64{0}, []bool{true}),
		frame.IntegerColumn("censor", []int64{0}, nil),
	)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	if _, err := longitudinal.ExpandSurvival(missing, opts); !errors.Is(err, longitudinal.ErrNonPositiveDuration) {
		t.Fatalf("want ErrNonPositiveDuration for missing duration, got %v", err)
	}

	badFlag := survivalTable(t, []int64{1}, []int64{2}, []int64{2})
	if _, err := longitudinal.ExpandSurvival(badFlag, opts); !errors.Is(err, longitudinal.ErrInvalidCensorFlag) {
		t.Fatalf("want ErrInvalidCensorFlag for flag 2, got %v", err)
	}

	dup := survivalTable(t, []int64{1, 1}, []int64{2, 3}, []int64{0, 0})
	if _, err := longitudinal.ExpandSurvival(dup, opts); !errors.Is(err, longitudinal.ErrDuplicateSubjectOccasion) {
		t.Fatalf("want ErrDuplicateSubjectOccasion, got %v", err)
	}

	if _, err := longitudinal.ExpandSurvival(zero, longitudinal.SurvivalOptions{Subject: "id", Duration: "years", Censor: "censor", Start: 2}); err == nil {
		t.Fatalf("start outside 0..1 should be rejected")
	}
}
