package longitudinal_test

import (
	"errors"
	"testing"

	"panelcore/pkg/frame"
	"panelcore/pkg/longitudinal"
)

func toleranceTable(t *testing.T) frame.Table {
	t.Helper()
	table, err := frame.New(
		frame.IntegerColumn("id", []int64{1}, nil),
		frame.NumberColumn("score_11", []float64{2.5}, nil),
		frame.NumberColumn("score_12", []float64{3.0}, nil),
		frame.NumberColumn("score_13", []float64{0}, []bool{true}),
		frame.StringColumn("sex", []string{"M"}, nil),
	)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	return table
}

func TestParseGroups(t *testing.T) {
	table := toleranceTable(t)
	groups, err := longitudinal.ParseGroups(table, "score")
	if err != nil {
		t.Fatalf("parse groups: %v", err)
	}
	if len(groups) != 1 || groups[0].Attribute != "score" {
		t.Fatalf("unexpected groups %+v", groups)
	}
	want := []longitudinal.OccasionColumn{
		{Occasion: 11, Column: "score_11"},
		{Occasion: 12, Column: "score_12"},
		{Occasion: 13, Column: "score_13"},
	}
	for i, pair := range groups[0].Columns {
		if pair != want[i] {
			t.Fatalf("pair %d = %+v, want %+v", i, pair, want[i])
		}
	}
}

func TestParseGroupsErrors(t *testing.T) {
	bad, err := frame.New(
		frame.IntegerColumn("id", []int64{1}, nil),
		frame.NumberColumn("score_first", []float64{1}, nil),
	)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	if _, err := longitudinal.ParseGroups(bad, "score"); !errors.Is(err, longitudinal.ErrMalformedColumnPattern) {
		t.Fatalf("want ErrMalformedColumnPattern, got %v", err)
	}
	if _, err := longitudinal.ParseGroups(bad, "weight"); !errors.Is(err, longitudinal.ErrEmptyOccasionSet) {
		t.Fatalf("want ErrEmptyOccasionSet, got %v", err)
	}
	dup, err := frame.New(
		frame.NumberColumn("score_1", []float64{1}, nil),
		frame.NumberColumn("score_01", []float64{1}, nil),
	)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	if _, err := longitudinal.ParseGroups(dup, "score"); !errors.Is(err, longitudinal.ErrMalformedColumnPattern) {
		t.Fatalf("want ErrMalformedColumnPattern for duplicate occasion, got %v", err)
	}
}

func TestToPersonPeriodPreservesMissingOccasion(t *testing.T) {
	table := toleranceTable(t)
	groups, err := longitudinal.ParseGroups(table, "score")
	if err != nil {
		t.Fatalf("parse groups: %v", err)
	}
	long, err := longitudinal.ToPersonPeriod(table, longitudinal.PersonPeriodOptions{
		Subject:  "id",
		Occasion: "age",
		Groups:   groups,
	})
	if err != nil {
		t.Fatalf("to person-period: %v", err)
	}
	if long.NumRows() != 3 {
		t.Fatalf("want 3 rows, got %d", long.NumRows())
	}
	if got := long.Names(); got[0] != "id" || got[1] != "age" || got[2] != "score" || got[3] != "sex" {
		t.Fatalf("unexpected columns %v", got)
	}
	wantAges := []int64{11, 12, 13}
	wantScores := []float64{2.5, 3.0, 0}
	for r := 0; r < 3; r++ {
		id, _ := long.Cell(r, "id")
		if v, _ := id.AsInteger(); v != 1 {
			t.Fatalf("row %d id = %d", r, v)
		}
		age, _ := long.Cell(r, "age")
		if v, _ := age.AsInteger(); v != wantAges[r] {
			t.Fatalf("row %d age = %d, want %d", r, v, wantAges[r])
		}
		sex, _ := long.Cell(r, "sex")
		if s, _ := sex.AsString(); s != "M" {
			t.Fatalf("row %d sex = %q", r, s)
		}
		score, _ := long.Cell(r, "score")
		if r == 2 {
			if !score.IsMissing() {
				t.Fatalf("missing occasion was not preserved")
			}
			continue
		}
		if v, _ := score.AsNumber(); v != wantScores[r] {
			t.Fatalf("row %d score = %v, want %v", r, v, wantScores[r])
		}
	}
}

func TestToPersonPeriodMisalignedOccasions(t *testing.T) {
	table, err := frame.New(
		frame.IntegerColumn("id", []int64{1}, nil),
		frame.NumberColumn("score_1", []float64{1}, nil),
		frame.NumberColumn("score_2", []float64{2}, nil),
		frame.NumberColumn("weight_1", []float64{40}, nil),
	)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	groups, err := longitudinal.ParseGroups(table, "score", "weight")
	if err != nil {
		t.Fatalf("parse groups: %v", err)
	}
	opts := longitudinal.PersonPeriodOptions{Subject: "id", Occasion: "wave", Groups: groups}
	if _, err := longitudinal.ToPersonPeriod(table, opts); !errors.Is(err, longitudinal.ErrMisalignedOccasions) {
		t.Fatalf("want ErrMisalignedOccasions, got %v", err)
	}

	opts.FillMisaligned = true
	long, err := longitudinal.ToPersonPeriod(table, opts)
	if err != nil {
		t.Fatalf("fill policy should succeed: %v", err)
	}
	if long.NumRows() != 2 {
		t.Fatalf("want 2 rows, got %d", long.NumRows())
	}
	cell, _ := long.Cell(1, "weight")
	if !cell.IsMissing() {
		t.Fatalf("filled occasion should be missing")
	}
}

func TestToPersonPeriodDuplicateSubject(t *testing.T) {
	table, err := frame.New(
		frame.IntegerColumn("id", []int64{1, 1}, nil),
		frame.NumberColumn("score_1", []float64{1, 2}, nil),
	)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	groups, _ := longitudinal.ParseGroups(table, "score")
	_, err = longitudinal.ToPersonPeriod(table, longitudinal.PersonPeriodOptions{Subject: "id", Occasion: "wave", Groups: groups})
	if !errors.Is(err, longitudinal.ErrDuplicateSubjectOccasion) {
		t.Fatalf("want ErrDuplicateSubjectOccasion, got %v", err)
	}
}

func TestRoundTripLaw(t *testing.T) {
	original, err := frame.New(
		frame.IntegerColumn("id", []int64{10, 20}, nil),
		frame.NumberColumn("score_11", []float64{1.5, 2.0}, nil),
		frame.NumberColumn("score_12", []float64{1.75, 2.25}, nil),
		frame.NumberColumn("score_13", []float64{2.0, 2.5}, nil),
		frame.StringColumn("sex", []string{"M", "F"}, nil),
	)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	groups, err := longitudinal.ParseGroups(original, "score")
	if err != nil {
		t.Fatalf("parse groups: %v", err)
	}
	long, err := longitudinal.ToPersonPeriod(original, longitudinal.PersonPeriodOptions{
		Subject:  "id",
		Occasion: "age",
		Groups:   groups,
	})
	if err != nil {
		t.Fatalf("to person-period: %v", err)
	}
	if long.NumRows() != 6 {
		t.Fatalf("row-count law: want 2*3 rows, got %d", long.NumRows())
	}
	wide, err := longitudinal.ToPersonLevel(long, longitudinal.PersonLevelOptions{
		Subject:  "id",
		Occasion: "age",
		Values:   []string{"score"},
	})
	if err != nil {
		t.Fatalf("to person-level: %v", err)
	}
	if wide.NumRows() != 2 {
		t.Fatalf("row-count law: want 2 subjects, got %d", wide.NumRows())
	}
	restored, err := wide.Select(original.Names()...)
	if err != nil {
		t.Fatalf("select original order: %v", err)
	}
	if !original.Equal(restored) {
		t.Fatalf("round trip did not reproduce the original table")
	}
}

func TestToPersonLevelMissingPairYieldsMissing(t *testing.T) {
	long, err := frame.New(
		frame.IntegerColumn("id", []int64{1, 1, 2}, nil),
		frame.IntegerColumn("wave", []int64{1, 2, 1}, nil),
		frame.NumberColumn("score", []float64{5, 6, 7}, nil),
	)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	wide, err := longitudinal.ToPersonLevel(long, longitudinal.PersonLevelOptions{
		Subject:  "id",
		Occasion: "wave",
		Values:   []string{"score"},
	})
	if err != nil {
		t.Fatalf("to person-level: %v", err)
	}
	if wide.NumRows() != 2 || wide.NumCols() != 3 {
		t.Fatalf("unexpected shape %dx%d", wide.NumRows(), wide.NumCols())
	}
	cell, ok := wide.Cell(1, "score_2")
	if !ok || !cell.IsMissing() {
		t.Fatalf("absent (subject, occasion) should yield a missing cell")
	}
}

func TestToPersonLevelTimeInvariantConflict(t *testing.T) {
	long, err := frame.New(
		frame.IntegerColumn("id", []int64{1, 1}, nil),
		frame.IntegerColumn("wave", []int64{1, 2}, nil),
		frame.NumberColumn("score", []float64{5, 6}, nil),
		frame.StringColumn("sex", []string{"M", "F"}, nil),
	)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	_, err = longitudinal.ToPersonLevel(long, longitudinal.PersonLevelOptions{
		Subject:  "id",
		Occasion: "wave",
		Values:   []string{"score"},
	})
	if !errors.Is(err, longitudinal.ErrTimeInvariantConflict) {
		t.Fatalf("want ErrTimeInvariantConflict, got %v", err)
	}
}

func TestToPersonLevelDuplicateSubjectOccasion(t *testing.T) {
	long, err := frame.New(
		frame.IntegerColumn("id", []int64{1, 1}, nil),
		frame.IntegerColumn("wave", []int64{2, 2}, nil),
		frame.NumberColumn("score", []float64{5, 6}, nil),
	)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	_, err = longitudinal.ToPersonLevel(long, longitudinal.PersonLevelOptions{
		Subject:  "id",
		Occasion: "wave",
		Values:   []string{"score"},
	})
	if !errors.Is(err, longitudinal.ErrDuplicateSubjectOccasion) {
		t.Fatalf("want ErrDuplicateSubjectOccasion, got %v", err)
	}
}

func TestToPersonLevelOrdering(t *testing.T) {
	long, err := frame.New(
		frame.StringColumn("id", []string{"b", "a", "b", "a"}, nil),
		frame.IntegerColumn("wave", []int64{2, 1, 1, 2}, nil),
		frame.NumberColumn("score", []float64{4, 1, 3, 2}, nil),
	)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	wide, err := longitudinal.ToPersonLevel(long, longitudinal.PersonLevelOptions{
		Subject:  "id",
		Occasion: "wave",
		Values:   []string{"score"},
	})
	if err != nil {
		t.Fatalf("to person-level: %v", err)
	}
	first, _ := wide.Cell(0, "id")
	if s, _ := first.AsString(); s != "b" {
		t.Fatalf("subjects should keep first-occurrence order, got %q first", s)
	}
	names := wide.Names()
	if names[1] != "score_1" || names[2] != "score_2" {
		t.Fatalf("generated columns should ascend by occasion, got %v", names)
	}
}

func TestToPersonLevelNameFormat(t *testing.T) {
	long, err := frame.New(
		frame.IntegerColumn("id", []int64{1}, nil),
		frame.IntegerColumn("wave", []int64{3}, nil),
		frame.NumberColumn("score", []float64{5}, nil),
	)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	wide, err := longitudinal.ToPersonLevel(long, longitudinal.PersonLevelOptions{
		Subject:    "id",
		Occasion:   "wave",
		Values:     []string{"score"},
		NameFormat: "%s.t%d",
	})
	if err != nil {
		t.Fatalf("to person-level: %v", err)
	}
	if !wide.HasColumn("score.t3") {
		t.Fatalf("custom name template not applied: %v", wide.Names())
	}
}
