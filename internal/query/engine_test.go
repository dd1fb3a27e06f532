package query

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"insightcore/pkg/domain"
)

func sectionsDataset(t *testing.T) *domain.Dataset {
	t.Helper()
	records := []domain.Record{
		domain.Section{UUID: "1", ID: "310", Title: "software eng", Instructor: "smith", Dept: "cpsc", Year: 2014, Avg: 80, Pass: 100, Fail: 4, Audit: 1},
		domain.Section{UUID: "2", ID: "310", Title: "software eng", Instructor: "jones", Dept: "cpsc", Year: 2012, Avg: 70.5, Pass: 90, Fail: 8, Audit: 0},
		domain.Section{UUID: "3", ID: "110", Title: "computation", Instructor: "smith", Dept: "cpsc", Year: 2013, Avg: 72, Pass: 200, Fail: 20, Audit: 2},
		domain.Section{UUID: "4", ID: "101", Title: "macro econ", Instructor: "lee", Dept: "econ", Year: 2014, Avg: 81.25, Pass: 150, Fail: 10, Audit: 0},
		domain.Section{UUID: "5", ID: "101", Title: "macro econ", Instructor: "lee", Dept: "econ", Year: 2012, Avg: 60, Pass: 120, Fail: 30, Audit: 1},
	}
	return &domain.Dataset{ID: "ubc", Kind: domain.KindSections, Records: records}
}

// run validates the raw document and executes it against ds.
func run(t *testing.T, ds *domain.Dataset, doc string) ([]Row, error) {
	t.Helper()
	var v Validator
	q, err := v.Validate(mustDoc(t, doc))
	if err != nil {
		t.Fatalf("fixture query rejected: %v", err)
	}
	return Engine{}.Execute(ds, q)
}

func uuids(t *testing.T, rows []Row) []string {
	t.Helper()
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		id, ok := row["ubc_uuid"].(string)
		if !ok {
			t.Fatalf("uuid column is %T, want string", row["ubc_uuid"])
		}
		out = append(out, id)
	}
	return out
}

func TestExecuteEndToEnd(t *testing.T) {
	rows, err := run(t, sectionsDataset(t), `{
		"WHERE": {"GT": {"ubc_year": 2013}},
		"OPTIONS": {"COLUMNS": ["ubc_dept", "ubc_avg"], "ORDER": "ubc_avg"}
	}`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := []Row{
		{"ubc_dept": "cpsc", "ubc_avg": 80.0},
		{"ubc_dept": "econ", "ubc_avg": 81.25},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
}

func TestExecuteFilterAlgebra(t *testing.T) {
	ds := sectionsDataset(t)
	cases := []struct {
		name  string
		where string
		want  []string
	}{
		{"match all", `{}`, []string{"1", "2", "3", "4", "5"}},
		{"EQ", `{"EQ": {"ubc_year": 2012}}`, []string{"2", "5"}},
		{"LT", `{"LT": {"ubc_avg": 71}}`, []string{"2", "5"}},
		{"GT boundary excluded", `{"GT": {"ubc_avg": 80}}`, []string{"4"}},
		{"NOT complement", `{"NOT": {"EQ": {"ubc_year": 2012}}}`, []string{"1", "3", "4"}},
		{"double NOT identity", `{"NOT": {"NOT": {"EQ": {"ubc_year": 2012}}}}`, []string{"2", "5"}},
		{"AND intersection", `{"AND": [{"IS": {"ubc_dept": "cpsc"}}, {"GT": {"ubc_avg": 71}}]}`, []string{"1", "3"}},
		{"AND with empty member", `{"AND": [{}, {"IS": {"ubc_dept": "econ"}}]}`, []string{"4", "5"}},
		{"AND disjoint children", `{"AND": [{"IS": {"ubc_dept": "econ"}}, {"IS": {"ubc_dept": "cpsc"}}]}`, nil},
		{"OR union deduplicated", `{"OR": [{"IS": {"ubc_dept": "cpsc"}}, {"GT": {"ubc_avg": 71}}]}`, []string{"1", "2", "3", "4"}},
		{"OR keeps dataset order", `{"OR": [{"EQ": {"ubc_year": 2014}}, {"EQ": {"ubc_year": 2012}}]}`, []string{"1", "2", "4", "5"}},
		{"IS exact", `{"IS": {"ubc_instructor": "smith"}}`, []string{"1", "3"}},
		{"IS no match", `{"IS": {"ubc_dept": "cps"}}`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows, err := run(t, ds, fmt.Sprintf(
				`{"WHERE": %s, "OPTIONS": {"COLUMNS": ["ubc_uuid"]}}`, tc.where))
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			got := uuids(t, rows)
			if len(got) == 0 {
				got = nil
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("uuids = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMatchWildcard(t *testing.T) {
	cases := []struct {
		pattern, value string
		want           bool
	}{
		{"cpsc", "cpsc", true},
		{"cpsc", "cps", false},
		{"cpsc", "CPSC", false},
		{"*", "", true},
		{"*", "anything", true},
		{"**", "", true},
		{"**", "anything", true},
		{"*sc", "cpsc", true},
		{"*sc", "scan", false},
		{"cp*", "cpsc", true},
		{"cp*", "acpsc", false},
		{"*ps*", "cpsc", true},
		{"*ps*", "spcs", false},
		{"*cpsc*", "cpsc", true},
		{"", "", true},
		{"", "x", false},
	}
	for _, tc := range cases {
		if got := matchWildcard(tc.pattern, tc.value); got != tc.want {
			t.Errorf("matchWildcard(%q, %q) = %v, want %v", tc.pattern, tc.value, got, tc.want)
		}
	}
}

func TestExecuteAggregation(t *testing.T) {
	rows, err := run(t, sectionsDataset(t), `{
		"WHERE": {},
		"OPTIONS": {
			"COLUMNS": ["ubc_dept", "maxAvg", "minAvg", "sumPass", "avgAvg", "courses"],
			"ORDER": "ubc_dept"
		},
		"TRANSFORMATIONS": {
			"GROUP": ["ubc_dept"],
			"APPLY": [
				{"maxAvg": {"MAX": "ubc_avg"}},
				{"minAvg": {"MIN": "ubc_avg"}},
				{"sumPass": {"SUM": "ubc_pass"}},
				{"avgAvg": {"AVG": "ubc_avg"}},
				{"courses": {"COUNT": "ubc_id"}}
			]
		}
	}`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := []Row{
		// cpsc avgs 80, 70.5, 72: sum 222.5, avg 74.17 (two decimals, half
		// away from zero). Two distinct course ids across three sections.
		{"ubc_dept": "cpsc", "maxAvg": 80.0, "minAvg": 70.5, "sumPass": 390.0, "avgAvg": 74.17, "courses": 2.0},
		{"ubc_dept": "econ", "maxAvg": 81.25, "minAvg": 60.0, "sumPass": 270.0, "avgAvg": 70.63, "courses": 1.0},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
}

func TestExecuteAvgRoundsOnceAtTheEnd(t *testing.T) {
	// 70.5 + 81.25 + 60 = 211.75; /3 = 70.5833... -> 70.58. Per-element
	// rounding would give 70.59.
	records := []domain.Record{
		domain.Section{UUID: "1", Dept: "x", Avg: 70.5},
		domain.Section{UUID: "2", Dept: "x", Avg: 81.25},
		domain.Section{UUID: "3", Dept: "x", Avg: 60},
	}
	ds := &domain.Dataset{ID: "ubc", Kind: domain.KindSections, Records: records}
	rows, err := run(t, ds, `{
		"WHERE": {},
		"OPTIONS": {"COLUMNS": ["avgAvg"]},
		"TRANSFORMATIONS": {"GROUP": ["ubc_dept"], "APPLY": [{"avgAvg": {"AVG": "ubc_avg"}}]}
	}`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(rows) != 1 || rows[0]["avgAvg"] != 70.58 {
		t.Fatalf("rows = %v, want one row with avgAvg 70.58", rows)
	}
}

func TestExecuteGroupsKeepFirstSeenOrder(t *testing.T) {
	rows, err := run(t, sectionsDataset(t), `{
		"WHERE": {},
		"OPTIONS": {"COLUMNS": ["ubc_year", "n"]},
		"TRANSFORMATIONS": {"GROUP": ["ubc_year"], "APPLY": [{"n": {"COUNT": "ubc_uuid"}}]}
	}`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := []Row{
		{"ubc_year": 2014.0, "n": 2.0},
		{"ubc_year": 2012.0, "n": 2.0},
		{"ubc_year": 2013.0, "n": 1.0},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
}

func bigDataset(n int) *domain.Dataset {
	records := make([]domain.Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, domain.Section{
			UUID: fmt.Sprintf("%d", i),
			Dept: fmt.Sprintf("d%d", i),
			Avg:  50,
		})
	}
	return &domain.Dataset{ID: "ubc", Kind: domain.KindSections, Records: records}
}

func TestExecuteResultCeiling(t *testing.T) {
	t.Run("at ceiling passes", func(t *testing.T) {
		rows, err := run(t, bigDataset(domain.ResultCeiling), `{
			"WHERE": {},
			"OPTIONS": {"COLUMNS": ["ubc_uuid"]}
		}`)
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if len(rows) != domain.ResultCeiling {
			t.Fatalf("len = %d, want %d", len(rows), domain.ResultCeiling)
		}
	})
	t.Run("over ceiling rejected before projection", func(t *testing.T) {
		_, err := run(t, bigDataset(domain.ResultCeiling+1), `{
			"WHERE": {},
			"OPTIONS": {"COLUMNS": ["ubc_uuid"]}
		}`)
		var tooLarge domain.ResultTooLargeError
		if !errors.As(err, &tooLarge) || tooLarge.Count != domain.ResultCeiling+1 {
			t.Fatalf("err = %v, want ResultTooLargeError with count %d", err, domain.ResultCeiling+1)
		}
	})
	t.Run("filter can shrink under the ceiling", func(t *testing.T) {
		rows, err := run(t, bigDataset(domain.ResultCeiling+1), `{
			"WHERE": {"IS": {"ubc_dept": "d0"}},
			"OPTIONS": {"COLUMNS": ["ubc_uuid"]}
		}`)
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if len(rows) != 1 {
			t.Fatalf("len = %d, want 1", len(rows))
		}
	})
	t.Run("grouping can shrink under the ceiling", func(t *testing.T) {
		rows, err := run(t, bigDataset(domain.ResultCeiling+1), `{
			"WHERE": {},
			"OPTIONS": {"COLUMNS": ["ubc_avg", "n"]},
			"TRANSFORMATIONS": {"GROUP": ["ubc_avg"], "APPLY": [{"n": {"COUNT": "ubc_uuid"}}]}
		}`)
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if len(rows) != 1 {
			t.Fatalf("len = %d, want 1", len(rows))
		}
	})
	t.Run("too many groups rejected", func(t *testing.T) {
		_, err := run(t, bigDataset(domain.ResultCeiling+1), `{
			"WHERE": {},
			"OPTIONS": {"COLUMNS": ["ubc_dept", "n"]},
			"TRANSFORMATIONS": {"GROUP": ["ubc_dept"], "APPLY": [{"n": {"COUNT": "ubc_uuid"}}]}
		}`)
		var tooLarge domain.ResultTooLargeError
		if !errors.As(err, &tooLarge) || tooLarge.Count != domain.ResultCeiling+1 {
			t.Fatalf("err = %v, want ResultTooLargeError with count %d", err, domain.ResultCeiling+1)
		}
	})
}

func TestExecuteOrdering(t *testing.T) {
	ds := sectionsDataset(t)
	t.Run("single key up", func(t *testing.T) {
		rows, err := run(t, ds, `{
			"WHERE": {},
			"OPTIONS": {"COLUMNS": ["ubc_uuid", "ubc_avg"], "ORDER": "ubc_avg"}
		}`)
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if got, want := uuids(t, rows), []string{"5", "2", "3", "1", "4"}; !reflect.DeepEqual(got, want) {
			t.Fatalf("uuids = %v, want %v", got, want)
		}
	})
	t.Run("multi key down", func(t *testing.T) {
		rows, err := run(t, ds, `{
			"WHERE": {},
			"OPTIONS": {
				"COLUMNS": ["ubc_uuid", "ubc_year", "ubc_avg"],
				"ORDER": {"dir": "DOWN", "keys": ["ubc_year", "ubc_avg"]}
			}
		}`)
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if got, want := uuids(t, rows), []string{"4", "1", "3", "2", "5"}; !reflect.DeepEqual(got, want) {
			t.Fatalf("uuids = %v, want %v", got, want)
		}
	})
	t.Run("ties keep filter order", func(t *testing.T) {
		rows, err := run(t, ds, `{
			"WHERE": {},
			"OPTIONS": {"COLUMNS": ["ubc_uuid", "ubc_dept"], "ORDER": "ubc_dept"}
		}`)
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if got, want := uuids(t, rows), []string{"1", "2", "3", "4", "5"}; !reflect.DeepEqual(got, want) {
			t.Fatalf("uuids = %v, want %v", got, want)
		}
	})
	t.Run("no order keeps dataset order", func(t *testing.T) {
		rows, err := run(t, ds, `{
			"WHERE": {"NOT": {"IS": {"ubc_dept": "econ"}}},
			"OPTIONS": {"COLUMNS": ["ubc_uuid"]}
		}`)
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if got, want := uuids(t, rows), []string{"1", "2", "3"}; !reflect.DeepEqual(got, want) {
			t.Fatalf("uuids = %v, want %v", got, want)
		}
	})
	t.Run("string keys sort lexically", func(t *testing.T) {
		rows, err := run(t, ds, `{
			"WHERE": {"EQ": {"ubc_year": 2014}},
			"OPTIONS": {"COLUMNS": ["ubc_dept"], "ORDER": {"dir": "DOWN", "keys": ["ubc_dept"]}}
		}`)
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		want := []Row{{"ubc_dept": "econ"}, {"ubc_dept": "cpsc"}}
		if !reflect.DeepEqual(rows, want) {
			t.Fatalf("rows = %v, want %v", rows, want)
		}
	})
}

func TestExecuteProjectsIdentifierAsString(t *testing.T) {
	// A section loaded with a numeric uuid in its source file still projects
	// the identifier as a string.
	var s domain.Section
	if err := s.UnmarshalJSON([]byte(`{"uuid": 12345, "dept": "cpsc", "avg": 80}`)); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	ds := &domain.Dataset{ID: "ubc", Kind: domain.KindSections, Records: []domain.Record{s}}
	rows, err := run(t, ds, `{"WHERE": {}, "OPTIONS": {"COLUMNS": ["ubc_uuid"]}}`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if rows[0]["ubc_uuid"] != "12345" {
		t.Fatalf("uuid = %#v, want \"12345\"", rows[0]["ubc_uuid"])
	}
}

func TestExecuteRejectsMismatchedDataset(t *testing.T) {
	ds := sectionsDataset(t)
	var v Validator
	q, err := v.Validate(mustDoc(t, `{"WHERE": {}, "OPTIONS": {"COLUMNS": ["sfu_avg"]}}`))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if _, err := (Engine{}).Execute(ds, q); err == nil {
		t.Fatal("expected mismatch rejection")
	}
}

func TestExecuteRejectsFieldsOfOtherVariant(t *testing.T) {
	// "seats" is a valid rooms field, so the key passes grammar checks, but a
	// sections dataset cannot answer it.
	_, err := run(t, sectionsDataset(t), `{
		"WHERE": {"GT": {"ubc_seats": 100}},
		"OPTIONS": {"COLUMNS": ["ubc_seats"]}
	}`)
	var ie domain.InsightError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %v, want InsightError", err)
	}
}
