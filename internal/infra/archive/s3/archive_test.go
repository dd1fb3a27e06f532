package s3

import (
	"context"
	"testing"

	"insightcore/pkg/domain"
)

func sections(id string, avgs ...float64) *domain.Dataset {
	records := make([]domain.Record, 0, len(avgs))
	for i, avg := range avgs {
		records = append(records, domain.Section{UUID: string(rune('a' + i)), Dept: "cpsc", Avg: avg})
	}
	return &domain.Dataset{ID: id, Kind: domain.KindSections, Records: records}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for missing bucket")
	}
}

func TestRoundTripThroughMockTransport(t *testing.T) {
	a := NewMockForTests("datasets/")
	ctx := context.Background()

	if _, err := a.Save(ctx, sections("first", 80)); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if _, err := a.Save(ctx, sections("second", 70, 90)); err != nil {
		t.Fatalf("save second: %v", err)
	}

	datasets, err := a.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(datasets) != 2 {
		t.Fatalf("loaded %d datasets, want 2", len(datasets))
	}
	if datasets[0].ID != "first" || datasets[1].ID != "second" {
		t.Fatalf("order = %q, %q", datasets[0].ID, datasets[1].ID)
	}
	if datasets[1].NumRows() != 2 {
		t.Fatalf("second dataset rows = %d, want 2", datasets[1].NumRows())
	}
}

func TestDeleteThroughMockTransport(t *testing.T) {
	a := NewMockForTests("")
	ctx := context.Background()
	if _, err := a.Save(ctx, sections("courses", 80)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if removed, err := a.Delete(ctx, "courses"); err != nil || !removed {
		t.Fatalf("delete = (%v, %v), want (true, nil)", removed, err)
	}
	if removed, err := a.Delete(ctx, "courses"); err != nil || removed {
		t.Fatalf("repeat delete = (%v, %v), want (false, nil)", removed, err)
	}
	datasets, err := a.LoadAll(ctx)
	if err != nil || datasets != nil {
		t.Fatalf("after delete got (%v, %v), want (nil, nil)", datasets, err)
	}
}
