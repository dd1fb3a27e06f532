package postgres

import (
	"context"
	"os"
	"testing"

	"insightcore/pkg/domain"
)

// openTestArchive connects to the database named by INSIGHT_ARCHIVE_POSTGRES_DSN
// and skips the test when the variable is unset. These are integration tests;
// they need a reachable server.
func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	dsn := os.Getenv("INSIGHT_ARCHIVE_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("INSIGHT_ARCHIVE_POSTGRES_DSN not set")
	}
	a, err := New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() {
		_, _ = a.DB().Exec(`DELETE FROM datasets`)
		_ = a.Close()
	})
	return a
}

func TestRoundTrip(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	ds := &domain.Dataset{ID: "courses", Kind: domain.KindSections,
		Records: []domain.Record{domain.Section{UUID: "1", Dept: "cpsc", Avg: 80}}}

	name, err := a.Save(ctx, ds)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !domain.MatchesID(name, "courses") {
		t.Fatalf("key %q does not match dataset id", name)
	}

	datasets, err := a.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(datasets) != 1 || datasets[0].ID != "courses" || datasets[0].NumRows() != 1 {
		t.Fatalf("datasets = %v", datasets)
	}

	if removed, err := a.Delete(ctx, "courses"); err != nil || !removed {
		t.Fatalf("delete = (%v, %v), want (true, nil)", removed, err)
	}
	if removed, err := a.Delete(ctx, "courses"); err != nil || removed {
		t.Fatalf("repeat delete = (%v, %v), want (false, nil)", removed, err)
	}
}
