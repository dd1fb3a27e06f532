package archive

import (
	"context"
	"testing"
)

func TestOpenDefaultsToFilesystem(t *testing.T) {
	t.Setenv("INSIGHT_ARCHIVE_DRIVER", "")
	t.Setenv("INSIGHT_ARCHIVE_FS_ROOT", t.TempDir())
	a, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if a.Driver() != DriverFS {
		t.Fatalf("driver = %q, want %q", a.Driver(), DriverFS)
	}
}

func TestOpenMemory(t *testing.T) {
	t.Setenv("INSIGHT_ARCHIVE_DRIVER", "memory")
	a, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if a.Driver() != DriverMemory {
		t.Fatalf("driver = %q, want %q", a.Driver(), DriverMemory)
	}
}

func TestOpenSQLite(t *testing.T) {
	t.Setenv("INSIGHT_ARCHIVE_DRIVER", "sqlite")
	t.Setenv("INSIGHT_ARCHIVE_SQLITE_PATH", t.TempDir()+"/archive.db")
	a, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if a.Driver() != DriverSQLite {
		t.Fatalf("driver = %q, want %q", a.Driver(), DriverSQLite)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Setenv("INSIGHT_ARCHIVE_DRIVER", "tape")
	if _, err := Open(context.Background()); err == nil {
		t.Fatal("expected unknown driver error")
	}
}

func TestOpenS3RequiresBucket(t *testing.T) {
	t.Setenv("INSIGHT_ARCHIVE_DRIVER", "s3")
	t.Setenv("INSIGHT_ARCHIVE_S3_BUCKET", "")
	if _, err := Open(context.Background()); err == nil {
		t.Fatal("expected missing bucket error")
	}
}
