package archive

import (
	"context"
	"os"
	"strings"

	"insightcore/pkg/domain"
)

// Open selects an archive backend using environment variables.
//
//	INSIGHT_ARCHIVE_DRIVER: fs|memory|sqlite|postgres|s3 (default fs)
//	INSIGHT_ARCHIVE_FS_ROOT: directory root when driver=fs (default ./data)
//	INSIGHT_ARCHIVE_SQLITE_PATH: database file when driver=sqlite (default insightcore.db)
//	INSIGHT_ARCHIVE_POSTGRES_DSN: connection string when driver=postgres
//	INSIGHT_ARCHIVE_S3_BUCKET: bucket when driver=s3 (required)
//	INSIGHT_ARCHIVE_S3_REGION: region when driver=s3 (default us-east-1)
//	INSIGHT_ARCHIVE_S3_PREFIX: object key prefix when driver=s3 (optional)
//	INSIGHT_ARCHIVE_S3_ENDPOINT: endpoint URL when driver=s3 (optional, for MinIO)
//	INSIGHT_ARCHIVE_S3_PATH_STYLE: true|false when driver=s3 (default false)
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (optional)
func Open(ctx context.Context) (Archive, error) {
	driver := os.Getenv("INSIGHT_ARCHIVE_DRIVER")
	if driver == "" {
		driver = string(DriverFS)
	}
	switch Driver(driver) {
	case DriverFS:
		return NewFS(os.Getenv("INSIGHT_ARCHIVE_FS_ROOT"))
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return NewSQLite(os.Getenv("INSIGHT_ARCHIVE_SQLITE_PATH"))
	case DriverPostgres:
		return NewPostgres(ctx, os.Getenv("INSIGHT_ARCHIVE_POSTGRES_DSN"))
	case DriverS3:
		bucket := os.Getenv("INSIGHT_ARCHIVE_S3_BUCKET")
		if bucket == "" {
			return nil, domain.InsightError{Reason: "INSIGHT_ARCHIVE_S3_BUCKET required for s3 driver"}
		}
		return NewS3(ctx, S3Config{
			Bucket:    bucket,
			Region:    os.Getenv("INSIGHT_ARCHIVE_S3_REGION"),
			Prefix:    os.Getenv("INSIGHT_ARCHIVE_S3_PREFIX"),
			Endpoint:  os.Getenv("INSIGHT_ARCHIVE_S3_ENDPOINT"),
			PathStyle: strings.EqualFold(os.Getenv("INSIGHT_ARCHIVE_S3_PATH_STYLE"), "true"),
		})
	default:
		return nil, domain.Insightf("unknown archive driver %q", driver)
	}
}
