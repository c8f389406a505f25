package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/coachpo/meltica/internal/domain/model"
	"github.com/coachpo/meltica/internal/infra/persistence/migrations"
	pgstore "github.com/coachpo/meltica/internal/infra/persistence/postgres"
)

// setupInsightsDB starts a disposable Postgres container, applies the embedded migrations,
// and returns a pool plus a teardown func. Tests using it skip rather than fail when Docker
// is unavailable, matching tests/contract/persistence's own container-setup skip convention.
func setupInsightsDB(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_PASSWORD": "secret", "POSTGRES_USER": "postgres", "POSTGRES_DB": "insights"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Skipf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Skipf("container port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://postgres:secret@%s:%s/insights?sslmode=disable", host, port.Port())

	if err := migrations.Apply(ctx, dsn, "", nil); err != nil {
		_ = container.Terminate(ctx)
		t.Skipf("apply migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Skipf("connect pool: %v", err)
	}

	return pool, func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}
}

func TestInsightWriterWriteBatchPersistsRows(t *testing.T) {
	if os.Getenv("MELTICA_TEST_POSTGRES") == "" {
		t.Skip("set MELTICA_TEST_POSTGRES=1 to run container-backed persistence tests")
	}
	pool, teardown := setupInsightsDB(t)
	defer teardown()

	writer, err := pgstore.NewInsightWriter(pool, nil)
	if err != nil {
		t.Fatalf("new insight writer: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	batch := []model.Insight{
		{PipelineID: "p1", InstrumentID: "BTC-USDT", FeatureID: "sma_20", EventTime: now, Value: 100.5, InsightType: model.InsightTypeContinuous},
		{PipelineID: "p1", InstrumentID: "BTC-USDT", FeatureID: "sma_20", EventTime: now.Add(time.Second), Value: 101.0, InsightType: model.InsightTypeContinuous},
	}
	if err := writer.WriteBatch(context.Background(), batch); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	var count int
	row := pool.QueryRow(context.Background(), "SELECT count(*) FROM insights WHERE pipeline_id = $1", "p1")
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 persisted rows, got %d", count)
	}

	// Re-writing the same batch is idempotent: ON CONFLICT DO NOTHING keeps the count stable.
	if err := writer.WriteBatch(context.Background(), batch); err != nil {
		t.Fatalf("rewrite batch: %v", err)
	}
	row = pool.QueryRow(context.Background(), "SELECT count(*) FROM insights WHERE pipeline_id = $1", "p1")
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count rows after rewrite: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected idempotent write to keep 2 rows, got %d", count)
	}
}
