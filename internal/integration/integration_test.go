package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"knowledgeflow/internal/app"
	"knowledgeflow/internal/catalog"
	"knowledgeflow/internal/docstore"
	"knowledgeflow/internal/docstore/storetest"
	"knowledgeflow/internal/domain"
	pgarchive "knowledgeflow/internal/infra/postgres"
	pgmigrations "knowledgeflow/internal/infra/postgres/migrations"
	infraredis "knowledgeflow/internal/infra/redis"
)

func TestEnrollmentAgainstRedisAndPostgres(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	archive := pgarchive.NewCourseArchive(pool)

	course := sampleCourse()
	if err := archive.SaveCourse(ctx, course); err != nil {
		t.Fatalf("seed archive: %v", err)
	}
	if _, err := archive.LoadCourse(ctx, "missing"); !errors.Is(err, domain.ErrCourseNotFound) {
		t.Fatalf("expected not found from archive, got %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()
	store := docstore.WithTimeout(infraredis.NewStore(redisClient, "kf:"), 5*time.Second)

	// The course only exists in Postgres; the catalog restores it on first read.
	cat := catalog.New(store, archive, nil)
	enrollments := app.NewEnrollmentManager(store, cat, nil)
	progress := app.NewProgressTracker(store)
	view := app.NewViewBuilder(enrollments, progress, cat, nil)

	if _, err := enrollments.Enroll(ctx, "alice", course.ID); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if _, err := enrollments.Enroll(ctx, "alice", course.ID); !errors.Is(err, domain.ErrAlreadyEnrolled) {
		t.Fatalf("expected already enrolled, got %v", err)
	}

	fifty := 50
	if _, err := progress.UpdateProgress(ctx, domain.PartialProgressUpdate{
		LearnerID: "alice", CourseID: course.ID, OverallProgress: &fifty,
	}); err != nil {
		t.Fatalf("update progress: %v", err)
	}

	rows, err := view.BuildView(ctx, "alice")
	if err != nil {
		t.Fatalf("build view: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != course.ID || rows[0].Progress != 50 || rows[0].Title != course.Title {
		t.Fatalf("unexpected view %+v", rows)
	}

	full, err := cat.Get(ctx, course.ID)
	if err != nil {
		t.Fatalf("get course: %v", err)
	}
	if full.Students != 1 || len(full.Lessons) != 1 {
		t.Fatalf("expected restored course with one student, got %+v", full)
	}
}

func TestRedisStoreContract(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, cleanup := startRedis(t, ctx)
	defer cleanup()
	client, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer client.Close()

	n := 0
	storetest.Run(t, func(t *testing.T) docstore.Store {
		n++
		return infraredis.NewStore(client, fmt.Sprintf("it%d:", n))
	})
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "kf", "POSTGRES_PASSWORD": "kfpass", "POSTGRES_DB": "knowledgeflow"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://kf:kfpass@%s:%s/knowledgeflow?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func runMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleCourse() domain.Course {
	return domain.Course{
		CourseSummary: domain.CourseSummary{
			ID:              "course-1",
			Title:           "Distributed Systems",
			Description:     "Consensus, replication and friends",
			Category:        "programming",
			ThumbnailURL:    "https://img/ds",
			CreatorUsername: "inst",
		},
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
		Lessons:   []domain.Lesson{{ID: "l1", Title: "Raft", Content: "leaders", Order: 1}},
		Quizzes:   []domain.Quiz{},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
