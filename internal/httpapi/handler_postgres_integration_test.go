package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"sensormap/core-go/internal/db"
)

func requireTestDatabaseURL(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres integration test")
	}
	return dsn
}

func mustDeriveDatabaseURL(t *testing.T, baseURL, dbName string) string {
	t.Helper()

	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		t.Skipf("TEST_DATABASE_URL must be a URL-style DSN (e.g. postgres://...); got %q", baseURL)
	}

	u.Path = "/" + dbName
	return u.String()
}

func newTestDatabaseName() string {
	// Safe identifier (letters/digits/underscores) so we can use it without quoting.
	return fmt.Sprintf("sensormap_test_%d", time.Now().UnixNano())
}

func createDatabase(ctx context.Context, adminURL, dbName string) error {
	adminConn, err := pgx.Connect(ctx, adminURL)
	if err != nil {
		return err
	}
	defer adminConn.Close(ctx)

	_, err = adminConn.Exec(ctx, "CREATE DATABASE "+dbName)
	return err
}

func dropDatabase(ctx context.Context, adminURL, dbName string) error {
	adminConn, err := pgx.Connect(ctx, adminURL)
	if err != nil {
		return err
	}
	defer adminConn.Close(ctx)

	if _, err := adminConn.Exec(ctx, "DROP DATABASE "+dbName+" WITH (FORCE)"); err == nil {
		return nil
	}
	_, err = adminConn.Exec(ctx, "DROP DATABASE "+dbName)
	return err
}

func migrationsDir(t *testing.T) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	repoRoot := filepath.Clean(filepath.Join(filepath.Dir(thisFile), "..", ".."))
	return filepath.Join(repoRoot, "migrations")
}

func applyMigrations(ctx context.Context, conn *pgx.Conn, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var ups []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".up.sql") {
			ups = append(ups, name)
		}
	}
	sort.Strings(ups)

	for _, name := range ups {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := conn.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}

	return nil
}

func openTestDatabase(t *testing.T, ctx context.Context) *db.Pool {
	t.Helper()
	adminURL := requireTestDatabaseURL(t)

	dbName := newTestDatabaseName()
	testDBURL := mustDeriveDatabaseURL(t, adminURL, dbName)

	if err := createDatabase(ctx, adminURL, dbName); err != nil {
		t.Fatalf("create database: %v", err)
	}
	t.Cleanup(func() {
		_ = dropDatabase(context.Background(), adminURL, dbName)
	})

	mConn, err := pgx.Connect(ctx, testDBURL)
	if err != nil {
		t.Fatalf("connect for migrations: %v", err)
	}
	if err := applyMigrations(ctx, mConn, migrationsDir(t)); err != nil {
		_ = mConn.Close(ctx)
		t.Fatalf("apply migrations: %v", err)
	}
	if err := mConn.Close(ctx); err != nil {
		t.Fatalf("close migration connection: %v", err)
	}

	pool, err := db.Open(ctx, testDBURL)
	if err != nil {
		t.Fatalf("open db pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestHandler_Postgres_DataMapCRUD(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool := openTestDatabase(t, ctx)

	h := NewHandler(NewLogger("error"), pool, Deps{})
	router := h.Router()

	rrReady := httptest.NewRecorder()
	router.ServeHTTP(rrReady, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rrReady.Code != http.StatusOK {
		t.Fatalf("readyz expected 200, got %d: %s", rrReady.Code, rrReady.Body.String())
	}

	// Flatten the scenario tree through the API, then store the result.
	rrFlat := httptest.NewRecorder()
	router.ServeHTTP(rrFlat, httptest.NewRequest(http.MethodPost, "/api/v1/datamaps/flatten", strings.NewReader(scenarioTreeJSON)))
	if rrFlat.Code != http.StatusOK {
		t.Fatalf("flatten expected 200, got %d: %s", rrFlat.Code, rrFlat.Body.String())
	}
	var flat map[string]any
	if err := json.NewDecoder(rrFlat.Body).Decode(&flat); err != nil {
		t.Fatalf("decode flatten response: %v", err)
	}
	flat["name"] = "integration"
	payload, err := json.Marshal(flat)
	if err != nil {
		t.Fatalf("encode create payload: %v", err)
	}

	rrCreate := httptest.NewRecorder()
	reqCreate := httptest.NewRequest(http.MethodPost, "/api/v1/projects/p1/datamaps", strings.NewReader(string(payload)))
	reqCreate.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rrCreate, reqCreate)
	if rrCreate.Code != http.StatusCreated {
		t.Fatalf("create expected 201, got %d: %s", rrCreate.Code, rrCreate.Body.String())
	}

	var created dataMap
	if err := json.NewDecoder(rrCreate.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected created map id to be set")
	}
	if len(created.Sensors) != 3 || len(created.Files) != 1 {
		t.Fatalf("expected stored scenario map, got %+v", created.FlatMap)
	}

	rrList := httptest.NewRecorder()
	router.ServeHTTP(rrList, httptest.NewRequest(http.MethodGet, "/api/v1/projects/p1/datamaps", nil))
	if rrList.Code != http.StatusOK {
		t.Fatalf("list expected 200, got %d: %s", rrList.Code, rrList.Body.String())
	}
	var listed []dataMap
	if err := json.NewDecoder(rrList.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("expected created map %s in list, got %+v", created.ID, listed)
	}

	rrOther := httptest.NewRecorder()
	router.ServeHTTP(rrOther, httptest.NewRequest(http.MethodGet, "/api/v1/projects/p2/datamaps/"+created.ID, nil))
	if rrOther.Code != http.StatusNotFound {
		t.Fatalf("get from another project expected 404, got %d", rrOther.Code)
	}

	update := `{"name":"renamed","version":2,"files":{},"sensors":{"Bldg 1":{"level":"building"}}}`
	rrUpdate := httptest.NewRecorder()
	router.ServeHTTP(rrUpdate, httptest.NewRequest(http.MethodPut, "/api/v1/projects/p1/datamaps/"+created.ID, strings.NewReader(update)))
	if rrUpdate.Code != http.StatusOK {
		t.Fatalf("update expected 200, got %d: %s", rrUpdate.Code, rrUpdate.Body.String())
	}
	var updated dataMap
	if err := json.NewDecoder(rrUpdate.Body).Decode(&updated); err != nil {
		t.Fatalf("decode update response: %v", err)
	}
	if updated.Name != "renamed" || updated.Version != 2 || len(updated.Sensors) != 1 {
		t.Fatalf("expected updated map, got %+v", updated.FlatMap)
	}
	if updated.UpdatedAt.Before(updated.CreatedAt) {
		t.Fatalf("updated_at %s before created_at %s", updated.UpdatedAt, updated.CreatedAt)
	}

	rrClone := httptest.NewRecorder()
	router.ServeHTTP(rrClone, httptest.NewRequest(http.MethodPost, "/api/v1/projects/p1/datamaps/"+created.ID+"/clone", strings.NewReader(`{"known_files":[]}`)))
	if rrClone.Code != http.StatusOK {
		t.Fatalf("clone expected 200, got %d: %s", rrClone.Code, rrClone.Body.String())
	}
	var tree struct {
		Name     string `json:"name"`
		Children []struct {
			Name string `json:"name"`
		} `json:"children"`
	}
	if err := json.NewDecoder(rrClone.Body).Decode(&tree); err != nil {
		t.Fatalf("decode clone response: %v", err)
	}
	if tree.Name != "renamed copy" || len(tree.Children) != 1 || tree.Children[0].Name != "Bldg 1" {
		t.Fatalf("unexpected cloned tree: %+v", tree)
	}
}
