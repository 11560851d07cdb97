package audit

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/geocontrol/geocontrol-core/internal/infrastructure/database"
	_ "github.com/geocontrol/geocontrol-core/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "audit.db"), BusyTimeout: 5})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db.DB
}

func TestCreateAndList(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2025, 2, 18, 15, 0, 0, 0, time.UTC)

	entries := []*Entry{
		{Action: ActionCreate, EntityType: EntityNetwork, EntityID: "NET01", UserID: "usr-1", Source: "api", CreatedAt: base},
		{Action: ActionUpdate, EntityType: EntityNetwork, EntityID: "NET01", Source: "api",
			Details: map[string]any{"code": "NET09"}, CreatedAt: base.Add(time.Minute)},
		{Action: ActionCreate, EntityType: EntityGateway, EntityID: "NET09/GW01", Source: "api", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if e.ID == "" {
			t.Error("Create did not assign an ID")
		}
	}

	page, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 3 || len(page.Entries) != 3 || page.Limit != defaultLimit {
		t.Fatalf("page = %+v", page)
	}
	if page.Entries[0].EntityType != EntityGateway {
		t.Errorf("first entry = %+v, want newest first", page.Entries[0])
	}
	if got := page.Entries[1].Details["code"]; got != "NET09" {
		t.Errorf("details = %v", page.Entries[1].Details)
	}
	if page.Entries[2].UserID != "usr-1" || !page.Entries[2].CreatedAt.Equal(base) {
		t.Errorf("oldest entry = %+v", page.Entries[2])
	}

	filtered, err := repo.List(ctx, Filter{EntityType: EntityNetwork, Action: ActionUpdate})
	if err != nil {
		t.Fatalf("List(filtered): %v", err)
	}
	if filtered.Total != 1 || filtered.Entries[0].Action != ActionUpdate {
		t.Errorf("filtered = %+v", filtered)
	}

	paged, err := repo.List(ctx, Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List(paged): %v", err)
	}
	if paged.Total != 3 || len(paged.Entries) != 1 || paged.Entries[0].Action != ActionUpdate {
		t.Errorf("paged = %+v", paged)
	}
}

func TestListClampsAndEmpty(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	page, err := repo.List(context.Background(), Filter{Limit: 1000, Offset: -4})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Limit != maxLimit || page.Offset != 0 {
		t.Errorf("limit/offset = %d/%d", page.Limit, page.Offset)
	}
	if page.Entries == nil || len(page.Entries) != 0 {
		t.Errorf("entries = %v, want empty non-nil", page.Entries)
	}
}

type memRepo struct {
	mu      sync.Mutex
	entries []*Entry
	err     error
}

func (m *memRepo) Create(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memRepo) List(context.Context, Filter) (*Page, error) { return &Page{}, nil }

func TestRecorderDrainsOnClose(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, nil, 16)

	for i := 0; i < 10; i++ {
		rec.Record(Entry{Action: ActionCreate, EntityType: EntitySensor, Source: "api"})
	}
	rec.Close()

	if len(repo.entries) != 10 {
		t.Fatalf("written %d entries, want 10", len(repo.entries))
	}
	if repo.entries[0].CreatedAt.IsZero() {
		t.Error("Record should stamp CreatedAt")
	}

	// Records after Close are dropped, and a second Close is harmless.
	rec.Record(Entry{Action: ActionDelete})
	rec.Close()
	if len(repo.entries) != 10 {
		t.Errorf("entry recorded after Close")
	}
}

func TestRecorderSurvivesWriteErrors(t *testing.T) {
	repo := &memRepo{err: errors.New("locked")}
	rec := NewRecorder(repo, nil, 0)
	rec.Record(Entry{Action: ActionLogin, EntityType: EntityUser})
	rec.Close()
}

func TestNilRecorder(t *testing.T) {
	var rec *Recorder
	rec.Record(Entry{Action: ActionCreate})
	rec.Close()
}
