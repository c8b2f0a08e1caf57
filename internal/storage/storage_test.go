package storage_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slides/internal/domain"
	"slides/internal/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "slides.db"), filepath.Join(dir, "data"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// ─────────────────────────────────────────────────────────────
// Dialect
// ─────────────────────────────────────────────────────────────

func TestDialect_Rebind(t *testing.T) {
	q := `SELECT a FROM t WHERE x = ? AND y = ?`
	assert.Equal(t, q, storage.DialectSQLite.Rebind(q))
	assert.Equal(t, q, storage.DialectMySQL.Rebind(q))
	assert.Equal(t, `SELECT a FROM t WHERE x = $1 AND y = $2`, storage.DialectPostgres.Rebind(q))
}

func TestDialect_Upsert(t *testing.T) {
	assert.Equal(t, "ON DUPLICATE KEY UPDATE value = VALUES(value)",
		storage.DialectMySQL.Upsert("setting_key", "value"))
	assert.Equal(t, "ON CONFLICT(setting_key) DO UPDATE SET value = excluded.value",
		storage.DialectPostgres.Upsert("setting_key", "value"))
}

func TestDialectFor_Unknown(t *testing.T) {
	_, err := storage.DialectFor("oracle")
	assert.Error(t, err)
}

func TestMongoURI(t *testing.T) {
	assert.Equal(t, "mongodb://localhost:27017", storage.MongoURI(storage.ServerConfig{Host: "localhost"}))
	assert.Equal(t, "mongodb://me:pw@db:27018",
		storage.MongoURI(storage.ServerConfig{Host: "db", Port: 27018, User: "me", Password: "pw"}))
	assert.Equal(t, "mongodb+srv://me:pw@cluster.example.net",
		storage.MongoURI(storage.ServerConfig{Host: "mongodb+srv://me:<password>@cluster.example.net", Password: "pw"}))
}

// ─────────────────────────────────────────────────────────────
// DeckStore
// ─────────────────────────────────────────────────────────────

func TestDeckStore_CreateGetRename(t *testing.T) {
	store := storage.NewDeckStore(openTestDB(t))

	d := &domain.Deck{ID: "deck-1", Name: "Quarterly"}
	require.NoError(t, store.CreateDeck(d))
	assert.False(t, d.CreatedAt.IsZero())

	got, err := store.GetDeck("deck-1")
	require.NoError(t, err)
	assert.Equal(t, "Quarterly", got.Name)
	assert.Equal(t, 0, got.SlideCount)

	got.Name = "Quarterly review"
	require.NoError(t, store.UpdateDeck(got))

	again, err := store.GetDeck("deck-1")
	require.NoError(t, err)
	assert.Equal(t, "Quarterly review", again.Name)
}

func TestDeckStore_GetMissing(t *testing.T) {
	store := storage.NewDeckStore(openTestDB(t))
	_, err := store.GetDeck("nope")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestDeckStore_ReplaceAndLoadSlides(t *testing.T) {
	store := storage.NewDeckStore(openTestDB(t))
	require.NoError(t, store.CreateDeck(&domain.Deck{ID: "d", Name: "D"}))

	title := domain.NewElement(10, domain.KindText, "Title")
	title.Style.FontWeight = "bold"
	photo := domain.NewElement(11, domain.KindImage, "data:image/png;base64,AAAA")
	photo.Source = "/tmp/photo.png"

	slides := []domain.Slide{
		{ID: 2, Elements: []domain.Element{photo, title}, Background: &domain.Background{Color: "#112233"}},
		{ID: 1, Elements: []domain.Element{}},
	}
	require.NoError(t, store.ReplaceSlides("d", slides))

	got, err := store.LoadSlides("d")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// presentation and z-order survive the round trip
	assert.Equal(t, 2, got[0].ID)
	assert.Equal(t, 1, got[1].ID)
	require.Len(t, got[0].Elements, 2)
	assert.Equal(t, photo, got[0].Elements[0])
	assert.Equal(t, title, got[0].Elements[1])
	assert.Equal(t, &domain.Background{Color: "#112233"}, got[0].Background)
	assert.Nil(t, got[1].Background)
	assert.NotNil(t, got[1].Elements)

	deck, err := store.GetDeck("d")
	require.NoError(t, err)
	assert.Equal(t, 2, deck.SlideCount)

	// a second save replaces rather than appends
	require.NoError(t, store.ReplaceSlides("d", slides[1:]))
	got, err = store.LoadSlides("d")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDeckStore_DeleteDeck(t *testing.T) {
	db := openTestDB(t)
	store := storage.NewDeckStore(db)
	require.NoError(t, store.CreateDeck(&domain.Deck{ID: "d", Name: "D"}))
	require.NoError(t, store.ReplaceSlides("d", []domain.Slide{{ID: 1, Elements: []domain.Element{}}}))

	require.NoError(t, store.DeleteDeck("d"))

	decks, err := store.ListDecks()
	require.NoError(t, err)
	assert.Empty(t, decks)
	slides, err := store.LoadSlides("d")
	require.NoError(t, err)
	assert.Empty(t, slides)
}

// ─────────────────────────────────────────────────────────────
// RevisionStore
// ─────────────────────────────────────────────────────────────

func TestRevisionStore_CreateLoad(t *testing.T) {
	revs := storage.NewRevisionStore(openTestDB(t))
	slides := []domain.Slide{{ID: 1, Elements: []domain.Element{domain.NewElement(5, domain.KindText, "hi")}}}

	rev, err := revs.Create("d", "before cleanup", slides)
	require.NoError(t, err)

	got, snapshot, err := revs.Load(rev.ID)
	require.NoError(t, err)
	assert.Equal(t, "before cleanup", got.Label)
	assert.Equal(t, slides, snapshot)

	_, _, err = revs.Load("missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestRevisionStore_Prunes(t *testing.T) {
	revs := storage.NewRevisionStore(openTestDB(t))
	slides := []domain.Slide{{ID: 1, Elements: []domain.Element{}}}

	first, err := revs.Create("d", "first", slides)
	require.NoError(t, err)
	for i := 0; i < storage.MaxRevisions; i++ {
		time.Sleep(time.Millisecond)
		_, err := revs.Create("d", "r", slides)
		require.NoError(t, err)
	}

	list, err := revs.List("d")
	require.NoError(t, err)
	assert.Len(t, list, storage.MaxRevisions)
	for _, r := range list {
		assert.NotEqual(t, first.ID, r.ID, "oldest revision should have been pruned")
	}
}

// ─────────────────────────────────────────────────────────────
// ExportJobStore
// ─────────────────────────────────────────────────────────────

func TestExportJobStore_Lifecycle(t *testing.T) {
	jobs := storage.NewExportJobStore(openTestDB(t))

	manual := &domain.ExportJob{DeckID: "d", Format: "pdf", OutputPath: "/tmp/d.pdf", Enabled: true}
	nightly := &domain.ExportJob{DeckID: "d", Format: "pptx", OutputPath: "/tmp/d.pptx", Schedule: "0 2 * * *", Enabled: true}
	paused := &domain.ExportJob{DeckID: "d", Format: "docx", OutputPath: "/tmp/d.docx", Schedule: "@hourly"}
	for _, j := range []*domain.ExportJob{manual, nightly, paused} {
		require.NoError(t, jobs.CreateJob(j))
		require.NotEmpty(t, j.ID)
	}

	scheduled, err := jobs.ListScheduledJobs()
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, nightly.ID, scheduled[0].ID)

	now := time.Now().UTC()
	nightly.LastRunAt = &now
	nightly.LastError = "disk full"
	require.NoError(t, jobs.UpdateJob(nightly))

	got, err := jobs.GetJob(nightly.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastRunAt)
	assert.Equal(t, "disk full", got.LastError)

	require.NoError(t, jobs.DeleteJob(manual.ID))
	all, err := jobs.ListJobs()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = jobs.GetJob(manual.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

// ─────────────────────────────────────────────────────────────
// SettingsStore
// ─────────────────────────────────────────────────────────────

func TestSettingsStore_Upsert(t *testing.T) {
	settings := storage.NewSettingsStore(openTestDB(t))

	_, ok, err := settings.Get("dictation_locale")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, settings.Set("dictation_locale", "en-US"))
	require.NoError(t, settings.Set("dictation_locale", "ko-KR"))

	v, ok, err := settings.Get("dictation_locale")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ko-KR", v)

	require.NoError(t, settings.Delete("dictation_locale"))
	_, ok, _ = settings.Get("dictation_locale")
	assert.False(t, ok)
}

func TestNew_MigratesTwice(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slides.db")
	db, err := storage.New(path, dir)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = storage.New(path, dir)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

// ─────────────────────────────────────────────────────────────
// MCP approvals
// ─────────────────────────────────────────────────────────────

func TestApprovalStore_Lifecycle(t *testing.T) {
	store := storage.NewApprovalStore(openTestDB(t))

	a := &storage.Approval{ID: "a1", Tool: "delete_slide", Description: "Delete slide 2", Metadata: "{}"}
	require.NoError(t, store.Create(a))

	pending, err := store.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "delete_slide", pending[0].Tool)

	require.NoError(t, store.Resolve("a1", true))
	status, err := store.Status("a1")
	require.NoError(t, err)
	assert.Equal(t, storage.ApprovalApproved, status)

	assert.ErrorIs(t, store.Resolve("a1", false), storage.ErrNotFound, "already resolved")

	pending, err = store.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, store.Delete("a1"))
	_, err = store.Status("a1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
