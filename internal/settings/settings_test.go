package settings_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/quillblog/quill/internal/apperr"
	"github.com/quillblog/quill/internal/codec"
	"github.com/quillblog/quill/internal/db/controller/history"
	"github.com/quillblog/quill/internal/db/controller/setting"
	"github.com/quillblog/quill/internal/db/dbtest"
	"github.com/quillblog/quill/internal/db/models"
	"github.com/quillblog/quill/internal/settings"
)

var admin = settings.Meta{Actor: models.Actor{ID: "1", Name: "Admin", Email: "admin@example.com"}}

// tickingClock advances one second per call.
func tickingClock() func() time.Time {
	var (
		mu  sync.Mutex
		now = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	)

	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()

		now = now.Add(time.Second)

		return now
	}
}

func newService(t *testing.T, opts ...settings.Option) (*settings.Service, *gorm.DB) {
	t.Helper()

	db := dbtest.New(t)

	return settings.New(db, append([]settings.Option{settings.WithClock(tickingClock())}, opts...)...), db
}

func historyValues(t *testing.T, svc *settings.Service, key string) []any {
	t.Helper()

	page, err := svc.History(context.Background(), key, 1, 100)
	require.NoError(t, err)

	// oldest first
	out := make([]any, 0, len(page.History))
	for i := len(page.History) - 1; i >= 0; i-- {
		out = append(out, page.History[i].NewValue)
	}

	return out
}

func TestUpsertRecordsEveryWrite(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	values := []any{"light", "dark", "solarized", "dark"}

	for _, v := range values {
		_, err := svc.Upsert(ctx, settings.Input{Key: "appearance.theme", Value: v, Group: "appearance"}, admin)
		require.NoError(t, err)
	}

	assert.Equal(t, values, historyValues(t, svc, "appearance.theme"))

	page, err := svc.History(ctx, "appearance.theme", 1, 100)
	require.NoError(t, err)
	require.Len(t, page.History, 4)
	assert.Equal(t, int64(4), page.Pagination.Total)

	oldest := page.History[3]
	assert.Equal(t, models.ActionCreate, oldest.Action)
	assert.Nil(t, oldest.OldValue)
	require.NotNil(t, oldest.ChangedBy)
	assert.Equal(t, "Admin", oldest.ChangedBy.Name)

	newest := page.History[0]
	assert.Equal(t, models.ActionUpdate, newest.Action)
	assert.Equal(t, "solarized", newest.OldValue)
}

func TestUpsertKeepsTypes(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	inputs := []settings.Input{
		{Key: "posts.perPage", Value: 10, Group: "posts"},
		{Key: "posts.showExcerpt", Value: true, Group: "posts"},
		{Key: "about.skills", Value: []string{"go", "sql"}, Group: "about"},
		{Key: "general.zip", Value: "0042"},
	}

	for _, in := range inputs {
		_, err := svc.Upsert(ctx, in, admin)
		require.NoError(t, err)
	}

	flat, err := svc.Flat(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"posts.perPage":     float64(10),
		"posts.showExcerpt": true,
		"about.skills":      []any{"go", "sql"},
		"general.zip":       "0042",
	}, flat)

	zip, err := svc.Get(ctx, "general.zip")
	require.NoError(t, err)
	assert.Equal(t, "general", zip.Group)
}

func TestUpsertValidation(t *testing.T) {
	svc, _ := newService(t)

	testCases := []struct {
		name  string
		input settings.Input
	}{
		{name: "empty key", input: settings.Input{Value: "x", Group: "general"}},
		{name: "bad key", input: settings.Input{Key: "general..name", Value: "x", Group: "general"}},
		{name: "bad group", input: settings.Input{Key: "general.name", Value: "x", Group: "Not A Group"}},
		{name: "unserializable value", input: settings.Input{Key: "general.name", Value: make(chan int), Group: "general"}},
		{name: "key too long", input: settings.Input{Key: "general." + strings.Repeat("x", codec.MaxKeyLength), Value: "x", Group: "general"}},
		{name: "reserved key export", input: settings.Input{Key: "export", Value: "x", Group: "general"}},
		{name: "reserved key batch", input: settings.Input{Key: "batch", Value: "x", Group: "general"}},
		{name: "group not inferable", input: settings.Input{Key: "_draft.title", Value: "x"}},
		{name: "inferred group too long", input: settings.Input{Key: strings.Repeat("g", 65) + ".title", Value: "x"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upsert(context.Background(), tc.input, admin)
			require.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	page, err := svc.History(context.Background(), "", 1, 10)
	require.NoError(t, err)
	assert.Empty(t, page.History)
}

func TestReservedKeyMessage(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Upsert(context.Background(), settings.Input{Key: "import", Value: "x", Group: "general"}, admin)
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), `"import" is reserved`)

	// reserved names are fine below a group
	_, err = svc.Upsert(context.Background(), settings.Input{Key: "general.export", Value: "x"}, admin)
	require.NoError(t, err)
}

func TestSnapshotPathClash(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name   string
		first  settings.Input
		second settings.Input
		clash  bool
	}{
		{
			name:   "bare key after prefixed key",
			first:  settings.Input{Key: "appearance.theme", Value: "dark", Group: "appearance"},
			second: settings.Input{Key: "theme", Value: "light", Group: "appearance"},
			clash:  true,
		},
		{
			name:   "prefixed key after bare key",
			first:  settings.Input{Key: "theme", Value: "light", Group: "appearance"},
			second: settings.Input{Key: "appearance.theme", Value: "dark"},
			clash:  true,
		},
		{
			name:   "other group",
			first:  settings.Input{Key: "appearance.theme", Value: "dark", Group: "appearance"},
			second: settings.Input{Key: "theme", Value: "light", Group: "legacy"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newService(t)

			_, err := svc.Upsert(ctx, tc.first, admin)
			require.NoError(t, err)

			_, err = svc.Upsert(ctx, tc.second, admin)
			if !tc.clash {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, settings.ErrSnapshotPathTaken)
			require.ErrorIs(t, err, apperr.ErrValidation)

			snapshot, err := svc.Snapshot(ctx, "appearance")
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"appearance": map[string]any{"theme": tc.first.Value}}, snapshot)
		})
	}
}

func TestBatchSnapshotPathClash(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Batch(ctx, []settings.Input{
		{Key: "appearance.theme", Value: "dark", Group: "appearance"},
		{Key: "theme", Value: "light", Group: "appearance"},
	}, admin)

	var batchErr *settings.BatchError
	require.ErrorAs(t, err, &batchErr)
	require.Len(t, batchErr.Failures, 1)
	assert.Equal(t, 1, batchErr.Failures[0].Index)
	assert.Equal(t, "theme", batchErr.Failures[0].Key)

	empty, err := svc.Empty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, settings.Input{Key: "security.captcha", Value: true, Group: "security"}, admin)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "security.captcha", admin))

	_, err = svc.Get(ctx, "security.captcha")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	err = svc.Delete(ctx, "security.captcha", admin)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	page, err := svc.History(ctx, "security.captcha", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.History, 2)
	assert.Equal(t, models.ActionDelete, page.History[0].Action)
	assert.Nil(t, page.History[0].NewValue)
	assert.Equal(t, true, page.History[0].OldValue)
	assert.Equal(t, "security", page.History[0].Group)
}

func TestRollbackRestoresVersion(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for _, v := range []string{"v1", "v2", "v3"} {
		_, err := svc.Upsert(ctx, settings.Input{Key: "general.tagline", Value: v, Group: "general"}, admin)
		require.NoError(t, err)
	}

	page, err := svc.History(ctx, "general.tagline", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.History, 3)

	v2 := page.History[1]
	require.Equal(t, "v2", v2.NewValue)

	restored, err := svc.Rollback(ctx, v2.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, codec.String("v2"), restored.TypedValue())

	current, err := svc.Get(ctx, "general.tagline")
	require.NoError(t, err)
	assert.Equal(t, codec.String("v2"), current.TypedValue())

	after, err := svc.History(ctx, "general.tagline", 1, 10)
	require.NoError(t, err)
	require.Len(t, after.History, 4)

	rb := after.History[0]
	assert.Equal(t, models.ActionRollback, rb.Action)
	assert.Equal(t, "v3", rb.OldValue)
	assert.Equal(t, "v2", rb.NewValue)
	require.NotNil(t, rb.RestoredFrom)
	assert.Equal(t, v2.ID, *rb.RestoredFrom)
	assert.Equal(t, "Rolled back to entry "+v2.ID, rb.Description)

	// earlier entries are untouched
	for i := range page.History {
		assert.Equal(t, page.History[i], after.History[i+1])
	}

	// the rollback entry can itself be rolled back to
	_, err = svc.Upsert(ctx, settings.Input{Key: "general.tagline", Value: "v4", Group: "general"}, admin)
	require.NoError(t, err)

	_, err = svc.Rollback(ctx, rb.ID, admin)
	require.NoError(t, err)

	current, err = svc.Get(ctx, "general.tagline")
	require.NoError(t, err)
	assert.Equal(t, codec.String("v2"), current.TypedValue())

	assert.Equal(t, []any{"v1", "v2", "v3", "v2", "v4", "v2"}, historyValues(t, svc, "general.tagline"))
}

func TestRollbackEdgeCases(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Upsert(ctx, settings.Input{Key: "appearance.banner", Value: "a.png", Group: "appearance"}, admin)
	require.NoError(t, err)
	require.NotNil(t, created)

	require.NoError(t, svc.Delete(ctx, "appearance.banner", admin))

	page, err := svc.History(ctx, "appearance.banner", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.History, 2)

	deleted, create := page.History[0], page.History[1]

	// a deletion is no version to restore
	_, err = svc.Rollback(ctx, deleted.ID, admin)
	require.ErrorIs(t, err, settings.ErrRollbackToDelete)
	require.ErrorIs(t, err, apperr.ErrValidation)

	// restoring the created version revives the key
	restored, err := svc.Rollback(ctx, create.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, codec.String("a.png"), restored.TypedValue())
	assert.Equal(t, "appearance", restored.Group)

	page, err = svc.History(ctx, "appearance.banner", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.History, 3)
	assert.Equal(t, models.ActionRollback, page.History[0].Action)
	assert.Nil(t, page.History[0].OldValue)

	_, err = svc.Rollback(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV", admin)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestBatchApplies(t *testing.T) {
	var hooked []models.SettingHistory

	svc, _ := newService(t, settings.WithChangeHook(func(_ context.Context, entries []models.SettingHistory) {
		hooked = append(hooked, entries...)
	}))
	ctx := context.Background()

	result, err := svc.Batch(ctx, []settings.Input{
		{Key: "general.siteName", Value: "My Blog", Group: "general"},
		{Key: "appearance.theme", Value: "dark", Group: "appearance"},
		{Key: "general.siteName", Value: "My Better Blog", Group: "general"},
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Applied)
	assert.Equal(t, []string{"appearance", "general"}, result.Groups)

	snapshot, err := svc.Snapshot(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"general":    map[string]any{"siteName": "My Better Blog"},
		"appearance": map[string]any{"theme": "dark"},
	}, snapshot)

	require.Len(t, hooked, 3)
	assert.Equal(t, "Updated via batch update", hooked[0].Description)
	assert.Equal(t, []any{"My Blog", "My Better Blog"}, historyValues(t, svc, "general.siteName"))

	group, err := svc.Snapshot(ctx, "appearance")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"appearance": map[string]any{"theme": "dark"}}, group)
}

func TestBatchRejectsInvalidEntry(t *testing.T) {
	hookCalls := 0

	svc, _ := newService(t, settings.WithChangeHook(func(context.Context, []models.SettingHistory) {
		hookCalls++
	}))
	ctx := context.Background()

	_, err := svc.Upsert(ctx, settings.Input{Key: "general.siteName", Value: "Before", Group: "general"}, admin)
	require.NoError(t, err)

	hookCalls = 0

	_, err = svc.Batch(ctx, []settings.Input{
		{Key: "general.siteName", Value: "After", Group: "general"},
		{Key: "appearance.theme", Value: "dark", Group: "appearance"},
		{Key: "appearance.hook", Value: func() {}, Group: "appearance"},
		{Key: "posts.perPage", Value: 5, Group: "posts"},
		{Key: "about.bio", Value: "hi", Group: "about"},
	}, admin)
	require.Error(t, err)
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.ErrorIs(t, err, codec.ErrUnserializable)

	var batchErr *settings.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, []string{"appearance.hook"}, batchErr.Keys())
	assert.Equal(t, 2, batchErr.Failures[0].Index)

	flat, err := svc.Flat(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"general.siteName": "Before"}, flat)
	assert.Zero(t, hookCalls)
}

func TestBatchReportsEveryInvalidEntry(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Batch(context.Background(), []settings.Input{
		{Key: "bad key", Value: 1},
		{Key: "general.ok", Value: 1},
		{Key: "", Value: 1},
	}, admin)

	var batchErr *settings.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, []string{"bad key", ""}, batchErr.Keys())

	_, err = svc.Batch(context.Background(), nil, admin)
	require.ErrorIs(t, err, settings.ErrBatchEmpty)
}

func TestBatchStorageFailureRollsBack(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	errInjected := errors.New("disk full")

	// fail the insert of one key in the middle of the batch
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_key", func(tx *gorm.DB) {
		if s, ok := tx.Statement.Dest.(*models.Setting); ok && s.Key == "posts.perPage" {
			_ = tx.AddError(errInjected)
		}
	})
	require.NoError(t, err)

	_, err = svc.Batch(ctx, []settings.Input{
		{Key: "general.siteName", Value: "My Blog", Group: "general"},
		{Key: "appearance.theme", Value: "dark", Group: "appearance"},
		{Key: "posts.perPage", Value: 5, Group: "posts"},
		{Key: "about.bio", Value: "hi", Group: "about"},
	}, admin)
	require.Error(t, err)
	require.ErrorIs(t, err, apperr.ErrStorage)

	var batchErr *settings.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, []string{"posts.perPage"}, batchErr.Keys())

	n, err := setting.Count(db)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, total, err := history.ListAll(db, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestHistoryPagination(t *testing.T) {
	svc, _ := newService(t, settings.WithHistoryLimits(2, 3))
	ctx := context.Background()

	for i := range 5 {
		_, err := svc.Upsert(ctx, settings.Input{Key: "posts.perPage", Value: i + 1, Group: "posts"}, admin)
		require.NoError(t, err)
	}

	page, err := svc.History(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, settings.Pagination{Page: 1, Limit: 2, Total: 5, Pages: 3}, page.Pagination)
	require.Len(t, page.History, 2)
	assert.Equal(t, float64(5), page.History[0].NewValue)

	page, err = svc.History(ctx, "posts.perPage", 2, 50)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Pagination.Limit)
	require.Len(t, page.History, 2)
	assert.Equal(t, float64(2), page.History[0].NewValue)
}

func TestExportImport(t *testing.T) {
	source, _ := newService(t)
	ctx := context.Background()

	_, err := source.Batch(ctx, []settings.Input{
		{Key: "general.siteName", Value: "My Blog", Group: "general"},
		{Key: "about.skills", Value: []any{"go", "sql"}, Group: "about"},
		{Key: "posts.perPage", Value: 10, Group: "posts"},
	}, admin)
	require.NoError(t, err)

	doc, err := source.Export(ctx)
	require.NoError(t, err)
	require.Len(t, doc.Settings, 3)

	target, _ := newService(t)

	result, err := target.Import(ctx, doc, admin)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Applied)

	want, err := source.Snapshot(ctx, "")
	require.NoError(t, err)

	got, err := target.Snapshot(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	page, err := target.History(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "Updated via settings import", page.History[0].Description)
}

func TestConcurrentUpsertsKeepHistoryComplete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	var wg sync.WaitGroup

	for i := range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := svc.Upsert(ctx, settings.Input{Key: "posts.perPage", Value: i, Group: "posts"}, admin)
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	values := historyValues(t, svc, "posts.perPage")
	require.Len(t, values, 10)

	current, err := svc.Get(ctx, "posts.perPage")
	require.NoError(t, err)
	assert.Equal(t, values[len(values)-1], current.TypedValue().Decode())
}
