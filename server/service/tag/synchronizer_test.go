package tag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	tagerrors "github.com/hrygo/tagsync/server/internal/errors"
	"github.com/hrygo/tagsync/store"
	teststore "github.com/hrygo/tagsync/store/test"
)

// MockIndexer records index notifications.
type MockIndexer struct {
	mu    sync.Mutex
	calls []map[string]string
	err   error
}

func (m *MockIndexer) Index(ctx context.Context, module string, itemID int64, fields map[string]string, language string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fields)
	return m.err
}

// faultyStore injects failures into the tag transaction of a real store.
type faultyStore struct {
	*store.Store
	createLinksErr error
	// conflicts is the number of CreateTag calls answered with store.ErrConflict.
	conflicts int
}

func (f *faultyStore) RunInTx(ctx context.Context, fn func(tx store.TagTx) error) error {
	return f.Store.RunInTx(ctx, func(tx store.TagTx) error {
		return fn(&faultyTx{TagTx: tx, store: f})
	})
}

type faultyTx struct {
	store.TagTx
	store *faultyStore
}

func (t *faultyTx) CreateTag(ctx context.Context, create *store.Tag) (*store.Tag, error) {
	if t.store.conflicts > 0 {
		t.store.conflicts--
		return nil, fmt.Errorf("failed to create tag: %w", store.ErrConflict)
	}
	return t.TagTx.CreateTag(ctx, create)
}

func (t *faultyTx) CreateTagLinks(ctx context.Context, batch *store.TagLinkBatch) (int64, error) {
	if t.store.createLinksErr != nil {
		return 0, t.store.createLinksErr
	}
	return t.TagTx.CreateTagLinks(ctx, batch)
}

func newTestingSynchronizer(t *testing.T) (*Synchronizer, *store.Store, *MockIndexer) {
	t.Helper()
	ts := teststore.NewTestingStore(context.Background(), t)
	indexer := &MockIndexer{}
	return NewSynchronizer(ts, indexer, StaticLocale("en")), ts, indexer
}

func getTagByText(ctx context.Context, t *testing.T, ts *store.Store, text string) *store.Tag {
	t.Helper()
	language := "en"
	tag, err := ts.GetTag(ctx, &store.FindTag{Text: &text, Language: &language})
	require.NoError(t, err)
	return tag
}

// requireCountsMatchLinks checks that every tag's count equals its number of links
// and that no zero-count tag survived.
func requireCountsMatchLinks(ctx context.Context, t *testing.T, ts *store.Store) {
	t.Helper()
	tags, err := ts.ListTags(ctx, &store.FindTag{})
	require.NoError(t, err)
	links, err := ts.ListTagLinks(ctx, &store.FindTagLink{})
	require.NoError(t, err)

	linkCount := map[int32]int32{}
	for _, link := range links {
		linkCount[link.TagID]++
	}
	for _, tag := range tags {
		require.Greater(t, tag.Count, int32(0), "tag %q has zero count", tag.Text)
		require.Equal(t, linkCount[tag.ID], tag.Count, "tag %q", tag.Text)
	}
}

func TestSyncCreatesAndRemovesTags(t *testing.T) {
	ctx := context.Background()
	s, ts, indexer := newTestingSynchronizer(t)

	// Desired set is normalized and deduplicated.
	result, err := s.Sync(ctx, &SyncRequest{Module: "Blog", ItemID: 42, Tags: []string{"Go", "go", "  RUST "}})
	require.NoError(t, err)
	require.Equal(t, []string{"go", "rust"}, result.Tags)
	require.Equal(t, []string{"go", "rust"}, result.Added)
	require.Len(t, result.Created, 2)
	require.True(t, result.Changed())
	require.Equal(t, "en", result.Language)

	for _, text := range []string{"go", "rust"} {
		tag := getTagByText(ctx, t, ts, text)
		require.NotNil(t, tag)
		require.Equal(t, int32(1), tag.Count)
		require.Equal(t, text, tag.Slug)
	}
	requireCountsMatchLinks(ctx, t, ts)
	require.Equal(t, map[string]string{IndexFieldTags: "go rust"}, indexer.calls[0])

	// Re-sync with a subset removes the dropped tag entirely.
	result, err = s.Sync(ctx, &SyncRequest{Module: "Blog", ItemID: 42, Tags: []string{"go"}})
	require.NoError(t, err)
	require.Empty(t, result.Added)
	require.Equal(t, []string{"rust"}, result.Removed)

	require.Nil(t, getTagByText(ctx, t, ts, "rust"))
	goTag := getTagByText(ctx, t, ts, "go")
	require.NotNil(t, goTag)
	require.Equal(t, int32(1), goTag.Count)
	requireCountsMatchLinks(ctx, t, ts)
}

func TestSyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, ts, _ := newTestingSynchronizer(t)

	_, err := s.Sync(ctx, &SyncRequest{Module: "blog", ItemID: 1, Tags: []string{"news", "go"}})
	require.NoError(t, err)
	before, err := ts.ListTags(ctx, &store.FindTag{})
	require.NoError(t, err)

	result, err := s.Sync(ctx, &SyncRequest{Module: "blog", ItemID: 1, Tags: []string{"GO", "News"}})
	require.NoError(t, err)
	require.False(t, result.Changed())
	require.Empty(t, result.Created)

	after, err := ts.ListTags(ctx, &store.FindTag{})
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Count, after[i].Count)
		assert.Equal(t, before[i].Slug, after[i].Slug)
	}
}

func TestSyncSharedTagCounts(t *testing.T) {
	ctx := context.Background()
	s, ts, _ := newTestingSynchronizer(t)

	_, err := s.SyncText(ctx, "blog", 1, "", "news, go")
	require.NoError(t, err)
	_, err = s.SyncText(ctx, "blog", 2, "", "news")
	require.NoError(t, err)
	_, err = s.SyncText(ctx, "pages", 1, "", "news")
	require.NoError(t, err)
	require.Equal(t, int32(3), getTagByText(ctx, t, ts, "news").Count)

	_, err = s.RemoveItem(ctx, "blog", 1, "")
	require.NoError(t, err)
	require.Equal(t, int32(2), getTagByText(ctx, t, ts, "news").Count)
	require.Nil(t, getTagByText(ctx, t, ts, "go"))
	requireCountsMatchLinks(ctx, t, ts)
}

func TestSyncLanguagesAreIndependent(t *testing.T) {
	ctx := context.Background()
	s, ts, _ := newTestingSynchronizer(t)

	_, err := s.Sync(ctx, &SyncRequest{Module: "blog", ItemID: 1, Language: "en", Tags: []string{"news"}})
	require.NoError(t, err)
	_, err = s.Sync(ctx, &SyncRequest{Module: "blog", ItemID: 1, Language: "nl", Tags: []string{"news"}})
	require.NoError(t, err)

	tags, err := ts.ListTags(ctx, &store.FindTag{})
	require.NoError(t, err)
	require.Len(t, tags, 2)
	for _, tag := range tags {
		require.Equal(t, "news", tag.Slug)
		require.Equal(t, int32(1), tag.Count)
	}
}

func TestSyncAllocatesDistinctSlugs(t *testing.T) {
	ctx := context.Background()
	s, ts, _ := newTestingSynchronizer(t)

	// "news!" and "news?" are different tags that share the slug base "news".
	_, err := s.Sync(ctx, &SyncRequest{Module: "blog", ItemID: 1, Tags: []string{"news", "news!", "news?"}})
	require.NoError(t, err)

	tags, err := ts.ListTags(ctx, &store.FindTag{})
	require.NoError(t, err)
	require.Len(t, tags, 3)
	slugs := map[string]bool{}
	for _, tag := range tags {
		require.False(t, slugs[tag.Slug], "duplicate slug %q", tag.Slug)
		slugs[tag.Slug] = true
	}
	require.True(t, slugs["news"])
	require.True(t, slugs["news-2"])
	require.True(t, slugs["news-3"])
}

func TestSyncConcurrentItems(t *testing.T) {
	ctx := context.Background()
	s, ts, _ := newTestingSynchronizer(t)

	g, gctx := errgroup.WithContext(ctx)
	for itemID := int64(1); itemID <= 8; itemID++ {
		itemID := itemID
		g.Go(func() error {
			_, err := s.Sync(gctx, &SyncRequest{Module: "blog", ItemID: itemID, Tags: []string{"go"}})
			return err
		})
	}
	require.NoError(t, g.Wait())

	require.Equal(t, int32(8), getTagByText(ctx, t, ts, "go").Count)
	requireCountsMatchLinks(ctx, t, ts)
}

func TestSyncConcurrentAddAndRemove(t *testing.T) {
	ctx := context.Background()
	s, ts, _ := newTestingSynchronizer(t)

	for itemID := int64(1); itemID <= 4; itemID++ {
		_, err := s.Sync(ctx, &SyncRequest{Module: "blog", ItemID: itemID, Tags: []string{"go", "rust"}})
		require.NoError(t, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for itemID := int64(1); itemID <= 4; itemID++ {
		itemID := itemID
		g.Go(func() error {
			_, err := s.Sync(gctx, &SyncRequest{Module: "blog", ItemID: itemID, Tags: []string{"go"}})
			return err
		})
		g.Go(func() error {
			_, err := s.Sync(gctx, &SyncRequest{Module: "pages", ItemID: itemID, Tags: []string{"rust", "zig"}})
			return err
		})
	}
	require.NoError(t, g.Wait())

	require.Equal(t, int32(4), getTagByText(ctx, t, ts, "go").Count)
	require.Equal(t, int32(4), getTagByText(ctx, t, ts, "rust").Count)
	require.Equal(t, int32(4), getTagByText(ctx, t, ts, "zig").Count)
	requireCountsMatchLinks(ctx, t, ts)
}

func TestSyncRollsBackOnPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	faulty := &faultyStore{Store: ts, createLinksErr: errors.New("disk full")}
	s := NewSynchronizer(faulty, nil, StaticLocale("en"))

	_, err := s.Sync(ctx, &SyncRequest{Module: "blog", ItemID: 1, Tags: []string{"go"}})
	require.Error(t, err)
	require.True(t, tagerrors.IsCode(err, tagerrors.ErrCodePersistence))

	tags, err := ts.ListTags(ctx, &store.FindTag{})
	require.NoError(t, err)
	require.Empty(t, tags)
}

func TestSyncRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)

	faulty := &faultyStore{Store: ts, conflicts: 1}
	s := NewSynchronizer(faulty, nil, StaticLocale("en"))
	result, err := s.Sync(ctx, &SyncRequest{Module: "blog", ItemID: 1, Tags: []string{"go"}})
	require.NoError(t, err)
	require.Equal(t, 2, result.Attempts)
	require.Equal(t, int32(1), getTagByText(ctx, t, ts, "go").Count)

	faulty.conflicts = SyncRetries
	_, err = s.Sync(ctx, &SyncRequest{Module: "blog", ItemID: 2, Tags: []string{"rust"}})
	require.Error(t, err)
	require.True(t, tagerrors.IsCode(err, tagerrors.ErrCodePersistence))
	require.ErrorIs(t, err, store.ErrConflict)
}

func TestSyncIndexerFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	s, ts, indexer := newTestingSynchronizer(t)
	indexer.err = errors.New("search unavailable")

	result, err := s.Sync(ctx, &SyncRequest{Module: "blog", ItemID: 1, Tags: []string{"go"}})
	require.NoError(t, err)
	require.Error(t, result.IndexErr)
	require.True(t, tagerrors.IsCode(result.IndexErr, tagerrors.ErrCodeIndexing))
	require.NotNil(t, getTagByText(ctx, t, ts, "go"))
}

func TestSyncValidation(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestingSynchronizer(t)

	_, err := s.Sync(ctx, &SyncRequest{Module: "  ", ItemID: 1, Tags: []string{"go"}})
	require.True(t, tagerrors.IsCode(err, tagerrors.ErrCodeInvalidArgument))

	noLocale := NewSynchronizer(s.store, nil, nil)
	_, err = noLocale.Sync(ctx, &SyncRequest{Module: "blog", ItemID: 1, Tags: []string{"go"}})
	require.True(t, tagerrors.IsCode(err, tagerrors.ErrCodeInvalidArgument))
}

func TestSweepCoalescesConcurrentCallers(t *testing.T) {
	ctx := context.Background()
	s, ts, _ := newTestingSynchronizer(t)

	err := ts.RunInTx(ctx, func(tx store.TagTx) error {
		_, err := tx.CreateTag(ctx, &store.Tag{Language: "en", Text: "orphan", Count: 0, Slug: "orphan"})
		return err
	})
	require.NoError(t, err)

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	var total int64
	for i := 0; i < 5; i++ {
		g.Go(func() error {
			n, err := s.Sweep(gctx)
			mu.Lock()
			total += n
			mu.Unlock()
			return err
		})
	}
	require.NoError(t, g.Wait())
	require.GreaterOrEqual(t, total, int64(1))
	require.Nil(t, getTagByText(ctx, t, ts, "orphan"))
}

func TestDeleteTags(t *testing.T) {
	ctx := context.Background()
	s, ts, _ := newTestingSynchronizer(t)

	_, err := s.Sync(ctx, &SyncRequest{Module: "blog", ItemID: 1, Tags: []string{"go", "rust"}})
	require.NoError(t, err)
	goTag := getTagByText(ctx, t, ts, "go")

	deleted, err := s.DeleteTags(ctx, []int32{goTag.ID})
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)
	require.Equal(t, int32(1), getTagByText(ctx, t, ts, "rust").Count)
	requireCountsMatchLinks(ctx, t, ts)

	_, err = s.DeleteTags(ctx, []int32{goTag.ID})
	require.True(t, tagerrors.IsCode(err, tagerrors.ErrCodeNotFound))

	_, err = s.DeleteTags(ctx, nil)
	require.True(t, tagerrors.IsCode(err, tagerrors.ErrCodeInvalidArgument))

	// One unknown id fails the whole request and names the missing id.
	rustTag := getTagByText(ctx, t, ts, "rust")
	_, err = s.DeleteTags(ctx, []int32{rustTag.ID, 9999})
	require.True(t, tagerrors.IsCode(err, tagerrors.ErrCodeNotFound))
	var tagErr *tagerrors.Error
	require.ErrorAs(t, err, &tagErr)
	require.Equal(t, []int32{9999}, tagErr.Context["missing_ids"])
	require.NotNil(t, getTagByText(ctx, t, ts, "rust"))

	_, err = s.DeleteTags(ctx, make([]int32, MaxTags+1))
	require.True(t, tagerrors.IsCode(err, tagerrors.ErrCodeInvalidArgument))
}

func TestUpdateTagLanguage(t *testing.T) {
	ctx := context.Background()
	s, ts, _ := newTestingSynchronizer(t)

	_, err := s.Sync(ctx, &SyncRequest{Module: "blog", ItemID: 1, Tags: []string{"go"}})
	require.NoError(t, err)
	goTag := getTagByText(ctx, t, ts, "go")

	// A linked tag stays in the language of its links.
	_, err = s.UpdateTag(ctx, &UpdateTagRequest{ID: goTag.ID, Language: ptr("nl")})
	require.True(t, tagerrors.IsCode(err, tagerrors.ErrCodeInvalidArgument))
	require.Equal(t, "en", getTagByText(ctx, t, ts, "go").Language)

	// Naming the current language is not a move.
	updated, err := s.UpdateTag(ctx, &UpdateTagRequest{ID: goTag.ID, Language: ptr("en")})
	require.NoError(t, err)
	require.Equal(t, "en", updated.Language)

	_, err = s.RemoveItem(ctx, "blog", 1, "en")
	require.NoError(t, err)
	links, err := ts.ListTagLinks(ctx, &store.FindTagLink{})
	require.NoError(t, err)
	require.Empty(t, links)
	requireCountsMatchLinks(ctx, t, ts)

	// An unlinked tag may move.
	var draft *store.Tag
	require.NoError(t, ts.RunInTx(ctx, func(tx store.TagTx) error {
		draft, err = tx.CreateTag(ctx, &store.Tag{Language: "en", Text: "draft", Slug: "draft"})
		return err
	}))
	moved, err := s.UpdateTag(ctx, &UpdateTagRequest{ID: draft.ID, Language: ptr(" nl ")})
	require.NoError(t, err)
	require.Equal(t, "nl", moved.Language)
	require.Equal(t, "draft", moved.Slug)
}

func TestSyncRejectsOversizedTagSet(t *testing.T) {
	ctx := context.Background()
	s, ts, _ := newTestingSynchronizer(t)

	tags := make([]string, 0, MaxTags+1)
	for i := 0; i <= MaxTags; i++ {
		tags = append(tags, fmt.Sprintf("tag%d", i))
	}
	_, err := s.Sync(ctx, &SyncRequest{Module: "blog", ItemID: 1, Tags: tags})
	require.True(t, tagerrors.IsCode(err, tagerrors.ErrCodeInvalidArgument))

	list, err := ts.ListTags(ctx, &store.FindTag{})
	require.NoError(t, err)
	require.Empty(t, list)

	// Duplicates collapse before the limit is checked.
	_, err = s.Sync(ctx, &SyncRequest{Module: "blog", ItemID: 1, Tags: []string{"tag0", "TAG0", "tag1"}})
	require.NoError(t, err)
}

func TestUpdateTag(t *testing.T) {
	ctx := context.Background()
	s, ts, _ := newTestingSynchronizer(t)

	_, err := s.Sync(ctx, &SyncRequest{Module: "blog", ItemID: 1, Tags: []string{"golang", "rust"}})
	require.NoError(t, err)
	tag := getTagByText(ctx, t, ts, "golang")

	updated, err := s.UpdateTag(ctx, &UpdateTagRequest{ID: tag.ID, Text: ptr("  Go Lang ")})
	require.NoError(t, err)
	require.Equal(t, "go lang", updated.Text)
	require.Equal(t, "go-lang", updated.Slug)
	require.Equal(t, int32(1), updated.Count)

	// Keeping the text keeps the slug.
	updated, err = s.UpdateTag(ctx, &UpdateTagRequest{ID: tag.ID})
	require.NoError(t, err)
	require.Equal(t, "go-lang", updated.Slug)

	_, err = s.UpdateTag(ctx, &UpdateTagRequest{ID: tag.ID, Text: ptr("rust")})
	require.True(t, tagerrors.IsCode(err, tagerrors.ErrCodeInvalidArgument))

	_, err = s.UpdateTag(ctx, &UpdateTagRequest{ID: 9999, Text: ptr("x")})
	require.True(t, tagerrors.IsCode(err, tagerrors.ErrCodeNotFound))

	_, err = s.UpdateTag(ctx, &UpdateTagRequest{ID: tag.ID, Text: ptr("   ")})
	require.True(t, tagerrors.IsCode(err, tagerrors.ErrCodeInvalidArgument))
}
