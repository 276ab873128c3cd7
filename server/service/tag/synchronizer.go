// Package tag reconciles the tags of content items against the persisted
// per-language vocabulary and answers read-side tag queries.
//
// Every synchronization runs in one store transaction. Usage counts only change
// through relative updates inside that transaction, so the database is the only
// place concurrent synchronizations are ordered. The search indexer and the
// zero-count sweep run after commit.
package tag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	tagerrors "github.com/hrygo/tagsync/server/internal/errors"
	"github.com/hrygo/tagsync/server/internal/observability"
	"github.com/hrygo/tagsync/store"
)

const (
	// SyncRetries is the number of transactions attempted before a conflicting sync gives up.
	SyncRetries = 3

	// MaxTags bounds the tag set of one sync and the ids of one admin delete.
	// Larger batches are rejected as invalid before touching the store.
	MaxTags = 1000

	// IndexFieldTags is the search index field holding the space separated tags of an item.
	IndexFieldTags = "tags"

	sweepKey = "sweep"
)

var errTagInUse = errors.New("tag is linked to items")

// Synchronizer reconciles item tag sets with the store.
type Synchronizer struct {
	store   Store
	indexer SearchIndexer
	locale  Locale
	slugs   *SlugAllocator
	logger  *slog.Logger
	retries int

	sweeps singleflight.Group
	// sweepRequested and sweepDone let concurrent callers share one sweep while
	// guaranteeing each caller a sweep that started after its own commit.
	sweepRequested atomic.Int64
	sweepDone      atomic.Int64
}

// NewSynchronizer creates a new synchronizer. A nil indexer disables index notifications.
func NewSynchronizer(store Store, indexer SearchIndexer, locale Locale) *Synchronizer {
	return &Synchronizer{
		store:   store,
		indexer: indexer,
		locale:  locale,
		slugs:   &SlugAllocator{},
		logger:  slog.Default(),
		retries: SyncRetries,
	}
}

// WithLogger sets the logger used for sync logs.
func (s *Synchronizer) WithLogger(logger *slog.Logger) *Synchronizer {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *Synchronizer) language(language string) string {
	if language = strings.TrimSpace(language); language != "" {
		return language
	}
	if s.locale == nil {
		return ""
	}
	return s.locale.WorkingLanguage()
}

// Sync makes the tags of one item equal to req.Tags.
//
// Links and counts are updated in a single transaction that is retried when a
// concurrent sync wins a uniqueness race. After commit the search indexer is
// notified and tags whose count dropped to zero are swept. Indexer failures
// are reported on SyncResult.IndexErr and do not fail the sync.
func (s *Synchronizer) Sync(ctx context.Context, req *SyncRequest) (*SyncResult, error) {
	module := strings.TrimSpace(req.Module)
	if module == "" {
		return nil, tagerrors.InvalidArgument("module is required")
	}
	language := s.language(req.Language)
	if language == "" {
		return nil, tagerrors.InvalidArgument("language is required")
	}
	desired := Normalize(req.Tags)
	if len(desired) > MaxTags {
		return nil, tagerrors.InvalidArgument(fmt.Sprintf("%d tags exceed the limit of %d", len(desired), MaxTags))
	}

	reqCtx := observability.NewRequestContextWithID(s.logger, observability.RequestIDFromContext(ctx), module, req.ItemID, language)
	ctx = observability.WithRequestContext(ctx, reqCtx)

	var result *SyncResult
	for attempt := 1; ; attempt++ {
		result = &SyncResult{
			Module:   module,
			ItemID:   req.ItemID,
			Language: language,
			Tags:     desired,
			Attempts: attempt,
		}
		err := s.store.RunInTx(ctx, func(tx store.TagTx) error {
			return s.apply(ctx, tx, result)
		})
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrConflict) && attempt < s.retries && ctx.Err() == nil {
			reqCtx.Warn("tag sync conflicted, retrying", slog.Int(observability.LogFieldAttempt, attempt))
			continue
		}

		observability.RecordSync(observability.SyncResultFailed, reqCtx.Duration())
		reqCtx.Error("tag sync failed", err, slog.Int(observability.LogFieldAttempt, attempt))
		return nil, tagerrors.Persistence("failed to synchronize tags", err).
			WithContext(observability.LogFieldModule, module).
			WithContext(observability.LogFieldItemID, req.ItemID)
	}

	observability.RecordTagsCreated(len(result.Created))

	if s.indexer != nil {
		fields := map[string]string{IndexFieldTags: strings.Join(desired, " ")}
		if err := s.indexer.Index(ctx, module, req.ItemID, fields, language); err != nil {
			observability.RecordIndexFailure()
			reqCtx.Warn("failed to update search index", slog.String("error", err.Error()))
			result.IndexErr = tagerrors.Indexing("failed to update search index", err)
		}
	}

	if len(result.Removed) > 0 {
		if _, err := s.Sweep(ctx); err != nil {
			reqCtx.Warn("failed to sweep zero count tags", slog.String("error", err.Error()))
		}
	}

	outcome := observability.SyncResultUnchanged
	if result.Changed() {
		outcome = observability.SyncResultChanged
	}
	observability.RecordSync(outcome, reqCtx.Duration())
	reqCtx.Debug("tag sync completed",
		slog.Int("added", len(result.Added)),
		slog.Int("removed", len(result.Removed)),
		slog.Int("created", len(result.Created)),
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()),
	)
	return result, nil
}

// apply runs the diff of one sync inside tx and records it on result.
func (s *Synchronizer) apply(ctx context.Context, tx store.TagTx, result *SyncResult) error {
	current, err := tx.ListItemTagTexts(ctx, &store.FindItemTags{
		Module:   result.Module,
		ItemID:   result.ItemID,
		Language: result.Language,
	})
	if err != nil {
		return errors.Wrap(err, "failed to list current tags")
	}

	toRemove := difference(current, result.Tags)
	toAdd := difference(result.Tags, current)

	if len(toRemove) > 0 {
		batch := &store.TagLinkBatch{Module: result.Module, ItemID: result.ItemID, Language: result.Language, TagTexts: toRemove}
		if _, err := tx.DeleteTagLinks(ctx, batch); err != nil {
			return errors.Wrap(err, "failed to delete tag links")
		}
		if _, err := tx.UpdateTagCount(ctx, &store.UpdateTagCount{Texts: toRemove, Language: result.Language, Delta: -1}); err != nil {
			return errors.Wrap(err, "failed to decrement tag counts")
		}
	}

	if len(toAdd) > 0 {
		existing, err := tx.ListExistingTagTexts(ctx, &store.FindExistingTags{Texts: toAdd, Language: result.Language})
		if err != nil {
			return errors.Wrap(err, "failed to find existing tags")
		}

		for _, text := range difference(toAdd, existing) {
			slug, err := s.slugs.Allocate(ctx, tx, text, result.Language, nil)
			if err != nil {
				return errors.Wrapf(err, "failed to allocate slug for %q", text)
			}
			created, err := tx.CreateTag(ctx, &store.Tag{
				Language: result.Language,
				Text:     text,
				Count:    1,
				Slug:     slug,
			})
			if err != nil {
				return errors.Wrapf(err, "failed to create tag %q", text)
			}
			result.Created = append(result.Created, created)
		}

		batch := &store.TagLinkBatch{Module: result.Module, ItemID: result.ItemID, Language: result.Language, TagTexts: toAdd}
		linked, err := tx.CreateTagLinks(ctx, batch)
		if err != nil {
			return errors.Wrap(err, "failed to create tag links")
		}
		// A tag swept between the existence check and the link insert leaves
		// links missing. Retrying the transaction recreates it.
		if linked != int64(len(toAdd)) {
			return fmt.Errorf("linked %d of %d tags: %w", linked, len(toAdd), store.ErrConflict)
		}
		incremented, err := tx.UpdateTagCount(ctx, &store.UpdateTagCount{Texts: existing, Language: result.Language, Delta: 1})
		if err != nil {
			return errors.Wrap(err, "failed to increment tag counts")
		}
		if incremented != int64(len(existing)) {
			return fmt.Errorf("incremented %d of %d tags: %w", incremented, len(existing), store.ErrConflict)
		}
	}

	result.Added = toAdd
	result.Removed = toRemove
	return nil
}

// SyncText synchronizes an item from comma delimited input such as "news, Go".
func (s *Synchronizer) SyncText(ctx context.Context, module string, itemID int64, language, tags string) (*SyncResult, error) {
	return s.Sync(ctx, &SyncRequest{
		Module:   module,
		ItemID:   itemID,
		Language: language,
		Tags:     ParseTags(tags),
	})
}

// RemoveItem unlinks every tag of an item, as a sync with an empty tag set.
func (s *Synchronizer) RemoveItem(ctx context.Context, module string, itemID int64, language string) (*SyncResult, error) {
	return s.Sync(ctx, &SyncRequest{
		Module:   module,
		ItemID:   itemID,
		Language: language,
	})
}

// Sweep deletes every tag whose usage count is zero. Concurrent callers share
// one sweep, but each caller only returns after a sweep that started after it
// was called has finished.
func (s *Synchronizer) Sweep(ctx context.Context) (int64, error) {
	ticket := s.sweepRequested.Add(1)
	var swept int64
	for s.sweepDone.Load() < ticket {
		v, err, _ := s.sweeps.Do(sweepKey, func() (any, error) {
			start := s.sweepRequested.Load()
			n, err := s.store.DeleteZeroCountTags(context.WithoutCancel(ctx))
			if err != nil {
				return int64(0), err
			}
			observability.RecordTagsSwept(n)
			s.sweepDone.Store(start)
			return n, nil
		})
		if err != nil {
			return 0, errors.Wrap(err, "failed to delete zero count tags")
		}
		swept += v.(int64)
	}
	return swept, nil
}

// DeleteTags removes tags and all of their links. Counts of other tags are not
// adjusted. When any id does not exist nothing is deleted and a NotFound error
// naming the missing ids is returned.
func (s *Synchronizer) DeleteTags(ctx context.Context, ids []int32) (int64, error) {
	if len(ids) == 0 {
		return 0, tagerrors.InvalidArgument("no tag ids given")
	}
	if len(ids) > MaxTags {
		return 0, tagerrors.InvalidArgument(fmt.Sprintf("%d tag ids exceed the limit of %d", len(ids), MaxTags))
	}
	deleted, err := s.store.DeleteTags(ctx, &store.DeleteTag{IDs: ids})
	if err != nil {
		var missing *store.MissingTagsError
		if errors.As(err, &missing) {
			return 0, tagerrors.NotFound(fmt.Sprintf("tags %v not found", missing.IDs)).WithContext("missing_ids", missing.IDs)
		}
		if errors.Is(err, store.ErrTagNotFound) {
			return 0, tagerrors.NotFound(fmt.Sprintf("tags %v not found", ids))
		}
		return 0, tagerrors.Persistence("failed to delete tags", err)
	}
	s.logger.Info("tags deleted", slog.Int64("deleted", deleted), slog.Any("ids", ids))
	return deleted, nil
}

// UpdateTag renames a tag. The new text is normalized and the slug is
// re-allocated, ignoring the tag's own current slug. A tag still linked to
// items cannot move to another language, since its links belong to the old one.
func (s *Synchronizer) UpdateTag(ctx context.Context, req *UpdateTagRequest) (*store.Tag, error) {
	var text *string
	if req.Text != nil {
		normalized := Normalize([]string{*req.Text})
		if len(normalized) == 0 {
			return nil, tagerrors.InvalidArgument("tag text is empty")
		}
		text = &normalized[0]
	}

	var updated *store.Tag
	err := s.store.RunInTx(ctx, func(tx store.TagTx) error {
		current, err := tx.GetTag(ctx, req.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return store.ErrTagNotFound
		}

		update := &store.UpdateTag{ID: req.ID, Text: text}
		language := current.Language
		if req.Language != nil && strings.TrimSpace(*req.Language) != "" && strings.TrimSpace(*req.Language) != current.Language {
			if current.Count > 0 {
				return errTagInUse
			}
			language = strings.TrimSpace(*req.Language)
			update.Language = &language
		}
		newText := current.Text
		if text != nil {
			newText = *text
		}
		slug, err := s.slugs.Allocate(ctx, tx, newText, language, &current.ID)
		if err != nil {
			return err
		}
		update.Slug = &slug

		updated, err = tx.UpdateTag(ctx, update)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrTagNotFound) {
			return nil, tagerrors.NotFound(fmt.Sprintf("tag %d not found", req.ID))
		}
		if errors.Is(err, store.ErrConflict) {
			return nil, tagerrors.Wrap(err, tagerrors.ErrCodeInvalidArgument, "a tag with this text already exists")
		}
		if errors.Is(err, errTagInUse) {
			return nil, tagerrors.Wrap(err, tagerrors.ErrCodeInvalidArgument, "cannot change the language of a tag linked to items")
		}
		return nil, tagerrors.Persistence("failed to update tag", err)
	}
	return updated, nil
}
