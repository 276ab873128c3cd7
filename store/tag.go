package store

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrTagNotFound is returned when a tag addressed by id does not exist.
	ErrTagNotFound = errors.New("tag not found")
	// ErrConflict is returned when a write violates a uniqueness constraint,
	// typically because a concurrent transaction created the same tag first.
	ErrConflict = errors.New("unique constraint conflict")
)

// MissingTagsError lists the ids of an admin request that matched no tag.
// It matches ErrTagNotFound with errors.Is.
type MissingTagsError struct {
	IDs []int32
}

func (e *MissingTagsError) Error() string {
	return fmt.Sprintf("tags not found: %v", e.IDs)
}

func (e *MissingTagsError) Is(target error) bool {
	return target == ErrTagNotFound
}

// MissingIDs returns the ids of want that are absent from found, in the order of want.
func MissingIDs(want, found []int32) []int32 {
	set := make(map[int32]struct{}, len(found))
	for _, id := range found {
		set[id] = struct{}{}
	}
	missing := []int32{}
	for _, id := range want {
		if _, ok := set[id]; !ok {
			missing = append(missing, id)
			set[id] = struct{}{}
		}
	}
	return missing
}

// Tag is a per-language vocabulary entry shared by all modules.
type Tag struct {
	ID        int32
	Language  string
	Text      string
	Count     int32
	Slug      string
	CreatedTs int64
	UpdatedTs int64
}

// TagLink links one item of a module to one tag.
type TagLink struct {
	Module    string
	ItemID    int64
	TagID     int32
	CreatedTs int64

	// Tag is populated by ListTagLinks.
	Tag *Tag
}

// RelatedItem is an item sharing at least one tag with another item.
type RelatedItem struct {
	Module      string
	ItemID      int64
	SharedCount int32
}

type FindTag struct {
	ID       *int32
	IDs      []int32
	Language *string
	Text     *string
	Slug     *string
	// TextPrefix matches tags whose text starts with the value. LIKE wildcards are escaped.
	TextPrefix *string
	// MinCount filters out tags with a lower usage count.
	MinCount *int32

	// OrderByMostUsed sorts by usage count descending, then text. Default order is by text.
	OrderByMostUsed bool
	Limit           *int
	Offset          *int
}

type UpdateTag struct {
	ID       int32
	Language *string
	Text     *string
	Slug     *string
}

type DeleteTag struct {
	IDs []int32
}

type FindTagLink struct {
	Module   *string
	ItemIDs  []int64
	TagID    *int32
	Language *string
}

type FindRelatedItem struct {
	Module      string
	ItemID      int64
	OtherModule string
	Limit       int
}

type FindItemTags struct {
	Module   string
	ItemID   int64
	Language string
}

type FindExistingTags struct {
	Texts    []string
	Language string
}

type FindSlug struct {
	Slug      string
	Language  string
	ExcludeID *int32
}

// TagLinkBatch addresses the links between one item and a set of tag texts.
type TagLinkBatch struct {
	Module   string
	ItemID   int64
	Language string
	TagTexts []string
}

// UpdateTagCount adds Delta to the usage count of every tag in Texts.
type UpdateTagCount struct {
	Texts    []string
	Language string
	Delta    int32
}

func (s *Store) ListTags(ctx context.Context, find *FindTag) ([]*Tag, error) {
	return s.driver.ListTags(ctx, find)
}

// GetTag returns the first tag matching find, or nil when there is none.
func (s *Store) GetTag(ctx context.Context, find *FindTag) (*Tag, error) {
	limit := 1
	find.Limit = &limit
	list, err := s.ListTags(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// UpdateTag updates a tag in its own transaction.
func (s *Store) UpdateTag(ctx context.Context, update *UpdateTag) (*Tag, error) {
	var tag *Tag
	err := s.RunInTx(ctx, func(tx TagTx) error {
		updated, err := tx.UpdateTag(ctx, update)
		if err != nil {
			return err
		}
		tag = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tag, nil
}

// DeleteTags removes the given tags and every link pointing at them.
// Counts of other tags are not touched. When any id matches no tag nothing is
// deleted and a *MissingTagsError is returned.
func (s *Store) DeleteTags(ctx context.Context, delete *DeleteTag) (int64, error) {
	if len(delete.IDs) == 0 {
		return 0, nil
	}
	return s.driver.DeleteTags(ctx, delete)
}

// DeleteZeroCountTags removes every tag whose usage count dropped to zero.
func (s *Store) DeleteZeroCountTags(ctx context.Context) (int64, error) {
	return s.driver.DeleteZeroCountTags(ctx)
}

func (s *Store) ListTagLinks(ctx context.Context, find *FindTagLink) ([]*TagLink, error) {
	return s.driver.ListTagLinks(ctx, find)
}

func (s *Store) ListRelatedItems(ctx context.Context, find *FindRelatedItem) ([]*RelatedItem, error) {
	return s.driver.ListRelatedItems(ctx, find)
}
