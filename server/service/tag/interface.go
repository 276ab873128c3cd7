package tag

import (
	"context"

	"github.com/hrygo/tagsync/store"
)

// Store is the interface for store operations needed by the tag services.
type Store interface {
	RunInTx(ctx context.Context, fn func(tx store.TagTx) error) error
	ListTags(ctx context.Context, find *store.FindTag) ([]*store.Tag, error)
	GetTag(ctx context.Context, find *store.FindTag) (*store.Tag, error)
	DeleteTags(ctx context.Context, delete *store.DeleteTag) (int64, error)
	DeleteZeroCountTags(ctx context.Context) (int64, error)
	ListTagLinks(ctx context.Context, find *store.FindTagLink) ([]*store.TagLink, error)
	ListRelatedItems(ctx context.Context, find *store.FindRelatedItem) ([]*store.RelatedItem, error)
}

// SearchIndexer receives the searchable tag text of an item after every sync.
type SearchIndexer interface {
	Index(ctx context.Context, module string, itemID int64, fields map[string]string, language string) error
}

// Navigation resolves the public URL of a module action.
type Navigation interface {
	URLFor(module, action string) string
}

// Locale provides the working language used when a caller omits one.
type Locale interface {
	WorkingLanguage() string
}

// StaticLocale is a Locale with a fixed working language.
type StaticLocale string

func (l StaticLocale) WorkingLanguage() string {
	return string(l)
}

// SyncRequest describes the desired tag set of one item.
type SyncRequest struct {
	Module   string
	ItemID   int64
	Language string
	// Tags are raw tag texts. They are trimmed, lower-cased and deduplicated before use.
	// At most MaxTags distinct tags are accepted.
	Tags []string
}

// SyncResult reports what one synchronization changed.
type SyncResult struct {
	Module   string
	ItemID   int64
	Language string
	// Tags is the normalized desired tag set.
	Tags []string

	Added   []string
	Removed []string
	// Created lists the tags that did not exist before and were created with count 1.
	Created []*store.Tag
	// Attempts is the number of transactions run, including retries after conflicts.
	Attempts int

	// IndexErr is set when the search indexer could not be notified. The sync itself succeeded.
	IndexErr error
}

// Changed reports whether the sync mutated any link or count.
func (r *SyncResult) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

// UpdateTagRequest renames a tag. Nil fields are left unchanged.
type UpdateTagRequest struct {
	ID       int32
	Text     *string
	Language *string
}

// TagView is a tag prepared for display.
type TagView struct {
	ID    int32
	Text  string
	Slug  string
	URL   string
	Count int32
}

// TaggedItem is an item resolved through its module for a tag detail page.
type TaggedItem struct {
	Module string
	ItemID int64
	Title  string
	URL    string
}

// TaggableModule is implemented by every module whose items can be tagged.
type TaggableModule interface {
	// Name is the module identifier stored on tag links.
	Name() string
	// ItemsByIDs resolves item ids of this module for display. Unknown ids are skipped.
	ItemsByIDs(ctx context.Context, itemIDs []int64) ([]*TaggedItem, error)
}

// ItemTags is the list of display tags of one item.
type ItemTags struct {
	ItemID int64
	Tags   []*TagView
}
