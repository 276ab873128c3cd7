package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// SystemSetting model related methods.
	UpsertSystemSetting(ctx context.Context, upsert *SystemSetting) (*SystemSetting, error)
	ListSystemSettings(ctx context.Context, find *FindSystemSetting) ([]*SystemSetting, error)

	// BeginTagTx starts a transaction exposing the primitives a tag synchronization is composed of.
	BeginTagTx(ctx context.Context) (TagTx, error)

	// Tag model related methods.
	ListTags(ctx context.Context, find *FindTag) ([]*Tag, error)
	DeleteTags(ctx context.Context, delete *DeleteTag) (int64, error)
	DeleteZeroCountTags(ctx context.Context) (int64, error)

	// TagLink model related methods.
	ListTagLinks(ctx context.Context, find *FindTagLink) ([]*TagLink, error)
	ListRelatedItems(ctx context.Context, find *FindRelatedItem) ([]*RelatedItem, error)
}

// TagTx is a tag transaction. Every method runs inside the same database
// transaction, so either all mutations become visible on Commit or none do.
//
// Usage counts are only ever changed through UpdateTagCount, which the drivers
// implement as a relative "usage_count = usage_count + delta" statement.
type TagTx interface {
	// ListItemTagTexts returns the texts of all tags linked to an item in a language.
	ListItemTagTexts(ctx context.Context, find *FindItemTags) ([]string, error)
	// ListExistingTagTexts returns the subset of texts that already exist as tags in a language.
	ListExistingTagTexts(ctx context.Context, find *FindExistingTags) ([]string, error)
	// SlugExists reports whether a slug is taken in a language, ignoring ExcludeID.
	SlugExists(ctx context.Context, find *FindSlug) (bool, error)
	// GetTag returns the tag with the given id, or nil when there is none.
	GetTag(ctx context.Context, id int32) (*Tag, error)

	CreateTag(ctx context.Context, create *Tag) (*Tag, error)
	UpdateTag(ctx context.Context, update *UpdateTag) (*Tag, error)
	UpdateTagCount(ctx context.Context, update *UpdateTagCount) (int64, error)

	CreateTagLinks(ctx context.Context, batch *TagLinkBatch) (int64, error)
	DeleteTagLinks(ctx context.Context, batch *TagLinkBatch) (int64, error)

	Commit() error
	Rollback() error
}
