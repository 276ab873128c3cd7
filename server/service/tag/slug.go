package tag

import (
	"context"
	"fmt"

	"github.com/hrygo/tagsync/internal/slug"
	"github.com/hrygo/tagsync/store"
)

// MaxSlugAttempts bounds the number of numbered variants tried for one slug.
const MaxSlugAttempts = 10000

// SlugChecker reports whether a slug is already taken. store.TagTx implements it.
type SlugChecker interface {
	SlugExists(ctx context.Context, find *store.FindSlug) (bool, error)
}

// SlugAllocator derives collision-free slugs from tag text.
type SlugAllocator struct {
	// MaxAttempts overrides MaxSlugAttempts when positive.
	MaxAttempts int
}

// Allocate returns the first free slug among base, base-2, base-3, ... where base
// is derived from text. A tag being renamed passes its own id as excludeID so
// that it may keep its current slug.
func (a *SlugAllocator) Allocate(ctx context.Context, checker SlugChecker, text, language string, excludeID *int32) (string, error) {
	maxAttempts := MaxSlugAttempts
	if a != nil && a.MaxAttempts > 0 {
		maxAttempts = a.MaxAttempts
	}

	base := slug.Make(text)
	for n := 1; n <= maxAttempts; n++ {
		candidate := slug.WithSuffix(base, n)
		taken, err := checker.SlugExists(ctx, &store.FindSlug{
			Slug:      candidate,
			Language:  language,
			ExcludeID: excludeID,
		})
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free slug for %q after %d attempts", base, maxAttempts)
}
