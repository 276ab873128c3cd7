package tag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/tagsync/store"
)

// MockSlugChecker reports the slugs in taken as used.
type MockSlugChecker struct {
	taken map[string]int32
	calls int
	err   error
}

func (m *MockSlugChecker) SlugExists(ctx context.Context, find *store.FindSlug) (bool, error) {
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	id, ok := m.taken[find.Language+"/"+find.Slug]
	if !ok {
		return false, nil
	}
	if find.ExcludeID != nil && *find.ExcludeID == id {
		return false, nil
	}
	return true, nil
}

func TestSlugAllocator(t *testing.T) {
	ctx := context.Background()
	checker := &MockSlugChecker{taken: map[string]int32{
		"en/news":   1,
		"en/news-2": 2,
		"nl/go":     3,
	}}
	allocator := &SlugAllocator{}

	tests := []struct {
		name      string
		text      string
		language  string
		excludeID *int32
		want      string
	}{
		{name: "free", text: "rust", language: "en", want: "rust"},
		{name: "numbered variant", text: "news", language: "en", want: "news-3"},
		{name: "other language", text: "news", language: "nl", want: "news"},
		{name: "transliterated", text: "Crème Brûlée", language: "en", want: "creme-brulee"},
		{name: "fallback", text: "!!!", language: "en", want: "tag"},
		{name: "keep own slug", text: "news", language: "en", excludeID: ptr(int32(1)), want: "news"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := allocator.Allocate(ctx, checker, tt.text, tt.language, tt.excludeID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSlugAllocatorIsBounded(t *testing.T) {
	ctx := context.Background()
	checker := &MockSlugChecker{taken: map[string]int32{"en/go": 1, "en/go-2": 2, "en/go-3": 3}}
	allocator := &SlugAllocator{MaxAttempts: 3}

	_, err := allocator.Allocate(ctx, checker, "go", "en", nil)
	require.Error(t, err)
	assert.Equal(t, 3, checker.calls)
}

func TestSlugAllocatorCheckerError(t *testing.T) {
	boom := errors.New("boom")
	_, err := (&SlugAllocator{}).Allocate(context.Background(), &MockSlugChecker{err: boom}, "go", "en", nil)
	require.ErrorIs(t, err, boom)
}

func ptr[T any](v T) *T {
	return &v
}
