package tag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tagerrors "github.com/hrygo/tagsync/server/internal/errors"
	"github.com/hrygo/tagsync/store"
)

const (
	// DefaultRelatedLimit is the number of related items returned when no limit is given.
	DefaultRelatedLimit = 5
	// DefaultMostUsedLimit is the number of tags returned by most-used queries when no limit is given.
	DefaultMostUsedLimit = 10

	tagsModule   = "tags"
	detailAction = "detail"
)

// QueryService answers read-only tag queries.
type QueryService struct {
	store      Store
	navigation Navigation
	locale     Locale
	registry   *Registry
}

// NewQueryService creates a new query service. navigation and registry may be
// nil when URLs and item resolution are not needed.
func NewQueryService(store Store, navigation Navigation, locale Locale, registry *Registry) *QueryService {
	return &QueryService{
		store:      store,
		navigation: navigation,
		locale:     locale,
		registry:   registry,
	}
}

func (q *QueryService) language(language string) string {
	if language = strings.TrimSpace(language); language != "" {
		return language
	}
	if q.locale == nil {
		return ""
	}
	return q.locale.WorkingLanguage()
}

// FindByID returns the tag with the given id, or nil.
func (q *QueryService) FindByID(ctx context.Context, id int32) (*store.Tag, error) {
	return q.store.GetTag(ctx, &store.FindTag{ID: &id})
}

// FindByText returns the tag with the given text, or nil. The text is normalized first.
func (q *QueryService) FindByText(ctx context.Context, text, language string) (*store.Tag, error) {
	normalized := Normalize([]string{text})
	if len(normalized) == 0 {
		return nil, nil
	}
	language = q.language(language)
	return q.store.GetTag(ctx, &store.FindTag{Text: &normalized[0], Language: &language})
}

// Exists reports whether a tag with the given text exists.
func (q *QueryService) Exists(ctx context.Context, text, language string) (bool, error) {
	tag, err := q.FindByText(ctx, text, language)
	if err != nil {
		return false, err
	}
	return tag != nil, nil
}

// FindBySlug returns the tag with the given slug, or nil.
func (q *QueryService) FindBySlug(ctx context.Context, slug, language string) (*store.Tag, error) {
	language = q.language(language)
	return q.store.GetTag(ctx, &store.FindTag{Slug: &slug, Language: &language})
}

// FindByPrefix returns tags starting with term, ordered by text. Matching is
// case-insensitive because term is normalized like tag text.
func (q *QueryService) FindByPrefix(ctx context.Context, term, language string) ([]*store.Tag, error) {
	normalized := Normalize([]string{term})
	if len(normalized) == 0 {
		return []*store.Tag{}, nil
	}
	language = q.language(language)
	return q.store.ListTags(ctx, &store.FindTag{TextPrefix: &normalized[0], Language: &language})
}

// FindByModuleItem returns the tags linked to one item, ordered by text.
func (q *QueryService) FindByModuleItem(ctx context.Context, module string, itemID int64, language string) ([]*store.Tag, error) {
	language = q.language(language)
	links, err := q.store.ListTagLinks(ctx, &store.FindTagLink{Module: &module, ItemIDs: []int64{itemID}, Language: &language})
	if err != nil {
		return nil, err
	}
	tags := make([]*store.Tag, 0, len(links))
	for _, link := range links {
		tags = append(tags, link.Tag)
	}
	return tags, nil
}

// FindByModuleItemText returns the tags of one item as comma delimited text, e.g. "go,news".
func (q *QueryService) FindByModuleItemText(ctx context.Context, module string, itemID int64, language string) (string, error) {
	tags, err := q.FindByModuleItem(ctx, module, itemID, language)
	if err != nil {
		return "", err
	}
	texts := make([]string, 0, len(tags))
	for _, tag := range tags {
		texts = append(texts, tag.Text)
	}
	return strings.Join(texts, TagSeparator), nil
}

// FindMostUsed returns used tags ordered by count descending, then text.
func (q *QueryService) FindMostUsed(ctx context.Context, language string, limit int) ([]*store.Tag, error) {
	if limit <= 0 {
		limit = DefaultMostUsedLimit
	}
	language = q.language(language)
	minCount := int32(1)
	return q.store.ListTags(ctx, &store.FindTag{
		Language:        &language,
		MinCount:        &minCount,
		OrderByMostUsed: true,
		Limit:           &limit,
	})
}

// FindAll returns every tag of a language with its count, ordered by text.
func (q *QueryService) FindAll(ctx context.Context, language string) ([]*store.Tag, error) {
	language = q.language(language)
	return q.store.ListTags(ctx, &store.FindTag{Language: &language})
}

// FindRelatedItems returns ids of items in otherModule sharing at least one tag
// with the given item, most shared tags first. The item itself is never included.
func (q *QueryService) FindRelatedItems(ctx context.Context, module string, itemID int64, otherModule string, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}
	items, err := q.store.ListRelatedItems(ctx, &store.FindRelatedItem{
		Module:      module,
		ItemID:      itemID,
		OtherModule: otherModule,
		Limit:       limit,
	})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ItemID)
	}
	return ids, nil
}

// FindModulesForTag returns the sorted, distinct modules that link a tag.
func (q *QueryService) FindModulesForTag(ctx context.Context, tagID int32) ([]string, error) {
	links, err := q.store.ListTagLinks(ctx, &store.FindTagLink{TagID: &tagID})
	if err != nil {
		return nil, err
	}
	modules := []string{}
	for _, link := range links {
		if len(modules) == 0 || modules[len(modules)-1] != link.Module {
			modules = append(modules, link.Module)
		}
	}
	return modules, nil
}

// FindItemsForTag resolves every item linked to a tag through its module.
// A link from a module missing in the registry fails with CapabilityNotImplemented.
func (q *QueryService) FindItemsForTag(ctx context.Context, tagID int32) ([]*TaggedItem, error) {
	links, err := q.store.ListTagLinks(ctx, &store.FindTagLink{TagID: &tagID})
	if err != nil {
		return nil, err
	}

	idsByModule := map[string][]int64{}
	modules := []string{}
	for _, link := range links {
		if _, ok := idsByModule[link.Module]; !ok {
			modules = append(modules, link.Module)
		}
		idsByModule[link.Module] = append(idsByModule[link.Module], link.ItemID)
	}

	items := []*TaggedItem{}
	for _, name := range modules {
		module, err := q.registry.Lookup(name)
		if err != nil {
			return nil, err
		}
		resolved, err := module.ItemsByIDs(ctx, idsByModule[name])
		if err != nil {
			return nil, fmt.Errorf("failed to resolve items of module %s: %w", name, err)
		}
		items = append(items, resolved...)
	}
	return items, nil
}

// GetForItem returns the tags of one item prepared for display.
func (q *QueryService) GetForItem(ctx context.Context, module string, itemID int64, language string) ([]*TagView, error) {
	tags, err := q.FindByModuleItem(ctx, module, itemID, language)
	if err != nil {
		return nil, err
	}
	views := make([]*TagView, 0, len(tags))
	for _, tag := range tags {
		views = append(views, q.view(tag))
	}
	return views, nil
}

// GetForMultipleItems returns the display tags of several items of one module, keyed by item id.
// Items without tags are absent from the map.
func (q *QueryService) GetForMultipleItems(ctx context.Context, module string, itemIDs []int64, language string) (map[int64][]*TagView, error) {
	result := map[int64][]*TagView{}
	if len(itemIDs) == 0 {
		return result, nil
	}
	language = q.language(language)
	links, err := q.store.ListTagLinks(ctx, &store.FindTagLink{Module: &module, ItemIDs: itemIDs, Language: &language})
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		result[link.ItemID] = append(result[link.ItemID], q.view(link.Tag))
	}
	return result, nil
}

// GetForModule returns the display tags of a module's items as an ordered list of
// item ids with their tags.
func (q *QueryService) GetForModule(ctx context.Context, module string, itemIDs []int64, language string) ([]*ItemTags, error) {
	byItem, err := q.GetForMultipleItems(ctx, module, itemIDs, language)
	if err != nil {
		return nil, err
	}
	list := make([]*ItemTags, 0, len(byItem))
	for itemID, views := range byItem {
		list = append(list, &ItemTags{ItemID: itemID, Tags: views})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ItemID < list[j].ItemID })
	return list, nil
}

// GetMostUsed returns the most used tags prepared for display, including counts.
func (q *QueryService) GetMostUsed(ctx context.Context, language string, limit int) ([]*TagView, error) {
	tags, err := q.FindMostUsed(ctx, language, limit)
	if err != nil {
		return nil, err
	}
	views := make([]*TagView, 0, len(tags))
	for _, tag := range tags {
		views = append(views, q.view(tag))
	}
	return views, nil
}

// GetBySlug returns the display view of the tag with the given slug.
func (q *QueryService) GetBySlug(ctx context.Context, slug, language string) (*TagView, error) {
	tag, err := q.FindBySlug(ctx, slug, language)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, tagerrors.NotFound(fmt.Sprintf("tag %q not found", slug))
	}
	return q.view(tag), nil
}

// URL returns the public detail URL of a tag slug.
func (q *QueryService) URL(slug string) string {
	if q.navigation == nil {
		return ""
	}
	return strings.TrimRight(q.navigation.URLFor(tagsModule, detailAction), "/") + "/" + slug
}

func (q *QueryService) view(tag *store.Tag) *TagView {
	return &TagView{
		ID:    tag.ID,
		Text:  tag.Text,
		Slug:  tag.Slug,
		URL:   q.URL(tag.Slug),
		Count: tag.Count,
	}
}
