package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/tagsync/server/service/tag"
	"github.com/hrygo/tagsync/store"
)

// Tag is the JSON representation of a tag.
type Tag struct {
	ID       int32  `json:"id"`
	Language string `json:"language,omitempty"`
	Text     string `json:"text"`
	Slug     string `json:"slug"`
	URL      string `json:"url,omitempty"`
	Count    int32  `json:"count"`
}

type ListTagsResponse struct {
	Tags []*Tag `json:"tags"`
}

type UpdateTagRequest struct {
	Text     *string `json:"text"`
	Language *string `json:"language"`
}

type DeleteTagsRequest struct {
	IDs []int32 `json:"ids"`
}

type DeleteTagsResponse struct {
	Deleted int64 `json:"deleted"`
}

func (s *APIV1Service) convertTag(t *store.Tag) *Tag {
	return &Tag{
		ID:       t.ID,
		Language: t.Language,
		Text:     t.Text,
		Slug:     t.Slug,
		URL:      s.QueryService.URL(t.Slug),
		Count:    t.Count,
	}
}

func convertTagViews(views []*tag.TagView) []*Tag {
	tags := make([]*Tag, 0, len(views))
	for _, v := range views {
		tags = append(tags, &Tag{ID: v.ID, Text: v.Text, Slug: v.Slug, URL: v.URL, Count: v.Count})
	}
	return tags
}

// ListTags lists tags of a language, optionally filtered by a text prefix.
// GET /api/v1/tags?q=&language=
func (s *APIV1Service) ListTags(c echo.Context) error {
	ctx := c.Request().Context()
	language := c.QueryParam("language")

	var (
		list []*store.Tag
		err  error
	)
	if q := c.QueryParam("q"); q != "" {
		list, err = s.QueryService.FindByPrefix(ctx, q, language)
	} else {
		list, err = s.QueryService.FindAll(ctx, language)
	}
	if err != nil {
		return toHTTPError(err)
	}

	response := &ListTagsResponse{Tags: make([]*Tag, 0, len(list))}
	for _, t := range list {
		response.Tags = append(response.Tags, s.convertTag(t))
	}
	return c.JSON(http.StatusOK, response)
}

// ListMostUsedTags lists the most used tags of a language.
// GET /api/v1/tags/most-used?language=&limit=
func (s *APIV1Service) ListMostUsedTags(c echo.Context) error {
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}
	views, err := s.QueryService.GetMostUsed(c.Request().Context(), c.QueryParam("language"), limit)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, &ListTagsResponse{Tags: convertTagViews(views)})
}

// GetTag returns one tag by id.
// GET /api/v1/tags/:id
func (s *APIV1Service) GetTag(c echo.Context) error {
	id, err := parseTagID(c)
	if err != nil {
		return err
	}
	t, err := s.QueryService.FindByID(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	if t == nil {
		return echo.NewHTTPError(http.StatusNotFound, "tag not found")
	}
	return c.JSON(http.StatusOK, s.convertTag(t))
}

// GetTagBySlug returns one tag by slug.
// GET /api/v1/tags/slug/:slug?language=
func (s *APIV1Service) GetTagBySlug(c echo.Context) error {
	view, err := s.QueryService.GetBySlug(c.Request().Context(), c.Param("slug"), c.QueryParam("language"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, convertTagViews([]*tag.TagView{view})[0])
}

// UpdateTag renames a tag or moves it to another language.
// PATCH /api/v1/tags/:id
func (s *APIV1Service) UpdateTag(c echo.Context) error {
	id, err := parseTagID(c)
	if err != nil {
		return err
	}
	request := &UpdateTagRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	updated, err := s.Synchronizer.UpdateTag(c.Request().Context(), &tag.UpdateTagRequest{
		ID:       id,
		Text:     request.Text,
		Language: request.Language,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, s.convertTag(updated))
}

// DeleteTags removes tags together with their links.
// DELETE /api/v1/tags
func (s *APIV1Service) DeleteTags(c echo.Context) error {
	request := &DeleteTagsRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	deleted, err := s.Synchronizer.DeleteTags(c.Request().Context(), request.IDs)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, &DeleteTagsResponse{Deleted: deleted})
}

// SweepTags deletes every tag with a zero usage count.
// POST /api/v1/tags/sweep
func (s *APIV1Service) SweepTags(c echo.Context) error {
	swept, err := s.Synchronizer.Sweep(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, &DeleteTagsResponse{Deleted: swept})
}

// ListTagModules lists the modules that link a tag.
// GET /api/v1/tags/:id/modules
func (s *APIV1Service) ListTagModules(c echo.Context) error {
	id, err := parseTagID(c)
	if err != nil {
		return err
	}
	modules, err := s.QueryService.FindModulesForTag(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string][]string{"modules": modules})
}

// ListTagItems resolves every item linked to a tag through its module.
// GET /api/v1/tags/:id/items
func (s *APIV1Service) ListTagItems(c echo.Context) error {
	id, err := parseTagID(c)
	if err != nil {
		return err
	}
	items, err := s.QueryService.FindItemsForTag(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	response := make([]*Item, 0, len(items))
	for _, item := range items {
		response = append(response, &Item{Module: item.Module, ItemID: item.ItemID, Title: item.Title, URL: item.URL})
	}
	return c.JSON(http.StatusOK, map[string][]*Item{"items": response})
}
