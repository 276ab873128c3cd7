package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/tagsync/server/service/tag"
)

// Item is the JSON representation of a tagged item.
type Item struct {
	Module string `json:"module"`
	ItemID int64  `json:"item_id"`
	Title  string `json:"title,omitempty"`
	URL    string `json:"url,omitempty"`
}

// SyncItemTagsRequest carries the desired tag set of an item, either as a
// list or as comma delimited text. Tags wins when both are set.
type SyncItemTagsRequest struct {
	Language string   `json:"language"`
	Tags     []string `json:"tags"`
	Text     string   `json:"text"`
}

type SyncItemTagsResponse struct {
	Module     string   `json:"module"`
	ItemID     int64    `json:"item_id"`
	Language   string   `json:"language"`
	Tags       []string `json:"tags"`
	Added      []string `json:"added"`
	Removed    []string `json:"removed"`
	Created    []*Tag   `json:"created"`
	Attempts   int      `json:"attempts"`
	IndexError string   `json:"index_error,omitempty"`
}

type ItemTagsResponse struct {
	ItemID int64  `json:"item_id"`
	Tags   []*Tag `json:"tags"`
}

func (s *APIV1Service) convertSyncResult(result *tag.SyncResult) *SyncItemTagsResponse {
	response := &SyncItemTagsResponse{
		Module:   result.Module,
		ItemID:   result.ItemID,
		Language: result.Language,
		Tags:     nonNil(result.Tags),
		Added:    nonNil(result.Added),
		Removed:  nonNil(result.Removed),
		Created:  make([]*Tag, 0, len(result.Created)),
		Attempts: result.Attempts,
	}
	for _, t := range result.Created {
		response.Created = append(response.Created, s.convertTag(t))
	}
	if result.IndexErr != nil {
		response.IndexError = result.IndexErr.Error()
	}
	return response
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// GetItemTags returns the tags of one item.
// GET /api/v1/items/:module/:itemId/tags?language=
func (s *APIV1Service) GetItemTags(c echo.Context) error {
	itemID, err := parseItemID(c)
	if err != nil {
		return err
	}
	views, err := s.QueryService.GetForItem(c.Request().Context(), c.Param("module"), itemID, c.QueryParam("language"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, &ItemTagsResponse{ItemID: itemID, Tags: convertTagViews(views)})
}

// ListModuleItemTags returns the tags of several items of one module.
// GET /api/v1/items/:module/tags?ids=1,2&language=
func (s *APIV1Service) ListModuleItemTags(c echo.Context) error {
	itemIDs := []int64{}
	for _, raw := range strings.Split(c.QueryParam("ids"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
		}
		itemIDs = append(itemIDs, id)
	}

	list, err := s.QueryService.GetForModule(c.Request().Context(), c.Param("module"), itemIDs, c.QueryParam("language"))
	if err != nil {
		return toHTTPError(err)
	}
	response := make([]*ItemTagsResponse, 0, len(list))
	for _, item := range list {
		response = append(response, &ItemTagsResponse{ItemID: item.ItemID, Tags: convertTagViews(item.Tags)})
	}
	return c.JSON(http.StatusOK, map[string][]*ItemTagsResponse{"items": response})
}

// SyncItemTags replaces the tag set of an item.
// PUT /api/v1/items/:module/:itemId/tags
func (s *APIV1Service) SyncItemTags(c echo.Context) error {
	itemID, err := parseItemID(c)
	if err != nil {
		return err
	}
	request := &SyncItemTagsRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	tags := request.Tags
	if tags == nil {
		tags = tag.ParseTags(request.Text)
	}
	result, err := s.Synchronizer.Sync(c.Request().Context(), &tag.SyncRequest{
		Module:   c.Param("module"),
		ItemID:   itemID,
		Language: request.Language,
		Tags:     tags,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, s.convertSyncResult(result))
}

// RemoveItemTags unlinks every tag of an item.
// DELETE /api/v1/items/:module/:itemId/tags?language=
func (s *APIV1Service) RemoveItemTags(c echo.Context) error {
	itemID, err := parseItemID(c)
	if err != nil {
		return err
	}
	result, err := s.Synchronizer.RemoveItem(c.Request().Context(), c.Param("module"), itemID, c.QueryParam("language"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, s.convertSyncResult(result))
}

// ListRelatedItems returns ids of items sharing tags with the given item.
// GET /api/v1/items/:module/:itemId/related?other=&limit=
func (s *APIV1Service) ListRelatedItems(c echo.Context) error {
	itemID, err := parseItemID(c)
	if err != nil {
		return err
	}
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}
	module := c.Param("module")
	other := c.QueryParam("other")
	if other == "" {
		other = module
	}
	ids, err := s.QueryService.FindRelatedItems(c.Request().Context(), module, itemID, other, limit)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string][]int64{"item_ids": ids})
}
