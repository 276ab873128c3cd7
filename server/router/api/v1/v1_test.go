package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/tagsync/internal/profile"
	"github.com/hrygo/tagsync/plugin/navigation"
	"github.com/hrygo/tagsync/plugin/search"
	tagerrors "github.com/hrygo/tagsync/server/internal/errors"
	"github.com/hrygo/tagsync/server/service/tag"
	teststore "github.com/hrygo/tagsync/store/test"
)

func newTestingServer(t *testing.T) *echo.Echo {
	t.Helper()
	ts := teststore.NewTestingStore(context.Background(), t)
	locale := tag.StaticLocale("en")
	registry, err := tag.NewRegistry()
	require.NoError(t, err)

	service := NewAPIV1Service(
		&profile.Profile{Mode: "dev", Version: "0.2.0"},
		tag.NewSynchronizer(ts, search.NopIndexer{}, locale),
		tag.NewQueryService(ts, navigation.NewStatic("https://example.com", "en"), locale, registry),
	)
	e := echo.New()
	service.RegisterRoutes(e)
	return e
}

func doRequest(t *testing.T, e *echo.Echo, method, target, body string, out any) int {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func TestSyncAndQueryItemTags(t *testing.T) {
	e := newTestingServer(t)

	synced := &SyncItemTagsResponse{}
	code := doRequest(t, e, http.MethodPut, "/api/v1/items/blog/1/tags", `{"text":"News, Go"}`, synced)
	require.Equal(t, http.StatusOK, code)
	// Input order is kept.
	assert.Equal(t, []string{"news", "go"}, synced.Tags)
	assert.Equal(t, "en", synced.Language)
	require.Len(t, synced.Created, 2)
	assert.Equal(t, "https://example.com/en/tags/detail/news", synced.Created[0].URL)
	assert.Equal(t, "https://example.com/en/tags/detail/go", synced.Created[1].URL)

	code = doRequest(t, e, http.MethodPut, "/api/v1/items/blog/2/tags", `{"tags":["news"]}`, nil)
	require.Equal(t, http.StatusOK, code)

	item := &ItemTagsResponse{}
	require.Equal(t, http.StatusOK, doRequest(t, e, http.MethodGet, "/api/v1/items/blog/1/tags", "", item))
	require.Len(t, item.Tags, 2)

	mostUsed := &ListTagsResponse{}
	require.Equal(t, http.StatusOK, doRequest(t, e, http.MethodGet, "/api/v1/tags/most-used?limit=1", "", mostUsed))
	require.Len(t, mostUsed.Tags, 1)
	assert.Equal(t, "news", mostUsed.Tags[0].Text)
	assert.Equal(t, int32(2), mostUsed.Tags[0].Count)

	prefixed := &ListTagsResponse{}
	require.Equal(t, http.StatusOK, doRequest(t, e, http.MethodGet, "/api/v1/tags?q=ne", "", prefixed))
	require.Len(t, prefixed.Tags, 1)

	related := map[string][]int64{}
	require.Equal(t, http.StatusOK, doRequest(t, e, http.MethodGet, "/api/v1/items/blog/1/related", "", &related))
	assert.Equal(t, []int64{2}, related["item_ids"])

	module := map[string][]*ItemTagsResponse{}
	require.Equal(t, http.StatusOK, doRequest(t, e, http.MethodGet, "/api/v1/items/blog/tags?ids=1,2", "", &module))
	require.Len(t, module["items"], 2)
	assert.Equal(t, int64(1), module["items"][0].ItemID)

	removed := &SyncItemTagsResponse{}
	require.Equal(t, http.StatusOK, doRequest(t, e, http.MethodDelete, "/api/v1/items/blog/1/tags", "", removed))
	assert.Equal(t, []string{"go", "news"}, removed.Removed)

	// go dropped to zero and was swept.
	all := &ListTagsResponse{}
	require.Equal(t, http.StatusOK, doRequest(t, e, http.MethodGet, "/api/v1/tags", "", all))
	require.Len(t, all.Tags, 1)
	assert.Equal(t, "news", all.Tags[0].Text)
}

func TestTagAdministration(t *testing.T) {
	e := newTestingServer(t)

	synced := &SyncItemTagsResponse{}
	require.Equal(t, http.StatusOK, doRequest(t, e, http.MethodPut, "/api/v1/items/blog/1/tags", `{"tags":["golang"]}`, synced))
	id := synced.Created[0].ID
	path := "/api/v1/tags/" + itoa(id)

	updated := &Tag{}
	require.Equal(t, http.StatusOK, doRequest(t, e, http.MethodPatch, path, `{"text":" Go "}`, updated))
	assert.Equal(t, "go", updated.Text)
	assert.Equal(t, "go", updated.Slug)

	// Linked tags cannot change language.
	assert.Equal(t, http.StatusBadRequest, doRequest(t, e, http.MethodPatch, path, `{"language":"nl"}`, nil))

	bySlug := &Tag{}
	require.Equal(t, http.StatusOK, doRequest(t, e, http.MethodGet, "/api/v1/tags/slug/go", "", bySlug))
	assert.Equal(t, id, bySlug.ID)

	modules := map[string][]string{}
	require.Equal(t, http.StatusOK, doRequest(t, e, http.MethodGet, path+"/modules", "", &modules))
	assert.Equal(t, []string{"blog"}, modules["modules"])

	// No module is registered for blog.
	assert.Equal(t, http.StatusNotImplemented, doRequest(t, e, http.MethodGet, path+"/items", "", nil))

	deleted := &DeleteTagsResponse{}
	require.Equal(t, http.StatusOK, doRequest(t, e, http.MethodDelete, "/api/v1/tags", `{"ids":[`+itoa(id)+`]}`, deleted))
	assert.Equal(t, int64(1), deleted.Deleted)

	assert.Equal(t, http.StatusNotFound, doRequest(t, e, http.MethodGet, path, "", nil))
	assert.Equal(t, http.StatusNotFound, doRequest(t, e, http.MethodDelete, "/api/v1/tags", `{"ids":[`+itoa(id)+`,9999]}`, nil))
	assert.Equal(t, http.StatusNotFound, doRequest(t, e, http.MethodDelete, "/api/v1/tags", `{"ids":[`+itoa(id)+`]}`, nil))
	assert.Equal(t, http.StatusBadRequest, doRequest(t, e, http.MethodDelete, "/api/v1/tags", `{"ids":[]}`, nil))
	assert.Equal(t, http.StatusNotFound, doRequest(t, e, http.MethodGet, "/api/v1/tags/slug/missing", "", nil))
}

func TestInvalidRequests(t *testing.T) {
	e := newTestingServer(t)

	assert.Equal(t, http.StatusBadRequest, doRequest(t, e, http.MethodGet, "/api/v1/tags/abc", "", nil))
	assert.Equal(t, http.StatusBadRequest, doRequest(t, e, http.MethodGet, "/api/v1/items/blog/x/tags", "", nil))
	assert.Equal(t, http.StatusBadRequest, doRequest(t, e, http.MethodGet, "/api/v1/tags/most-used?limit=-1", "", nil))
	assert.Equal(t, http.StatusBadRequest, doRequest(t, e, http.MethodGet, "/api/v1/items/blog/tags?ids=1,a", "", nil))
}

func TestHealthz(t *testing.T) {
	e := newTestingServer(t)

	body := map[string]string{}
	require.Equal(t, http.StatusOK, doRequest(t, e, http.MethodGet, "/healthz", "", &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "0.2.0", body["version"])
}

func TestToHTTPError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{tagerrors.InvalidArgument("bad"), http.StatusBadRequest},
		{tagerrors.NotFound("missing"), http.StatusNotFound},
		{tagerrors.CapabilityNotImplemented("blog"), http.StatusNotImplemented},
		{tagerrors.Indexing("down", nil), http.StatusBadGateway},
		{tagerrors.Persistence("db", nil), http.StatusInternalServerError},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		he, ok := toHTTPError(tt.err).(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, tt.status, he.Code, tt.err.Error())
	}
}

func itoa(id int32) string {
	b, _ := json.Marshal(id)
	return string(b)
}
