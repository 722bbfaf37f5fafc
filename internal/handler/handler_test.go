package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"fortec-chat-go/internal/middleware"
	"fortec-chat-go/internal/model"
	"fortec-chat-go/internal/repository"
	"fortec-chat-go/pkg/identity"
	"fortec-chat-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(completion *stubCompletion, search *stubSearch, dashboard *stubDashboard, jwtManager *token.JWTManager) *gin.Engine {
	return newTestRouterWithProfiles(completion, search, dashboard, jwtManager, nil)
}

func newTestRouterWithProfiles(completion *stubCompletion, search *stubSearch, dashboard *stubDashboard, jwtManager *token.JWTManager, profiles repository.UserRepository) *gin.Engine {
	r := gin.New()
	api := r.Group("/api")
	api.Use(middleware.CookieIdentity(testIdentityCfg))
	{
		ch := NewCompletionHandler(completion, testIdentityCfg)
		api.POST("/chat", ch.Complete)
		api.GET("/models", ch.ListModels)
		api.POST("/web-search", NewSearchHandler(search).WebSearch)
		api.GET("/dashboard", middleware.IdentityAuth(jwtManager), NewDashboardHandler(dashboard).GetDashboard)
		api.POST("/set-cookie", NewIdentityHandler(jwtManager, profiles, testIdentityCfg).SetCookie)
	}
	return r
}

func doJSON(r http.Handler, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCompleteReturnsReplyAndSetsAnonymousCookie(t *testing.T) {
	completion := &stubCompletion{}
	r := newTestRouter(completion, &stubSearch{}, &stubDashboard{}, token.NewJWTManager("s", 1))

	w := doJSON(r, http.MethodPost, "/api/chat", `{"messages":[{"content":"hi","isUser":true}],"model":"qwen-coder"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "echo: hi", body["text"])
	assert.Equal(t, "qwen-coder", body["model"])
	assert.Equal(t, "2024-03-01T12:00:00.000Z", body["timestamp"])

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, url.QueryEscape(identity.AnonymousEmail), cookies[0].Value)
	assert.Equal(t, []string{identity.AnonymousEmail}, completion.emails)
}

func TestCompleteKeepsExistingCookie(t *testing.T) {
	completion := &stubCompletion{}
	r := newTestRouter(completion, &stubSearch{}, &stubDashboard{}, token.NewJWTManager("s", 1))

	w := doJSON(r, http.MethodPost, "/api/chat", `{"messages":[{"content":"hi","isUser":true}]}`,
		&http.Cookie{Name: "userEmail", Value: "ada@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies())
	assert.Equal(t, []string{"ada@example.com"}, completion.emails)
}

func TestCompleteRejectsInvalidInput(t *testing.T) {
	r := newTestRouter(&stubCompletion{}, &stubSearch{}, &stubDashboard{}, token.NewJWTManager("s", 1))

	w := doJSON(r, http.MethodPost, "/api/chat", `{"messages":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid messages format", decode(t, w)["error"])

	w = doJSON(r, http.MethodPost, "/api/chat", `{"messages":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Result().Cookies())
}

func TestCompleteSurfacesBackendFailure(t *testing.T) {
	completion := &stubCompletion{err: errors.New("upstream exploded")}
	r := newTestRouter(completion, &stubSearch{}, &stubDashboard{}, token.NewJWTManager("s", 1))

	w := doJSON(r, http.MethodPost, "/api/chat", `{"messages":[{"content":"hi","isUser":true}]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "upstream exploded", decode(t, w)["error"])
}

func TestListModelsMarksDefault(t *testing.T) {
	r := newTestRouter(&stubCompletion{}, &stubSearch{}, &stubDashboard{}, token.NewJWTManager("s", 1))

	w := doJSON(r, http.MethodGet, "/api/models", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Models []modelEntry `json:"models"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Models, len(model.Catalog()))
	defaults := 0
	for _, m := range body.Models {
		if m.Default {
			defaults++
			assert.Equal(t, model.DefaultModelID, m.ID)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestWebSearchShapes(t *testing.T) {
	search := &stubSearch{}
	r := newTestRouter(&stubCompletion{}, search, &stubDashboard{}, token.NewJWTManager("s", 1))

	w := doJSON(r, http.MethodPost, "/api/web-search", `{"query":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Query is required", decode(t, w)["error"])
	assert.Empty(t, search.queries)

	w = doJSON(r, http.MethodPost, "/api/web-search", `{"query":"tokyo weather"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["organic_results"], 1)
	meta := body["search_metadata"].(map[string]interface{})
	assert.Equal(t, "Success", meta["status"])
	assert.Equal(t, "2024-03-01T12:00:00.000Z", meta["processed_at"])
	assert.NotContains(t, meta, "error_message")
}

func TestWebSearchFailureShape(t *testing.T) {
	search := &stubSearch{outcome: &model.SearchOutcome{
		Results:  []model.SearchResult{},
		Metadata: model.SearchMetadata{Status: "Error", ProcessedAt: fixedTime, ErrorMessage: "boom"},
		Error:    "boom",
	}}
	r := newTestRouter(&stubCompletion{}, search, &stubDashboard{}, token.NewJWTManager("s", 1))

	w := doJSON(r, http.MethodPost, "/api/web-search", `{"query":"tokyo"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "boom", body["error"])
	assert.Equal(t, []interface{}{}, body["organic_results"])
	meta := body["search_metadata"].(map[string]interface{})
	assert.Equal(t, "Error", meta["status"])
	assert.Equal(t, "boom", meta["error_message"])
}

func TestDashboardRequiresToken(t *testing.T) {
	dashboard := &stubDashboard{}
	r := newTestRouter(&stubCompletion{}, &stubSearch{}, dashboard, token.NewJWTManager("s", 1))

	w := doJSON(r, http.MethodGet, "/api/dashboard", "", &http.Cookie{Name: "userEmail", Value: "ada@example.com"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, dashboard.emails)
}

func TestSetCookieTokenOpensDashboard(t *testing.T) {
	jwtManager := token.NewJWTManager("s", 1)
	dashboard := &stubDashboard{}
	r := newTestRouter(&stubCompletion{}, &stubSearch{}, dashboard, jwtManager)

	w := doJSON(r, http.MethodPost, "/api/set-cookie", `{"email":" Ada@Example.com "}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Cookie set", body["message"])
	assert.Equal(t, identity.UserID("ada@example.com"), body["uid"])
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "ada%40example.com", cookies[0].Value)

	tok := body["token"].(string)
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/dashboard?_nocache=1", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"ada@example.com", "ada@example.com"}, dashboard.emails)
	assert.Equal(t, []bool{false, true}, dashboard.forced)
}

func TestSetCookieAnonymousAndClear(t *testing.T) {
	r := newTestRouter(&stubCompletion{}, &stubSearch{}, &stubDashboard{}, token.NewJWTManager("s", 1))

	w := doJSON(r, http.MethodPost, "/api/set-cookie", `{"email":"anonymous@fortecai.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.NotContains(t, body, "token")

	w = doJSON(r, http.MethodPost, "/api/set-cookie", `{"email":""}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Cookie cleared", decode(t, w)["message"])
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)

	w = doJSON(r, http.MethodPost, "/api/set-cookie", `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetCookieEnsuresProfile(t *testing.T) {
	profiles := &stubProfiles{}
	r := newTestRouterWithProfiles(&stubCompletion{}, &stubSearch{}, &stubDashboard{}, token.NewJWTManager("s", 1), profiles)

	w := doJSON(r, http.MethodPost, "/api/set-cookie", `{"email":"ada@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(r, http.MethodPost, "/api/set-cookie", `{"email":"anonymous@fortecai.com"}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{identity.UserID("ada@example.com")}, profiles.ensured)
}

func TestSetCookieSurvivesProfileFailure(t *testing.T) {
	profiles := &stubProfiles{err: errors.New("db down")}
	r := newTestRouterWithProfiles(&stubCompletion{}, &stubSearch{}, &stubDashboard{}, token.NewJWTManager("s", 1), profiles)

	w := doJSON(r, http.MethodPost, "/api/set-cookie", `{"email":"ada@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["token"])
}
