package messages_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chirino/askbox/internal/apierror"
	"github.com/chirino/askbox/internal/members"
	"github.com/chirino/askbox/internal/messages"
	"github.com/chirino/askbox/internal/model"
	routemessages "github.com/chirino/askbox/internal/plugin/route/messages"
	"github.com/chirino/askbox/internal/security"
	"github.com/chirino/askbox/internal/testutil/teststore"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "route-test-secret"

type harness struct {
	router *gin.Engine
	ledger *messages.Ledger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, ctx := teststore.Open(t)
	cfg := teststore.Config(t)
	cfg.JWTSecret = jwtSecret
	cfg.MaxPageSize = 5

	reg := members.NewRegistry(store, nil, 0)
	_, err := reg.Register(ctx, members.RegisterInput{UID: "u1", Email: "u1@gmail.com"})
	require.NoError(t, err)

	ledger := messages.NewLedger(store)
	r := gin.New()
	apierror.Install(r)
	routemessages.MountRoutes(r, ledger, cfg, security.AuthMiddleware(security.NewTokenResolver(cfg)))
	return &harness{router: r, ledger: ledger}
}

func (h *harness) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) post(t *testing.T, message string) string {
	t.Helper()
	w := h.do(http.MethodPost, "/api/messages.add", fmt.Sprintf(`{"uid":"u1","message":%q}`, message))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	page := h.list(t, "/api/messages.list?uid=u1&size=1")
	require.Len(t, page.Content, 1)
	return page.Content[0].ID
}

func (h *harness) list(t *testing.T, path string) model.Page {
	t.Helper()
	w := h.do(http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page model.Page
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	return page
}

func TestPostAndList(t *testing.T) {
	h := newHarness(t)

	page := h.list(t, "/api/messages.list?uid=u1")
	assert.Equal(t, int64(0), page.TotalElements)
	assert.Equal(t, int64(1), page.Page)
	assert.Equal(t, int64(5), page.Size)
	assert.Empty(t, page.Content)

	h.post(t, "hello")
	w := h.do(http.MethodPost, "/api/messages.add", `{"uid":"u1","message":"signed","author":{"displayName":"Bob"}}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Body.String())

	page = h.list(t, "/api/messages.list?uid=u1&page=1&size=10")
	assert.Equal(t, int64(2), page.TotalElements)
	assert.Equal(t, int64(1), page.TotalPages)
	assert.Equal(t, int64(5), page.Size)
	require.Len(t, page.Content, 2)
	assert.Equal(t, "signed", page.Content[0].Message)
	require.NotNil(t, page.Content[0].Author)
	assert.Equal(t, "Bob", page.Content[0].Author.DisplayName)
	assert.Equal(t, "hello", page.Content[1].Message)
	assert.Nil(t, page.Content[1].Author)
	_, err := time.Parse(model.TimeLayout, page.Content[1].CreateAt)
	assert.NoError(t, err)
}

func TestList_FirstQueryValueWins(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 3; i++ {
		h.post(t, fmt.Sprintf("m%d", i))
	}

	page := h.list(t, "/api/messages.list?uid=u1&uid=other&page=2&page=1&size=2")
	assert.Equal(t, int64(2), page.Page)
	require.Len(t, page.Content, 1)
	assert.Equal(t, "m0", page.Content[0].Message)
}

func TestList_HugePageIsEmpty(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 3; i++ {
		h.post(t, fmt.Sprintf("m%d", i))
	}

	page := h.list(t, "/api/messages.list?uid=u1&page=4611686018427387905&size=4")
	assert.Equal(t, int64(3), page.TotalElements)
	assert.Equal(t, int64(0), page.TotalPages)
	assert.Empty(t, page.Content)
}

func TestList_BadInput(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		path    string
		message string
	}{
		{"/api/messages.list", "uid is missing"},
		{"/api/messages.list?uid=u1&page=abc", "page must be an integer"},
		{"/api/messages.list?uid=u1&page=0", "validation error on page: must be at least 1"},
		{"/api/messages.list?uid=u1&size=-1", "validation error on size: must be at least 1"},
		{"/api/messages.list?uid=ghost", "unknown user: ghost"},
	}
	for _, tc := range tests {
		w := h.do(http.MethodGet, tc.path, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, tc.path)
		assert.JSONEq(t, fmt.Sprintf(`{"message":%q}`, tc.message), w.Body.String(), tc.path)
	}
}

func TestPost_BadInput(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		body    string
		message string
	}{
		{`{"message":"hi"}`, "uid is missing"},
		{`{"uid":"u1"}`, "message is missing"},
		{`{"uid":"u1","message":"hi","author":{"photoURL":"x"}}`, "author.displayName is missing"},
		{`{"uid":"ghost","message":"hi"}`, "unknown user: ghost"},
	}
	for _, tc := range tests {
		w := h.do(http.MethodPost, "/api/messages.add", tc.body)
		assert.Equal(t, http.StatusBadRequest, w.Code, tc.body)
		assert.JSONEq(t, fmt.Sprintf(`{"message":%q}`, tc.message), w.Body.String(), tc.body)
	}
}

func TestReplyAndInfo(t *testing.T) {
	h := newHarness(t)
	id := h.post(t, "question")

	w := h.do(http.MethodPost, "/api/messages.add.reply", fmt.Sprintf(`{"uid":"u1","messageId":%q,"reply":"answer"}`, id))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = h.do(http.MethodGet, "/api/messages.info?uid=u1&messageId="+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	var view model.MessageView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.NotNil(t, view.Reply)
	assert.Equal(t, "answer", *view.Reply)
	require.NotNil(t, view.ReplyAt)

	w = h.do(http.MethodPost, "/api/messages.add.reply", fmt.Sprintf(`{"uid":"u1","messageId":%q,"reply":"again"}`, id))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"already replied"}`, w.Body.String())

	w = h.do(http.MethodPost, "/api/messages.add.reply", `{"uid":"u1","reply":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"messageId is missing"}`, w.Body.String())
}

func TestInfo_BadInput(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/messages.info?uid=u1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"messageId is missing"}`, w.Body.String())

	w = h.do(http.MethodGet, "/api/messages.info?uid=u1&messageId=00000000-0000-0000-0000-000000000000", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown message")
}

func TestDeny(t *testing.T) {
	h := newHarness(t)
	id := h.post(t, "rude")
	token, err := security.SignToken("u1", []byte(jwtSecret), time.Hour)
	require.NoError(t, err)
	body := fmt.Sprintf(`{"uid":"u1","messageId":%q,"deny":true}`, id)

	w := h.do(http.MethodPut, "/api/messages.deny", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"message":"not authorized"}`, w.Body.String())

	w = h.do(http.MethodPut, "/api/messages.deny", body, "Authorization", "Bearer not.a.token")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"token problem"}`, w.Body.String())

	w = h.do(http.MethodPut, "/api/messages.deny", body, "Authorization", "u2")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodPut, "/api/messages.deny", `{"uid":"u1","messageId":"x"}`, "Authorization", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"deny is missing"}`, w.Body.String())

	w = h.do(http.MethodPut, "/api/messages.deny", body, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view model.MessageView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "rude", view.Message)
	require.NotNil(t, view.Deny)
	assert.True(t, *view.Deny)

	w = h.do(http.MethodGet, "/api/messages.info?uid=u1&messageId="+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, model.DeniedPlaceholder, view.Message)
}

func TestUnsupportedMethod(t *testing.T) {
	h := newHarness(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/messages.add"},
		{http.MethodPost, "/api/messages.deny"},
		{http.MethodDelete, "/api/messages.list"},
	} {
		w := h.do(tc.method, tc.path, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, tc.path)
		assert.JSONEq(t, `{"message":"unsupported method"}`, w.Body.String(), tc.path)
	}
}
