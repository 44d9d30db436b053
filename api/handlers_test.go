package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/domain"
	"github.com/parleyhq/parley/logging"
	"github.com/parleyhq/parley/store"
)

func newTestRouter(messages store.MessageStore) *chi.Mux {
	r := chi.NewRouter()
	r.Use(logging.Middleware(logging.New(logging.Config{Level: "error", Format: "text"})))
	NewHandler(messages).Routes(r)
	return r
}

func TestListMessagesEmpty(t *testing.T) {
	r := newTestRouter(store.NewMemoryStore())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestCreateThenListMessages(t *testing.T) {
	r := newTestRouter(store.NewMemoryStore())

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"sender":"alice","content":"hi"}`)
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/messages", body))

	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "alice", created.Sender)
	assert.Equal(t, "hi", created.Content)
	assert.False(t, created.Timestamp.IsZero())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var listed []domain.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)
}

func TestCreateMessageValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty sender", `{"sender":"","content":"hi"}`},
		{"empty content", `{"sender":"alice","content":""}`},
		{"missing fields", `{}`},
		{"not json", `nope`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			messages := store.NewMemoryStore()
			r := newTestRouter(messages)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/messages", strings.NewReader(tc.body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)

			stored, err := messages.ListAll(context.Background())
			require.NoError(t, err)
			assert.Empty(t, stored)
		})
	}
}

type failingStore struct{}

func (failingStore) Append(context.Context, string, string) (domain.Message, error) {
	return domain.Message{}, errors.New("backend down")
}

func (failingStore) ListAll(context.Context) ([]domain.Message, error) {
	return nil, errors.New("backend down")
}

func TestStoreFailuresSurfaceAsServerErrors(t *testing.T) {
	r := newTestRouter(failingStore{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	body := strings.NewReader(`{"sender":"alice","content":"hi"}`)
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/messages", body))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
