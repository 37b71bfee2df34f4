package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	var dest struct {
		OrgID int64 `json:"org_id"`
	}

	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"org_id": 5}`))
	require.NoError(t, ParseJSON(r, &dest))
	assert.Equal(t, int64(5), dest.OrgID)

	r = httptest.NewRequest("POST", "/", strings.NewReader("{"))
	err := ParseJSON(r, &dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestParsePathInt64(t *testing.T) {
	router := mux.NewRouter()

	var got int64
	var gotErr error
	router.HandleFunc("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = ParsePathInt64(r, "id")
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/users/42", nil))
	require.NoError(t, gotErr)
	assert.Equal(t, int64(42), got)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/users/abc", nil))
	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "invalid integer")
}

func TestParsePathInt64OrError(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/users/abc", nil)
	r = mux.SetURLVars(r, map[string]string{"id": "abc"})

	_, ok := ParsePathInt64OrError(rec, r, "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseQueryInt64(t *testing.T) {
	r := httptest.NewRequest("DELETE", "/users/1/roles/2?org_id=5", nil)

	val, err := ParseQueryInt64(r, "org_id")
	require.NoError(t, err)
	assert.Equal(t, int64(5), val)

	_, err = ParseQueryInt64(r, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing query parameter")
}
