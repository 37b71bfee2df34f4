package rbac

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*mux.Router, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	service := NewService(NewStore(db))
	resolver := NewResolver(db)

	router := mux.NewRouter()
	NewHandlers(service, resolver).RegisterRoutes(router)
	return router, mock
}

func TestHandlers_SwitchOrganization(t *testing.T) {
	t.Run("invalid user id", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("POST", "/users/abc/organizations/switch", strings.NewReader(`{"org_id": 5}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		router, mock := newTestRouter(t)
		_ = mock

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("POST", "/users/10/organizations/switch", strings.NewReader("{")))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown org maps to 404 with code", func(t *testing.T) {
		router, mock := newTestRouter(t)

		mock.ExpectQuery(`FROM users`).WithArgs(int64(10)).WillReturnRows(userRows(10, 1))
		mock.ExpectQuery(`FROM organizations`).WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "is_active"}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("POST", "/users/10/organizations/switch", strings.NewReader(`{"org_id": 99}`)))

		assert.Equal(t, http.StatusNotFound, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, string(CodeNotFound), body["code"])
	})
}

func TestHandlers_RemoveRole(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		router, mock := newTestRouter(t)

		mock.ExpectExec(`UPDATE user_roles`).
			WithArgs(int64(10), int64(2), int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("DELETE", "/users/10/roles/2?org_id=5", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing org_id", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("DELETE", "/users/10/roles/2", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("nothing deleted maps to 404", func(t *testing.T) {
		router, mock := newTestRouter(t)

		mock.ExpectExec(`UPDATE user_roles`).
			WithArgs(int64(10), int64(2), int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("DELETE", "/users/10/roles/2?org_id=5", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandlers_GetActor(t *testing.T) {
	t.Run("missing user maps to 404", func(t *testing.T) {
		router, mock := newTestRouter(t)

		mock.ExpectQuery(`FROM users`).WithArgs(int64(77)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "uuid", "email", "name", "current_org_id", "created_at", "updated_at"}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/users/77/actor", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
