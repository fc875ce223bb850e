package api

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/LeventeLantos/alarm-sms-dispatch/internal/repo"
)

func newDirectoryServer(t *testing.T) http.Handler {
	t.Helper()

	store, err := repo.Open(context.Background(), repo.DriverSQLite, filepath.Join(t.TempDir(), "dir.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}

	h := NewHandler(&fakeDispatcher{}, &fakeAudit{}, &fakeCalendar{}, Options{Location: testLoc}, nil).
		WithDirectory(store)
	return Router(h)
}

func TestDirectory_GroupLifecycle(t *testing.T) {
	mux := newDirectoryServer(t)

	rr := do(t, mux, http.MethodPost, "/v1/groups", `{"name":"Operators"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create group: expected 201, got %d body=%q", rr.Code, rr.Body.String())
	}
	groupID := int64(decodeJSON(t, rr)["id"].(float64))

	rr = do(t, mux, http.MethodPost, "/v1/users", `{"name":"Dana","phone_number":" 0501234567 ","sms_enabled":true}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create user: expected 201, got %d body=%q", rr.Code, rr.Body.String())
	}
	userID := int64(decodeJSON(t, rr)["id"].(float64))

	member := fmt.Sprintf("/v1/groups/%d/members/%d", groupID, userID)
	for i := 0; i < 2; i++ {
		if rr := do(t, mux, http.MethodPut, member, ""); rr.Code != http.StatusNoContent {
			t.Fatalf("add member #%d: expected 204, got %d body=%q", i, rr.Code, rr.Body.String())
		}
	}

	rr = do(t, mux, http.MethodGet, fmt.Sprintf("/v1/groups/%d/members", groupID), "")
	items, _ := decodeJSON(t, rr)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 member, got %v", rr.Body.String())
	}
	if phone := items[0].(map[string]any)["phone_number"]; phone != "0501234567" {
		t.Fatalf("expected trimmed phone, got %v", phone)
	}

	rr = do(t, mux, http.MethodGet, "/v1/users/by-phone/0501234567", "")
	if rr.Code != http.StatusOK || decodeJSON(t, rr)["name"] != "Dana" {
		t.Fatalf("user by phone: got %d body=%q", rr.Code, rr.Body.String())
	}

	if rr := do(t, mux, http.MethodDelete, member, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("remove member: expected 204, got %d", rr.Code)
	}
	if rr := do(t, mux, http.MethodDelete, fmt.Sprintf("/v1/groups/%d", groupID), ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete group: expected 204, got %d", rr.Code)
	}
	if rr := do(t, mux, http.MethodDelete, fmt.Sprintf("/v1/groups/%d", groupID), ""); rr.Code != http.StatusNotFound {
		t.Fatalf("delete missing group: expected 404, got %d", rr.Code)
	}
}

func TestDirectory_Validation(t *testing.T) {
	mux := newDirectoryServer(t)

	cases := []struct {
		method, target, body string
		want                 int
	}{
		{http.MethodPost, "/v1/groups", `{"name":"  "}`, http.StatusBadRequest},
		{http.MethodPost, "/v1/users", `{"name":"Dana"}`, http.StatusBadRequest},
		{http.MethodPost, "/v1/users", `not json`, http.StatusBadRequest},
		{http.MethodGet, "/v1/groups/abc/members", "", http.StatusBadRequest},
		{http.MethodPut, "/v1/groups/1/members/0", "", http.StatusBadRequest},
		{http.MethodGet, "/v1/users/by-phone/000", "", http.StatusNotFound},
	}

	for _, tc := range cases {
		if rr := do(t, mux, tc.method, tc.target, tc.body); rr.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d body=%q", tc.method, tc.target, tc.want, rr.Code, rr.Body.String())
		}
	}
}

func TestDirectory_RoutesDisabledWithoutStore(t *testing.T) {
	mux := newTestServer(t, nil, nil, nil)

	if rr := do(t, mux, http.MethodPost, "/v1/groups", `{"name":"x"}`); rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected directory routes absent, got %d", rr.Code)
	}
}
