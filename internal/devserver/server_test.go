package devserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/splitwiser-client/internal/auth"
	"github.com/mmynk/splitwiser-client/internal/storage"
)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := NewStore(storage.NewMemory())
	authenticator := auth.NewPasswordAuthenticator(store, bcrypt.MinCost)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)

	server := httptest.NewServer(New(store, authenticator, jwtManager, nil).Handler())
	t.Cleanup(server.Close)
	return server
}

func postForm(t *testing.T, server *httptest.Server, path string, values url.Values) *http.Response {
	t.Helper()
	resp, err := http.PostForm(server.URL+path, values)
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	return resp
}

func doJSON(t *testing.T, server *httptest.Server, method, path, token, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func login(t *testing.T, server *httptest.Server, email string) string {
	t.Helper()
	creds := url.Values{"username": {email}, "password": {"pw"}}
	resp := postForm(t, server, "/register", creds)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register status = %d", resp.StatusCode)
	}

	resp = postForm(t, server, "/token", creds)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token status = %d", resp.StatusCode)
	}
	return decode[tokenResponse](t, resp).AccessToken
}

func createGroup(t *testing.T, server *httptest.Server, token string) groupResponse {
	t.Helper()
	resp := doJSON(t, server, http.MethodPost, "/groups", token, `{"name":"Trip","members":["Alice","Bob"]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create group status = %d", resp.StatusCode)
	}
	return decode[groupResponse](t, resp)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	server := setupTestServer(t)
	login(t, server, "a@x.com")

	resp := postForm(t, server, "/register", url.Values{"username": {"a@x.com"}, "password": {"other"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decode[map[string]string](t, resp)
	if body["detail"] != "Email already registered" {
		t.Errorf("detail = %q", body["detail"])
	}
}

func TestToken_WrongPassword(t *testing.T) {
	server := setupTestServer(t)
	login(t, server, "a@x.com")

	resp := postForm(t, server, "/token", url.Values{"username": {"a@x.com"}, "password": {"nope"}})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	body := decode[map[string]string](t, resp)
	if body["detail"] != "Incorrect email or password" {
		t.Errorf("detail = %q", body["detail"])
	}
}

func TestGroups_RequireToken(t *testing.T) {
	server := setupTestServer(t)

	resp := doJSON(t, server, http.MethodGet, "/groups", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	body := decode[map[string]string](t, resp)
	if body["detail"] != "Could not validate credentials" {
		t.Errorf("detail = %q", body["detail"])
	}
}

func TestGroups_CreateAndList(t *testing.T) {
	server := setupTestServer(t)
	token := login(t, server, "a@x.com")

	created := createGroup(t, server, token)
	if created.GroupID == "" {
		t.Fatal("expected a group id")
	}

	resp := doJSON(t, server, http.MethodGet, "/groups", token, "")
	groups := decode[[]groupResponse](t, resp)
	if len(groups) != 1 || groups[0].GroupID != created.GroupID {
		t.Fatalf("groups = %+v", groups)
	}

	// Another user sees neither the list entry nor the group.
	other := login(t, server, "b@x.com")
	resp = doJSON(t, server, http.MethodGet, "/groups", other, "")
	if groups := decode[[]groupResponse](t, resp); len(groups) != 0 {
		t.Errorf("other user's groups = %+v", groups)
	}
	resp = doJSON(t, server, http.MethodGet, "/groups/"+created.GroupID, other, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestGroups_Validation(t *testing.T) {
	server := setupTestServer(t)
	token := login(t, server, "a@x.com")

	tests := []struct {
		name string
		body string
	}{
		{"short name", `{"name":"ab","members":["Alice"]}`},
		{"short name after trimming", `{"name":"  ab  ","members":["Alice"]}`},
		{"two characters in four bytes", `{"name":"éé","members":["Alice"]}`},
		{"no members", `{"name":"Trip","members":[]}`},
		{"bad json", `{"name":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, server, http.MethodPost, "/groups", token, tt.body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422", resp.StatusCode)
			}
		})
	}
}

func TestGroups_NameIsTrimmed(t *testing.T) {
	server := setupTestServer(t)
	token := login(t, server, "a@x.com")

	resp := doJSON(t, server, http.MethodPost, "/groups", token, `{"name":"  Çay ","members":["Alice"]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if got := decode[groupResponse](t, resp); got.Name != "Çay" {
		t.Errorf("name = %q, want %q", got.Name, "Çay")
	}
}

func TestGetGroup_NotFound(t *testing.T) {
	server := setupTestServer(t)
	token := login(t, server, "a@x.com")

	resp := doJSON(t, server, http.MethodGet, "/groups/missing", token, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if body := decode[map[string]string](t, resp); body["detail"] != "Group not found" {
		t.Errorf("detail = %q", body["detail"])
	}
}

func TestExpenses_AddAndList(t *testing.T) {
	server := setupTestServer(t)
	token := login(t, server, "a@x.com")
	group := createGroup(t, server, token)
	path := "/groups/" + group.GroupID + "/expenses"

	resp := doJSON(t, server, http.MethodPost, path, token,
		`{"description":"Dinner","amount":40.00,"payer":"Alice","participants":["Alice","Bob"]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, server, http.MethodGet, path, token, "")
	expenses := decode[[]expenseResponse](t, resp)
	if len(expenses) != 1 {
		t.Fatalf("got %d expenses, want 1", len(expenses))
	}
	got := expenses[0]
	if got.Description != "Dinner" || got.Amount.String() != "40" || got.Payer != "Alice" {
		t.Errorf("expense = %+v", got)
	}
	if len(got.Participants) != 2 {
		t.Errorf("participants = %v", got.Participants)
	}
}

func TestExpenses_Validation(t *testing.T) {
	server := setupTestServer(t)
	token := login(t, server, "a@x.com")
	group := createGroup(t, server, token)
	path := "/groups/" + group.GroupID + "/expenses"

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantDetail string
	}{
		{
			name:       "zero amount",
			body:       `{"description":"Dinner","amount":0,"payer":"Alice","participants":["Alice"]}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantDetail: "Amount must be greater than zero.",
		},
		{
			name:       "unknown payer",
			body:       `{"description":"Dinner","amount":10,"payer":"Carol","participants":["Alice"]}`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "Payer 'Carol' is not a member of this group.",
		},
		{
			name:       "unknown participant",
			body:       `{"description":"Dinner","amount":10,"payer":"Alice","participants":["Alice","Dave"]}`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "Participant 'Dave' is not a member of this group.",
		},
		{
			name:       "no participants",
			body:       `{"description":"Dinner","amount":10,"payer":"Alice","participants":[]}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantDetail: "An expense needs at least one participant.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, server, http.MethodPost, path, token, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if body := decode[map[string]string](t, resp); body["detail"] != tt.wantDetail {
				t.Errorf("detail = %q, want %q", body["detail"], tt.wantDetail)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	server := setupTestServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
