package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nerrad567/device-core/internal/auth"
)

func TestLogin_Success(t *testing.T) {
	env := testServer(t)
	env.createUser(t, "alice", auth.RoleAdmin)

	w := env.doRequest(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "alice",
		"password": "correct horse battery staple",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	resp := decodeBody(t, w)
	token, _ := resp["access_token"].(string) //nolint:errcheck // asserted below
	if token == "" {
		t.Fatal("login returned no access_token")
	}
	if resp["token_type"] != "Bearer" {
		t.Errorf("token_type = %v, want Bearer", resp["token_type"])
	}

	// The returned token must work against a protected route.
	me := env.doRequest(http.MethodGet, "/api/v1/auth/me", token, nil)
	if me.Code != http.StatusOK {
		t.Fatalf("me with fresh token = %d, want %d", me.Code, http.StatusOK)
	}
	meResp := decodeBody(t, me)
	if meResp["username"] != "alice" {
		t.Errorf("me username = %v, want alice", meResp["username"])
	}
	if meResp["role"] != "admin" {
		t.Errorf("me role = %v, want admin", meResp["role"])
	}
}

func TestLogin_Rejections(t *testing.T) {
	env := testServer(t)
	env.createUser(t, "alice", auth.RoleAdmin)

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{
			name:       "wrong password",
			body:       map[string]string{"username": "alice", "password": "nope"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown user",
			body:       map[string]string{"username": "mallory", "password": "nope"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing fields",
			body:       map[string]string{"username": "alice"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       "not json at all",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.doRequest(http.MethodPost, "/api/v1/auth/login", "", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("login status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestLogin_DisabledAccount(t *testing.T) {
	env := testServer(t)

	hash, err := auth.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user := &auth.User{Username: "bob", PasswordHash: hash, Role: auth.RoleViewer, Disabled: true}
	if err := env.users.Create(context.Background(), user); err != nil {
		t.Fatalf("Create user: %v", err)
	}

	w := env.doRequest(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "bob",
		"password": "correct horse battery staple",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("disabled login status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestAuthMiddleware_RejectsGarbageTokens(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "not a bearer scheme", header: "Basic YWxpY2U6aHVudGVyMg=="},
		{name: "empty bearer", header: "Bearer "},
		{name: "garbage token", header: "Bearer not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			req.Header.Set("Authorization", tt.header)
			w := httptest.NewRecorder()
			env.srv.buildRouter().ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestWSTicket_SingleUse(t *testing.T) {
	env := testServer(t)
	user, token := env.createUser(t, "alice", auth.RoleAdmin)

	w := env.doRequest(http.MethodPost, "/api/v1/auth/ws-ticket", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ws-ticket status = %d, want %d", w.Code, http.StatusOK)
	}

	resp := decodeBody(t, w)
	ticket, _ := resp["ticket"].(string) //nolint:errcheck // asserted below
	if ticket == "" {
		t.Fatal("ws-ticket returned no ticket")
	}

	entry, ok := env.srv.tickets.redeem(ticket)
	if !ok {
		t.Fatal("freshly minted ticket failed to redeem")
	}
	if entry.userID != user.ID {
		t.Errorf("ticket userID = %q, want %q", entry.userID, user.ID)
	}
	if entry.role != auth.RoleAdmin {
		t.Errorf("ticket role = %q, want admin", entry.role)
	}

	if _, ok := env.srv.tickets.redeem(ticket); ok {
		t.Error("ticket redeemed twice")
	}
}

func TestTicketStore_Expiry(t *testing.T) {
	store := newTicketStore(1)
	ticket := store.issue("usr-1", auth.RoleViewer)

	// Force expiry rather than sleeping.
	store.mu.Lock()
	entry := store.tickets[ticket]
	entry.expiresAt = time.Now().Add(-time.Second)
	store.tickets[ticket] = entry
	store.mu.Unlock()

	if _, ok := store.redeem(ticket); ok {
		t.Error("expired ticket redeemed")
	}
}

func TestTicketStore_CleanExpired(t *testing.T) {
	store := newTicketStore(1)
	live := store.issue("usr-1", auth.RoleViewer)
	stale := store.issue("usr-2", auth.RoleViewer)

	store.mu.Lock()
	entry := store.tickets[stale]
	entry.expiresAt = time.Now().Add(-time.Second)
	store.tickets[stale] = entry
	store.mu.Unlock()

	store.cleanExpired()

	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.tickets[stale]; ok {
		t.Error("cleanExpired left stale ticket")
	}
	if _, ok := store.tickets[live]; !ok {
		t.Error("cleanExpired removed live ticket")
	}
}
