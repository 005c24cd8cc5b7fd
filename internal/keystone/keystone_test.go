package keystone_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ark-go/internal/archive"
	"ark-go/internal/keystone"
)

// tokenAuth mirrors the wire shape of a v3 token request, just enough
// to inspect what the client sent.
type tokenAuth struct {
	Auth struct {
		Identity struct {
			Methods []string `json:"methods"`
			Token   struct {
				ID string `json:"id"`
			} `json:"token"`
		} `json:"identity"`
		Scope *struct {
			Project struct {
				ID string `json:"id"`
			} `json:"project"`
		} `json:"scope"`
	} `json:"auth"`
}

func newIdentityServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/auth/tokens", func(w http.ResponseWriter, r *http.Request) {
		var req tokenAuth
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Auth.Identity.Methods) != 1 || req.Auth.Identity.Methods[0] != "token" {
			t.Errorf("methods = %v, want [token]", req.Auth.Identity.Methods)
		}
		// Scoping re-authenticates with the token issued here, so both
		// the seed token and the issued one are accepted.
		if id := req.Auth.Identity.Token.ID; id != "valid-token" && id != "issued-token" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"message":"The request you have made requires authentication."}}`)
			return
		}

		w.Header().Set("X-Subject-Token", "issued-token")
		w.WriteHeader(http.StatusCreated)
		if req.Auth.Scope == nil {
			fmt.Fprint(w, `{"token":{
				"expires_at":"2026-09-01T00:00:00.000000Z",
				"user":{"id":"uid-1","name":"alice"}
			}}`)
			return
		}
		fmt.Fprintf(w, `{"token":{
			"expires_at":"2026-09-01T00:00:00.000000Z",
			"user":{"id":"uid-1","name":"alice"},
			"project":{"id":%q},
			"catalog":[
				{"type":"identity","endpoints":[{"interface":"public","url":"https://identity.example"}]},
				{"type":"object-store","endpoints":[
					{"interface":"internal","url":"https://internal.example/swift"},
					{"interface":"public","url":"https://objects.example/v1/AUTH_p1"}
				]}
			]
		}}`, req.Auth.Scope.Project.ID)
	})
	mux.HandleFunc("/v3/auth/projects", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Auth-Token") != "issued-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"projects":[
			{"id":"p1","name":"demo","description":"Demo project","enabled":true},
			{"id":"p2","name":"other","enabled":false}
		]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_AuthenticateToken(t *testing.T) {
	t.Run("re-issues the token unscoped", func(t *testing.T) {
		t.Parallel()
		srv := newIdentityServer(t)
		c := keystone.New(srv.URL+"/v3", "idp", "", nil)

		s, err := c.AuthenticateToken(context.Background(), "valid-token")
		if err != nil {
			t.Fatalf("AuthenticateToken() error = %v", err)
		}
		if s.Token != "issued-token" {
			t.Errorf("Token = %q, want issued-token", s.Token)
		}
		if s.UserID != "uid-1" {
			t.Errorf("UserID = %q, want uid-1", s.UserID)
		}
		if s.Scoped() {
			t.Error("unscoped session reports Scoped() = true")
		}
		if s.ExpiresAt.IsZero() {
			t.Error("ExpiresAt not parsed")
		}
	})

	t.Run("rejected token is ErrAuthentication", func(t *testing.T) {
		t.Parallel()
		srv := newIdentityServer(t)
		c := keystone.New(srv.URL+"/v3", "idp", "", nil)

		_, err := c.AuthenticateToken(context.Background(), "forged")
		if !errors.Is(err, archive.ErrAuthentication) {
			t.Fatalf("got %v, want ErrAuthentication", err)
		}
	})

	t.Run("unreachable endpoint is ErrRemoteService", func(t *testing.T) {
		t.Parallel()
		c := keystone.New("http://127.0.0.1:1/v3", "idp", "", nil)

		_, err := c.AuthenticateToken(context.Background(), "valid-token")
		if !errors.Is(err, archive.ErrRemoteService) {
			t.Fatalf("got %v, want ErrRemoteService", err)
		}
	})
}

func TestClient_ScopeToProject(t *testing.T) {
	t.Parallel()
	srv := newIdentityServer(t)
	c := keystone.New(srv.URL+"/v3", "idp", "", nil)

	account, err := c.AuthenticateToken(context.Background(), "valid-token")
	if err != nil {
		t.Fatalf("AuthenticateToken() error = %v", err)
	}

	scoped, err := c.ScopeToProject(context.Background(), account, "p1")
	if err != nil {
		t.Fatalf("ScopeToProject() error = %v", err)
	}
	if scoped.ProjectID != "p1" {
		t.Errorf("ProjectID = %q, want p1", scoped.ProjectID)
	}
	if !scoped.Scoped() {
		t.Error("scoped session reports Scoped() = false")
	}
	if scoped.StorageURL != "https://objects.example/v1/AUTH_p1" {
		t.Errorf("StorageURL = %q, want the public object-store endpoint", scoped.StorageURL)
	}
}

func TestClient_ListProjects(t *testing.T) {
	t.Parallel()
	srv := newIdentityServer(t)
	c := keystone.New(srv.URL+"/v3", "idp", "", nil)

	s, err := c.AuthenticateToken(context.Background(), "valid-token")
	if err != nil {
		t.Fatalf("AuthenticateToken() error = %v", err)
	}

	infos, err := c.ListProjects(context.Background(), s)
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d projects, want 2", len(infos))
	}
	if infos[0].ID != "p1" || infos[0].Name != "demo" || !infos[0].Enabled {
		t.Errorf("infos[0] = %+v, want p1/demo/enabled", infos[0])
	}
	if infos[1].Enabled {
		t.Error("infos[1].Enabled = true, want false")
	}

	_, err = c.ListProjects(context.Background(), &archive.Session{Token: "stale"})
	if !errors.Is(err, archive.ErrAuthentication) {
		t.Fatalf("got %v, want ErrAuthentication", err)
	}
}
