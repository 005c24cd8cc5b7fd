// Package keystone implements the archive.Identity interface against a
// Keystone v3 identity service: bearer-token sessions, project-scoped
// token exchange, project discovery, and the SAML2 ECP password
// federation flow (saml.go).
package keystone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ark-go/internal/archive"
)

const subjectTokenHeader = "X-Subject-Token"

// Client talks to one Keystone v3 endpoint.
type Client struct {
	authURL     string // base v3 URL, e.g. https://pollux.cscs.ch:13000/v3
	provider    string // federation identity provider name
	providerURL string // identity provider SAML endpoint
	client      *http.Client
	logger      archive.Logger
}

// New creates a client for the given Keystone v3 endpoint. provider and
// providerURL configure the SAML2 federation used by password
// authentication; token-based calls ignore them.
func New(authURL, provider, providerURL string, logger archive.Logger) *Client {
	if logger == nil {
		logger = archive.NewNopLogger()
	}
	return &Client{
		authURL:     strings.TrimRight(authURL, "/"),
		provider:    provider,
		providerURL: providerURL,
		client:      &http.Client{Timeout: 60 * time.Second},
		logger:      logger,
	}
}

type tokenIdentity struct {
	Methods []string `json:"methods"`
	Token   struct {
		ID string `json:"id"`
	} `json:"token"`
}

type tokenScope struct {
	Project struct {
		ID string `json:"id"`
	} `json:"project"`
}

type tokenRequest struct {
	Auth struct {
		Identity tokenIdentity `json:"identity"`
		Scope    *tokenScope   `json:"scope,omitempty"`
	} `json:"auth"`
}

type tokenResponse struct {
	Token struct {
		ExpiresAt time.Time `json:"expires_at"`
		User      struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"user"`
		Project *struct {
			ID string `json:"id"`
		} `json:"project"`
		Catalog []struct {
			Type      string `json:"type"`
			Endpoints []struct {
				Interface string `json:"interface"`
				URL       string `json:"url"`
			} `json:"endpoints"`
		} `json:"catalog"`
	} `json:"token"`
}

// AuthenticateToken builds an account-level session from an existing
// token by re-issuing it unscoped.
func (c *Client) AuthenticateToken(ctx context.Context, token string) (*archive.Session, error) {
	return c.issueToken(ctx, token, "")
}

// ScopeToProject exchanges a session's token for one bound to the given
// project. The returned session carries the project's object-store
// endpoint from the service catalog.
func (c *Client) ScopeToProject(ctx context.Context, s *archive.Session, projectID string) (*archive.Session, error) {
	return c.issueToken(ctx, s.Token, projectID)
}

func (c *Client) issueToken(ctx context.Context, token, projectID string) (*archive.Session, error) {
	var reqBody tokenRequest
	reqBody.Auth.Identity.Methods = []string{"token"}
	reqBody.Auth.Identity.Token.ID = token
	if projectID != "" {
		reqBody.Auth.Scope = &tokenScope{}
		reqBody.Auth.Scope.Project.ID = projectID
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL+"/auth/tokens", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, statusErr("issuing token", resp, body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("decoding token response: %s: %w", err, archive.ErrRemoteService)
	}
	session := &archive.Session{
		Token:     resp.Header.Get(subjectTokenHeader),
		UserID:    tr.Token.User.ID,
		ExpiresAt: tr.Token.ExpiresAt,
	}
	if tr.Token.Project != nil {
		session.ProjectID = tr.Token.Project.ID
		session.StorageURL = objectStoreEndpoint(tr)
	}
	c.logger.Debug("token issued", "user", tr.Token.User.Name, "project", session.ProjectID)
	return session, nil
}

// ListProjects returns the projects the session's token can be scoped to.
func (c *Client) ListProjects(ctx context.Context, s *archive.Session) ([]archive.ProjectInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.authURL+"/auth/projects", nil)
	if err != nil {
		return nil, fmt.Errorf("building project listing request: %w", err)
	}
	req.Header.Set("X-Auth-Token", s.Token)

	resp, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusErr("listing projects", resp, body)
	}

	var pr struct {
		Projects []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description"`
			Enabled     bool   `json:"enabled"`
		} `json:"projects"`
	}
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("decoding project listing: %s: %w", err, archive.ErrRemoteService)
	}
	infos := make([]archive.ProjectInfo, len(pr.Projects))
	for i, p := range pr.Projects {
		infos[i] = archive.ProjectInfo{ID: p.ID, Name: p.Name, Description: p.Description, Enabled: p.Enabled}
	}
	return infos, nil
}

// objectStoreEndpoint picks the public object-store URL from a scoped
// token's service catalog.
func objectStoreEndpoint(tr tokenResponse) string {
	for _, svc := range tr.Token.Catalog {
		if svc.Type != "object-store" {
			continue
		}
		for _, ep := range svc.Endpoints {
			if ep.Interface == "public" {
				return ep.URL
			}
		}
	}
	return ""
}

func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %s: %w", req.Method, req.URL, err, archive.ErrRemoteService)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading response from %s: %s: %w", req.URL, err, archive.ErrRemoteService)
	}
	return resp, body, nil
}

// statusErr maps identity-service HTTP failures to the facade's error
// kinds.
func statusErr(what string, resp *http.Response, body []byte) error {
	var kind error
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		kind = archive.ErrAuthentication
	case http.StatusForbidden:
		kind = archive.ErrAccessDenied
	case http.StatusNotFound:
		kind = archive.ErrNotFound
	default:
		kind = archive.ErrRemoteService
	}
	detail := strings.TrimSpace(string(body))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	return fmt.Errorf("%s: %s: %s: %w", what, resp.Status, detail, kind)
}
