package archive

import (
	"context"
	"time"
)

// Session is an authenticated context issued by the identity service.
// Account-level sessions have an empty ProjectID and StorageURL; sessions
// returned by ScopeToProject carry both.
type Session struct {
	Token      string
	UserID     string
	ProjectID  string
	StorageURL string
	ExpiresAt  time.Time
}

// Scoped reports whether the session is bound to a project.
func (s *Session) Scoped() bool { return s.ProjectID != "" }

// ProjectInfo is the raw project descriptor returned by the identity service.
type ProjectInfo struct {
	ID          string
	Name        string
	Description string
	Enabled     bool
}

// Identity provides an interface to the token-based identity service.
// It handles session issuance, scope elevation and project discovery;
// wire-level details live in the implementing package.
type Identity interface {
	// AuthenticateToken builds an account-level session from an existing
	// bearer token.
	AuthenticateToken(ctx context.Context, token string) (*Session, error)

	// AuthenticatePassword performs the federated password exchange for
	// the given username and returns an account-level session. A rejected
	// username or password yields ErrAuthentication.
	AuthenticatePassword(ctx context.Context, username, password string) (*Session, error)

	// ScopeToProject exchanges an account-level session for one bound to
	// the given project id. The returned session carries the project's
	// object-store endpoint.
	ScopeToProject(ctx context.Context, s *Session, projectID string) (*Session, error)

	// ListProjects returns the projects the session's user is entitled to.
	ListProjects(ctx context.Context, s *Session) ([]ProjectInfo, error)
}
