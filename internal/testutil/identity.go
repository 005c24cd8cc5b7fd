package testutil

import (
	"context"
	"fmt"

	"ark-go/internal/archive"
)

// FakeIdentity is an in-memory archive.Identity. It accepts one bearer
// token and one password and scopes sessions to a fixed project list.
type FakeIdentity struct {
	UserID   string
	Token    string
	Password string
	Projects []archive.ProjectInfo

	// ScopeErr, keyed by project id, makes ScopeToProject fail.
	ScopeErr map[string]error

	TokenCalls    int
	PasswordCalls int
	ScopeCalls    int
}

func (i *FakeIdentity) AuthenticateToken(_ context.Context, token string) (*archive.Session, error) {
	i.TokenCalls++
	if token == "" || token != i.Token {
		return nil, fmt.Errorf("token rejected: %w", archive.ErrAuthentication)
	}
	return &archive.Session{Token: token, UserID: i.UserID}, nil
}

func (i *FakeIdentity) AuthenticatePassword(_ context.Context, username, password string) (*archive.Session, error) {
	i.PasswordCalls++
	if password == "" || password != i.Password {
		return nil, fmt.Errorf("password rejected for %s: %w", username, archive.ErrAuthentication)
	}
	return &archive.Session{Token: i.Token, UserID: i.UserID}, nil
}

func (i *FakeIdentity) ScopeToProject(_ context.Context, s *archive.Session, projectID string) (*archive.Session, error) {
	i.ScopeCalls++
	if err, ok := i.ScopeErr[projectID]; ok {
		return nil, err
	}
	return &archive.Session{
		Token:      s.Token + "-" + projectID,
		UserID:     s.UserID,
		ProjectID:  projectID,
		StorageURL: "fake://object-store/" + projectID,
	}, nil
}

func (i *FakeIdentity) ListProjects(context.Context, *archive.Session) ([]archive.ProjectInfo, error) {
	return append([]archive.ProjectInfo(nil), i.Projects...), nil
}

var _ archive.Identity = (*FakeIdentity)(nil)

// OpenerFor returns a StorageOpener that serves the given stores by
// project id.
func OpenerFor(stores map[string]*FakeStorage) archive.StorageOpener {
	return func(s *archive.Session) (archive.Storage, error) {
		st, ok := stores[s.ProjectID]
		if !ok {
			return nil, fmt.Errorf("no object store for project %s: %w", s.ProjectID, archive.ErrNotFound)
		}
		return st, nil
	}
}
