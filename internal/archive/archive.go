// Package archive is a high-level client facade over token-federated
// archival object storage. An Archive authenticates one user and
// discovers their projects; each Project lazily elevates the session to
// a project-scoped storage connection; Containers carry the file-level
// operations. PublicContainer reads anonymously published containers
// without any of the session machinery.
//
// Instances are not safe for concurrent use: lazy fields (metadata,
// elevated sessions, container caches) are plain read-check-then-write.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// DefaultPasswordEnv is the environment variable consulted for the
// password before prompting interactively.
const DefaultPasswordEnv = "ARK_PASSWORD"

// Options configures a new Archive. Identity and OpenStorage are
// required; everything else has a safe default.
type Options struct {
	Identity    Identity
	OpenStorage StorageOpener

	// Token is an existing bearer token. When empty, the password flow
	// runs: the PasswordEnv variable first, then the Prompter.
	Token       string
	PasswordEnv string
	Prompter    Prompter

	// Confirmer guards destructive operations. The default declines
	// everything, so DeleteContainer is inert until one is injected.
	Confirmer Confirmer
	Logger    Logger
}

// Archive is the entry point. Construction authenticates the user and
// eagerly fetches their id and project descriptors in a single identity
// round trip; Project wrappers are built lazily on first access.
type Archive struct {
	username    string
	identity    Identity
	openStorage StorageOpener
	confirm     Confirmer
	logger      Logger

	session     *Session
	userID      string
	descriptors map[string]ProjectInfo
	projects    map[string]*Project
}

// New authenticates username against the identity service and discovers
// the projects they can access.
func New(ctx context.Context, username string, opts Options) (*Archive, error) {
	if opts.Identity == nil {
		return nil, fmt.Errorf("archive: an Identity implementation is required")
	}
	if opts.OpenStorage == nil {
		return nil, fmt.Errorf("archive: a StorageOpener is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = NewNopLogger()
	}
	confirm := opts.Confirmer
	if confirm == nil {
		confirm = denyAll{}
	}

	var session *Session
	var err error
	if opts.Token != "" {
		session, err = opts.Identity.AuthenticateToken(ctx, opts.Token)
	} else {
		var password string
		password, err = resolvePassword(opts)
		if err != nil {
			return nil, err
		}
		session, err = opts.Identity.AuthenticatePassword(ctx, username, password)
	}
	if err != nil {
		return nil, fmt.Errorf("authenticating %s: %w", username, err)
	}

	infos, err := opts.Identity.ListProjects(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("listing projects for %s: %w", username, err)
	}
	descriptors := make(map[string]ProjectInfo, len(infos))
	for _, info := range infos {
		descriptors[info.Name] = info
	}
	logger.Info("authenticated", "user", username, "projects", len(descriptors))

	return &Archive{
		username:    username,
		identity:    opts.Identity,
		openStorage: opts.OpenStorage,
		confirm:     confirm,
		logger:      logger,
		session:     session,
		userID:      session.UserID,
		descriptors: descriptors,
	}, nil
}

// resolvePassword obtains the password from the configured environment
// variable, falling back to the interactive prompter.
func resolvePassword(opts Options) (string, error) {
	env := opts.PasswordEnv
	if env == "" {
		env = DefaultPasswordEnv
	}
	if password := os.Getenv(env); password != "" {
		return password, nil
	}
	if opts.Prompter == nil {
		return "", fmt.Errorf("no password available: set %s or supply a prompter", env)
	}
	return opts.Prompter.Password("Password: ")
}

func (a *Archive) Username() string { return a.username }
func (a *Archive) UserID() string   { return a.userID }

// Projects returns the name → Project mapping, wrapping the descriptors
// fetched at construction. Built once, on first access; no further
// network calls.
func (a *Archive) Projects() map[string]*Project {
	if a.projects == nil {
		a.projects = make(map[string]*Project, len(a.descriptors))
		for name, info := range a.descriptors {
			a.projects[name] = newProject(info, a)
		}
	}
	return a.projects
}

// Project returns the named project.
func (a *Archive) Project(name string) (*Project, error) {
	if p, ok := a.Projects()[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("project %q for user %s: %w", name, a.username, ErrNotFound)
}

// FindContainer searches every accessible project for a container with
// the given name and returns the first match. Projects where the
// container is missing, or that the user cannot open at all, are skipped;
// any other fault aborts the search. Iteration order over projects is
// not guaranteed.
func (a *Archive) FindContainer(ctx context.Context, name string) (*Container, error) {
	for projectName, p := range a.Projects() {
		containers, err := p.Containers(ctx)
		switch {
		case err == nil:
			if c, ok := containers[name]; ok {
				return c, nil
			}
		case errors.Is(err, ErrNotFound) || errors.Is(err, ErrAccessDenied):
			a.logger.Debug("project skipped during container search", "project", projectName, "error", err)
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("container %q not found in any project accessible to %s, check your access permissions: %w", name, a.username, ErrNotFound)
}

// denyAll declines every confirmation. It is the default Confirmer so
// destructive operations never proceed without an injected strategy.
type denyAll struct{}

func (denyAll) ConfirmDeletion(string, int64) bool { return false }
