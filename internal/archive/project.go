package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// The backend creates a sibling "<name>_versions" container when object
// versioning is enabled on a container. Those are implementation
// artifacts, not user-facing containers.
const versioningSuffix = "_versions"

// Well-known metadata object translating the storage ACL's numeric user
// ids to usernames. The format is a de facto inter-system contract;
// do not change it.
const (
	projectInfoContainer = "project_info"
	userIDsObject        = "user_ids"
	userIDsMarker        = "# user ids"
)

// Project models one authorization scope. It owns a lazily-elevated
// project-scoped session and connection, a cache of its Containers, and
// the lazily-parsed user-id mapping. The elevated session is set once
// and reused for the life of the Project.
type Project struct {
	id      string
	name    string
	archive *Archive

	session     *Session
	storage     Storage
	containers  map[string]*Container
	users       map[string]string
	usersLoaded bool
}

func newProject(info ProjectInfo, a *Archive) *Project {
	return &Project{id: info.ID, name: info.Name, archive: a}
}

func (p *Project) ID() string        { return p.id }
func (p *Project) Name() string      { return p.name }
func (p *Project) Archive() *Archive { return p.archive }
func (p *Project) String() string    { return p.name }

// connection returns the project-scoped storage connection, elevating
// the archive's account session to this project on first use.
func (p *Project) connection(ctx context.Context) (Storage, error) {
	if p.storage == nil {
		if p.session == nil {
			s, err := p.archive.identity.ScopeToProject(ctx, p.archive.session, p.id)
			if err != nil {
				return nil, fmt.Errorf("scoping session to project %s: %w", p.name, err)
			}
			p.session = s
		}
		st, err := p.archive.openStorage(p.session)
		if err != nil {
			return nil, fmt.Errorf("opening storage for project %s: %w", p.name, err)
		}
		p.storage = st
	}
	return p.storage, nil
}

// Containers returns the cached container mapping, listing the project's
// containers on first access. Versioning suffix containers are excluded.
func (p *Project) Containers(ctx context.Context) (map[string]*Container, error) {
	if p.containers == nil {
		st, err := p.connection(ctx)
		if err != nil {
			return nil, err
		}
		infos, err := st.ListContainers(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing containers in project %s: %w", p.name, err)
		}
		containers := make(map[string]*Container, len(infos))
		for _, info := range infos {
			if strings.HasSuffix(info.Name, versioningSuffix) {
				continue
			}
			containers[info.Name] = newContainer(info.Name, p)
		}
		p.containers = containers
	}
	return p.containers, nil
}

// GetContainer returns the named container. A container missing from the
// cache is constructed and its metadata fetched immediately, so an
// unknown name or missing permission fails here rather than on first
// real use.
func (p *Project) GetContainer(ctx context.Context, name string) (*Container, error) {
	containers, err := p.Containers(ctx)
	if err != nil {
		return nil, err
	}
	if c, ok := containers[name]; ok {
		return c, nil
	}
	c := newContainer(name, p)
	if _, err := c.Metadata(ctx); err != nil {
		return nil, err
	}
	p.containers[name] = c
	return c, nil
}

// CreateContainer creates a new container. With public set, anonymous
// read access is granted right after creation.
func (p *Project) CreateContainer(ctx context.Context, name string, public bool) (*Container, error) {
	containers, err := p.Containers(ctx)
	if err != nil {
		return nil, err
	}
	if _, exists := containers[name]; exists {
		return nil, fmt.Errorf("container %q in project %s: %w", name, p.name, ErrAlreadyExists)
	}
	st, err := p.connection(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.CreateContainer(ctx, name); err != nil {
		return nil, fmt.Errorf("creating container %q: %w", name, err)
	}
	c := newContainer(name, p)
	p.containers[name] = c
	p.archive.logger.Info("container created", "project", p.name, "container", name, "public", public)
	if public {
		if err := c.GrantAccess(ctx, PublicAccess, "read"); err != nil {
			return nil, fmt.Errorf("granting public access to %q: %w", name, err)
		}
	}
	return c, nil
}

// DeleteContainer deletes a container and everything in it. The injected
// Confirmer is consulted with the object count first; a declined
// confirmation aborts with a log line, not an error. The backend refuses
// to delete a non-empty container, so every object is deleted first.
func (p *Project) DeleteContainer(ctx context.Context, name string) error {
	containers, err := p.Containers(ctx)
	if err != nil {
		return err
	}
	c, ok := containers[name]
	if !ok {
		return fmt.Errorf("container %q in project %s: %w", name, p.name, ErrNotFound)
	}
	files, err := c.List(ctx)
	if err != nil {
		return err
	}
	if !p.archive.confirm.ConfirmDeletion(name, int64(len(files))) {
		p.archive.logger.Warn("container deletion aborted", "project", p.name, "container", name)
		return nil
	}
	st, err := p.connection(ctx)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := st.DeleteObject(ctx, name, f.Name); err != nil {
			return fmt.Errorf("emptying container %q: %w", name, err)
		}
	}
	if err := st.DeleteContainer(ctx, name); err != nil {
		return fmt.Errorf("deleting container %q: %w", name, err)
	}
	delete(p.containers, name)
	p.archive.logger.Info("container deleted", "project", p.name, "container", name, "objects", len(files))
	return nil
}

// Users returns the user-id-to-username mapping for the project, parsed
// from the conventional project_info/user_ids object. Projects without
// that object get an empty mapping.
func (p *Project) Users(ctx context.Context) (map[string]string, error) {
	if !p.usersLoaded {
		users, err := p.loadUsers(ctx)
		if err != nil {
			return nil, err
		}
		p.users = users
		p.usersLoaded = true
	}
	return p.users, nil
}

// loadUsers parses the user-ids object: lines are scanned for the
// "# user ids" marker, and every following line that splits into exactly
// two whitespace-separated tokens contributes an id → name pair.
func (p *Project) loadUsers(ctx context.Context) (map[string]string, error) {
	st, err := p.connection(ctx)
	if err != nil {
		return nil, err
	}
	data, _, err := st.GetObject(ctx, projectInfoContainer, userIDsObject)
	if errors.Is(err, ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s/%s in project %s: %w", projectInfoContainer, userIDsObject, p.name, err)
	}
	users := map[string]string{}
	inTable := false
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == userIDsMarker {
			inTable = true
			continue
		}
		if !inTable || line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		users[fields[0]] = fields[1]
	}
	return users, nil
}

// userID resolves a username back to its numeric id through the inverse
// of the Users mapping.
func (p *Project) userID(ctx context.Context, username string) (string, error) {
	users, err := p.Users(ctx)
	if err != nil {
		return "", err
	}
	for id, name := range users {
		if name == username {
			return id, nil
		}
	}
	return "", fmt.Errorf("username %q in project %s: %w", username, p.name, ErrNotFound)
}
