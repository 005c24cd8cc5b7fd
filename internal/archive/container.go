package archive

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// deleteRetries bounds the re-list loop in Delete. The backend is
// eventually consistent and a deleted object can linger in listings.
const deleteRetries = 5

// Container models one private storage container within a project-scoped
// connection. Metadata is fetched at most once per instance; ACL-mutating
// operations invalidate it so the next access refetches.
type Container struct {
	name    string
	project *Project
	meta    *ContainerMeta
}

func newContainer(name string, project *Project) *Container {
	return &Container{name: name, project: project}
}

func (c *Container) Name() string      { return c.name }
func (c *Container) Project() *Project { return c.project }
func (c *Container) String() string    { return c.project.Name() + "/" + c.name }

func (c *Container) logger() Logger { return c.project.archive.logger }

// Metadata returns the container's header metadata, fetching it on first
// access.
func (c *Container) Metadata(ctx context.Context) (ContainerMeta, error) {
	if c.meta == nil {
		st, err := c.project.connection(ctx)
		if err != nil {
			return ContainerMeta{}, err
		}
		meta, err := st.ContainerMeta(ctx, c.name)
		if err != nil {
			return ContainerMeta{}, fmt.Errorf("fetching metadata for %s: %w", c, err)
		}
		c.meta = &meta
	}
	return *c.meta, nil
}

func (c *Container) invalidateMetadata() { c.meta = nil }

// List returns a fresh listing of the container's objects. Nothing is
// cached across calls; the same round trip refreshes the container
// metadata.
func (c *Container) List(ctx context.Context) ([]*File, error) {
	st, err := c.project.connection(ctx)
	if err != nil {
		return nil, err
	}
	objects, meta, err := st.ListObjects(ctx, c.name)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", c, err)
	}
	c.meta = &meta
	files := make([]*File, len(objects))
	for i, o := range objects {
		files[i] = &File{
			Name:         o.Name,
			Bytes:        o.Bytes,
			ContentType:  o.ContentType,
			Hash:         o.Hash,
			LastModified: o.LastModified,
			source:       c,
		}
	}
	return files, nil
}

// Get returns the listed File with exactly the given name. This is a
// linear scan of a fresh listing; fine for the object counts we target.
func (c *Container) Get(ctx context.Context, filePath string) (*File, error) {
	files, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.Name == filePath {
			return f, nil
		}
	}
	return nil, fmt.Errorf("object %q in %s: %w", filePath, c, ErrNotFound)
}

// Count returns the number of objects in the container.
func (c *Container) Count(ctx context.Context) (int64, error) {
	meta, err := c.Metadata(ctx)
	if err != nil {
		return 0, err
	}
	return meta.ObjectCount, nil
}

// Size returns the total size of all data in the container, converted to
// the given unit (bytes, kB, MB, GB or TB; binary multiples).
func (c *Container) Size(ctx context.Context, unit string) (float64, error) {
	if _, ok := unitScales[unit]; !ok {
		return 0, fmt.Errorf("unit must be one of bytes, kB, MB, GB, TB, got %q: %w", unit, ErrInvalidArgument)
	}
	meta, err := c.Metadata(ctx)
	if err != nil {
		return 0, err
	}
	return scaleBytes(meta.BytesUsed, unit)
}

// Upload stores the given local files in the container, under
// remoteDir joined with each file's base name. Files are read fully into
// memory and sent one at a time; bulk callers should prefer a dedicated
// transfer tool. Returns the remote paths created.
func (c *Container) Upload(ctx context.Context, localPaths []string, remoteDir string, overwrite bool) ([]string, error) {
	st, err := c.project.connection(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := c.listNames(ctx)
	if err != nil {
		return nil, err
	}

	var created []string
	for _, local := range localPaths {
		remote := path.Join(remoteDir, filepath.Base(local))
		if !overwrite && existing[remote] {
			return created, fmt.Errorf("object %q in %s: %w", remote, c, ErrAlreadyExists)
		}
		data, err := os.ReadFile(local)
		if err != nil {
			return created, fmt.Errorf("reading %s: %w", local, err)
		}
		contentType := mime.TypeByExtension(filepath.Ext(local))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if err := st.PutObject(ctx, c.name, remote, data, contentType); err != nil {
			return created, fmt.Errorf("uploading %s: %w", local, err)
		}
		created = append(created, remote)
		existing[remote] = true
		c.logger().Info("object uploaded", "container", c.name, "path", remote, "bytes", len(data))
	}
	return created, nil
}

// Download fetches an object and writes it under localDir. With withTree
// the object's directory structure is recreated below localDir; without
// it the file lands directly in localDir. Returns the local path written.
// The stored content hash is not verified.
func (c *Container) Download(ctx context.Context, filePath, localDir string, withTree, overwrite bool) (string, error) {
	st, err := c.project.connection(ctx)
	if err != nil {
		return "", err
	}
	data, _, err := st.GetObject(ctx, c.name, filePath)
	if err != nil {
		return "", fmt.Errorf("downloading %q from %s: %w", filePath, c, err)
	}
	localPath, err := writeLocal(filePath, localDir, withTree, overwrite, data)
	if err != nil {
		return "", err
	}
	c.logger().Info("object downloaded", "container", c.name, "path", filePath, "local", localPath)
	return localPath, nil
}

// writeLocal places object content on disk, shared between Container and
// PublicContainer downloads.
func writeLocal(filePath, localDir string, withTree, overwrite bool, data []byte) (string, error) {
	absDir, err := filepath.Abs(localDir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", localDir, err)
	}
	if withTree {
		absDir = filepath.Join(absDir, filepath.FromSlash(path.Dir(filePath)))
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return "", fmt.Errorf("creating %s: %w", absDir, err)
	}
	localPath := filepath.Join(absDir, path.Base(filePath))
	if !overwrite {
		if _, err := os.Stat(localPath); err == nil {
			return "", fmt.Errorf("local file %q: %w", localPath, ErrAlreadyExists)
		}
	}
	if err := os.WriteFile(localPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", localPath, err)
	}
	return localPath, nil
}

// Read fetches an object's content. The Text flag of the result follows
// the stored content type (see Content); pass additional media types in
// accept to have them treated as text.
func (c *Container) Read(ctx context.Context, filePath string, accept ...string) (Content, error) {
	st, err := c.project.connection(ctx)
	if err != nil {
		return Content{}, err
	}
	data, info, err := st.GetObject(ctx, c.name, filePath)
	if err != nil {
		return Content{}, fmt.Errorf("reading %q from %s: %w", filePath, c, err)
	}
	return Content{Data: data, ContentType: info.ContentType, Text: isTextual(info.ContentType, accept)}, nil
}

// Copy server-side copies an object into targetDir within the same
// container. newName defaults to the source base name. Returns the
// destination path.
func (c *Container) Copy(ctx context.Context, filePath, targetDir, newName string, overwrite bool) (string, error) {
	st, err := c.project.connection(ctx)
	if err != nil {
		return "", err
	}
	names, err := c.listNames(ctx)
	if err != nil {
		return "", err
	}
	if !names[filePath] {
		return "", fmt.Errorf("object %q in %s: %w", filePath, c, ErrNotFound)
	}
	if newName == "" {
		newName = path.Base(filePath)
	}
	dst := path.Join(targetDir, newName)
	if !overwrite && names[dst] {
		return "", fmt.Errorf("object %q in %s: %w", dst, c, ErrAlreadyExists)
	}
	if err := st.CopyObject(ctx, c.name, filePath, c.name, dst); err != nil {
		return "", fmt.Errorf("copying %q to %q: %w", filePath, dst, err)
	}
	c.logger().Info("object copied", "container", c.name, "from", filePath, "to", dst)
	return dst, nil
}

// Move is Copy followed by a delete of the source.
func (c *Container) Move(ctx context.Context, filePath, targetDir, newName string, overwrite bool) (string, error) {
	dst, err := c.Copy(ctx, filePath, targetDir, newName, overwrite)
	if err != nil {
		return "", err
	}
	st, err := c.project.connection(ctx)
	if err != nil {
		return "", err
	}
	if err := st.DeleteObject(ctx, c.name, filePath); err != nil {
		return "", fmt.Errorf("removing source %q after copy: %w", filePath, err)
	}
	c.logger().Info("object moved", "container", c.name, "from", filePath, "to", dst)
	return dst, nil
}

// Delete removes an object. An object absent from the current listing is
// ErrNotFound and no remote delete is issued. After the delete the
// listing is checked again, retrying up to deleteRetries times, because
// the backend can keep a deleted object visible for a while.
func (c *Container) Delete(ctx context.Context, filePath string) error {
	st, err := c.project.connection(ctx)
	if err != nil {
		return err
	}
	names, err := c.listNames(ctx)
	if err != nil {
		return err
	}
	if !names[filePath] {
		return fmt.Errorf("object %q in %s: %w", filePath, c, ErrNotFound)
	}

	for attempt := 1; attempt <= deleteRetries; attempt++ {
		err := st.DeleteObject(ctx, c.name, filePath)
		// A not-found here means the earlier delete landed and only the
		// listing is behind.
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("deleting %q from %s: %w", filePath, c, err)
		}
		names, err = c.listNames(ctx)
		if err != nil {
			return err
		}
		if !names[filePath] {
			c.logger().Info("object deleted", "container", c.name, "path", filePath)
			return nil
		}
		c.logger().Warn("object still listed after delete", "container", c.name, "path", filePath, "attempt", attempt)
	}
	return fmt.Errorf("object %q in %s still listed after %d attempts: %w", filePath, c, deleteRetries, ErrDeletionFailed)
}

// CopyDirectory copies every object under prefix into targetDir,
// preserving the structure relative to the prefix. Returns the
// destination paths.
func (c *Container) CopyDirectory(ctx context.Context, prefix, targetDir string, overwrite bool) ([]string, error) {
	members, dir, err := c.directoryMembers(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var created []string
	for _, name := range members {
		rel := strings.TrimPrefix(name, dir)
		dst, err := c.Copy(ctx, name, path.Dir(path.Join(targetDir, rel)), path.Base(rel), overwrite)
		if err != nil {
			return created, err
		}
		created = append(created, dst)
	}
	return created, nil
}

// MoveDirectory moves every object under prefix into targetDir,
// preserving the structure relative to the prefix.
func (c *Container) MoveDirectory(ctx context.Context, prefix, targetDir string, overwrite bool) ([]string, error) {
	members, dir, err := c.directoryMembers(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var created []string
	for _, name := range members {
		rel := strings.TrimPrefix(name, dir)
		dst, err := c.Move(ctx, name, path.Dir(path.Join(targetDir, rel)), path.Base(rel), overwrite)
		if err != nil {
			return created, err
		}
		created = append(created, dst)
	}
	return created, nil
}

// DeleteDirectory deletes every object under prefix.
func (c *Container) DeleteDirectory(ctx context.Context, prefix string) error {
	members, _, err := c.directoryMembers(ctx, prefix)
	if err != nil {
		return err
	}
	for _, name := range members {
		if err := c.Delete(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// directoryMembers returns the names of all objects under prefix, along
// with the normalized "prefix/" form used to compute relative paths.
func (c *Container) directoryMembers(ctx context.Context, prefix string) ([]string, string, error) {
	dir := strings.TrimSuffix(prefix, "/") + "/"
	files, err := c.List(ctx)
	if err != nil {
		return nil, "", err
	}
	var members []string
	for _, f := range files {
		if strings.HasPrefix(f.Name, dir) {
			members = append(members, f.Name)
		}
	}
	if len(members) == 0 {
		return nil, "", fmt.Errorf("no objects under %q in %s: %w", prefix, c, ErrNotFound)
	}
	return members, dir, nil
}

// AccessControl parses the container's raw ACL headers into read/write
// entry lists. The public token pair is collapsed to a single PUBLIC
// entry; user ids are translated to usernames through the project's
// users mapping when showUsernames is set.
func (c *Container) AccessControl(ctx context.Context, showUsernames bool) (ACL, error) {
	meta, err := c.Metadata(ctx)
	if err != nil {
		return ACL{}, err
	}
	var users map[string]string
	if showUsernames {
		users, err = c.project.Users(ctx)
		if err != nil {
			return ACL{}, err
		}
	}
	return ACL{
		Read:  parseACLEntries(aclTokens(meta.ReadACL), users),
		Write: parseACLEntries(aclTokens(meta.WriteACL), users),
	}, nil
}

// GrantAccess adds an ACL entry for the named user. PUBLIC grants
// anonymous read access and forces mode "read". Granting an entry that
// already holds is a logged no-op.
func (c *Container) GrantAccess(ctx context.Context, username, mode string) error {
	return c.updateACL(ctx, username, mode, true)
}

// RevokeAccess removes an ACL entry for the named user. Revoking an
// entry that does not hold is a logged no-op.
func (c *Container) RevokeAccess(ctx context.Context, username, mode string) error {
	return c.updateACL(ctx, username, mode, false)
}

func (c *Container) updateACL(ctx context.Context, username, mode string, grant bool) error {
	if username == PublicAccess {
		// Public write access is never granted.
		mode = "read"
	}
	if mode != "read" && mode != "write" {
		return fmt.Errorf("mode must be read or write, got %q: %w", mode, ErrInvalidArgument)
	}
	meta, err := c.Metadata(ctx)
	if err != nil {
		return err
	}
	readTokens := aclTokens(meta.ReadACL)
	writeTokens := aclTokens(meta.WriteACL)

	var wanted []string
	if username == PublicAccess {
		wanted = []string{aclReferrerAny, aclListings}
	} else {
		id, err := c.project.userID(ctx, username)
		if err != nil {
			return err
		}
		wanted = []string{c.project.id + ":" + id}
	}

	tokens := &readTokens
	if mode == "write" {
		tokens = &writeTokens
	}
	changed := false
	for _, t := range wanted {
		held := hasACLToken(*tokens, t)
		switch {
		case grant && !held:
			*tokens = append(*tokens, t)
			changed = true
		case !grant && held:
			*tokens = removeACLToken(*tokens, t)
			changed = true
		}
	}
	if !changed {
		c.logger().Info("access unchanged", "container", c.name, "user", username, "mode", mode)
		return nil
	}

	st, err := c.project.connection(ctx)
	if err != nil {
		return err
	}
	if err := st.SetContainerACL(ctx, c.name, joinACLTokens(readTokens), joinACLTokens(writeTokens)); err != nil {
		return fmt.Errorf("updating ACL on %s: %w", c, err)
	}
	c.invalidateMetadata()
	verb := "granted"
	if !grant {
		verb = "revoked"
	}
	c.logger().Info("access "+verb, "container", c.name, "user", username, "mode", mode)
	return nil
}

// listNames returns the current object names as a set.
func (c *Container) listNames(ctx context.Context) (map[string]bool, error) {
	files, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(files))
	for _, f := range files {
		names[f.Name] = true
	}
	return names, nil
}
