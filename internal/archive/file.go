package archive

import (
	"context"
	"mime"
	"path"
	"strings"
	"time"
)

// objectSource is what a File delegates its convenience operations to.
// Both Container and PublicContainer satisfy it.
type objectSource interface {
	Read(ctx context.Context, filePath string, accept ...string) (Content, error)
	Download(ctx context.Context, filePath, localDir string, withTree, overwrite bool) (string, error)
}

// File describes one stored object at the time it was listed. Files are
// constructed fresh on every listing and become stale as soon as the
// container's contents change; re-list to observe updates. The source
// reference is a non-owning back-reference used only to delegate
// operations.
type File struct {
	Name         string
	Bytes        int64
	ContentType  string
	Hash         string
	LastModified time.Time

	source objectSource
}

func (f *File) String() string { return f.Name }

// Dirname returns the directory part of the object name.
func (f *File) Dirname() string {
	d := path.Dir(f.Name)
	if d == "." {
		return ""
	}
	return d
}

// Basename returns the final element of the object name.
func (f *File) Basename() string { return path.Base(f.Name) }

// Read fetches the file's content through its owning container.
func (f *File) Read(ctx context.Context, accept ...string) (Content, error) {
	return f.source.Read(ctx, f.Name, accept...)
}

// Download fetches the file to localDir through its owning container.
func (f *File) Download(ctx context.Context, localDir string, withTree, overwrite bool) (string, error) {
	return f.source.Download(ctx, f.Name, localDir, withTree, overwrite)
}

// Content is the result of reading an object. Text reports whether the
// content type is textual (primary type "text", exactly
// "application/json", or one of the types the caller accepted), in which
// case String returns the decoded form.
type Content struct {
	Data        []byte
	ContentType string
	Text        bool
}

func (c Content) Bytes() []byte { return c.Data }

// String returns the content as text. For non-textual content it still
// converts the raw bytes; check Text to distinguish.
func (c Content) String() string { return string(c.Data) }

// isTextual decides whether a content type should be surfaced as text.
// A trailing ";charset=..." parameter is stripped before matching.
func isTextual(contentType string, accept []string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	if strings.HasPrefix(mt, "text/") || mt == "application/json" {
		return true
	}
	for _, a := range accept {
		if mt == a {
			return true
		}
	}
	return false
}
