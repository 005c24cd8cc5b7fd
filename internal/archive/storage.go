package archive

import (
	"context"
	"time"
)

// ContainerInfo is one entry of an account-level container listing.
type ContainerInfo struct {
	Name  string
	Count int64
	Bytes int64
}

// ContainerMeta is the header-style metadata of a single container.
type ContainerMeta struct {
	ObjectCount int64
	BytesUsed   int64
	// ReadACL and WriteACL are the raw comma-separated ACL strings as
	// stored by the backend; parsing lives in the facade.
	ReadACL  string
	WriteACL string
}

// ObjectInfo describes one stored object as reported by a listing.
type ObjectInfo struct {
	Name         string
	Bytes        int64
	ContentType  string
	Hash         string
	LastModified time.Time
}

// Storage provides an interface to one project-scoped object-store
// connection. Implementations map backend faults to the facade error
// kinds: missing containers/objects to ErrNotFound, permission failures
// to ErrAccessDenied.
type Storage interface {
	ListContainers(ctx context.Context) ([]ContainerInfo, error)

	ContainerMeta(ctx context.Context, container string) (ContainerMeta, error)
	CreateContainer(ctx context.Context, container string) error
	DeleteContainer(ctx context.Context, container string) error
	// SetContainerACL writes the raw read/write ACL strings.
	SetContainerACL(ctx context.Context, container, read, write string) error

	// ListObjects returns the full object listing along with the
	// container metadata the same round trip refreshed.
	ListObjects(ctx context.Context, container string) ([]ObjectInfo, ContainerMeta, error)
	GetObject(ctx context.Context, container, path string) ([]byte, ObjectInfo, error)
	PutObject(ctx context.Context, container, path string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, container, path string) error
	CopyObject(ctx context.Context, container, path, dstContainer, dstPath string) error
}

// StorageOpener opens a storage connection for a project-scoped session.
// A Project calls it once, the first time it needs its connection.
type StorageOpener func(s *Session) (Storage, error)
