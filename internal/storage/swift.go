// Package storage implements the archive.Storage interface on OpenStack
// Swift. Connections are pre-authenticated: the scoped session supplies
// the storage endpoint and token, so no auth round trip happens here.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	swift "github.com/ncw/swift/v2"

	"ark-go/internal/archive"
)

// SwiftStorage is one project-scoped Swift connection.
type SwiftStorage struct {
	conn *swift.Connection
}

// OpenSwift is the archive.StorageOpener for Swift.
func OpenSwift(s *archive.Session) (archive.Storage, error) {
	if s.StorageURL == "" {
		return nil, fmt.Errorf("session for project %s carries no storage endpoint", s.ProjectID)
	}
	return &SwiftStorage{
		conn: &swift.Connection{
			StorageUrl: s.StorageURL,
			AuthToken:  s.Token,
		},
	}, nil
}

func (s *SwiftStorage) ListContainers(ctx context.Context) ([]archive.ContainerInfo, error) {
	containers, err := s.conn.Containers(ctx, nil)
	if err != nil {
		return nil, mapErr("listing containers", err)
	}
	infos := make([]archive.ContainerInfo, len(containers))
	for i, c := range containers {
		infos[i] = archive.ContainerInfo{Name: c.Name, Count: c.Count, Bytes: c.Bytes}
	}
	return infos, nil
}

func (s *SwiftStorage) ContainerMeta(ctx context.Context, container string) (archive.ContainerMeta, error) {
	info, headers, err := s.conn.Container(ctx, container)
	if err != nil {
		return archive.ContainerMeta{}, mapErr("fetching container metadata", err)
	}
	return metaFromHeaders(info, headers), nil
}

func (s *SwiftStorage) CreateContainer(ctx context.Context, container string) error {
	return mapErr("creating container", s.conn.ContainerCreate(ctx, container, nil))
}

func (s *SwiftStorage) DeleteContainer(ctx context.Context, container string) error {
	return mapErr("deleting container", s.conn.ContainerDelete(ctx, container))
}

func (s *SwiftStorage) SetContainerACL(ctx context.Context, container, read, write string) error {
	headers := swift.Headers{
		"X-Container-Read":  read,
		"X-Container-Write": write,
	}
	return mapErr("updating container ACL", s.conn.ContainerUpdate(ctx, container, headers))
}

func (s *SwiftStorage) ListObjects(ctx context.Context, container string) ([]archive.ObjectInfo, archive.ContainerMeta, error) {
	objects, err := s.conn.Objects(ctx, container, nil)
	if err != nil {
		return nil, archive.ContainerMeta{}, mapErr("listing objects", err)
	}
	infos := make([]archive.ObjectInfo, len(objects))
	for i, o := range objects {
		infos[i] = objectInfo(o)
	}
	cinfo, headers, err := s.conn.Container(ctx, container)
	if err != nil {
		return nil, archive.ContainerMeta{}, mapErr("fetching container metadata", err)
	}
	return infos, metaFromHeaders(cinfo, headers), nil
}

func (s *SwiftStorage) GetObject(ctx context.Context, container, path string) ([]byte, archive.ObjectInfo, error) {
	contents, err := s.conn.ObjectGetBytes(ctx, container, path)
	if err != nil {
		return nil, archive.ObjectInfo{}, mapErr("fetching object", err)
	}
	info, _, err := s.conn.Object(ctx, container, path)
	if err != nil {
		return nil, archive.ObjectInfo{}, mapErr("fetching object metadata", err)
	}
	return contents, objectInfo(info), nil
}

func (s *SwiftStorage) PutObject(ctx context.Context, container, path string, data []byte, contentType string) error {
	return mapErr("storing object", s.conn.ObjectPutBytes(ctx, container, path, data, contentType))
}

func (s *SwiftStorage) DeleteObject(ctx context.Context, container, path string) error {
	return mapErr("deleting object", s.conn.ObjectDelete(ctx, container, path))
}

func (s *SwiftStorage) CopyObject(ctx context.Context, container, path, dstContainer, dstPath string) error {
	_, err := s.conn.ObjectCopy(ctx, container, path, dstContainer, dstPath, nil)
	return mapErr("copying object", err)
}

func objectInfo(o swift.Object) archive.ObjectInfo {
	return archive.ObjectInfo{
		Name:         o.Name,
		Bytes:        o.Bytes,
		ContentType:  o.ContentType,
		Hash:         o.Hash,
		LastModified: o.LastModified,
	}
}

func metaFromHeaders(info swift.Container, headers swift.Headers) archive.ContainerMeta {
	meta := archive.ContainerMeta{
		ObjectCount: info.Count,
		BytesUsed:   info.Bytes,
		ReadACL:     headers["X-Container-Read"],
		WriteACL:    headers["X-Container-Write"],
	}
	// Prefer the headers when present; the struct fields are zero on
	// some proxies.
	if v, err := strconv.ParseInt(headers["X-Container-Object-Count"], 10, 64); err == nil {
		meta.ObjectCount = v
	}
	if v, err := strconv.ParseInt(headers["X-Container-Bytes-Used"], 10, 64); err == nil {
		meta.BytesUsed = v
	}
	return meta
}

// mapErr translates Swift client faults into the facade's error kinds.
func mapErr(what string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, swift.ContainerNotFound) || errors.Is(err, swift.ObjectNotFound):
		return fmt.Errorf("%s: %w", what, archive.ErrNotFound)
	case errors.Is(err, swift.Forbidden) || errors.Is(err, swift.AuthorizationFailed):
		return fmt.Errorf("%s: %w", what, archive.ErrAccessDenied)
	default:
		return fmt.Errorf("%s: %s: %w", what, err, archive.ErrRemoteService)
	}
}
