// Package testutil provides in-memory fakes for the archive
// collaborators so the facade can be tested without a network.
package testutil

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"ark-go/internal/archive"
)

// FakeStorage is an in-memory archive.Storage.
type FakeStorage struct {
	containers map[string]*fakeContainer

	// DeleteLag keeps a deleted object visible in listings for the
	// given number of subsequent listing calls, mimicking the backend's
	// eventual consistency. Zero means deletes are visible immediately.
	DeleteLag int

	// FailWith, when set, is returned by every operation. Use to
	// exercise hard-fault propagation.
	FailWith error

	// DeleteObjectCalls and SetACLCalls count invocations of the
	// corresponding operations.
	DeleteObjectCalls int
	SetACLCalls       int
}

type fakeContainer struct {
	objects  map[string]*fakeObject
	readACL  string
	writeACL string
}

type fakeObject struct {
	data        []byte
	contentType string
	modified    time.Time
	lag         int // >0: deleted but still listed for lag more listings
	deleted     bool
}

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{containers: map[string]*fakeContainer{}}
}

// AddContainer creates a container directly, bypassing the facade.
func (s *FakeStorage) AddContainer(name string) {
	if _, ok := s.containers[name]; !ok {
		s.containers[name] = &fakeContainer{objects: map[string]*fakeObject{}}
	}
}

// AddObject stores an object directly, bypassing the facade.
func (s *FakeStorage) AddObject(container, path string, data []byte, contentType string) {
	s.AddContainer(container)
	s.containers[container].objects[path] = &fakeObject{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		modified:    time.Now().UTC(),
	}
}

// HasObject reports whether the object exists and is not deleted.
func (s *FakeStorage) HasObject(container, path string) bool {
	c, ok := s.containers[container]
	if !ok {
		return false
	}
	o, ok := c.objects[path]
	return ok && !o.deleted
}

// ReadACL returns the raw read ACL of a container.
func (s *FakeStorage) ReadACL(container string) string {
	if c, ok := s.containers[container]; ok {
		return c.readACL
	}
	return ""
}

func (s *FakeStorage) container(name string) (*fakeContainer, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	c, ok := s.containers[name]
	if !ok {
		return nil, fmt.Errorf("container %q: %w", name, archive.ErrNotFound)
	}
	return c, nil
}

func (s *FakeStorage) ListContainers(context.Context) ([]archive.ContainerInfo, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	names := make([]string, 0, len(s.containers))
	for name := range s.containers {
		names = append(names, name)
	}
	sort.Strings(names)
	infos := make([]archive.ContainerInfo, len(names))
	for i, name := range names {
		count, bytes := s.containers[name].totals()
		infos[i] = archive.ContainerInfo{Name: name, Count: count, Bytes: bytes}
	}
	return infos, nil
}

func (s *FakeStorage) ContainerMeta(_ context.Context, container string) (archive.ContainerMeta, error) {
	c, err := s.container(container)
	if err != nil {
		return archive.ContainerMeta{}, err
	}
	return c.meta(), nil
}

func (s *FakeStorage) CreateContainer(_ context.Context, container string) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.AddContainer(container)
	return nil
}

func (s *FakeStorage) DeleteContainer(_ context.Context, container string) error {
	c, err := s.container(container)
	if err != nil {
		return err
	}
	if count, _ := c.totals(); count > 0 {
		return fmt.Errorf("container %q is not empty: %w", container, archive.ErrRemoteService)
	}
	delete(s.containers, container)
	return nil
}

func (s *FakeStorage) SetContainerACL(_ context.Context, container, read, write string) error {
	s.SetACLCalls++
	c, err := s.container(container)
	if err != nil {
		return err
	}
	c.readACL = read
	c.writeACL = write
	return nil
}

func (s *FakeStorage) ListObjects(_ context.Context, container string) ([]archive.ObjectInfo, archive.ContainerMeta, error) {
	c, err := s.container(container)
	if err != nil {
		return nil, archive.ContainerMeta{}, err
	}
	// Age out deleted-but-lagging objects, one step per listing.
	for path, o := range c.objects {
		if o.deleted {
			o.lag--
			if o.lag < 0 {
				delete(c.objects, path)
			}
		}
	}
	names := make([]string, 0, len(c.objects))
	for path := range c.objects {
		names = append(names, path)
	}
	sort.Strings(names)
	infos := make([]archive.ObjectInfo, len(names))
	for i, path := range names {
		o := c.objects[path]
		infos[i] = archive.ObjectInfo{
			Name:         path,
			Bytes:        int64(len(o.data)),
			ContentType:  o.contentType,
			Hash:         md5hex(o.data),
			LastModified: o.modified,
		}
	}
	return infos, c.meta(), nil
}

func (s *FakeStorage) GetObject(_ context.Context, container, path string) ([]byte, archive.ObjectInfo, error) {
	c, err := s.container(container)
	if err != nil {
		return nil, archive.ObjectInfo{}, err
	}
	o, ok := c.objects[path]
	if !ok || o.deleted {
		return nil, archive.ObjectInfo{}, fmt.Errorf("object %q: %w", path, archive.ErrNotFound)
	}
	info := archive.ObjectInfo{
		Name:         path,
		Bytes:        int64(len(o.data)),
		ContentType:  o.contentType,
		Hash:         md5hex(o.data),
		LastModified: o.modified,
	}
	return append([]byte(nil), o.data...), info, nil
}

func (s *FakeStorage) PutObject(_ context.Context, container, path string, data []byte, contentType string) error {
	c, err := s.container(container)
	if err != nil {
		return err
	}
	c.objects[path] = &fakeObject{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		modified:    time.Now().UTC(),
	}
	return nil
}

func (s *FakeStorage) DeleteObject(_ context.Context, container, path string) error {
	s.DeleteObjectCalls++
	c, err := s.container(container)
	if err != nil {
		return err
	}
	o, ok := c.objects[path]
	if !ok || o.deleted {
		return fmt.Errorf("object %q: %w", path, archive.ErrNotFound)
	}
	if s.DeleteLag > 0 {
		o.deleted = true
		o.lag = s.DeleteLag
		return nil
	}
	delete(c.objects, path)
	return nil
}

func (s *FakeStorage) CopyObject(_ context.Context, container, path, dstContainer, dstPath string) error {
	src, err := s.container(container)
	if err != nil {
		return err
	}
	o, ok := src.objects[path]
	if !ok || o.deleted {
		return fmt.Errorf("object %q: %w", path, archive.ErrNotFound)
	}
	dst, err := s.container(dstContainer)
	if err != nil {
		return err
	}
	dst.objects[dstPath] = &fakeObject{
		data:        append([]byte(nil), o.data...),
		contentType: o.contentType,
		modified:    time.Now().UTC(),
	}
	return nil
}

func (c *fakeContainer) totals() (count, bytes int64) {
	for _, o := range c.objects {
		count++
		bytes += int64(len(o.data))
	}
	return count, bytes
}

func (c *fakeContainer) meta() archive.ContainerMeta {
	count, bytes := c.totals()
	return archive.ContainerMeta{
		ObjectCount: count,
		BytesUsed:   bytes,
		ReadACL:     c.readACL,
		WriteACL:    c.writeACL,
	}
}

func md5hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

var _ archive.Storage = (*FakeStorage)(nil)
