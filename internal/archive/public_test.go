package archive_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"ark-go/internal/archive"
)

// newPublicServer serves a two-object container at /v1/AUTH_demo/pub
// and counts listing requests.
func newPublicServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	listings := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/AUTH_demo/pub", func(w http.ResponseWriter, r *http.Request) {
		listings++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"name":"notes.txt","bytes":5,"content_type":"text/plain","hash":"aaa","last_modified":"2024-05-01T10:00:00.123456"},
			{"name":"runs/out.bin","bytes":1019,"content_type":"application/octet-stream","hash":"bbb","last_modified":"2024-05-02T11:30:00.000000"}
		]`)
	})
	mux.HandleFunc("/v1/AUTH_demo/pub/notes.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, "hello")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &listings
}

func TestNewPublicContainer(t *testing.T) {
	t.Run("name is the final path segment", func(t *testing.T) {
		t.Parallel()
		p, err := archive.NewPublicContainer("https://host/v1/AUTH_demo/pub/", nil)
		if err != nil {
			t.Fatalf("NewPublicContainer() error = %v", err)
		}
		if p.Name() != "pub" {
			t.Errorf("Name() = %q, want pub", p.Name())
		}
		if p.URL() != "https://host/v1/AUTH_demo/pub" {
			t.Errorf("URL() = %q, trailing slash must be trimmed", p.URL())
		}
	})

	t.Run("URL without a container segment is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := archive.NewPublicContainer("https://host", nil)
		if !errors.Is(err, archive.ErrInvalidArgument) {
			t.Fatalf("got %v, want ErrInvalidArgument", err)
		}
	})
}

func TestPublicContainer_List(t *testing.T) {
	t.Parallel()
	srv, listings := newPublicServer(t)
	p, err := archive.NewPublicContainer(srv.URL+"/v1/AUTH_demo/pub", srv.Client())
	if err != nil {
		t.Fatalf("NewPublicContainer() error = %v", err)
	}

	files, err := p.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	if files[0].Name != "notes.txt" || files[0].Bytes != 5 {
		t.Errorf("got %q/%d, want notes.txt/5", files[0].Name, files[0].Bytes)
	}
	if files[0].LastModified.IsZero() {
		t.Error("LastModified not parsed from the listing")
	}

	// Second call is served from cache.
	if _, err := p.List(context.Background()); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if *listings != 1 {
		t.Errorf("listing fetched %d times, want 1", *listings)
	}

	n, err := p.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}

	size, err := p.Size(context.Background(), "kB")
	if err != nil {
		t.Fatalf("Size() error = %v", err)
	}
	if size != 1 {
		t.Errorf("Size(kB) = %v, want 1", size)
	}

	if _, err := p.Get(context.Background(), "ghost"); !errors.Is(err, archive.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestPublicContainer_ListBadTimestamp(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"name":"notes.txt","bytes":5,"content_type":"text/plain","hash":"aaa","last_modified":"yesterday"}]`)
	}))
	t.Cleanup(srv.Close)

	p, err := archive.NewPublicContainer(srv.URL+"/v1/AUTH_demo/pub", srv.Client())
	if err != nil {
		t.Fatalf("NewPublicContainer() error = %v", err)
	}

	_, err = p.List(context.Background())
	if !errors.Is(err, archive.ErrRemoteService) {
		t.Fatalf("got %v, want ErrRemoteService", err)
	}
}

func TestPublicContainer_Read(t *testing.T) {
	t.Parallel()
	srv, _ := newPublicServer(t)
	p, err := archive.NewPublicContainer(srv.URL+"/v1/AUTH_demo/pub", srv.Client())
	if err != nil {
		t.Fatalf("NewPublicContainer() error = %v", err)
	}

	content, err := p.Read(context.Background(), "notes.txt")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !content.Text {
		t.Error("Text = false, want true despite the charset parameter")
	}
	if content.String() != "hello" {
		t.Errorf("String() = %q, want hello", content.String())
	}

	// The server 404s unknown objects.
	if _, err := p.Read(context.Background(), "ghost"); !errors.Is(err, archive.ErrRemoteService) {
		t.Fatalf("got %v, want ErrRemoteService", err)
	}
}

func TestPublicContainer_Download(t *testing.T) {
	t.Parallel()
	srv, _ := newPublicServer(t)
	p, err := archive.NewPublicContainer(srv.URL+"/v1/AUTH_demo/pub", srv.Client())
	if err != nil {
		t.Fatalf("NewPublicContainer() error = %v", err)
	}
	dst := t.TempDir()

	localPath, err := p.Download(context.Background(), "notes.txt", dst, false, false)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if localPath != filepath.Join(dst, "notes.txt") {
		t.Errorf("local path = %q, want %q", localPath, filepath.Join(dst, "notes.txt"))
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		t.Fatalf("reading download: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("content = %q, want hello", data)
	}

	if _, err := p.Download(context.Background(), "notes.txt", dst, false, false); !errors.Is(err, archive.ErrAlreadyExists) {
		t.Fatalf("got %v, want ErrAlreadyExists", err)
	}
}
