package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// publicListingTime is the timestamp layout of the anonymous JSON
// listing (no zone; the backend reports UTC).
const publicListingTime = "2006-01-02T15:04:05.999999"

// PublicContainer reads a single anonymously-readable container through
// its published URL, with no identity or session dependency. The content
// listing is fetched once and then served from cache; there is no
// refresh mechanism.
type PublicContainer struct {
	url    string
	name   string
	client *http.Client
	files  []*File
}

// NewPublicContainer wraps the published container URL. The container
// name is the URL's final path segment. A nil client uses
// http.DefaultClient.
func NewPublicContainer(baseURL string, client *http.Client) (*PublicContainer, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing container URL %q: %w", baseURL, err)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	name := segments[len(segments)-1]
	if name == "" {
		return nil, fmt.Errorf("container URL %q has no container segment: %w", baseURL, ErrInvalidArgument)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &PublicContainer{url: baseURL, name: name, client: client}, nil
}

func (p *PublicContainer) URL() string    { return p.url }
func (p *PublicContainer) Name() string   { return p.name }
func (p *PublicContainer) String() string { return p.url }

// listingEntry matches the backend's anonymous JSON listing format.
type listingEntry struct {
	Name         string `json:"name"`
	Bytes        int64  `json:"bytes"`
	ContentType  string `json:"content_type"`
	Hash         string `json:"hash"`
	LastModified string `json:"last_modified"`
}

// List returns the container's files. The first call fetches the JSON
// listing; later calls return the cached result even if the backend has
// changed in between.
func (p *PublicContainer) List(ctx context.Context) ([]*File, error) {
	if p.files != nil {
		return p.files, nil
	}
	body, _, err := p.get(ctx, p.url+"?format=json")
	if err != nil {
		return nil, err
	}
	var entries []listingEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decoding listing of %s: %s: %w", p.url, err, ErrRemoteService)
	}
	files := make([]*File, len(entries))
	for i, e := range entries {
		modified, err := time.Parse(publicListingTime, e.LastModified)
		if err != nil {
			return nil, fmt.Errorf("decoding listing of %s: bad timestamp for %q: %s: %w", p.url, e.Name, err, ErrRemoteService)
		}
		files[i] = &File{
			Name:         e.Name,
			Bytes:        e.Bytes,
			ContentType:  e.ContentType,
			Hash:         e.Hash,
			LastModified: modified,
			source:       p,
		}
	}
	p.files = files
	return p.files, nil
}

// Get returns the listed File with exactly the given name.
func (p *PublicContainer) Get(ctx context.Context, filePath string) (*File, error) {
	files, err := p.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.Name == filePath {
			return f, nil
		}
	}
	return nil, fmt.Errorf("object %q in %s: %w", filePath, p.name, ErrNotFound)
}

// Count returns the number of files in the container.
func (p *PublicContainer) Count(ctx context.Context) (int64, error) {
	files, err := p.List(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(files)), nil
}

// Size returns the total size of all data in the container, converted to
// the given unit.
func (p *PublicContainer) Size(ctx context.Context, unit string) (float64, error) {
	if _, ok := unitScales[unit]; !ok {
		return 0, fmt.Errorf("unit must be one of bytes, kB, MB, GB, TB, got %q: %w", unit, ErrInvalidArgument)
	}
	files, err := p.List(ctx)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, f := range files {
		total += f.Bytes
	}
	return scaleBytes(total, unit)
}

// Read fetches an object's content. The served content type often
// carries a ";charset=..." parameter; it is stripped before the text
// decision.
func (p *PublicContainer) Read(ctx context.Context, filePath string, accept ...string) (Content, error) {
	body, contentType, err := p.get(ctx, p.url+"/"+filePath)
	if err != nil {
		return Content{}, err
	}
	return Content{Data: body, ContentType: contentType, Text: isTextual(contentType, accept)}, nil
}

// Download fetches an object and writes it under localDir, mirroring
// Container.Download.
func (p *PublicContainer) Download(ctx context.Context, filePath, localDir string, withTree, overwrite bool) (string, error) {
	body, _, err := p.get(ctx, p.url+"/"+filePath)
	if err != nil {
		return "", err
	}
	return writeLocal(filePath, localDir, withTree, overwrite, body)
}

// get performs one anonymous GET. Any non-success status is reported as
// ErrRemoteService carrying the response body.
func (p *PublicContainer) get(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building request for %s: %w", rawURL, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: %s: %w", rawURL, err, ErrRemoteService)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading response from %s: %s: %w", rawURL, err, ErrRemoteService)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("GET %s: %s: %s: %w", rawURL, resp.Status, strings.TrimSpace(string(body)), ErrRemoteService)
	}
	return body, resp.Header.Get("Content-Type"), nil
}
