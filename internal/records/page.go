package records

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mirror/internal/fsutil"
	"github.com/roach88/mirror/internal/model"
)

const frontMatterDelim = "---"

// pageMeta is the front matter block of a page file.
type pageMeta struct {
	ID             string `yaml:"id"`
	Title          string `yaml:"title"`
	CollectionID   string `yaml:"collectionId,omitempty"`
	CollectionSlug string `yaml:"collectionSlug,omitempty"`
	Slug           string `yaml:"slug,omitempty"`
	UpdatedAt      string `yaml:"updatedAt,omitempty"`
	LocalHash      string `yaml:"localHash,omitempty"`
	RemoteHash     string `yaml:"remoteHash,omitempty"`
}

// LoadPage reads a page record. It reports false when the page does not
// exist or its front matter cannot be parsed.
func (s *Store) LoadPage(collection, slug string) (Page, bool) {
	page, err := s.readPage(collection, slug)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("page unreadable", "collection", collection, "slug", slug, "error", err)
		}
		return Page{}, false
	}
	return page, true
}

func (s *Store) readPage(collection, slug string) (Page, error) {
	data, err := os.ReadFile(s.PagePath(collection, slug))
	if err != nil {
		return Page{}, err
	}
	doc, err := decodePage(data)
	if err != nil {
		return Page{}, err
	}
	return Page{Collection: collection, Slug: slug, Doc: doc}, nil
}

// SavePage persists a page and stamps both of its hashes with remoteHash.
func (s *Store) SavePage(collection, slug string, page model.PageDocument, remoteHash string) error {
	page.CollectionSlug = collection
	page.Slug = slug
	page.LocalHash = remoteHash
	page.RemoteHash = remoteHash

	data, err := encodePage(page)
	if err != nil {
		return fmt.Errorf("save page %s/%s: %w", collection, slug, err)
	}
	if err := fsutil.WriteFileAtomic(s.PagePath(collection, slug), data); err != nil {
		return fmt.Errorf("save page %s/%s: %w", collection, slug, err)
	}
	return nil
}

// DeletePage removes a page record. Deleting a missing page is not an error.
func (s *Store) DeletePage(collection, slug string) error {
	err := os.Remove(s.PagePath(collection, slug))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete page %s/%s: %w", collection, slug, err)
	}
	return nil
}

func encodePage(page model.PageDocument) ([]byte, error) {
	meta := pageMeta{
		ID:             page.ID,
		Title:          page.Title,
		CollectionID:   page.CollectionID,
		CollectionSlug: page.CollectionSlug,
		Slug:           page.Slug,
		LocalHash:      page.LocalHash,
		RemoteHash:     page.RemoteHash,
	}
	if !page.UpdatedAt.IsZero() {
		meta.UpdatedAt = page.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}

	header, err := yaml.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(frontMatterDelim + "\n")
	buf.Write(header)
	buf.WriteString(frontMatterDelim + "\n")
	buf.WriteString(page.Content)
	return buf.Bytes(), nil
}

// decodePage splits a page file into front matter and body. The body is
// everything after the closing delimiter line, byte for byte.
func decodePage(data []byte) (model.PageDocument, error) {
	end := frontMatterEnd(data)
	if end == 0 {
		return model.PageDocument{}, fmt.Errorf("%w: missing front matter", ErrCorrupt)
	}
	block := strings.ReplaceAll(string(data[:end]), "\r\n", "\n")
	header := strings.TrimPrefix(block, frontMatterDelim+"\n")
	header = strings.TrimSuffix(strings.TrimSuffix(header, "\n"), frontMatterDelim)
	body := string(data[end:])

	var meta pageMeta
	if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
		return model.PageDocument{}, fmt.Errorf("%w: front matter: %v", ErrCorrupt, err)
	}
	if meta.ID == "" {
		return model.PageDocument{}, fmt.Errorf("%w: front matter has no id", ErrCorrupt)
	}

	page := model.PageDocument{
		ID:             meta.ID,
		Title:          meta.Title,
		CollectionID:   meta.CollectionID,
		CollectionSlug: meta.CollectionSlug,
		Slug:           meta.Slug,
		LocalHash:      meta.LocalHash,
		RemoteHash:     meta.RemoteHash,
		Content:        body,
	}
	if meta.UpdatedAt != "" {
		ts, err := time.Parse(time.RFC3339Nano, meta.UpdatedAt)
		if err != nil {
			return model.PageDocument{}, fmt.Errorf("%w: updatedAt: %v", ErrCorrupt, err)
		}
		page.UpdatedAt = ts.UTC()
	}
	return page, nil
}

// frontMatterEnd returns the offset just past the closing delimiter line,
// or 0 when the file has no complete front matter block.
func frontMatterEnd(data []byte) int {
	lines := bytes.SplitAfter(data, []byte("\n"))
	if len(lines) == 0 || strings.TrimRight(string(lines[0]), "\r\n") != frontMatterDelim {
		return 0
	}
	offset := len(lines[0])
	for _, line := range lines[1:] {
		offset += len(line)
		if strings.TrimRight(string(line), "\r\n") == frontMatterDelim {
			return offset
		}
	}
	return 0
}
