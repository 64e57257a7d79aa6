package records

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mirror/internal/model"
)

func samplePage() model.PageDocument {
	return model.PageDocument{
		ID:           "pg-1",
		Title:        "Meeting: notes",
		CollectionID: "ws-1",
		UpdatedAt:    time.Date(2026, 3, 4, 5, 6, 7, 890, time.UTC),
		Content:      "# Heading\n\n---\n\nBody with a rule above.\n",
	}
}

func TestSaveAndLoadPage(t *testing.T) {
	s := New(t.TempDir())

	require.NoError(t, s.SavePage("work", "meeting", samplePage(), "1234123412341234"))

	page, ok := s.LoadPage("work", "meeting")
	require.True(t, ok)

	want := samplePage()
	want.CollectionSlug = "work"
	want.Slug = "meeting"
	want.LocalHash = "1234123412341234"
	want.RemoteHash = "1234123412341234"
	assert.Equal(t, want, page.Doc)
	assert.Equal(t, "work", page.Collection)
	assert.Equal(t, "meeting", page.Slug)
}

func TestPageBodyPreservedExactly(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"no trailing newline", "last line"},
		{"crlf body", "a\r\nb\r\n"},
		{"leading delimiter", "---\nnot front matter\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(t.TempDir())
			page := model.PageDocument{ID: "pg-1", Content: tt.content}
			require.NoError(t, s.SavePage("c", "p", page, "h"))

			loaded, ok := s.LoadPage("c", "p")
			require.True(t, ok)
			assert.Equal(t, tt.content, loaded.Doc.Content)
		})
	}
}

func TestDecodePageRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no front matter", "# just markdown\n"},
		{"unterminated", "---\nid: pg-1\n"},
		{"no id", "---\ntitle: x\n---\nbody"},
		{"bad yaml", "---\nid: [unclosed\n---\n"},
		{"bad time", "---\nid: pg-1\nupdatedAt: yesterday\n---\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodePage([]byte(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestDecodePageHandWritten(t *testing.T) {
	input := "---\r\nid: pg-9\r\ntitle: Hand written\r\n---\r\nHello\r\n"

	page, err := decodePage([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, "pg-9", page.ID)
	assert.Equal(t, "Hand written", page.Title)
	assert.Equal(t, "Hello\r\n", page.Content)
	assert.True(t, page.UpdatedAt.IsZero())
}

func TestListPages(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	require.NoError(t, s.SavePage("work", "a", samplePage(), "h"))
	require.NoError(t, s.SavePage("home", "b", samplePage(), "h"))
	require.NoError(t, os.WriteFile(filepath.Join(root, "work", "broken.md"), []byte("no front matter"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "work", "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, s.SaveDatabase("work", "tasks", sampleSchema(), nil, "h"))

	listing, err := s.ListPages("work")
	require.NoError(t, err)
	require.Len(t, listing.Pages, 1)
	assert.Equal(t, "a", listing.Pages[0].Slug)
	require.Len(t, listing.Skipped, 1)
	assert.Equal(t, s.PagePath("work", "broken"), listing.Skipped[0].Path)

	all, err := s.ListAllPages()
	require.NoError(t, err)
	assert.Len(t, all.Pages, 2)
	assert.Empty(t, all.Databases)
}

func TestDeletePage(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.SavePage("work", "a", samplePage(), "h"))

	require.NoError(t, s.DeletePage("work", "a"))
	assert.NoFileExists(t, s.PagePath("work", "a"))
	require.NoError(t, s.DeletePage("work", "a"))
}
