package content

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeContent(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		wantTitle string
		wantImage string
	}{
		{
			name:      "title and image",
			src:       "# Little Tinies\n\nSome intro\n![banner](images/header.png)\n",
			wantTitle: "Little Tinies",
			wantImage: "images/header.png",
		},
		{
			name:      "hebrew title without image",
			src:       "## מחולל תמונות ##\ntext",
			wantTitle: "מחולל תמונות",
		},
		{
			name:      "first image wins",
			src:       "# T\n![a](one.png)\n![b](two.png)",
			wantTitle: "T",
			wantImage: "one.png",
		},
		{
			name:      "indented image is ignored",
			src:       "# T\n  ![a](one.png)",
			wantTitle: "T",
		},
		{
			name:      "empty",
			src:       "",
			wantTitle: DefaultTitle,
		},
		{
			name:      "crlf",
			src:       "# Windows\r\n![x](https://cdn.example/x.png)\r\n",
			wantTitle: "Windows",
			wantImage: "https://cdn.example/x.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, image := ParseHeader([]byte(tt.src))
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantImage, image)
		})
	}
}

func TestLoaderLoadsContent(t *testing.T) {
	dir := t.TempDir()
	writeContent(t, dir, HeaderFile, "# Tinies\n![h](header.png)\n")
	writeContent(t, dir, FooterFile, "Made with **love**")
	writeContent(t, dir, AboutFile, "- one\n- two\n")
	writeContent(t, dir, StylesFile, "body { color: red; }")

	p := NewLoader(dir).Page()

	assert.Equal(t, "Tinies", p.Title)
	assert.Equal(t, "header.png", p.HeaderImage)
	assert.Contains(t, string(p.Footer), "<strong>love</strong>")
	assert.Contains(t, string(p.About), "<li>one</li>")
	assert.Equal(t, "body { color: red; }", string(p.Styles))
	assert.Empty(t, p.Errors)
}

func TestLoaderMissingFiles(t *testing.T) {
	p := NewLoader(t.TempDir()).Page()

	assert.Equal(t, DefaultTitle, p.Title)
	assert.Empty(t, p.Footer)
	assert.NotEmpty(t, p.About)
	assert.NotEmpty(t, p.Styles)

	require.Len(t, p.Errors, 2)
	assert.Contains(t, p.Errors[0], "header.md file not found")
	assert.Contains(t, p.Errors[1], "footer.md file not found")
}

func TestLoaderCachesUntilReload(t *testing.T) {
	dir := t.TempDir()
	writeContent(t, dir, HeaderFile, "# First")
	l := NewLoader(dir)

	assert.Equal(t, "First", l.Page().Title)

	writeContent(t, dir, HeaderFile, "# Second")
	assert.Equal(t, "First", l.Page().Title)
	assert.Equal(t, "Second", l.Reload().Title)
	assert.Equal(t, "Second", l.Page().Title)
}

func TestHeaderImageURL(t *testing.T) {
	tests := map[string]string{
		"":                          "",
		"header.png":                "/assets/header.png",
		"./img/header.png":          "/assets/img/header.png",
		"../../etc/passwd":          "/assets/etc/passwd",
		"https://cdn.example/a.png": "https://cdn.example/a.png",
	}
	for in, want := range tests {
		p := &Page{HeaderImage: in}
		assert.Equal(t, want, p.HeaderImageURL("/assets/"), in)
	}
}

func TestSeed(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "content")

	created, err := Seed(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{AboutFile, FooterFile, HeaderFile, StylesFile}, created)

	writeContent(t, dir, HeaderFile, "# Custom")
	created, err = Seed(dir)
	require.NoError(t, err)
	assert.Empty(t, created)

	p := NewLoader(dir).Page()
	assert.Equal(t, "Custom", p.Title)
	assert.Empty(t, p.Errors)
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	writeContent(t, dir, HeaderFile, "# Before")
	l := NewLoader(dir)
	require.Equal(t, "Before", l.Page().Title)

	w, err := NewWatcher(l)
	require.NoError(t, err)
	defer w.Stop()

	reloaded := make(chan string, 4)
	w.OnReload(func(p *Page) { reloaded <- p.Title })

	writeContent(t, dir, HeaderFile, "# After")

	assert.Eventually(t, func() bool {
		return l.Page().Title == "After"
	}, 3*time.Second, 20*time.Millisecond)

	select {
	case title := <-reloaded:
		assert.Equal(t, "After", title)
	case <-time.After(3 * time.Second):
		t.Fatal("reload hook not called")
	}
}

func TestIsContentFile(t *testing.T) {
	assert.True(t, isContentFile("/x/header.md"))
	assert.True(t, isContentFile("STYLES.CSS"))
	assert.False(t, isContentFile("header.md.swp"))
	assert.False(t, isContentFile(strings.Repeat("a", 3)))
}
