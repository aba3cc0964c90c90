// Package content loads the editable page content: header, footer, about
// text and styles.
package content

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const (
	HeaderFile = "header.md"
	FooterFile = "footer.md"
	AboutFile  = "about.md"
	StylesFile = "styles.css"

	// DefaultTitle is used when the header has no title line
	DefaultTitle = "tinies"
)

//go:embed defaults
var defaults embed.FS

// Page is the rendered content of one page view
type Page struct {
	Title string
	// HeaderImage is a URL, or a path relative to the content dir
	HeaderImage string
	Footer      template.HTML
	About       template.HTML
	Styles      template.CSS
	// Errors lists content files that could not be loaded
	Errors []string
}

// HeaderImageURL returns the header image as a browser URL, serving local
// paths under assetPrefix
func (p *Page) HeaderImageURL(assetPrefix string) string {
	img := p.HeaderImage
	if img == "" || strings.HasPrefix(img, "http://") || strings.HasPrefix(img, "https://") || strings.HasPrefix(img, "data:") {
		return img
	}
	return strings.TrimRight(assetPrefix, "/") + "/" + strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(img)), "/")
}

// Loader reads content files from a directory and caches the rendered page
type Loader struct {
	dir    string
	md     goldmark.Markdown
	logger zerolog.Logger

	mu   sync.RWMutex
	page *Page
}

// NewLoader creates a loader for dir
func NewLoader(dir string) *Loader {
	return &Loader{
		dir: dir,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		logger: log.With().Str("component", "content").Logger(),
	}
}

// Dir returns the content directory
func (l *Loader) Dir() string {
	return l.dir
}

// Page returns the cached page, loading it on first use
func (l *Loader) Page() *Page {
	l.mu.RLock()
	p := l.page
	l.mu.RUnlock()
	if p != nil {
		return p
	}
	return l.Reload()
}

// Reload re-reads every content file and replaces the cached page
func (l *Loader) Reload() *Page {
	p := l.load()

	l.mu.Lock()
	l.page = p
	l.mu.Unlock()

	if len(p.Errors) > 0 {
		l.logger.Warn().Strs("errors", p.Errors).Msg("Content loaded with errors")
	} else {
		l.logger.Debug().Str("title", p.Title).Msg("Content loaded")
	}
	return p
}

func (l *Loader) load() *Page {
	p := &Page{Title: DefaultTitle}

	if header, err := l.read(HeaderFile); err != nil {
		p.Errors = append(p.Errors, err.Error())
	} else {
		p.Title, p.HeaderImage = ParseHeader(header)
	}

	if footer, err := l.read(FooterFile); err != nil {
		p.Errors = append(p.Errors, err.Error())
	} else {
		p.Footer = l.render(footer)
	}

	about, err := l.read(AboutFile)
	if err != nil {
		about, _ = defaults.ReadFile("defaults/" + AboutFile)
	}
	p.About = l.render(about)

	if css, err := l.read(StylesFile); err == nil {
		p.Styles = template.CSS(css)
	} else {
		css, _ := defaults.ReadFile("defaults/" + StylesFile)
		p.Styles = template.CSS(css)
	}

	return p
}

func (l *Loader) read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s file not found in %s", name, l.dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func (l *Loader) render(src []byte) template.HTML {
	var buf bytes.Buffer
	if err := l.md.Convert(src, &buf); err != nil {
		l.logger.Warn().Err(err).Msg("Failed to render markdown")
		return template.HTML(template.HTMLEscapeString(string(src)))
	}
	return template.HTML(buf.String())
}

// ParseHeader extracts the title from the first line and the image from the
// first line that starts with "![".
func ParseHeader(src []byte) (title, image string) {
	lines := strings.Split(strings.ReplaceAll(string(src), "\r\n", "\n"), "\n")

	title = strings.Trim(lines[0], "# ")
	if title == "" {
		title = DefaultTitle
	}

	for _, line := range lines {
		if !strings.HasPrefix(line, "![") {
			continue
		}
		_, rest, ok := strings.Cut(line, "(")
		if !ok {
			break
		}
		target, _, _ := strings.Cut(rest, ")")
		image = strings.TrimSpace(target)
		break
	}
	return title, image
}

// Seed writes the default content files into dir, leaving existing files
// untouched. It returns the names of the files it created.
func Seed(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}

	entries, err := defaults.ReadDir("defaults")
	if err != nil {
		return nil, err
	}

	var created []string
	for _, e := range entries {
		dest := filepath.Join(dir, e.Name())
		if _, err := os.Stat(dest); err == nil {
			continue
		}
		data, err := defaults.ReadFile("defaults/" + e.Name())
		if err != nil {
			return created, err
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return created, fmt.Errorf("failed to write %s: %w", e.Name(), err)
		}
		created = append(created, e.Name())
	}
	return created, nil
}
