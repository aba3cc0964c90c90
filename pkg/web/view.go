package web

import (
	"context"
	"encoding/base64"
	"html/template"
	"net/http"

	"github.com/harun/tinies/pkg/counter"
	"github.com/harun/tinies/pkg/generation"
	"github.com/harun/tinies/pkg/session"
)

// UI strings
const (
	errorPrefix    = "שגיאה בעיבוד התמונה: "
	busyMessage    = "יצירת תמונה כבר מתבצעת, נא להמתין לסיומה."
	countFallback  = "—"
	apiErrorPrefix = "Error processing image: "
)

type pageView struct {
	Title         string
	HeaderImage   string
	About         template.HTML
	Footer        template.HTML
	Styles        template.CSS
	ContentErrors []string

	Examples []string
	Prompt   string
	Notices  []generation.Notice
	Error    string
	Result   *resultView
	Count    string
}

type resultView struct {
	ImageURI    template.URL
	DownloadURI template.URL
	Filename    string
	DownloadKey string
}

func newResultView(a *generation.Artifact) *resultView {
	encoded := base64.StdEncoding.EncodeToString(a.Data)
	return &resultView{
		ImageURI:    template.URL("data:" + a.MimeType + ";base64," + encoded),
		DownloadURI: template.URL("data:application/octet-stream;base64," + encoded),
		Filename:    a.Filename,
		DownloadKey: a.DownloadKey,
	}
}

func (s *Server) newView(ctx context.Context, st *session.State) *pageView {
	page := s.cfg.Content.Page()

	v := &pageView{
		Title:         page.Title,
		HeaderImage:   page.HeaderImageURL("/assets/"),
		About:         page.About,
		Footer:        page.Footer,
		Styles:        page.Styles,
		ContentErrors: page.Errors,
		Examples:      s.cfg.Examples,
		Prompt:        st.Prompt(),
		Count:         countFallback,
	}

	n, err := counter.Read(ctx, s.cfg.Counter)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read visit count")
		return v
	}
	v.Count = counter.Format(n, s.cfg.CountLocale)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.Visits.Set(float64(n))
	}
	return v
}

func (s *Server) render(w http.ResponseWriter, status int, v *pageView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, "index.html", v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render page")
	}
}
