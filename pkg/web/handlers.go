package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/harun/tinies/pkg/counter"
	"github.com/harun/tinies/pkg/generation"
	"github.com/harun/tinies/pkg/materialize"
	"github.com/harun/tinies/pkg/session"
)

const maxFormBytes = 64 << 10

// session returns the caller's session, issuing a cookie for new ones.
// The first request of every session is counted as a visit.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.State {
	var id string
	if c, err := r.Cookie(s.cfg.CookieName); err == nil {
		id = c.Value
	}

	st, created := s.cfg.Sessions.GetOrCreate(id)

	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     s.cfg.CookieName,
			Value:    st.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.SessionsActive.Set(float64(s.cfg.Sessions.Len()))
		}
	}

	if _, counted, err := counter.CountOnce(r.Context(), s.cfg.Counter, st); err != nil {
		s.logger.Warn().Err(err).Str("session_id", st.ID).Msg("Failed to count visit")
	} else if counted {
		s.logger.Debug().Str("session_id", st.ID).Msg("Visit counted")
	}

	return st
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	st := s.session(w, r)
	s.render(w, http.StatusOK, s.newView(r.Context(), st))
}

func (s *Server) handleExample(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	idx, err := strconv.Atoi(r.PostFormValue("index"))
	if err != nil || idx < 0 || idx >= len(s.cfg.Examples) {
		http.Error(w, "unknown example", http.StatusBadRequest)
		return
	}

	st := s.session(w, r)
	st.SetPrompt(s.cfg.Examples[idx])

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	prompt := r.PostFormValue("prompt")

	st := s.session(w, r)
	out, err := s.cfg.Generator.Generate(r.Context(), st, prompt)

	status := http.StatusOK
	switch {
	case errors.Is(err, generation.ErrEmptyPrompt):
		st.SetPrompt(prompt)
		status = http.StatusBadRequest
	case errors.Is(err, generation.ErrBusy):
		status = http.StatusConflict
	}

	v := s.newView(r.Context(), st)
	v.Prompt = prompt

	switch {
	case errors.Is(err, generation.ErrBusy):
		v.Error = busyMessage
	case err != nil && !errors.Is(err, generation.ErrEmptyPrompt):
		v.Error = errorPrefix + err.Error()
		s.logger.Warn().Err(err).Str("session_id", st.ID).Msg("Generation failed")
	}

	if out != nil {
		v.Notices = out.Notices
		if out.Artifact != nil {
			v.Result = newResultView(out.Artifact)
		}
	}

	s.render(w, status, v)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	st := s.session(w, r)
	s.cfg.Progress.Serve(w, r, st.ID)
}

type apiGenerateRequest struct {
	Prompt string `json:"prompt"`
}

type apiImage struct {
	Filename    string `json:"filename"`
	MimeType    string `json:"mime_type"`
	DownloadKey string `json:"download_key"`
	Data        []byte `json:"data"`
}

type apiGenerateResponse struct {
	SessionID  string              `json:"session_id,omitempty"`
	Prompt     string              `json:"prompt,omitempty"`
	Normalized string              `json:"normalized,omitempty"`
	Translated bool                `json:"translated"`
	Stage      string              `json:"stage,omitempty"`
	DurationMS int64               `json:"duration_ms,omitempty"`
	Notices    []generation.Notice `json:"notices,omitempty"`
	Image      *apiImage           `json:"image,omitempty"`
	Error      string              `json:"error,omitempty"`
	Kind       string              `json:"kind,omitempty"`
}

func (s *Server) handleAPIGenerate(w http.ResponseWriter, r *http.Request) {
	var req apiGenerateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiGenerateResponse{Error: "invalid request body", Kind: "request"})
		return
	}

	st := s.session(w, r)
	out, err := s.cfg.Generator.Generate(r.Context(), st, req.Prompt)

	resp := apiGenerateResponse{}
	if out != nil {
		resp.SessionID = out.SessionID
		resp.Prompt = out.Prompt
		resp.Normalized = out.Normalized
		resp.Translated = out.Translated
		resp.Stage = string(out.Stage)
		resp.DurationMS = out.Duration.Milliseconds()
		resp.Notices = out.Notices
		if a := out.Artifact; a != nil {
			resp.Image = &apiImage{
				Filename:    a.Filename,
				MimeType:    a.MimeType,
				DownloadKey: a.DownloadKey,
				Data:        a.Data,
			}
		}
	}

	status := http.StatusOK
	if err != nil {
		status, resp.Kind = classify(err)
		resp.Error = err.Error()
		if status != http.StatusBadRequest && status != http.StatusConflict {
			resp.Error = apiErrorPrefix + err.Error()
		}
	}

	writeJSON(w, status, resp)
}

func (s *Server) handleAPICount(w http.ResponseWriter, r *http.Request) {
	n, err := counter.Read(r.Context(), s.cfg.Counter)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     n,
		"formatted": counter.Format(n, s.cfg.CountLocale),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.cfg.Sessions.Len(),
	})
}

// classify maps a generation error to an HTTP status and a short kind
func classify(err error) (int, string) {
	var (
		dlErr   *materialize.DownloadError
		fmtErr  *materialize.UnexpectedResultFormatError
		invErr  *generation.InvocationError
		presErr *generation.PresentationError
		notErr  *generation.NotificationError
	)
	switch {
	case errors.Is(err, generation.ErrEmptyPrompt):
		return http.StatusBadRequest, "empty_prompt"
	case errors.Is(err, generation.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.As(err, &invErr):
		return http.StatusBadGateway, "invocation"
	case errors.As(err, &dlErr):
		return http.StatusBadGateway, "download"
	case errors.As(err, &fmtErr):
		return http.StatusUnprocessableEntity, "format"
	case errors.As(err, &notErr):
		return http.StatusBadGateway, "notification"
	case errors.As(err, &presErr):
		return http.StatusInternalServerError, "presentation"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
