package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/panelator/internal/images"
	"github.com/lehigh-university-libraries/panelator/internal/storage"
	"github.com/lehigh-university-libraries/panelator/internal/translation"
	"github.com/lehigh-university-libraries/panelator/internal/translator"
)

type Handler struct {
	manager *translation.Manager
	library *images.Library
	log     *slog.Logger
}

// JobView is the JSON shape of a tracked job.
type JobView struct {
	ChapterID  string            `json:"chapter_id"`
	DocumentID string            `json:"document_id"`
	Source     string            `json:"source"`
	Title      string            `json:"title"`
	Chapter    string            `json:"chapter"`
	Scanlator  string            `json:"scanlator,omitempty"`
	Status     translation.State `json:"status"`
	Error      string            `json:"error,omitempty"`
}

func New(manager *translation.Manager, library *images.Library, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{manager: manager, library: library, log: log}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		h.log.Error(message)
	} else {
		h.log.Warn(message)
	}
	http.Error(w, message, code)
}

// enqueueErrorCode maps Manager.Enqueue failures to HTTP status codes.
func enqueueErrorCode(err error) int {
	switch {
	case errors.Is(err, translation.ErrAlreadyTracked), errors.Is(err, translation.ErrAlreadyTranslated):
		return http.StatusConflict
	case errors.Is(err, translator.ErrMissingAPIKey), errors.Is(err, translator.ErrUnsupportedLanguage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func viewOf(j *translation.Job) JobView {
	view := JobView{
		ChapterID:  j.ChapterID,
		DocumentID: j.DocumentID,
		Source:     j.Chapter.Source,
		Title:      j.Chapter.Title,
		Chapter:    j.Chapter.Name,
		Scanlator:  j.Chapter.Scanlator,
		Status:     j.Status(),
	}
	if err := j.Err(); err != nil {
		view.Error = err.Error()
	}
	return view
}

// ChapterRequest identifies a chapter in request bodies.
type ChapterRequest struct {
	Source    string `json:"source"`
	Title     string `json:"title"`
	Chapter   string `json:"chapter"`
	Scanlator string `json:"scanlator"`
}

func (c ChapterRequest) chapter() storage.Chapter {
	return storage.Chapter{Source: c.Source, Title: c.Title, Name: c.Chapter, Scanlator: c.Scanlator}
}

func (c ChapterRequest) validate() error {
	var missing []string
	if strings.TrimSpace(c.Source) == "" {
		missing = append(missing, "source")
	}
	if strings.TrimSpace(c.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(c.Chapter) == "" {
		missing = append(missing, "chapter")
	}
	if len(missing) > 0 {
		return errors.New(strings.Join(missing, ", ") + " required")
	}
	return nil
}

func chapterFromQuery(r *http.Request) ChapterRequest {
	q := r.URL.Query()
	return ChapterRequest{
		Source:    q.Get("source"),
		Title:     q.Get("title"),
		Chapter:   q.Get("chapter"),
		Scanlator: q.Get("scanlator"),
	}
}
