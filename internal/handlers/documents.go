package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/panelator/internal/images"
	"github.com/lehigh-university-libraries/panelator/internal/storage"
	"github.com/lehigh-university-libraries/panelator/internal/translation"
)

// HandleDocuments lists the library (GET), enqueues every chapter of a
// document (POST) or drops a document from the queue and storage (DELETE).
func (h *Handler) HandleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		docs, err := h.library.Documents()
		if err != nil {
			h.writeError(w, "Failed to list library: "+err.Error(), http.StatusInternalServerError)
			return
		}
		out := make([]map[string]string, 0, len(docs))
		for _, d := range docs {
			out = append(out, map[string]string{
				"source":      d.Source,
				"title":       d.Title,
				"document_id": translation.DocumentID(d.Source, d.Title),
			})
		}
		h.writeJSON(w, out)
	case "POST":
		var req ChapterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Source) == "" || strings.TrimSpace(req.Title) == "" {
			h.writeError(w, "source, title required", http.StatusBadRequest)
			return
		}
		h.enqueueDocument(w, req.Source, req.Title)
	case "DELETE":
		q := r.URL.Query()
		source, title := q.Get("source"), q.Get("title")
		if source == "" || title == "" {
			h.writeError(w, "source, title required", http.StatusBadRequest)
			return
		}
		if err := h.manager.DeleteDocument(source, title); err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) enqueueDocument(w http.ResponseWriter, source, title string) {
	names, err := h.library.Chapters(source, title)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, images.ErrChapterNotFound) {
			code = http.StatusNotFound
		}
		h.writeError(w, err.Error(), code)
		return
	}

	queued := []JobView{}
	skipped := 0
	for _, name := range names {
		job, err := h.manager.Enqueue(storage.Chapter{Source: source, Title: title, Name: name})
		switch {
		case err == nil:
			queued = append(queued, viewOf(job))
		case errors.Is(err, translation.ErrAlreadyTracked), errors.Is(err, translation.ErrAlreadyTranslated):
			skipped++
		default:
			h.writeError(w, "Failed to enqueue chapter: "+err.Error(), enqueueErrorCode(err))
			return
		}
	}
	h.log.Info("Queued document", "source", source, "title", title, "queued", len(queued), "skipped", skipped)
	h.writeJSONStatus(w, http.StatusAccepted, map[string]any{
		"queued":  queued,
		"skipped": skipped,
	})
}
