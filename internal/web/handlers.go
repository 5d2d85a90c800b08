package web

import (
	"context"
	"database/sql"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/hpungsan/pasteboard/internal/config"
	"github.com/hpungsan/pasteboard/internal/errors"
	"github.com/hpungsan/pasteboard/internal/ops"
)

// Handlers contains HTTP route handlers for the history viewer. Every route
// is read-only.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
	logger   *slog.Logger
}

// HandleList handles GET /history.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	input := ops.ListInput{
		Limit:          parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:         parseIntParam(r, "offset", 0),
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	}

	result, err := ops.List(h.ctx(r), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "History",
			Version: h.renderer.version,
			Nav:     "history",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
		Deleted:    input.IncludeDeleted,
	})
}

// HandleDetail handles GET /history/{id}. The payload is shown merged, the
// way a paste would deliver it, unless ?merge= says otherwise.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("entry ID is required"))
		return
	}
	includeDeleted := parseBoolParam(r, "include_deleted")

	pasted, err := ops.Paste(h.ctx(r), h.db, h.cfg, ops.PasteInput{
		ID:             id,
		Merge:          r.URL.Query().Get("merge"),
		IncludeDeleted: includeDeleted,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	inspected, err := ops.Inspect(h.ctx(r), h.db, h.cfg, ops.InspectInput{ID: id, IncludeDeleted: includeDeleted})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, pasted)
		return
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   shortID(pasted.ID),
			Version: h.renderer.version,
			Nav:     "history",
		},
		Entry:       pasted,
		Inspect:     inspected,
		Preview:     renderPreview(pasted),
		DisplayName: shortID(pasted.ID),
	})
}

// HandleRaw handles GET /history/{id}/raw, serving the stored encoded
// payload as a download.
func (h *Handlers) HandleRaw(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("entry ID is required"))
		return
	}

	pasted, err := ops.Paste(h.ctx(r), h.db, h.cfg, ops.PasteInput{
		ID:             id,
		Merge:          ops.MergeNone,
		IncludeRaw:     true,
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+pasted.ID+`.tlv"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(pasted.Raw)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pasted.Raw)
}

// HandleInspect handles GET /history/{id}/inspect and always answers JSON.
func (h *Handlers) HandleInspect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("entry ID is required"))
		return
	}

	result, err := ops.Inspect(h.ctx(r), h.db, h.cfg, ops.InspectInput{
		ID:             id,
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	})
	if err != nil {
		r.Header.Set("Accept", "application/json")
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

func (h *Handlers) ctx(r *http.Request) context.Context {
	return ops.WithLogger(r.Context(), h.logger.With("path", r.URL.Path))
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// shortID truncates a ULID for page titles.
func shortID(id string) string {
	if len(id) > 10 {
		return id[:10] + "..."
	}
	return id
}

// renderPreview renders the primary text. Plain text goes through goldmark,
// which drops raw HTML; HTML payloads are shown as escaped source.
func renderPreview(out *ops.PasteOutput) template.HTML {
	if len(out.Records) > 0 && out.Records[0].Kind == "html" {
		return template.HTML("<pre class=\"source\">" + template.HTMLEscapeString(out.Text) + "</pre>")
	}
	return renderMarkdown(out.Text)
}
