package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/erazemk/najdeno/internal/feed"
	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/service"
)

// maxUploadSize limits a new post, photo included.
const maxUploadSize = 5 << 20

// ItemsHandler handles the feed and item endpoints.
type ItemsHandler struct {
	Svc *service.Service
}

// parseQuery reads feed filters from the URL: search, category, group and
// limit.
func parseQuery(r *http.Request) (feed.Query, bool) {
	v := r.URL.Query()
	q := feed.Query{Search: v.Get("search")}

	if c := v.Get("category"); c != "" && c != string(model.CategoryAll) {
		cat, ok := model.ParseCategory(c)
		if !ok {
			return q, false
		}
		q.Category = cat
	}

	g, ok := lifecycle.ParseGroup(v.Get("group"))
	if !ok {
		return q, false
	}
	q.Group = g

	if l := v.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			return q, false
		}
		q.Limit = n
	}
	return q, true
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q, ok := parseQuery(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid filter")
		return
	}

	items, err := h.Svc.ListFeed(r.Context(), q)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, items)
}

// Mine handles GET /api/items/mine: items the user posted or claimed.
func (h *ItemsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	items, err := h.Svc.ListUserItems(r.Context(), actor(r).ID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items as a multipart form with a photo file.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	fields := service.ItemFields{
		Name:             r.FormValue("name"),
		Category:         r.FormValue("category"),
		Description:      r.FormValue("description"),
		Location:         r.FormValue("location"),
		SecurityQuestion: r.FormValue("security_question"),
	}
	if d := r.FormValue("date_found"); d != "" {
		t, err := time.Parse(time.DateOnly, d)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "date_found must be YYYY-MM-DD")
			return
		}
		fields.DateFound = t
	}

	// A missing photo is left to the moderation gate, which refuses it.
	var photo []byte
	file, _, err := r.FormFile("photo")
	if err == nil {
		defer file.Close()
		photo, err = io.ReadAll(file)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to read photo")
			return
		}
	}

	item, err := h.Svc.PublishItem(r.Context(), actor(r), fields, photo)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.Svc.GetItem(r.Context(), r.PathValue("id"), actor(r).ID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.DeleteItem(r.Context(), r.PathValue("id"), actor(r).ID); err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// GetHistory handles GET /api/items/{id}/history.
func (h *ItemsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.Svc.ItemHistory(r.Context(), r.PathValue("id"), actor(r).ID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	if history == nil {
		history = []model.Transition{}
	}
	jsonResponse(w, http.StatusOK, history)
}

// GetPhoto handles GET /api/photos/{id}.
func (h *ItemsHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	data, mime, err := h.Svc.Photo(r.Context(), r.PathValue("id"))
	if err != nil {
		serviceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// Stats handles GET /api/stats.
func (h *ItemsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Svc.Stats(r.Context())
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, counts)
}
