package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"lostfound-rest-api/internal/model"
	"lostfound-rest-api/internal/service"
	"lostfound-rest-api/internal/suggest"
	"lostfound-rest-api/pkg/apierror"
	"lostfound-rest-api/pkg/response"
	"lostfound-rest-api/pkg/uid"

	"github.com/go-chi/chi/v5"
)

// multipartOverhead is room for the text fields and part headers on top of the image itself.
const multipartOverhead = 1 << 20

// ItemHandler handles item HTTP requests.
type ItemHandler struct {
	items          *service.ItemService
	suggester      suggest.Provider
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewItemHandler creates a new item handler.
func NewItemHandler(items *service.ItemService, suggester suggest.Provider, maxUploadBytes int64, logger *slog.Logger) *ItemHandler {
	if suggester == nil {
		suggester = suggest.NoopProvider{}
	}
	return &ItemHandler{
		items:          items,
		suggester:      suggester,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With("component", "item_handler"),
	}
}

// itemResponse is an item as clients see it.
type itemResponse struct {
	*model.Item
	ImageURL  string     `json:"imageUrl"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func (h *ItemHandler) present(item *model.Item) itemResponse {
	resp := itemResponse{Item: item, ImageURL: h.items.ImageURL(item)}
	if at, ok := h.items.ExpiresAt(item); ok {
		resp.ExpiresAt = &at
	}
	return resp
}

type listResponse struct {
	Items      []itemResponse   `json:"items"`
	Pagination model.Pagination `json:"pagination"`
}

// List handles GET /api/items
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := model.ParseItemQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	page, err := h.items.List(r.Context(), q)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := listResponse{
		Items:      make([]itemResponse, 0, len(page.Items)),
		Pagination: page.Pagination,
	}
	for i := range page.Items {
		resp.Items = append(resp.Items, h.present(&page.Items[i]))
	}
	response.OK(w, resp)
}

// Get handles GET /api/items/{id}
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeError(w, r, h.logger, model.ErrNotFound)
		return
	}

	item, err := h.items.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, h.present(item))
}

// Create handles POST /api/items (multipart/form-data with an "image" file)
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	upload, ok := h.readImage(w, r)
	if !ok {
		return
	}

	in := model.NewItemInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Location:    r.FormValue("location"),
		Department:  r.FormValue("department"),
		FounderName: r.FormValue("founderName"),
		ContactInfo: r.FormValue("contactInfo"),
		Category:    r.FormValue("category"),
	}

	item, err := h.items.Create(r.Context(), in, upload)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Created(w, h.present(item))
}

// Update handles PUT /api/items/{id}
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeError(w, r, h.logger, model.ErrNotFound)
		return
	}

	var patch model.ItemPatch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil && !errors.Is(err, io.EOF) {
		response.Error(w, apierror.BadRequest("Invalid JSON body: only name, description, location, department, founderName, contactInfo and category can be updated"))
		return
	}

	item, err := h.items.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, h.present(item))
}

type claimRequest struct {
	ClaimantName string `json:"claimantName"`
	ClaimedBy    string `json:"claimedBy"` // older clients
}

// Claim handles PUT /api/items/{id}/claim
func (h *ItemHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeError(w, r, h.logger, model.ErrNotFound)
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(w, apierror.BadRequest("Invalid JSON body"))
		return
	}
	name := req.ClaimantName
	if name == "" {
		name = req.ClaimedBy
	}

	item, err := h.items.Claim(r.Context(), id, name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, h.present(item))
}

// Delete handles DELETE /api/items/{id}
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeError(w, r, h.logger, model.ErrNotFound)
		return
	}

	if _, err := h.items.Delete(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Message(w, http.StatusOK, "Item deleted successfully")
}

// Stats handles GET /api/items/stats/overview
func (h *ItemHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.items.Stats(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, stats)
}

// Categories handles GET /api/items/categories
func (h *ItemHandler) Categories(w http.ResponseWriter, r *http.Request) {
	response.OK(w, model.Categories())
}

// Suggest handles POST /api/items/suggestions (multipart "image" plus optional "hint")
func (h *ItemHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	upload, ok := h.readImage(w, r)
	if !ok {
		return
	}
	if len(upload.Data) == 0 {
		writeError(w, r, h.logger, model.NewValidationError("image", "image is required"))
		return
	}
	if sniffed := http.DetectContentType(upload.Data); len(sniffed) < 6 || sniffed[:6] != "image/" {
		writeError(w, r, h.logger, model.ErrInvalidMediaType)
		return
	}

	s, err := h.suggester.Suggest(r.Context(), upload.Data, upload.ContentType, r.FormValue("hint"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, s)
}

// parseMultipart bounds the body and parses the form; on failure the response is already written.
func (h *ItemHandler) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, apierror.BadRequest("Request body too large"))
			return false
		}
		response.Error(w, apierror.BadRequest("Expected multipart/form-data body"))
		return false
	}
	return true
}

// readImage reads the optional "image" part. A missing part yields an empty upload.
func (h *ItemHandler) readImage(w http.ResponseWriter, r *http.Request) (service.Upload, bool) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return service.Upload{}, true
	}
	if err != nil {
		response.Error(w, apierror.BadRequest("Could not read image upload"))
		return service.Upload{}, false
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		response.Error(w, apierror.BadRequest("Image exceeds the maximum upload size"))
		return service.Upload{}, false
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		response.Error(w, apierror.BadRequest("Could not read image upload"))
		return service.Upload{}, false
	}
	if int64(len(data)) > h.maxUploadBytes {
		response.Error(w, apierror.BadRequest("Image exceeds the maximum upload size"))
		return service.Upload{}, false
	}

	return service.Upload{Data: data, ContentType: header.Header.Get("Content-Type")}, true
}

// itemID returns the canonical form of the {id} path parameter. Malformed ids match no item.
func itemID(r *http.Request) (string, bool) {
	return uid.Canonical(chi.URLParam(r, "id"))
}
