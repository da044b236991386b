package api

import (
	"errors"
	"net/http"

	"github.com/erazemk/izposoja/internal/imaging"
	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/report"
)

// ItemsHandler handles item CRUD endpoints.
type ItemsHandler struct {
	Lending *lending.Service
}

type itemRequest struct {
	Name        string `json:"name"`
	ItemCode    string `json:"itemCode"`
	Category    string `json:"category"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	Status      string `json:"status"`
	DateAdded   *date  `json:"dateAdded"`
}

func (req itemRequest) input() model.ItemInput {
	status := model.Status(req.Status)
	if parsed, ok := model.ParseStatus(req.Status); ok {
		status = parsed
	}
	return model.ItemInput{
		Name:        req.Name,
		ItemCode:    req.ItemCode,
		Category:    req.Category,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Status:      status,
		DateAdded:   req.DateAdded.value(),
	}
}

// itemView adds the derived display status to an item.
type itemView struct {
	model.Item
	DisplayStatus string `json:"displayStatus"`
	Overdue       bool   `json:"overdue"`
}

func (h *ItemsHandler) view(it model.Item) itemView {
	now := h.Lending.Time()
	return itemView{
		Item:          it,
		DisplayStatus: model.DisplayStatus(it, now),
		Overdue:       model.IsOverdue(it, now),
	}
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Lending.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		serviceError(w, err, "list items")
		return
	}

	views := make([]itemView, len(items))
	for i, it := range items {
		views[i] = h.view(it)
	}
	jsonResponse(w, http.StatusOK, views)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Lending.Create(r.Context(), req.input(), actor(r))
	if err != nil {
		serviceError(w, err, "create item")
		return
	}
	jsonResponse(w, http.StatusCreated, h.view(item))
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.Lending.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		serviceError(w, err, "get item")
		return
	}
	jsonResponse(w, http.StatusOK, h.view(item))
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Lending.Edit(r.Context(), r.PathValue("id"), req.input(), actor(r))
	if err != nil {
		serviceError(w, err, "update item")
		return
	}
	jsonResponse(w, http.StatusOK, h.view(item))
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Lending.Delete(r.Context(), r.PathValue("id"), actor(r)); err != nil {
		serviceError(w, err, "delete item")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// UploadImage handles PUT /api/items/{id}/image. The photo is downscaled and
// stored on the item as a data URI.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+(1<<20))

	if err := r.ParseMultipartForm(imaging.MaxUploadSize); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	photo, err := imaging.Process(file)
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		jsonError(w, http.StatusRequestEntityTooLarge, "image too large")
		return
	case err != nil:
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.Lending.SetImage(r.Context(), r.PathValue("id"), photo.DataURI(), actor(r))
	if err != nil {
		serviceError(w, err, "save image")
		return
	}
	jsonResponse(w, http.StatusOK, h.view(item))
}

// History handles GET /api/items/{id}/history.
func (h *ItemsHandler) History(w http.ResponseWriter, r *http.Request) {
	events, err := h.Lending.History(r.Context(), r.PathValue("id"))
	if err != nil {
		serviceError(w, err, "get item history")
		return
	}
	if events == nil {
		events = []model.LoanEvent{}
	}
	jsonResponse(w, http.StatusOK, events)
}

type importRejection struct {
	Line   int                `json:"line"`
	Error  string             `json:"error"`
	Fields []model.FieldError `json:"fields,omitempty"`
}

type importResponse struct {
	Added    []model.Item      `json:"added"`
	Rejected []importRejection `json:"rejected"`
}

func rejection(line int, err error) importRejection {
	rej := importRejection{Line: line, Error: err.Error()}
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		rej.Error = "validation failed"
		rej.Fields = verr.Fields
	}
	return rej
}

// Import handles POST /api/items/import with an XLSX file in the "file"
// form field. Valid rows are added; invalid rows are reported by sheet line.
func (h *ItemsHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 20<<20)

	if err := r.ParseMultipartForm(20 << 20); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "spreadsheet file required")
		return
	}
	defer file.Close()

	rows, err := report.ParseXLSX(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := importResponse{Added: []model.Item{}, Rejected: []importRejection{}}
	var inputs []model.ItemInput
	var lines []int
	for _, row := range rows {
		if row.Err != nil {
			resp.Rejected = append(resp.Rejected, rejection(row.Line, row.Err))
			continue
		}
		inputs = append(inputs, row.Input)
		lines = append(lines, row.Line)
	}

	res, err := h.Lending.ImportItems(r.Context(), inputs, actor(r))
	if err != nil {
		serviceError(w, err, "import items")
		return
	}
	resp.Added = append(resp.Added, res.Added...)
	for _, rej := range res.Rejected {
		resp.Rejected = append(resp.Rejected, rejection(lines[rej.Index], rej.Err))
	}

	jsonResponse(w, http.StatusOK, resp)
}
