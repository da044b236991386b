package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/erazemk/izposoja/internal/imaging"
	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/report"
)

// Item list tabs. The issued tab includes overdue loans.
var tabs = []struct {
	Key, Label string
	Filter     string
}{
	{"all", "All", ""},
	{"available", "Available", string(model.StatusAvailable)},
	{"issued", "Issued & Overdue", string(model.StatusIssued)},
	{"repair", "Repair", string(model.StatusRepair)},
}

var itemFields = []string{"name", "itemCode", "category", "description", "imageUrl", "status", "dateAdded"}

type importRow struct {
	Line    int
	Message string
}

type itemsPage struct {
	PageData
	Tabs     any
	Tab      string
	Items    []itemRow
	Form     form
	Imported int
	Rejected []importRow
}

func tabFilter(key string) (string, string) {
	for _, t := range tabs {
		if t.Key == key {
			return t.Key, t.Filter
		}
	}
	return "all", ""
}

// renderItems renders the item list with the add form in the given state.
func (s *Server) renderItems(w http.ResponseWriter, r *http.Request, status int, data *itemsPage) {
	key, filter := tabFilter(r.URL.Query().Get("tab"))
	data.Tabs = tabs
	data.Tab = key

	items, err := s.Lending.List(r.Context(), filter)
	if err != nil {
		slog.Error("failed to list items", "error", err)
		data.Error = "Could not load items."
	}
	data.Items = s.rows(items)

	s.Templates.RenderStatus(w, status, "items.html", data)
}

// ItemsPage handles GET /items.
func (s *Server) ItemsPage(w http.ResponseWriter, r *http.Request) {
	f := newForm()
	f.Values["dateAdded"] = formatDate(s.Lending.Time())
	s.renderItems(w, r, http.StatusOK, &itemsPage{
		PageData: s.page(r, "Items", "items"),
		Form:     f,
	})
}

// itemInput converts the add or edit form. Date errors are recorded on f.
func itemInput(f form) model.ItemInput {
	status := model.Status(f.Values["status"])
	if parsed, ok := model.ParseStatus(f.Values["status"]); ok {
		status = parsed
	}
	return model.ItemInput{
		Name:        f.Values["name"],
		ItemCode:    f.Values["itemCode"],
		Category:    f.Values["category"],
		Description: f.Values["description"],
		ImageURL:    f.Values["imageUrl"],
		Status:      status,
		DateAdded:   f.date("dateAdded"),
	}
}

// ItemCreateSubmit handles POST /items.
func (s *Server) ItemCreateSubmit(w http.ResponseWriter, r *http.Request) {
	f := formFrom(r, itemFields...)
	in := itemInput(f)

	var item model.Item
	err := formError(f)
	if err == nil {
		item, err = s.Lending.Create(r.Context(), in, actor(r))
	}
	if err != nil {
		status := s.applyError(f, err)
		data := &itemsPage{PageData: s.page(r, "Items", "items"), Form: f}
		data.Error = "The item was not added. Correct the highlighted fields."
		s.renderItems(w, r, status, data)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/items/%s?msg=added", item.ID), http.StatusSeeOther)
}

// ItemImportSubmit handles POST /items/import with an XLSX upload.
func (s *Server) ItemImportSubmit(w http.ResponseWriter, r *http.Request) {
	data := &itemsPage{PageData: s.page(r, "Items", "items"), Form: newForm()}

	r.Body = http.MaxBytesReader(w, r.Body, 20<<20)
	if err := r.ParseMultipartForm(20 << 20); err != nil {
		data.Error = "The file is too large."
		s.renderItems(w, r, http.StatusBadRequest, data)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		data.Error = "Choose a spreadsheet to import."
		s.renderItems(w, r, http.StatusBadRequest, data)
		return
	}
	defer file.Close()

	rows, err := report.ParseXLSX(file)
	if err != nil {
		data.Error = "Could not read the spreadsheet: " + err.Error()
		s.renderItems(w, r, http.StatusBadRequest, data)
		return
	}

	var inputs []model.ItemInput
	var lines []int
	for _, row := range rows {
		if row.Err != nil {
			data.Rejected = append(data.Rejected, importRow{Line: row.Line, Message: row.Err.Error()})
			continue
		}
		inputs = append(inputs, row.Input)
		lines = append(lines, row.Line)
	}

	res, err := s.Lending.ImportItems(r.Context(), inputs, actor(r))
	if err != nil {
		slog.Error("failed to import items", "error", err)
		data.Error = "The import stopped because of a storage error."
	}
	for _, rej := range res.Rejected {
		data.Rejected = append(data.Rejected, importRow{Line: lines[rej.Index], Message: rej.Err.Error()})
	}
	data.Imported = len(res.Added)
	data.Success = fmt.Sprintf("Imported %d of %d rows.", len(res.Added), len(rows))

	s.renderItems(w, r, http.StatusOK, data)
}

type itemDetailPage struct {
	PageData
	Item     itemRow
	History  []model.LoanEvent
	Statuses []model.Status
	Edit     form
	Issue    form
	Return   form
	Image    form
	Delete   form
}

// renderItem renders the detail page. Forms left nil are filled from the
// item's current state.
func (s *Server) renderItem(w http.ResponseWriter, r *http.Request, status int, item model.Item, data *itemDetailPage) {
	now := s.Lending.Time()
	data.PageData.Title = item.Name
	data.Item = s.rows([]model.Item{item})[0]
	data.Statuses = []model.Status{model.StatusAvailable, model.StatusRepair}

	if data.Edit.Values == nil {
		data.Edit = newForm()
		in := item.Input()
		data.Edit.Values["name"] = in.Name
		data.Edit.Values["itemCode"] = in.ItemCode
		data.Edit.Values["category"] = in.Category
		data.Edit.Values["description"] = in.Description
		data.Edit.Values["imageUrl"] = in.ImageURL
		data.Edit.Values["status"] = string(in.Status)
	}
	if data.Issue.Values == nil {
		data.Issue = newForm()
		today := startOfDay(now)
		data.Issue.Values["issuerName"] = GetWebClaims(r.Context()).Name()
		data.Issue.Values["issueDate"] = formatDate(today)
		data.Issue.Values["expectedReturnDate"] = formatDate(today.AddDate(0, 0, s.loanDays(r)))
	}
	if data.Return.Values == nil {
		data.Return = newForm()
		data.Return.Values["returnDate"] = formatDate(now)
	}
	if data.Image.Values == nil {
		data.Image = newForm()
	}
	if data.Delete.Values == nil {
		data.Delete = newForm()
	}

	history, err := s.Lending.History(r.Context(), item.ID)
	if err != nil {
		slog.Error("failed to get item history", "error", err)
	}
	data.History = history

	s.Templates.RenderStatus(w, status, "item_detail.html", data)
}

// loadItem fetches the item named in the path, writing 404 or 500 itself.
func (s *Server) loadItem(w http.ResponseWriter, r *http.Request) (model.Item, bool) {
	item, err := s.Lending.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, lending.ErrNotFound) {
		http.Error(w, "item not found", http.StatusNotFound)
		return model.Item{}, false
	}
	if err != nil {
		slog.Error("failed to get item", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return model.Item{}, false
	}
	return item, true
}

// ItemDetailPage handles GET /items/{id}.
func (s *Server) ItemDetailPage(w http.ResponseWriter, r *http.Request) {
	item, ok := s.loadItem(w, r)
	if !ok {
		return
	}
	s.renderItem(w, r, http.StatusOK, item, &itemDetailPage{PageData: s.page(r, item.Name, "items")})
}

// ItemUpdateSubmit handles POST /items/{id}.
func (s *Server) ItemUpdateSubmit(w http.ResponseWriter, r *http.Request) {
	item, ok := s.loadItem(w, r)
	if !ok {
		return
	}

	f := formFrom(r, itemFields...)
	_, err := s.Lending.Edit(r.Context(), item.ID, itemInput(f), actor(r))
	if err != nil {
		status := s.applyError(f, err)
		data := &itemDetailPage{PageData: s.page(r, item.Name, "items"), Edit: f}
		data.Error = "The item was not saved. " + errorSummary(err)
		s.renderItem(w, r, status, item, data)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/items/%s?msg=updated", item.ID), http.StatusSeeOther)
}

// ItemImageSubmit handles POST /items/{id}/image.
func (s *Server) ItemImageSubmit(w http.ResponseWriter, r *http.Request) {
	item, ok := s.loadItem(w, r)
	if !ok {
		return
	}

	fail := func(status int, msg string) {
		f := newForm()
		f.Errors["image"] = msg
		data := &itemDetailPage{PageData: s.page(r, item.Name, "items"), Image: f}
		data.Error = "The image was not saved."
		s.renderItem(w, r, status, item, data)
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+(1<<20))
	if err := r.ParseMultipartForm(imaging.MaxUploadSize); err != nil {
		fail(http.StatusBadRequest, "The file is too large.")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		fail(http.StatusBadRequest, "Choose an image to upload.")
		return
	}
	defer file.Close()

	// Validate format by sniffing bytes, downscale, compress.
	photo, err := imaging.Process(file)
	if err != nil {
		fail(http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.Lending.SetImage(r.Context(), item.ID, photo.DataURI(), actor(r)); err != nil {
		slog.Error("failed to save image", "error", err)
		fail(http.StatusInternalServerError, "The image could not be stored.")
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/items/%s?msg=image", item.ID), http.StatusSeeOther)
}

// ItemDeleteSubmit handles POST /items/{id}/delete. The form must tick the
// confirm box.
func (s *Server) ItemDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	item, ok := s.loadItem(w, r)
	if !ok {
		return
	}

	if r.FormValue("confirm") != "yes" {
		f := newForm()
		f.Errors["confirm"] = "Tick the box to confirm the deletion."
		data := &itemDetailPage{PageData: s.page(r, item.Name, "items"), Delete: f}
		s.renderItem(w, r, http.StatusUnprocessableEntity, item, data)
		return
	}

	if err := s.Lending.Delete(r.Context(), item.ID, actor(r)); err != nil && !errors.Is(err, lending.ErrNotFound) {
		slog.Error("failed to delete item", "error", err)
		http.Error(w, "failed to delete item", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/items?msg=deleted", http.StatusSeeOther)
}
