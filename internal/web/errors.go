package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
)

// errFormInput marks a form whose fields could not be parsed.
var errFormInput = errors.New("invalid form input")

func formError(f form) error {
	if len(f.Errors) > 0 {
		return errFormInput
	}
	return nil
}

// applyError records err on the form and returns the response status.
func (s *Server) applyError(f form, err error) int {
	var verr *model.ValidationError
	var terr *model.TransitionError
	switch {
	case errors.As(err, &verr):
		f.addValidation(verr)
		return http.StatusUnprocessableEntity
	case errors.As(err, &terr):
		f.Errors["status"] = terr.Error()
		return http.StatusConflict
	case errors.Is(err, errFormInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, lending.ErrNotFound):
		return http.StatusNotFound
	default:
		slog.Error("failed to save item", "error", err)
		f.Errors["form"] = "The change could not be stored. Try again."
		return http.StatusInternalServerError
	}
}

// errorSummary is the banner text for a failed submission.
func errorSummary(err error) string {
	var terr *model.TransitionError
	if errors.As(err, &terr) {
		return "An item cannot change from " + string(terr.From) + " to " + string(terr.To) + "."
	}
	return "Correct the highlighted fields."
}
