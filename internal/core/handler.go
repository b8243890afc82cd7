package core

import (
	"context"

	"github.com/quantumlife/hearth/internal/logging"
	"github.com/quantumlife/hearth/internal/notify"
)

// HandleOptions controls what Handle does with an error.
type HandleOptions struct {
	ShowToast bool
	// Severity overrides the severity derived from the error type.
	Severity notify.Severity
	// Title overrides the toast title derived from the error type.
	Title string
}

// Handler logs errors and turns them into toasts.
type Handler struct {
	Logger   *logging.Logger
	Notifier notify.Notifier
}

// NewHandler creates a Handler. A nil logger uses the package default.
func NewHandler(logger *logging.Logger, notifier notify.Notifier) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{Logger: logger, Notifier: notifier}
}

// SeverityFor returns the toast severity used for an error type.
func SeverityFor(t ErrorType) notify.Severity {
	switch t {
	case ErrorValidation, ErrorClient, ErrorNotFound:
		return notify.SeverityWarning
	case ErrorServer:
		return notify.SeverityCritical
	}
	return notify.SeverityError
}

// Handle logs err and optionally shows a toast. It never panics and never
// returns the error; notifier failures are logged.
func (h *Handler) Handle(ctx context.Context, err error, opts HandleOptions) {
	if err == nil {
		return
	}
	typ := TypeOf(err)

	h.Logger.WithField("error_type", string(typ)).Error("[%s] %v", typ.Name(), err)

	if !opts.ShowToast || h.Notifier == nil {
		return
	}

	title := opts.Title
	if title == "" {
		title = typ.Name()
	}
	desc := err.Error()
	if appErr, ok := err.(*AppError); ok && appErr.Message != "" {
		desc = appErr.Message
	}
	if desc == "" {
		desc = ToastMessage(typ)
	}
	sev := opts.Severity
	if sev == "" {
		sev = SeverityFor(typ)
	}

	if nerr := h.Notifier.Notify(ctx, notify.Toast{Title: title, Description: desc, Severity: sev}); nerr != nil {
		h.Logger.Warn("[ErrorHandler] failed to deliver toast: %v", nerr)
	}
}
