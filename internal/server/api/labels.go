package api

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/ayusman/mudra/internal/ledger"
)

// LabelHandler serves per-label row counts from the dataset ledger.
type LabelHandler struct {
	ledger *ledger.Ledger
}

// NewLabelHandler creates a new LabelHandler over the given ledger.
func NewLabelHandler(l *ledger.Ledger) *LabelHandler {
	return &LabelHandler{ledger: l}
}

type labelResponse struct {
	Label string `json:"label"`
	Rows  int    `json:"rows"`
	Path  string `json:"path"`
}

type listLabelsResponse struct {
	Labels []labelResponse `json:"labels"`
	Total  int             `json:"total"`
}

// ServeHTTP routes /api/labels and /api/labels/{label}.
func (h *LabelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	label := strings.TrimPrefix(r.URL.Path, "/api/labels")
	label = strings.TrimPrefix(label, "/")

	if label == "" {
		h.list(w)
		return
	}
	h.get(w, label)
}

// list handles GET /api/labels.
func (h *LabelHandler) list(w http.ResponseWriter) {
	labels, err := h.ledger.Labels()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list labels")
		return
	}

	response := listLabelsResponse{
		Labels: make([]labelResponse, 0, len(labels)),
	}
	for _, label := range labels {
		rows, err := h.ledger.CountRows(label)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to count rows")
			return
		}
		response.Labels = append(response.Labels, labelResponse{
			Label: label,
			Rows:  rows,
			Path:  h.ledger.Path(label),
		})
		response.Total += rows
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/labels/{label}.
func (h *LabelHandler) get(w http.ResponseWriter, label string) {
	if err := ledger.ValidateLabel(label); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid label")
		return
	}

	if _, err := os.Stat(h.ledger.Path(label)); errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusNotFound, "Label not found")
		return
	}

	rows, err := h.ledger.CountRows(label)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count rows")
		return
	}

	writeJSON(w, http.StatusOK, labelResponse{
		Label: label,
		Rows:  rows,
		Path:  h.ledger.Path(label),
	})
}
