package api

import (
	"log"
	"net/http"

	"github.com/ZuoMatthew/schemaless/pkg/storage"
)

// HandleExport handles GET requests for a snapshot of the whole database
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	log.Printf("INFO: handleExport called")

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment; filename=snapshot"+storage.FileExtension)

	if err := h.store.Export(w); err != nil {
		// Headers may already be on the wire; all we can do is log.
		log.Printf("ERROR: Export failed: %v", err)
		return
	}

	log.Printf("INFO: Export completed")
}

// HandleHealth handles GET requests for the health check endpoint
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
