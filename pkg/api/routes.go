package api

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API routes with the given router
func (h *Handler) RegisterRoutes(router *mux.Router) {
	// Keyspace registry
	router.HandleFunc("/keyspaces", h.HandleCreateKeySpace).Methods("POST")
	router.HandleFunc("/keyspaces", h.HandleListKeySpaces).Methods("GET")

	// Row operations
	router.HandleFunc("/keyspaces/{ks}/rows", h.HandleCreateRow).Methods("POST")
	router.HandleFunc("/keyspaces/{ks}/rows", h.HandleAllRows).Methods("GET")
	router.HandleFunc("/keyspaces/{ks}/rows/{key}", h.HandleGetRow).Methods("GET")
	router.HandleFunc("/keyspaces/{ks}/rows/{key}", h.HandleUpdateRow).Methods("PATCH")
	router.HandleFunc("/keyspaces/{ks}/rows/{key}", h.HandleDeleteRow).Methods("DELETE")

	// Column operations
	router.HandleFunc("/keyspaces/{ks}/rows/{key}/columns/{col}", h.HandleGetColumn).Methods("GET")
	router.HandleFunc("/keyspaces/{ks}/rows/{key}/columns/{col}", h.HandleDeleteColumn).Methods("DELETE")

	// Secondary index lookup
	router.HandleFunc("/keyspaces/{ks}/query", h.HandleQueryIndex).Methods("GET")

	// Snapshots and liveness
	router.HandleFunc("/export", h.HandleExport).Methods("GET")
	router.HandleFunc("/health", h.HandleHealth).Methods("GET")
}
