package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ZuoMatthew/schemaless/pkg/domain"
)

// CreateRowResponse is the body of a successful POST /keyspaces/{ks}/rows.
// HandlerErrors is populated when the row committed but one or more event
// handlers failed.
type CreateRowResponse struct {
	RowKey        int64    `json:"row_key"`
	HandlerErrors []string `json:"handler_errors,omitempty"`
}

// HandleCreateRow handles POST requests to create a row from column→document
// pairs
func (h *Handler) HandleCreateRow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ksName := vars["ks"]

	log.Printf("INFO: handleCreateRow called for keyspace '%s'", ksName)

	var columns map[string]domain.Document
	if err := json.NewDecoder(r.Body).Decode(&columns); err != nil {
		log.Printf("ERROR: Decoding body failed: %v", err)
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(columns) == 0 {
		WriteJSONError(w, http.StatusBadRequest, "At least one column is required")
		return
	}

	rowKey, err := h.store.CreateRow(ksName, columns)
	response := CreateRowResponse{RowKey: rowKey}

	var handlerErr *domain.HandlerError
	if errors.As(err, &handlerErr) {
		// The write committed; report the handler failures alongside the key.
		log.Printf("WARN: CreateRow committed with handler failures in '%s': %v", ksName, handlerErr)
		for _, e := range handlerErr.Errors {
			response.HandlerErrors = append(response.HandlerErrors, e.Error())
		}
	} else if err != nil {
		log.Printf("ERROR: CreateRow failed for keyspace '%s': %v", ksName, err)
		writeDomainError(w, err)
		return
	}

	log.Printf("INFO: Created row %d in keyspace '%s'", rowKey, ksName)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)
}
