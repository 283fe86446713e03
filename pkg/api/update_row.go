package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ZuoMatthew/schemaless/pkg/domain"
)

// UpdateRowResponse reports handler failures for a committed update.
type UpdateRowResponse struct {
	HandlerErrors []string `json:"handler_errors,omitempty"`
}

// HandleUpdateRow handles PATCH requests to overwrite a subset of a row's
// columns
func (h *Handler) HandleUpdateRow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ksName := vars["ks"]

	rowKey, ok := parseRowKey(w, vars["key"])
	if !ok {
		return
	}

	log.Printf("INFO: handleUpdateRow called for keyspace '%s', row %d", ksName, rowKey)

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

	err := h.store.UpdateRow(ksName, rowKey, columns)
	response := UpdateRowResponse{}

	var handlerErr *domain.HandlerError
	if errors.As(err, &handlerErr) {
		log.Printf("WARN: UpdateRow committed with handler failures in '%s': %v", ksName, handlerErr)
		for _, e := range handlerErr.Errors {
			response.HandlerErrors = append(response.HandlerErrors, e.Error())
		}
	} else if err != nil {
		log.Printf("ERROR: UpdateRow failed for row %d in keyspace '%s': %v", rowKey, ksName, err)
		writeDomainError(w, err)
		return
	}

	log.Printf("INFO: Updated row %d in keyspace '%s'", rowKey, ksName)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
