package api

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

// HandleDeleteRow handles DELETE requests to remove a row and all its columns
func (h *Handler) HandleDeleteRow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ksName := vars["ks"]

	rowKey, ok := parseRowKey(w, vars["key"])
	if !ok {
		return
	}

	log.Printf("INFO: handleDeleteRow called for keyspace '%s', row %d", ksName, rowKey)

	if err := h.store.DeleteRow(ksName, rowKey); err != nil {
		log.Printf("ERROR: Failed to delete row %d from keyspace '%s': %v", rowKey, ksName, err)
		writeDomainError(w, err)
		return
	}

	log.Printf("INFO: Deleted row %d from keyspace '%s'", rowKey, ksName)
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteColumn handles DELETE requests to remove a single column of a row
func (h *Handler) HandleDeleteColumn(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ksName := vars["ks"]
	column := vars["col"]

	rowKey, ok := parseRowKey(w, vars["key"])
	if !ok {
		return
	}

	log.Printf("INFO: handleDeleteColumn called for (%s, %d, %s)", ksName, rowKey, column)

	if err := h.store.DeleteColumn(ksName, rowKey, column); err != nil {
		log.Printf("ERROR: Failed to delete column '%s' from row %d in keyspace '%s': %v", column, rowKey, ksName, err)
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
