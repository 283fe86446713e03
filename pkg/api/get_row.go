package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// parseRowKey decodes the {key} path variable, writing a 400 on failure.
func parseRowKey(w http.ResponseWriter, raw string) (int64, bool) {
	rowKey, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid row key")
		return 0, false
	}
	return rowKey, true
}

// HandleGetRow handles GET requests to retrieve all columns of a row
func (h *Handler) HandleGetRow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ksName := vars["ks"]

	rowKey, ok := parseRowKey(w, vars["key"])
	if !ok {
		return
	}

	log.Printf("INFO: handleGetRow called for keyspace '%s', row %d", ksName, rowKey)

	row, err := h.store.GetRow(ksName, rowKey)
	if err != nil {
		log.Printf("ERROR: Row %d not found in keyspace '%s': %v", rowKey, ksName, err)
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(row)
}

// HandleAllRows handles GET requests to list every row of a keyspace
func (h *Handler) HandleAllRows(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ksName := vars["ks"]

	log.Printf("INFO: handleAllRows called for keyspace '%s'", ksName)

	rows, err := h.store.AllRows(ksName)
	if err != nil {
		log.Printf("ERROR: AllRows failed for keyspace '%s': %v", ksName, err)
		writeDomainError(w, err)
		return
	}

	log.Printf("INFO: Found %d rows in keyspace '%s'", len(rows), ksName)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}

// HandleGetColumn handles GET requests to retrieve one column of a row
func (h *Handler) HandleGetColumn(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ksName := vars["ks"]
	column := vars["col"]

	rowKey, ok := parseRowKey(w, vars["key"])
	if !ok {
		return
	}

	doc, found, err := h.store.GetColumn(ksName, rowKey, column)
	if err != nil {
		log.Printf("ERROR: GetColumn failed for (%s, %d, %s): %v", ksName, rowKey, column, err)
		writeDomainError(w, err)
		return
	}
	if !found {
		WriteJSONError(w, http.StatusNotFound, "Column not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}
