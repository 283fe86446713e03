package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ZuoMatthew/schemaless/pkg/domain"
)

// HandleQueryIndex handles GET requests that look up rows through a
// secondary index. The index is identified by the column and path query
// parameters, and value is parsed as JSON so that numbers and booleans
// match the indexed representation. A value that fails to parse is
// treated as a plain string.
func (h *Handler) HandleQueryIndex(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ksName := vars["ks"]

	q := r.URL.Query()
	column := q.Get("column")
	path := q.Get("path")
	rawValue := q.Get("value")

	if column == "" || path == "" {
		WriteJSONError(w, http.StatusBadRequest, "Query requires column and path parameters")
		return
	}

	var value domain.Document
	if err := json.Unmarshal([]byte(rawValue), &value); err != nil {
		value = rawValue
	}

	log.Printf("INFO: handleQueryIndex called for keyspace '%s', index (%s, %s)", ksName, column, path)

	rows, err := h.store.QueryIndex(ksName, domain.IndexDefinition{Column: column, Path: path}, value)
	if err != nil {
		log.Printf("ERROR: Index query failed for keyspace '%s': %v", ksName, err)
		writeDomainError(w, err)
		return
	}

	log.Printf("INFO: Index query matched %d rows in keyspace '%s'", len(rows), ksName)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}
