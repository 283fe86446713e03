package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/ZuoMatthew/schemaless/pkg/domain"
)

// CreateKeySpaceRequest is the body of POST /keyspaces.
type CreateKeySpaceRequest struct {
	Name    string                   `json:"name"`
	Indexes []domain.IndexDefinition `json:"indexes,omitempty"`
}

// HandleCreateKeySpace handles POST requests to register a keyspace with its
// index definitions
func (h *Handler) HandleCreateKeySpace(w http.ResponseWriter, r *http.Request) {
	var req CreateKeySpaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("ERROR: Decoding body failed: %v", err)
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		WriteJSONError(w, http.StatusBadRequest, "Keyspace name is required")
		return
	}

	log.Printf("INFO: handleCreateKeySpace called for keyspace '%s' with %d index(es)", req.Name, len(req.Indexes))

	if err := h.store.CreateKeySpace(req.Name, req.Indexes); err != nil {
		log.Printf("ERROR: CreateKeySpace failed for '%s': %v", req.Name, err)
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// HandleListKeySpaces handles GET requests for the registered keyspace names
func (h *Handler) HandleListKeySpaces(w http.ResponseWriter, r *http.Request) {
	names := h.store.KeySpaceNames()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"keyspaces": names})
}
