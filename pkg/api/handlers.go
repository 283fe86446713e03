package api

import (
	"github.com/ZuoMatthew/schemaless/pkg/domain"
)

// Handler provides HTTP handlers for the database API
type Handler struct {
	store domain.Store
}

// NewHandler creates a new API handler with dependency injection
func NewHandler(store domain.Store) *Handler {
	return &Handler{
		store: store,
	}
}
