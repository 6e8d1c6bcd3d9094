package policy

import (
	"log/slog"

	"planlens/internal/policy/handler"
	"planlens/internal/policy/service"
	"planlens/internal/policy/store"
)

// Service exposes policy analysis orchestration.
type Service = service.Service

// Handler wires HTTP endpoints to the policy service.
type Handler = handler.Handler

// NewService constructs the policy service over the given store; optional
// collaborators (file store, extractor, audit, metrics) attach via options.
func NewService(policies store.Store, opts ...service.Option) *Service {
	return service.New(policies, opts...)
}

// NewHandler constructs an HTTP handler for the policy routes.
func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
