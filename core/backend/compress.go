package backend

import (
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/harman-mundh/localcommunity/core/logger"
)

// handleCompression gzips responses for clients that accept it
func (b *Backend) handleCompression() {
	b.router.Use(mux.MiddlewareFunc(handlers.CompressHandler))
}

// handleRecovery turns handler panics into 500 responses and logs the stack
func (b *Backend) handleRecovery() {
	b.router.Use(mux.MiddlewareFunc(handlers.RecoveryHandler(
		handlers.RecoveryLogger(logger.Default()),
		handlers.PrintRecoveryStack(true),
	)))
}
