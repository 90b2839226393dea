// Package api implements the HTTP layer: request models, handlers for
// the generation job endpoints, and the mapping from internal errors to
// sanitized client responses.
package api
