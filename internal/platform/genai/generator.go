// Package genai is the glue to the external AI text-generation collaborator.
// The service only depends on the Generator interface; the concrete HTTP
// client is constructed once in the process bootstrap and injected, never
// reached through package-level state.
package genai

import "context"

// Generator produces best-effort JSON-shaped text for a structured prompt.
// schemaHint describes the requested output shape; there is no semantic
// guarantee beyond "text that usually parses as the hinted JSON".
type Generator interface {
	Generate(ctx context.Context, prompt, schemaHint string) (string, error)
}
