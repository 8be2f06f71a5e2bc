// Package llm provides the text-generation clients the extraction producer
// drives. The engine itself never calls an LLM.
package llm

import (
	"context"
)

type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
