package answer

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/policyrag/internal/domain/role"
)

// PromptClassifier asks a Generator to name the requester's role.
type PromptClassifier struct {
	gen Generator
}

// NewPromptClassifier creates a classifier backed by gen.
func NewPromptClassifier(gen Generator) *PromptClassifier {
	return &PromptClassifier{gen: gen}
}

// ClassifyRole implements RoleClassifier.
func (c *PromptClassifier) ClassifyRole(ctx context.Context, query string) (string, error) {
	prompt, err := render(classifyTemplate, struct {
		Roles []role.Role
		Query string
	}{Roles: role.All(), Query: query})
	if err != nil {
		return "", fmt.Errorf("render classification prompt: %w", err)
	}
	out, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("classify role: %w", err)
	}
	return out, nil
}
