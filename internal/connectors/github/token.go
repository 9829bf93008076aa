package github

import (
	"context"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// Ensure StaticToken implements the interface.
var _ driven.TokenProvider = StaticToken("")

// StaticToken is a TokenProvider for a fixed access token.
type StaticToken string

// GetToken returns the token, or ErrAuthInvalid when it is empty.
func (t StaticToken) GetToken(_ context.Context) (string, error) {
	if t == "" {
		return "", domain.ErrAuthInvalid
	}
	return string(t), nil
}
