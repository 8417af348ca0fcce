package payment

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Sandbox issues local sessions when no provider key is configured. The
// URL points at BaseURL so a developer can follow the redirect.
type Sandbox struct {
	BaseURL string
}

func (s Sandbox) CreateSession(_ context.Context, req SessionRequest) (Session, error) {
	id := "cs_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return Session{
		ID:  id,
		URL: strings.TrimRight(s.BaseURL, "/") + "/pay/" + id,
	}, nil
}
