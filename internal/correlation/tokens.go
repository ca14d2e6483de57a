package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/forcetrace/forcetrace/internal/database"
	"github.com/forcetrace/forcetrace/pkg/types"
)

const tokenHexLen = 12

// Registry issues correlation tokens and binds them to injections. A token
// is the only durable link between an out-of-band callback and the
// (endpoint, parameter) that produced it.
type Registry struct {
	store *database.Store
}

func NewRegistry(store *database.Store) *Registry {
	return &Registry{store: store}
}

// IssueToken creates a pending injection with a fresh token of the form
// PREFIX_a1b2c3d4e5f6. The prefix is the first four characters of the vuln
// category, uppercased, so tokens stay greppable in callback logs.
func (r *Registry) IssueToken(ctx context.Context, endpointID, param string, vulnType types.VulnCategory) (*types.Injection, error) {
	token, err := generateToken(vulnType)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	injection := &types.Injection{
		EndpointID:  endpointID,
		Token:       token,
		Param:       param,
		ContextType: vulnType,
		Status:      types.InjectionStatusPending,
	}
	if err := r.store.CreateInjection(ctx, injection); err != nil {
		return nil, err
	}
	return injection, nil
}

// Resolve looks up the injection context behind a token. Unknown tokens
// return ErrUnknownToken; resolution never mutates anything.
func (r *Registry) Resolve(ctx context.Context, token string) (*database.InjectionContext, error) {
	if token == "" {
		return nil, ErrInvalidRequest
	}
	ic, err := r.store.GetInjectionByToken(ctx, token)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUnknownToken
		}
		return nil, err
	}
	return ic, nil
}

func generateToken(vulnType types.VulnCategory) (string, error) {
	prefix := string(vulnType)
	prefix = strings.ReplaceAll(prefix, "_", "")
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	if prefix == "" {
		prefix = "misc"
	}

	buf := make([]byte, tokenHexLen/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(prefix) + "_" + hex.EncodeToString(buf), nil
}
