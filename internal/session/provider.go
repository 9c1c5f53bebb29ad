package session

import (
	"context"
	"errors"
	"strings"
)

var ErrUnauthenticated = errors.New("session token not recognized")

// Context is the identity attached to every Job and MediaRecord. It is
// resolved by an external session layer; nothing in this service
// authenticates users itself.
type Context struct {
	UserEmail string
	SessionID string
}

// Provider resolves an opaque session token to the caller's identity.
type Provider interface {
	Resolve(ctx context.Context, token string) (Context, error)
}

// StaticProvider maps pre-shared tokens to identities. Entries use the
// "token:email" form; the session ID is derived from the token so records
// written under the same token stay attributable to one session.
type StaticProvider struct {
	identities map[string]Context
}

func NewStaticProvider(entries []string) *StaticProvider {
	identities := make(map[string]Context, len(entries))
	for _, entry := range entries {
		token, email, ok := strings.Cut(strings.TrimSpace(entry), ":")
		token = strings.TrimSpace(token)
		email = strings.TrimSpace(email)
		if !ok || token == "" || email == "" {
			continue
		}
		identities[token] = Context{
			UserEmail: email,
			SessionID: "sess-" + token,
		}
	}
	return &StaticProvider{identities: identities}
}

func (p *StaticProvider) Resolve(_ context.Context, token string) (Context, error) {
	identity, ok := p.identities[strings.TrimSpace(token)]
	if !ok {
		return Context{}, ErrUnauthenticated
	}
	return identity, nil
}

// Size returns the number of configured identities.
func (p *StaticProvider) Size() int {
	return len(p.identities)
}
