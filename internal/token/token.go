// Package token obtains short-lived bearer tokens for the upstream API.
package token

import (
	"context"
	"errors"
)

// ErrTokenExchange is returned when the token collaborator responds but
// refuses to issue a token.
var ErrTokenExchange = errors.New("token exchange failed")

// Supplier exchanges long-lived credentials for a bearer token. Failures
// here are fatal to a reconciliation run: no group can be fetched without
// a token.
type Supplier interface {
	Token(ctx context.Context) (string, error)
}
