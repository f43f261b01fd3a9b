package backend

import (
	"context"
	"os"
)

// Credentials supplies the bearer token attached to every request. An empty
// token sends no Authorization header.
type Credentials interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// EnvToken reads the token from the named environment variable on every
// request.
type EnvToken string

func (e EnvToken) Token(context.Context) (string, error) {
	return os.Getenv(string(e)), nil
}
