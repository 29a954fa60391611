package ports

import "context"

// SecretStore holds small single-line secrets, such as an agent's encoded
// signing key, by slash-separated key. Get reports domain.ErrSecretNotFound
// for a missing key.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}
