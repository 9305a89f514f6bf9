package tokenstore

import "context"

// Pair holds an access/refresh token pair. The two tokens are always
// persisted and cleared together.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Empty reports whether the pair carries no tokens at all.
func (p Pair) Empty() bool {
	return p.Access == "" && p.Refresh == ""
}

// Store is the persistence contract for the token pair. All operations are
// idempotent. Load returns ok=false (not an error) when nothing is stored.
type Store interface {
	Save(ctx context.Context, pair Pair) error
	Load(ctx context.Context) (pair Pair, ok bool, err error)
	Clear(ctx context.Context) error
}
