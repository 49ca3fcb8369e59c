package ws

import "sync"

// TokenSource supplies the current bearer token for the live channel. An
// empty token means "not yet ready to connect"; the supervisor defers
// rather than failing. Token issuance and renewal happen elsewhere.
type TokenSource interface {
	Token() string
}

// RenewableToken is a TokenSource whose value is swapped in by an external
// refresher on its own cadence. The supervisor always dials with the latest
// value.
type RenewableToken struct {
	mu  sync.Mutex
	tok string
}

// Set installs a fresh token.
func (t *RenewableToken) Set(tok string) {
	t.mu.Lock()
	t.tok = tok
	t.mu.Unlock()
}

// Token returns the latest token, or "" when none has been issued yet.
func (t *RenewableToken) Token() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tok
}
