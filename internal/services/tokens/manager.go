package tokens

import (
	"context"
	"encoding/json"
	"time"

	"github.com/DenizBir/KargoGate/internal/cache"
	"github.com/DenizBir/KargoGate/internal/errs"
	"github.com/DenizBir/KargoGate/internal/integrations/carrier"
	"github.com/pkg/errors"
)

// Manager owns the carrier auth-token lifecycle: cached per merchant,
// refreshed strictly on absence or expiry, never preemptively. A static
// override token short-circuits everything (operational escape hatch).
type Manager struct {
	carrier  carrier.Client
	cache    cache.BytesCache
	override string
	now      func() time.Time
}

func New(c carrier.Client, bc cache.BytesCache, override string) *Manager {
	return &Manager{carrier: c, cache: bc, override: override, now: func() time.Time { return time.Now().UTC() }}
}

type cachedToken struct {
	JWT       string    `json:"jwt"`
	ExpiresAt time.Time `json:"expires_at"`
}

func key(customerNumber string) string {
	return "mng:token:" + customerNumber
}

// Get returns a token valid for the given credentials. Refresh failures
// propagate untouched; there is no retry here.
func (m *Manager) Get(ctx context.Context, creds carrier.Credentials) (string, error) {
	if m.override != "" {
		return m.override, nil
	}

	k := key(creds.CustomerNumber)
	if b, ok, err := m.cache.Get(ctx, k); err == nil && ok {
		var t cachedToken
		if json.Unmarshal(b, &t) == nil && m.now().Before(t.ExpiresAt) {
			return t.JWT, nil
		}
	}

	tok, err := m.carrier.GetToken(ctx, creds)
	if err != nil {
		return "", errors.Wrap(err, "carrier token")
	}

	// A token the carrier hands out already at or past expiry is unusable.
	ttl := tok.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return "", errs.Auth("carrier token for %s expired at issue (%s)", creds.CustomerNumber, tok.ExpiresAt.Format(time.RFC3339))
	}

	// Last successful refresh wins.
	b, _ := json.Marshal(cachedToken{JWT: tok.JWT, ExpiresAt: tok.ExpiresAt})
	_ = m.cache.Set(ctx, k, b, ttl)

	return tok.JWT, nil
}

// Invalidate drops the cached token for a merchant, e.g. after a
// credential rotation through the settings endpoint.
func (m *Manager) Invalidate(ctx context.Context, customerNumber string) error {
	return m.cache.Del(ctx, key(customerNumber))
}
