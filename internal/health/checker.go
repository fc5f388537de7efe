package health

import (
	"context"
	"time"

	"github.com/holland-leasing/checkout-api/internal/store"
)

// probeCode is read during readiness probes. A miss is healthy; only a
// transport or backend error marks the store unavailable.
const probeCode = "healthz"

// StoreProber adapts a code store to the Checker interface.
type StoreProber struct {
	Store store.Store
}

func (p StoreProber) PingStore(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := p.Store.Get(ctx, probeCode)
	return err
}
