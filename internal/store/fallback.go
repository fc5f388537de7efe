package store

import (
	"context"

	"github.com/rs/zerolog"
)

// Fallback composes a remote backend with the in-process store. Writes go to
// the remote exclusively; reads try the remote first and consult the local map
// on a miss, so codes registered before remote credentials were removed remain
// visible within the same process. This is a fallback rule, not a cache: the
// local map is never populated from remote reads.
type Fallback struct {
	Remote Store
	Local  Store
	Logger zerolog.Logger
}

// NewFallback wires a remote store in front of a local one. A nil remote
// yields a purely local store.
func NewFallback(remote Store, local Store, logger zerolog.Logger) *Fallback {
	if local == nil {
		local = NewMemory()
	}
	return &Fallback{Remote: remote, Local: local, Logger: logger}
}

// Get reads from the remote backend, falling through to the local map when
// the remote has no value. Remote transport errors degrade to the local map
// as well: a flaky remote must not take down the redemption path when the
// process still holds the code locally.
func (f *Fallback) Get(ctx context.Context, code string) (*CodeConfig, error) {
	if f.Remote != nil {
		cfg, err := f.Remote.Get(ctx, code)
		if err != nil {
			f.Logger.Warn().Err(err).Str("code", code).Msg("remote store read failed, trying local")
		} else if cfg != nil {
			return cfg, nil
		}
	}
	return f.Local.Get(ctx, code)
}

// Set writes to the remote backend when one is configured, otherwise to the
// local map. Remote write failures are returned to the caller; registration
// must not claim success for a write that never landed.
func (f *Fallback) Set(ctx context.Context, code string, cfg *CodeConfig) error {
	if f.Remote != nil {
		return f.Remote.Set(ctx, code, cfg)
	}
	return f.Local.Set(ctx, code, cfg)
}
