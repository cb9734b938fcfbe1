package firewall

import (
	"context"
	"sync"

	"github.com/outrider-net/desyncd/internal/control"
)

// Recorder is a test-only control.FirewallManager that records every
// Install/Remove call instead of touching the host's netfilter
// configuration.
type Recorder struct {
	mu sync.Mutex

	Installed  []control.Rules
	Removed    []control.Rules
	InstallErr error
}

func (r *Recorder) Install(_ context.Context, rules control.Rules) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.InstallErr != nil {
		return r.InstallErr
	}
	r.Installed = append(r.Installed, rules)
	return nil
}

func (r *Recorder) Remove(_ context.Context, rules control.Rules) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Removed = append(r.Removed, rules)
	return nil
}

func (r *Recorder) installCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Installed)
}
