// Package firewall implements control.FirewallManager backends: a
// production backend that shells out to iptables, and a recording fake
// for tests (spec.md §4.G, "Firewall rules (abstract capability)").
package firewall

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/outrider-net/desyncd/internal/control"
	"github.com/outrider-net/desyncd/internal/logging"
)

// IPTables installs and removes the NFQUEUE diversion rules via the
// iptables CLI, the way the reference Linux host does (spec.md §6).
// Every invocation passes an explicit argument list to exec.CommandContext,
// never a shell string, so rule parameters can never be interpreted as
// shell syntax.
type IPTables struct {
	// Binary overrides the iptables executable name, for testing against
	// a stub. Defaults to "iptables".
	Binary string
}

func (f *IPTables) binary() string {
	if f.Binary == "" {
		return "iptables"
	}
	return f.Binary
}

// Install inserts the mark-exemption ACCEPT rule, then an NFQUEUE
// diversion rule per port. It first calls Remove to clear any stale
// rules left by a previous unclean shutdown (spec.md §4.G, "Idempotency:
// remove is called on every start").
func (f *IPTables) Install(ctx context.Context, rules control.Rules) error {
	_ = f.Remove(ctx, rules)

	mark := fmt.Sprintf("0x%x", rules.Mark)
	if err := f.run(ctx, "-I", "OUTPUT", "-m", "mark", "--mark", mark, "-j", "ACCEPT"); err != nil {
		return fmt.Errorf("firewall: install mark-exempt rule: %w", err)
	}

	for _, port := range rules.Ports {
		args := []string{
			"-A", "OUTPUT", "-p", "tcp", "--dport", strconv.Itoa(port),
			"-j", "NFQUEUE", "--queue-num", strconv.Itoa(int(rules.QueueNum)), "--queue-bypass",
		}
		if err := f.run(ctx, args...); err != nil {
			logging.L.WithError(err).Warn("firewall: NFQUEUE rule with --queue-bypass failed, retrying without it")
			if err := f.run(ctx, args[:len(args)-1]...); err != nil {
				return fmt.Errorf("firewall: install NFQUEUE rule for port %d: %w", port, err)
			}
		}
	}
	return nil
}

// Remove deletes the rules Install would have added. Failures are logged
// at Debug, not returned — Remove is routinely called speculatively
// against rules that may not exist.
func (f *IPTables) Remove(ctx context.Context, rules control.Rules) error {
	for _, port := range rules.Ports {
		for _, withBypass := range []bool{true, false} {
			args := []string{
				"-D", "OUTPUT", "-p", "tcp", "--dport", strconv.Itoa(port),
				"-j", "NFQUEUE", "--queue-num", strconv.Itoa(int(rules.QueueNum)),
			}
			if withBypass {
				args = append(args, "--queue-bypass")
			}
			if err := f.run(ctx, args...); err != nil {
				logging.L.WithField("port", port).Debug("firewall: NFQUEUE rule not present to remove")
			}
		}
	}

	mark := fmt.Sprintf("0x%x", rules.Mark)
	if err := f.run(ctx, "-D", "OUTPUT", "-m", "mark", "--mark", mark, "-j", "ACCEPT"); err != nil {
		logging.L.Debug("firewall: mark-exempt rule not present to remove")
	}
	return nil
}

func (f *IPTables) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, f.binary(), args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w (%s)", f.binary(), args, err, out)
	}
	return nil
}
