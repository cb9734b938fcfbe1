package control

import "context"

// Rules describes the diversion the firewall capability must arrange:
// outbound TCP to Ports diverted to queue QueueNum, except packets
// already carrying Mark (spec.md §4.G, "Firewall rules").
type Rules struct {
	QueueNum uint16
	Mark     uint32
	Ports    []int
}

// FirewallManager installs and removes the diversion rules. The
// production backend (internal/firewall) shells out to iptables; tests
// use a recording fake.
type FirewallManager interface {
	Install(ctx context.Context, rules Rules) error
	Remove(ctx context.Context, rules Rules) error
}
