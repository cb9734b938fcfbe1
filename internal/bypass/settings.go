// Package bypass implements the per-packet decision engine that glues the
// payload classifier, fragment builder, and raw injector together: for each
// TCP segment carrying a censor-visible hostname, it decides whether to let
// the kernel send the segment unmodified or to fragment and inject it
// itself, instructing the caller to drop the original (spec.md §4.F).
package bypass

import "fmt"

// Method selects a DPI-evasion fragmentation strategy.
type Method int

const (
	MethodNone Method = iota
	MethodSplit
	MethodSplitReverse
	MethodDisorder
	MethodDisorderReverse
)

// String returns the wire name of the method (used by the control-plane
// settings command and in log lines).
func (m Method) String() string {
	switch m {
	case MethodNone:
		return "NONE"
	case MethodSplit:
		return "SPLIT"
	case MethodSplitReverse:
		return "SPLIT_REVERSE"
	case MethodDisorder:
		return "DISORDER"
	case MethodDisorderReverse:
		return "DISORDER_REVERSE"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod maps a wire method name to a Method, defaulting to MethodNone
// for anything unrecognized (never errors — an unknown method should
// degrade to pass-through, not fail a settings update).
func ParseMethod(s string) Method {
	switch s {
	case "SPLIT":
		return MethodSplit
	case "SPLIT_REVERSE":
		return MethodSplitReverse
	case "DISORDER":
		return MethodDisorder
	case "DISORDER_REVERSE":
		return MethodDisorderReverse
	default:
		return MethodNone
	}
}

// Settings is the mutable bypass configuration, snapshotted by value on
// every packet (spec.md §3, "BypassSettings").
type Settings struct {
	Method               Method
	FirstSplitOffset     int // 1..payload_len-1, default 2
	InterFragmentDelayMs int // default 50
	FragmentCount        int // clamped to [2,10] for DISORDER
	DesyncHTTPS          bool
	DesyncHTTP           bool
	MixHostCase          bool
	BlockQUIC            bool
}

// DefaultSettings returns the reference default configuration.
func DefaultSettings() Settings {
	return Settings{
		Method:               MethodSplit,
		FirstSplitOffset:     2,
		InterFragmentDelayMs: 50,
		FragmentCount:        4,
		DesyncHTTPS:          true,
		DesyncHTTP:           true,
		MixHostCase:          true,
		BlockQUIC:            true,
	}
}
