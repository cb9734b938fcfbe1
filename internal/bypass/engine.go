package bypass

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/outrider-net/desyncd/internal/classify"
	"github.com/outrider-net/desyncd/internal/fragment"
	"github.com/outrider-net/desyncd/internal/inject"
	"github.com/outrider-net/desyncd/internal/logging"
	"github.com/outrider-net/desyncd/internal/nfqueue"
	"github.com/outrider-net/desyncd/pkg/netheader"
)

// Engine is the per-packet decision engine: it ties the payload
// classifier, fragment builder, and raw injector together, deciding for
// each queued TCP segment whether the kernel's own transmission should
// stand or be replaced with a crafted fragment sequence (spec.md §4.F).
type Engine struct {
	mu       sync.RWMutex
	settings Settings

	stats     Stats
	whitelist *classify.Whitelist

	injMu    sync.Mutex
	injector *inject.Socket
}

// NewEngine returns an Engine with the given starting settings and
// whitelist. The raw injector is created lazily on first use (spec.md
// §4.F, step 7).
func NewEngine(settings Settings, whitelist *classify.Whitelist) *Engine {
	return &Engine{settings: settings, whitelist: whitelist}
}

// Settings returns a copy of the current settings.
func (e *Engine) Settings() Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings
}

// SetSettings replaces the current settings wholesale.
func (e *Engine) SetSettings(s Settings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings = s
}

// Stats returns a snapshot of the running counters.
func (e *Engine) Stats() StatsSnapshot {
	return e.stats.Snapshot()
}

// ResetStats zeroes every running counter (spec.md §3, "reset by an
// explicit command").
func (e *Engine) ResetStats() {
	e.stats.Reset()
}

// Whitelist returns the engine's whitelist.
func (e *Engine) Whitelist() *classify.Whitelist {
	return e.whitelist
}

// Close releases the raw injector, if one was ever created.
func (e *Engine) Close() error {
	e.injMu.Lock()
	defer e.injMu.Unlock()
	if e.injector == nil {
		return nil
	}
	return e.injector.Close()
}

// Process is the nfqueue.Callback entry point. Any panic surfacing from
// classification or fragment-building is recovered here and treated as
// ACCEPT, generalizing the spec's "callback exception is treated as
// ACCEPT" rule from a foreign-runtime boundary to any in-process bug —
// Go has no such boundary to draw it at (spec.md §7).
func (e *Engine) Process(pkt nfqueue.Packet) (verdict nfqueue.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			logging.L.WithField("panic", r).Error("bypass: recovered from panic in Process")
			verdict = nfqueue.VerdictAccept
		}
	}()
	return e.process(pkt)
}

// process implements the decision table of spec.md §4.F, steps 1-10.
func (e *Engine) process(pkt nfqueue.Packet) nfqueue.Verdict {
	e.stats.addTotal(uint64(len(pkt.Payload)))

	ip, err := netheader.ParseIPv4(pkt.Payload)
	if err != nil {
		return nfqueue.VerdictAccept
	}

	settings := e.Settings()

	if settings.BlockQUIC && ip.Protocol() == netheader.ProtocolUDP {
		if udp, err := netheader.ParseUDP(ip.Payload()); err == nil {
			if port := udp.DestinationPort(); port == 80 || port == 443 {
				e.stats.addDropped()
				return nfqueue.VerdictDrop
			}
		}
	}

	if ip.Protocol() != netheader.ProtocolTCP {
		return nfqueue.VerdictAccept
	}

	tcp, err := netheader.ParseTCP(ip.Payload(), len(ip.Payload()))
	if err != nil {
		return nfqueue.VerdictAccept
	}

	payload := tcp.Payload()
	if len(payload) == 0 {
		return nfqueue.VerdictAccept
	}

	logging.L.WithFields(logrus.Fields{
		"src":   ip.Source().String(),
		"dst":   ip.Destination().String(),
		"sport": tcp.SourcePort(),
		"dport": tcp.DestinationPort(),
		"flags": tcp.Flags(),
	}).Debug("bypass: classifying segment")

	hostname, eligible := classifyEligibility(tcp.DestinationPort(), payload, settings)
	if !eligible {
		return nfqueue.VerdictAccept
	}

	if hostname != "" && e.whitelist != nil && e.whitelist.Match(hostname) {
		return nfqueue.VerdictAccept
	}

	injector := e.ensureInjector()
	if injector == nil {
		return nfqueue.VerdictAccept
	}

	frags := buildFragments(ip, tcp, payload, settings)
	if len(frags) == 0 {
		return nfqueue.VerdictAccept
	}

	if err := emit(injector, ip.Destination(), frags, settings); err != nil {
		logging.L.WithError(err).Debug("bypass: fragment injection failed, accepting original")
		return nfqueue.VerdictAccept
	}

	e.stats.addBypassed()
	return nfqueue.VerdictDrop
}

// classifyEligibility implements spec.md §4.F step 5: port 443 requires
// DesyncHTTPS and a valid ClientHello (hostname from SNI); port 80
// requires DesyncHTTP (hostname from the Host header); any other
// destination port is never eligible.
func classifyEligibility(dstPort uint16, payload []byte, settings Settings) (hostname string, eligible bool) {
	switch dstPort {
	case 443:
		if !settings.DesyncHTTPS {
			return "", false
		}
	case 80:
		if !settings.DesyncHTTP {
			return "", false
		}
	default:
		return "", false
	}
	return classify.HostnameOf(dstPort, payload)
}

// buildFragments dispatches to the Split or Disorder fragment plan per
// settings.Method, then applies case-mixing if configured (spec.md §4.C).
// It returns nil for MethodNone.
func buildFragments(ip netheader.IPv4, tcp netheader.TCP, payload []byte, settings Settings) [][]byte {
	var plan fragment.Plan
	switch settings.Method {
	case MethodSplit, MethodSplitReverse:
		plan = fragment.Split(len(payload), settings.FirstSplitOffset)
	case MethodDisorder, MethodDisorderReverse:
		plan = fragment.Disorder(len(payload), settings.FragmentCount)
	default:
		return nil
	}

	frags := fragment.BuildSequence(ip, tcp, payload, plan)
	if settings.MixHostCase {
		fragment.MixHostCase(frags, ip.HeaderLen(), tcp.HeaderLen())
	}
	return frags
}

// emit sends frags via injector, reversing send order for the *_REVERSE
// methods, sleeping InterFragmentDelayMs between sends (spec.md §4.F,
// step 9). It returns the first send error, if any.
func emit(injector *inject.Socket, dst netheader.Addr, frags [][]byte, settings Settings) error {
	order := make([]int, len(frags))
	for i := range order {
		order[i] = i
	}
	if settings.Method == MethodSplitReverse || settings.Method == MethodDisorderReverse {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}

	for n, idx := range order {
		if n > 0 && settings.InterFragmentDelayMs > 0 {
			time.Sleep(time.Duration(settings.InterFragmentDelayMs) * time.Millisecond)
		}
		if err := injector.Send(frags[idx], dst); err != nil {
			return fmt.Errorf("bypass: send fragment %d: %w", idx, err)
		}
	}
	return nil
}

// ensureInjector lazily initializes the raw injector (spec.md §4.F, step
// 7). A nil return means init failed and the caller should fail open.
func (e *Engine) ensureInjector() *inject.Socket {
	e.injMu.Lock()
	defer e.injMu.Unlock()

	if e.injector != nil && e.injector.Initialized() {
		return e.injector
	}
	if e.injector == nil {
		e.injector = inject.New()
	}
	if err := e.injector.Init(); err != nil {
		logging.L.WithError(err).Warn("bypass: raw injector init failed, degrading to pass-through")
		return nil
	}
	return e.injector
}
