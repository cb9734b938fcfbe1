package control

import (
	"context"
	"fmt"
	"sync"

	"github.com/outrider-net/desyncd/internal/bypass"
	"github.com/outrider-net/desyncd/internal/logging"
	"github.com/outrider-net/desyncd/internal/nfqueue"
)

// Command is a decoded control-plane request (spec.md §4.G).
type Command struct {
	Cmd      string           `json:"cmd"`
	Settings *bypass.Settings `json:"settings,omitempty"`
}

// Response is the control-plane's reply to a Command.
type Response struct {
	Status  string                `json:"status"`
	Message string                `json:"message,omitempty"`
	Running bool                  `json:"running,omitempty"`
	Stats   *bypass.StatsSnapshot `json:"stats,omitempty"`
}

// Plane holds the daemon's run state and wires together the firewall
// capability, the queue worker, and the bypass engine.
type Plane struct {
	mu    sync.Mutex
	state State

	queueNum uint16
	mark     uint32
	firewall FirewallManager

	engine *bypass.Engine
	worker *nfqueue.Worker
	done   chan struct{}
}

// NewPlane returns a Plane in state STOPPED.
func NewPlane(queueNum uint16, mark uint32, firewall FirewallManager, engine *bypass.Engine) *Plane {
	return &Plane{queueNum: queueNum, mark: mark, firewall: firewall, engine: engine}
}

// State returns the current run state.
func (p *Plane) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// rules returns the firewall rules this plane's start/stop install and
// remove.
func (p *Plane) rules() Rules {
	return Rules{QueueNum: p.queueNum, Mark: p.mark, Ports: []int{80, 443}}
}

// Dispatch executes cmd against the command table of spec.md §4.G.
func (p *Plane) Dispatch(ctx context.Context, cmd Command) Response {
	switch cmd.Cmd {
	case "start":
		return p.start(ctx)
	case "stop":
		return p.stop(ctx)
	case "status":
		return p.status()
	case "settings":
		return p.applySettings(cmd.Settings)
	case "ping":
		return Response{Status: "ok"}
	case "reset_stats":
		return p.resetStats()
	case "exit":
		resp := p.stop(ctx)
		resp.Message = "exiting"
		return resp
	default:
		return Response{Status: "error", Message: fmt.Sprintf("unknown command %q", cmd.Cmd)}
	}
}

func (p *Plane) start(ctx context.Context) Response {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateRunning {
		return Response{Status: "error", Message: "already running", Running: true}
	}

	rules := p.rules()

	// Idempotency: clear any stale rules left by a previous unclean
	// shutdown before installing fresh ones (spec.md §4.G).
	_ = p.firewall.Remove(ctx, rules)
	if err := p.firewall.Install(ctx, rules); err != nil {
		return Response{Status: "error", Message: fmt.Sprintf("firewall install: %v", err)}
	}

	worker := nfqueue.New(p.queueNum, p.engine.Process)
	if err := worker.Init(); err != nil {
		_ = p.firewall.Remove(ctx, rules)
		return Response{Status: "error", Message: fmt.Sprintf("queue init: %v", err)}
	}

	p.worker = worker
	p.done = make(chan struct{})
	go func(w *nfqueue.Worker, done chan struct{}) {
		defer close(done)
		if err := w.Run(); err != nil {
			logging.L.WithError(err).Error("control: queue worker exited")
		}
	}(worker, p.done)

	p.state = StateRunning
	return Response{Status: "ok", Running: true}
}

func (p *Plane) stop(ctx context.Context) Response {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateRunning {
		return Response{Status: "ok", Running: false}
	}

	p.worker.Stop()
	<-p.done
	if err := p.worker.Cleanup(); err != nil {
		logging.L.WithError(err).Warn("control: queue cleanup failed")
	}
	if err := p.engine.Close(); err != nil {
		logging.L.WithError(err).Warn("control: injector close failed")
	}

	if err := p.firewall.Remove(ctx, p.rules()); err != nil {
		logging.L.WithError(err).Error("control: firewall remove failed")
	}

	p.state = StateStopped
	p.worker = nil
	return Response{Status: "ok", Running: false}
}

func (p *Plane) status() Response {
	p.mu.Lock()
	running := p.state == StateRunning
	p.mu.Unlock()

	stats := p.engine.Stats()
	return Response{Status: "ok", Running: running, Stats: &stats}
}

func (p *Plane) resetStats() Response {
	p.engine.ResetStats()
	return Response{Status: "ok"}
}

func (p *Plane) applySettings(s *bypass.Settings) Response {
	if s == nil {
		return Response{Status: "error", Message: "missing settings"}
	}
	p.engine.SetSettings(*s)
	return Response{Status: "ok"}
}
