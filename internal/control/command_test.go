package control_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outrider-net/desyncd/internal/bypass"
	"github.com/outrider-net/desyncd/internal/classify"
	"github.com/outrider-net/desyncd/internal/control"
	"github.com/outrider-net/desyncd/internal/firewall"
	"github.com/outrider-net/desyncd/internal/nfqueue"
)

func TestDispatchPing(t *testing.T) {
	plane := control.NewPlane(0, 0, &firewall.Recorder{}, bypass.NewEngine(bypass.DefaultSettings(), classify.NewWhitelist()))
	resp := plane.Dispatch(context.Background(), control.Command{Cmd: "ping"})
	assert.Equal(t, "ok", resp.Status)
}

func TestDispatchUnknownCommand(t *testing.T) {
	plane := control.NewPlane(0, 0, &firewall.Recorder{}, bypass.NewEngine(bypass.DefaultSettings(), classify.NewWhitelist()))
	resp := plane.Dispatch(context.Background(), control.Command{Cmd: "frobnicate"})
	assert.Equal(t, "error", resp.Status)
}

func TestDispatchStatusBeforeStart(t *testing.T) {
	plane := control.NewPlane(0, 0, &firewall.Recorder{}, bypass.NewEngine(bypass.DefaultSettings(), classify.NewWhitelist()))
	resp := plane.Dispatch(context.Background(), control.Command{Cmd: "status"})
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.Running)
	require.NotNil(t, resp.Stats)
}

func TestDispatchSettingsRequiresBody(t *testing.T) {
	plane := control.NewPlane(0, 0, &firewall.Recorder{}, bypass.NewEngine(bypass.DefaultSettings(), classify.NewWhitelist()))
	resp := plane.Dispatch(context.Background(), control.Command{Cmd: "settings"})
	assert.Equal(t, "error", resp.Status)
}

func TestDispatchSettingsAppliesValue(t *testing.T) {
	engine := bypass.NewEngine(bypass.DefaultSettings(), classify.NewWhitelist())
	plane := control.NewPlane(0, 0, &firewall.Recorder{}, engine)

	newSettings := bypass.DefaultSettings()
	newSettings.Method = bypass.MethodDisorder
	resp := plane.Dispatch(context.Background(), control.Command{Cmd: "settings", Settings: &newSettings})

	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, bypass.MethodDisorder, engine.Settings().Method)
}

func TestDispatchResetStatsZeroesCounters(t *testing.T) {
	engine := bypass.NewEngine(bypass.DefaultSettings(), classify.NewWhitelist())
	plane := control.NewPlane(0, 0, &firewall.Recorder{}, engine)

	engine.Process(nfqueue.Packet{Payload: []byte{0x45, 0x00, 0x00, 0x14}})
	require.NotZero(t, engine.Stats().PacketsTotal)

	resp := plane.Dispatch(context.Background(), control.Command{Cmd: "reset_stats"})
	assert.Equal(t, "ok", resp.Status)
	assert.Zero(t, engine.Stats().PacketsTotal)
	assert.Zero(t, engine.Stats().BytesTotal)
}

func TestDispatchStopWhenAlreadyStoppedIsNoop(t *testing.T) {
	rec := &firewall.Recorder{}
	plane := control.NewPlane(0, 0, rec, bypass.NewEngine(bypass.DefaultSettings(), classify.NewWhitelist()))

	resp := plane.Dispatch(context.Background(), control.Command{Cmd: "stop"})
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.Running)
	assert.Empty(t, rec.Removed, "stop on an already-stopped plane must not touch the firewall")
}
