package firewall

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/outrider-net/desyncd/internal/control"
)

func TestIPTablesInstallSucceedsWithStubBinary(t *testing.T) {
	fw := &IPTables{Binary: "true"}
	rules := control.Rules{QueueNum: 1, Mark: 0x0010DEAD, Ports: []int{80, 443}}

	assert.NoError(t, fw.Install(context.Background(), rules))
	assert.NoError(t, fw.Remove(context.Background(), rules))
}

func TestIPTablesInstallFailsWithBrokenBinary(t *testing.T) {
	fw := &IPTables{Binary: "false"}
	rules := control.Rules{QueueNum: 1, Mark: 0x0010DEAD, Ports: []int{80}}

	err := fw.Install(context.Background(), rules)
	assert.Error(t, err)
}

func TestIPTablesDefaultsBinaryName(t *testing.T) {
	fw := &IPTables{}
	assert.Equal(t, "iptables", fw.binary())
}
