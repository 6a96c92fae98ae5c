package mem_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamestiotio/SimEng/internal/akita/sim"
	"github.com/jamestiotio/SimEng/internal/mem"
)

type fakeComponent struct {
	*sim.ComponentBase
	recvd []sim.Port
}

func newFakeComponent(name string) *fakeComponent {
	return &fakeComponent{ComponentBase: sim.NewComponentBase(name)}
}

func (c *fakeComponent) Handle(sim.Event) error         { return nil }
func (c *fakeComponent) NotifyRecv(p sim.Port)          { c.recvd = append(c.recvd, p) }
func (c *fakeComponent) NotifyPortFree(sim.Port)        {}

func TestDirectConnectionDeliversOnSend(t *testing.T) {
	core := newFakeComponent("Core")
	mmu := newFakeComponent("Mmu")

	corePort := sim.NewPort(core, 4, 4, "Core.ToMMU")
	mmuPort := sim.NewPort(mmu, 4, 4, "Mmu.ToCore")
	core.AddPort("ToMMU", corePort)
	mmu.AddPort("ToCore", mmuPort)

	conn := mem.NewDirectConnection("wire")
	conn.PlugIn(corePort)
	conn.PlugIn(mmuPort)

	req := mem.ReadPacketBuilder{}.
		WithSrc(corePort.AsRemote()).
		WithDst(mmuPort.AsRemote()).
		WithVAddr(0x1000).
		WithSize(8).
		Build()

	require.Nil(t, corePort.Send(req))

	assert.Same(t, mmuPort, func() sim.Port {
		require.Len(t, mmu.recvd, 1)
		return mmu.recvd[0]
	}())

	got := mmuPort.PeekIncoming()
	require.NotNil(t, got)
	assert.Equal(t, req.Meta().ID, got.Meta().ID)
}
