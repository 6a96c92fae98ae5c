package sim_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jamestiotio/SimEng/internal/akita/sim"
)

// fakeEngine is a hand-written Engine fake, used in place of the
// generated mocks the original akita test suite relied on.
type fakeEngine struct {
	sim.HookableBase
	now       sim.VTimeInSec
	scheduled []sim.Event
}

func (e *fakeEngine) CurrentTime() sim.VTimeInSec { return e.now }
func (e *fakeEngine) Schedule(evt sim.Event)       { e.scheduled = append(e.scheduled, evt) }
func (e *fakeEngine) Run() error                   { return nil }
func (e *fakeEngine) Pause()                       {}
func (e *fakeEngine) Continue()                    {}
func (e *fakeEngine) RegisterSimulationEndHandler(sim.SimulationEndHandler) {}
func (e *fakeEngine) Finished()                    {}

type fakeTicker struct {
	returns []bool
	calls   int
}

func (t *fakeTicker) Tick() bool {
	if t.calls >= len(t.returns) {
		return false
	}
	r := t.returns[t.calls]
	t.calls++
	return r
}

type fakeComponent struct {
	*sim.ComponentBase
	recvCount      int
	portFreeCount  int
}

func newFakeComponent(name string) *fakeComponent {
	return &fakeComponent{ComponentBase: sim.NewComponentBase(name)}
}

func (c *fakeComponent) Handle(sim.Event) error { return nil }
func (c *fakeComponent) NotifyRecv(sim.Port)     { c.recvCount++ }
func (c *fakeComponent) NotifyPortFree(sim.Port) { c.portFreeCount++ }

var _ = Describe("Buffer", func() {
	It("should push and pop in FIFO order", func() {
		buf := sim.NewBuffer("Buf", 2)

		Expect(buf.CanPush()).To(BeTrue())
		buf.Push(1)
		buf.Push(2)
		Expect(buf.CanPush()).To(BeFalse())

		Expect(buf.Peek()).To(Equal(1))
		Expect(buf.Pop()).To(Equal(1))
		Expect(buf.Pop()).To(Equal(2))
		Expect(buf.Pop()).To(BeNil())
	})

	It("should panic on overflow", func() {
		buf := sim.NewBuffer("Buf", 1)
		buf.Push(1)
		Expect(func() { buf.Push(2) }).To(Panic())
	})

	It("should clear all elements", func() {
		buf := sim.NewBuffer("Buf", 4)
		buf.Push(1)
		buf.Push(2)
		buf.Clear()
		Expect(buf.Size()).To(Equal(0))
	})
})

var _ = Describe("Freq", func() {
	It("should compute the period", func() {
		Expect(sim.GHz.Period()).To(BeNumerically("~", 1e-9, 1e-15))
	})

	It("should round a cycle count", func() {
		Expect(sim.Freq(1).Cycle(3.4)).To(Equal(uint64(3)))
	})
})

var _ = Describe("TickingComponent", func() {
	var (
		engine *fakeEngine
		ticker *fakeTicker
		tc     *sim.TickingComponent
	)

	BeforeEach(func() {
		engine = &fakeEngine{}
		ticker = &fakeTicker{}
		tc = sim.NewTickingComponent("TC", engine, sim.Freq(1), ticker)
	})

	It("should schedule a tick when notified of a receive", func() {
		tc.NotifyRecv(nil)
		Expect(engine.scheduled).To(HaveLen(1))
	})

	It("should reschedule when the ticker makes progress", func() {
		ticker.returns = []bool{true}
		evt := sim.MakeTickEvent(tc, 0)
		Expect(tc.Handle(evt)).To(Succeed())
		Expect(engine.scheduled).To(HaveLen(1))
	})

	It("should not reschedule when no progress is made", func() {
		ticker.returns = []bool{false}
		evt := sim.MakeTickEvent(tc, 0)
		Expect(tc.Handle(evt)).To(Succeed())
		Expect(engine.scheduled).To(HaveLen(0))
	})
})

var _ = Describe("Port", func() {
	var (
		comp *fakeComponent
		dst  *fakeComponent
		src  sim.Port
		dstP sim.Port
	)

	BeforeEach(func() {
		comp = newFakeComponent("Src")
		dst = newFakeComponent("Dst")
		src = sim.NewPort(comp, 4, 4, "Src.Out")
		dstP = sim.NewPort(dst, 4, 4, "Dst.In")
	})

	It("should deliver to the owning component", func() {
		msg := &sim.GeneralRsp{}
		msg.Src = src.AsRemote()
		msg.Dst = dstP.AsRemote()

		Expect(dstP.Deliver(msg)).To(BeNil())
		Expect(dst.recvCount).To(Equal(1))
		Expect(dstP.PeekIncoming()).To(BeIdenticalTo(sim.Msg(msg)))
	})

	It("should reject delivery into a full incoming buffer", func() {
		full := sim.NewPort(dst, 1, 1, "Dst.Full")
		msg1 := &sim.GeneralRsp{}
		msg1.Src = src.AsRemote()
		msg1.Dst = full.AsRemote()
		msg2 := &sim.GeneralRsp{}
		msg2.Src = src.AsRemote()
		msg2.Dst = full.AsRemote()

		Expect(full.Deliver(msg1)).To(BeNil())
		Expect(full.Deliver(msg2)).NotTo(BeNil())
	})
})

var _ = Describe("EventQueue", func() {
	It("should pop events in time order", func() {
		q := sim.NewEventQueue()
		q.Push(sim.MakeTickEvent(nil, 3))
		q.Push(sim.MakeTickEvent(nil, 1))
		q.Push(sim.MakeTickEvent(nil, 2))

		Expect(q.Pop().Time()).To(Equal(sim.VTimeInSec(1)))
		Expect(q.Pop().Time()).To(Equal(sim.VTimeInSec(2)))
		Expect(q.Pop().Time()).To(Equal(sim.VTimeInSec(3)))
	})
})
