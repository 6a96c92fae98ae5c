// Package mem holds the MMU-facing wire contracts (spec §6) and a fake
// MMU sufficient to drive the core end to end. The real memory hierarchy
// below the MMU is an external collaborator (spec §1 non-goal); nothing
// here models a cache, a page table walker, or a DRAM timing model.
//
// Grounded on sarchlab-akita/mem/mem/protocol.go's AccessReq/ReadReqBuilder
// pattern for the packet/builder shape.
package mem

import "github.com/jamestiotio/SimEng/internal/akita/sim"

// Kind distinguishes a read request from a write request.
type Kind int

// Recognized packet kinds.
const (
	KindRead Kind = iota
	KindWrite
)

// ReadPacket is a load request sent from the core to the MMU, carrying
// the fields spec §6 requires for ordering and coalescing: the
// originating macro-op's program-order id and which split/order this
// packet is within that macro-op.
type ReadPacket struct {
	sim.MsgMeta

	VAddr         uint64
	Size          uint64
	InsnSeqID     uint64
	PacketOrderID int
	PacketSplitID int
	Atomic        bool
	Untimed       bool
}

// Meta returns the message meta data.
func (p *ReadPacket) Meta() *sim.MsgMeta { return &p.MsgMeta }

// Clone returns a copy of the packet with a fresh message ID.
func (p *ReadPacket) Clone() sim.Msg {
	c := *p
	c.ID = sim.GetIDGenerator().Generate()
	return &c
}

// ReadPacketBuilder builds ReadPacket values.
type ReadPacketBuilder struct {
	src, dst                   sim.RemotePort
	vaddr, size                uint64
	insnSeqID                  uint64
	orderID, splitID           int
	atomic, untimed            bool
}

func (b ReadPacketBuilder) WithSrc(src sim.RemotePort) ReadPacketBuilder { b.src = src; return b }
func (b ReadPacketBuilder) WithDst(dst sim.RemotePort) ReadPacketBuilder { b.dst = dst; return b }
func (b ReadPacketBuilder) WithVAddr(v uint64) ReadPacketBuilder        { b.vaddr = v; return b }
func (b ReadPacketBuilder) WithSize(s uint64) ReadPacketBuilder         { b.size = s; return b }

func (b ReadPacketBuilder) WithInsnSeqID(id uint64) ReadPacketBuilder {
	b.insnSeqID = id
	return b
}

func (b ReadPacketBuilder) WithOrderID(orderID, splitID int) ReadPacketBuilder {
	b.orderID, b.splitID = orderID, splitID
	return b
}

func (b ReadPacketBuilder) Atomic() ReadPacketBuilder   { b.atomic = true; return b }
func (b ReadPacketBuilder) Untimed() ReadPacketBuilder  { b.untimed = true; return b }

// Build creates the ReadPacket.
func (b ReadPacketBuilder) Build() *ReadPacket {
	p := &ReadPacket{}
	p.ID = sim.GetIDGenerator().Generate()
	p.Src, p.Dst = b.src, b.dst
	p.TrafficBytes = int(b.size)
	p.VAddr, p.Size = b.vaddr, b.size
	p.InsnSeqID = b.insnSeqID
	p.PacketOrderID, p.PacketSplitID = b.orderID, b.splitID
	p.Atomic, p.Untimed = b.atomic, b.untimed
	return p
}

// WritePacket is a store request sent from the core to the MMU.
type WritePacket struct {
	sim.MsgMeta

	VAddr         uint64
	Data          []byte
	InsnSeqID     uint64
	PacketOrderID int
	PacketSplitID int
	Atomic        bool
	Untimed       bool
}

func (p *WritePacket) Meta() *sim.MsgMeta { return &p.MsgMeta }

func (p *WritePacket) Clone() sim.Msg {
	c := *p
	c.ID = sim.GetIDGenerator().Generate()
	c.Data = append([]byte(nil), p.Data...)
	return &c
}

// WritePacketBuilder builds WritePacket values.
type WritePacketBuilder struct {
	src, dst         sim.RemotePort
	vaddr            uint64
	data             []byte
	insnSeqID        uint64
	orderID, splitID int
	atomic, untimed  bool
}

func (b WritePacketBuilder) WithSrc(src sim.RemotePort) WritePacketBuilder { b.src = src; return b }
func (b WritePacketBuilder) WithDst(dst sim.RemotePort) WritePacketBuilder { b.dst = dst; return b }
func (b WritePacketBuilder) WithVAddr(v uint64) WritePacketBuilder        { b.vaddr = v; return b }
func (b WritePacketBuilder) WithData(d []byte) WritePacketBuilder         { b.data = d; return b }

func (b WritePacketBuilder) WithInsnSeqID(id uint64) WritePacketBuilder {
	b.insnSeqID = id
	return b
}

func (b WritePacketBuilder) WithOrderID(orderID, splitID int) WritePacketBuilder {
	b.orderID, b.splitID = orderID, splitID
	return b
}

func (b WritePacketBuilder) Atomic() WritePacketBuilder  { b.atomic = true; return b }
func (b WritePacketBuilder) Untimed() WritePacketBuilder { b.untimed = true; return b }

// Build creates the WritePacket.
func (b WritePacketBuilder) Build() *WritePacket {
	p := &WritePacket{}
	p.ID = sim.GetIDGenerator().Generate()
	p.Src, p.Dst = b.src, b.dst
	p.TrafficBytes = len(b.data)
	p.VAddr, p.Data = b.vaddr, b.data
	p.InsnSeqID = b.insnSeqID
	p.PacketOrderID, p.PacketSplitID = b.orderID, b.splitID
	p.Atomic, p.Untimed = b.atomic, b.untimed
	return p
}

// Response is the MMU's reply to a ReadPacket or WritePacket.
type Response struct {
	sim.MsgMeta

	RespondTo string
	Faulty    bool
	Ignored   bool
	Payload   []byte
}

func (r *Response) Meta() *sim.MsgMeta { return &r.MsgMeta }

func (r *Response) Clone() sim.Msg {
	c := *r
	c.ID = sim.GetIDGenerator().Generate()
	c.Payload = append([]byte(nil), r.Payload...)
	return &c
}

// GetRspTo returns the ID of the request this response answers.
func (r *Response) GetRspTo() string { return r.RespondTo }

// ResponseBuilder builds Response values.
type ResponseBuilder struct {
	src, dst       sim.RemotePort
	respondTo      string
	faulty, ignore bool
	payload        []byte
}

func (b ResponseBuilder) WithSrc(src sim.RemotePort) ResponseBuilder { b.src = src; return b }
func (b ResponseBuilder) WithDst(dst sim.RemotePort) ResponseBuilder { b.dst = dst; return b }

func (b ResponseBuilder) WithRespondTo(id string) ResponseBuilder {
	b.respondTo = id
	return b
}

func (b ResponseBuilder) WithPayload(data []byte) ResponseBuilder { b.payload = data; return b }
func (b ResponseBuilder) Faulty() ResponseBuilder                 { b.faulty = true; return b }
func (b ResponseBuilder) Ignored() ResponseBuilder                { b.ignore = true; return b }

// Build creates the Response.
func (b ResponseBuilder) Build() *Response {
	r := &Response{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src, r.Dst = b.src, b.dst
	r.TrafficBytes = len(b.payload)
	r.RespondTo = b.respondTo
	r.Faulty, r.Ignored = b.faulty, b.ignore
	r.Payload = b.payload
	return r
}
