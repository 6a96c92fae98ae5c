package mem

import "github.com/jamestiotio/SimEng/internal/akita/sim"

// DirectConnection is a fixed point-to-point wire between exactly two
// ports, delivering messages with no added latency of its own (the MMU
// models translation/access latency itself; the wire is zero-cost).
//
// A fresh minimal replacement for the teacher's directconnection.go,
// which was snapshotted from an incompatible generation of the
// framework (see DESIGN.md) — this one follows the RemotePort-as-string
// messaging and PlugIn/Unplug/NotifyAvailable/NotifySend contract the
// rest of internal/akita/sim uses.
type DirectConnection struct {
	sim.HookableBase

	name  string
	ports []sim.Port
}

// NewDirectConnection creates an unplugged direct connection.
func NewDirectConnection(name string) *DirectConnection {
	return &DirectConnection{name: name}
}

// Name returns the connection's name.
func (c *DirectConnection) Name() string { return c.name }

// PlugIn attaches a port to the connection. A DirectConnection accepts
// at most two ports.
func (c *DirectConnection) PlugIn(port sim.Port) {
	if len(c.ports) >= 2 {
		panic("mem: direct connection already has two ports plugged in")
	}
	port.SetConnection(c)
	c.ports = append(c.ports, port)
}

// Unplug removes a port from the connection.
func (c *DirectConnection) Unplug(port sim.Port) {
	for i, p := range c.ports {
		if p == port {
			c.ports = append(c.ports[:i], c.ports[i+1:]...)
			return
		}
	}
}

// NotifyAvailable is a no-op: a direct connection never buffers, so
// there is nothing to flush once a port frees up space.
func (c *DirectConnection) NotifyAvailable(port sim.Port) {}

// NotifySend drains every port's outgoing buffer into whichever of the
// two plugged ports is the message's destination.
func (c *DirectConnection) NotifySend() {
	for _, src := range c.ports {
		for {
			msg := src.PeekOutgoing()
			if msg == nil {
				break
			}

			dst := c.other(src, msg.Meta().Dst)
			if dst == nil {
				break
			}

			if err := dst.Deliver(msg); err != nil {
				break
			}

			src.RetrieveOutgoing()
		}
	}
}

func (c *DirectConnection) other(src sim.Port, dst sim.RemotePort) sim.Port {
	for _, p := range c.ports {
		if p != src && p.AsRemote() == dst {
			return p
		}
	}
	return nil
}
