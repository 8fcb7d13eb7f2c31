package advert

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"golang.org/x/net/ipv4"
)

// Default multicast endpoint.
const (
	DefaultGroup = "224.0.0.1"
	DefaultPort  = 4242
	DefaultTTL   = 1
)

// MulticastConfig describes the advertisement group.
type MulticastConfig struct {
	Group     string
	Port      int
	TTL       int
	Interface string // empty selects the system default
	Loopback  bool
}

func (c MulticastConfig) withDefaults() MulticastConfig {
	if c.Group == "" {
		c.Group = DefaultGroup
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	return c
}

func (c MulticastConfig) address() string {
	return net.JoinHostPort(c.Group, strconv.Itoa(c.Port))
}

func (c MulticastConfig) iface() (*net.Interface, error) {
	if c.Interface == "" {
		return nil, nil //nolint:nilnil // nil selects the default interface
	}
	ifi, err := net.InterfaceByName(c.Interface)
	if err != nil {
		return nil, fmt.Errorf("looking up interface %s: %w", c.Interface, err)
	}
	return ifi, nil
}

// Multicast sends advertisements to a UDP multicast group.
//
// The socket is opened lazily. Any send error discards it so the next Send
// starts from a fresh socket.
type Multicast struct {
	cfg    MulticastConfig
	dst    *net.UDPAddr
	logger Logger

	mu     sync.Mutex
	pc     *ipv4.PacketConn
	closed bool
}

// NewMulticast resolves the group address. No socket is opened yet.
func NewMulticast(cfg MulticastConfig) (*Multicast, error) {
	cfg = cfg.withDefaults()
	dst, err := net.ResolveUDPAddr("udp4", cfg.address())
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", cfg.address(), err)
	}
	return &Multicast{cfg: cfg, dst: dst, logger: noopLogger{}}, nil
}

// SetLogger sets the logger for the sender.
func (m *Multicast) SetLogger(logger Logger) {
	m.logger = logger
}

// Name implements Transport.
func (m *Multicast) Name() string { return "multicast" }

// Send implements Transport.
func (m *Multicast) Send(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.pc == nil {
		pc, err := m.open()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		m.pc = pc
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = m.pc.SetWriteDeadline(deadline)
	}
	if _, err := m.pc.WriteTo(data, nil, m.dst); err != nil {
		m.discard()
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

// Close implements Transport.
func (m *Multicast) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.discard()
	return nil
}

func (m *Multicast) open() (*ipv4.PacketConn, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("opening socket: %w", err)
	}
	pc := ipv4.NewPacketConn(conn)

	if err := pc.SetMulticastTTL(m.cfg.TTL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting multicast ttl: %w", err)
	}
	if err := pc.SetMulticastLoopback(m.cfg.Loopback); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting multicast loopback: %w", err)
	}
	ifi, err := m.cfg.iface()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if ifi != nil {
		if err := pc.SetMulticastInterface(ifi); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setting multicast interface: %w", err)
		}
	}

	m.logger.Debug("advert socket opened", "group", m.dst.String())
	return pc, nil
}

// discard closes the socket. Caller holds mu.
func (m *Multicast) discard() {
	if m.pc == nil {
		return
	}
	if err := m.pc.Close(); err != nil {
		m.logger.Debug("closing advert socket", "error", err)
	}
	m.pc = nil
}
