package advert

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
)

const maxDatagram = 65536

// Handler receives a decoded advertisement and the sender's address.
type Handler func(msg Message, from net.IP)

// Listener receives advertisements from the multicast group.
type Listener struct {
	conn   net.PacketConn
	logger Logger
}

// Listen joins the advertisement group.
func Listen(cfg MulticastConfig) (*Listener, error) {
	cfg = cfg.withDefaults()

	conn, err := net.ListenPacket("udp4", cfg.address())
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", cfg.address(), err)
	}

	ifi, err := cfg.iface()
	if err != nil {
		conn.Close()
		return nil, err
	}
	group := net.ParseIP(cfg.Group)
	if err := ipv4.NewPacketConn(conn).JoinGroup(ifi, &net.UDPAddr{IP: group}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("joining group %s: %w", cfg.Group, err)
	}
	return newListener(conn), nil
}

func newListener(conn net.PacketConn) *Listener {
	return &Listener{conn: conn, logger: noopLogger{}}
}

// SetLogger sets the logger for the listener.
func (l *Listener) SetLogger(logger Logger) {
	l.logger = logger
}

// Addr returns the local address the listener is bound to.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Run delivers advertisements to handle until ctx is cancelled. Malformed
// datagrams are logged and skipped. The socket is closed when Run returns.
func (l *Listener) Run(ctx context.Context, handle Handler) error {
	stop := context.AfterFunc(ctx, func() { l.conn.Close() })
	defer stop()
	defer l.conn.Close()

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("reading advertisement: %w", err)
		}

		msg, err := Decode(buf[:n])
		if err != nil {
			l.logger.Debug("ignoring datagram", "from", from.String(), "error", err)
			continue
		}

		var ip net.IP
		if udp, ok := from.(*net.UDPAddr); ok {
			ip = udp.IP
		}
		handle(msg, ip)
	}
}
