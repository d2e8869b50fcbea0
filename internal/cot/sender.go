package cot

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/net/ipv4"
)

// minResendInterval is the flood-control guard: repeated sends for the same
// identity key within this window are silently dropped.
const minResendInterval = time.Second

// StatusFunc receives human-readable transport status lines (sent/failed).
type StatusFunc func(status string)

// WithSenderLogger sets the logger for the sender
func WithSenderLogger(logger *slog.Logger) func(s *Sender) {
	return func(s *Sender) {
		s.logger = logger
	}
}

// WithStatusFunc sets a callback for transport status events.
func WithStatusFunc(fn StatusFunc) func(s *Sender) {
	return func(s *Sender) {
		s.status = fn
	}
}

// WithSenderClock overrides the sender's time source, for tests.
func WithSenderClock(now func() time.Time) func(s *Sender) {
	return func(s *Sender) {
		s.now = now
	}
}

// Sender delivers CoT payloads over UDP with per-identity rate limiting.
// The socket is created lazily and recreated after errors or configuration
// changes. Transport failures are reported as status events and never
// propagate: a dead network must not stall frame processing.
type Sender struct {
	mu sync.Mutex

	config Config

	conn net.PacketConn
	dst  *net.UDPAddr

	lastSent map[string]time.Time

	localIP       string
	localIPCached bool

	logger *slog.Logger
	status StatusFunc
	now    func() time.Time

	// probe is the outbound-route detector, replaceable in tests.
	probe func() string
}

// NewSender creates a sender for the given configuration.
func NewSender(config Config, options ...func(s *Sender)) *Sender {
	s := Sender{
		config:   config,
		lastSent: make(map[string]time.Time),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		probe:    detectPreferredLocalIP,
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// UpdateConfig replaces the transport configuration, dropping the cached
// socket and auto-detected local IP so the next send rebuilds both.
func (s *Sender) UpdateConfig(config Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config = config
	s.localIPCached = false
	s.localIP = ""
	s.resetSocket()
}

// Config returns the current transport configuration.
func (s *Sender) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// SendDetection resolves the detection's identity, renders the marker and
// sends it, subject to the per-identity rate limit. A disabled sender is a
// no-op.
func (s *Sender) SendDetection(d Detection, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.config.Enabled {
		return
	}

	callsign, uid := s.config.Identity(d.FreqMHz)

	now := s.now()
	if last, ok := s.lastSent[uid]; ok && now.Sub(last) < minResendInterval {
		return
	}
	s.lastSent[uid] = now

	payload, err := BuildEvent(s.config, uid, callsign, d.Remarks(), at)
	if err != nil {
		s.report(fmt.Sprintf("Encoding failed: %v", err))
		return
	}

	// Errors are reported inside sendLocked; detection sends stay quiet on
	// success to avoid status spam.
	s.sendLocked(payload, false, "")
}

// SendTest sends a marker with the static identity so the operator can
// verify connectivity end to end.
func (s *Sender) SendTest() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.config.Enabled {
		s.report("Sender is disabled (enable it to send)")
		return
	}

	payload, err := BuildEvent(s.config, s.config.StaticUID, s.config.StaticCallsign,
		"CoT test from RF watchdog", s.now())
	if err != nil {
		s.report(fmt.Sprintf("Encoding failed: %v", err))
		return
	}

	s.sendLocked(payload, true, "Test sent")
}

// ResolveLocalIP returns the local IP that outbound multicast will use,
// best-effort. Explicit configuration wins; otherwise a one-time route
// probe is cached until the configuration changes.
func (s *Sender) ResolveLocalIP() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocalIPLocked()
}

func (s *Sender) resolveLocalIPLocked() string {
	if s.config.BindLocalIP != "" {
		return s.config.BindLocalIP
	}

	if !s.localIPCached {
		s.localIP = s.probe()
		s.localIPCached = true
	}
	return s.localIP
}

func (s *Sender) sendLocked(payload []byte, reportSuccess bool, successLabel string) {
	conn, dst, err := s.socketLocked()
	if err != nil {
		s.report(fmt.Sprintf("Send failed: %v (to %s)", err, s.destLabel()))
		s.resetSocket()
		return
	}

	if _, err = conn.WriteTo(payload, dst); err != nil {
		s.report(fmt.Sprintf("Send failed: %v (to %s)", err, s.destLabel()))
		s.resetSocket()
		return
	}

	if reportSuccess {
		s.report(fmt.Sprintf("%s to %s", successLabel, s.destLabel()))
	}
}

// socketLocked returns the cached socket, creating it on first use. For
// multicast destinations the TTL and, when an outbound IP is known, the
// outbound interface are set before the first send.
func (s *Sender) socketLocked() (net.PacketConn, *net.UDPAddr, error) {
	if s.conn != nil {
		return s.conn, s.dst, nil
	}

	dst, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port)))
	if err != nil {
		return nil, nil, fmt.Errorf("resolving destination: %w", err)
	}

	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, nil, fmt.Errorf("creating socket: %w", err)
	}

	if dst.IP.IsMulticast() {
		p := ipv4.NewPacketConn(conn)

		if err = p.SetMulticastTTL(s.config.MulticastTTL); err != nil {
			s.logger.Warn(fmt.Sprintf("setting multicast TTL: %s", err.Error()))
		}

		if localIP := s.resolveLocalIPLocked(); localIP != "" {
			if ifi := interfaceByIP(localIP); ifi != nil {
				if err = p.SetMulticastInterface(ifi); err != nil {
					s.logger.Warn(fmt.Sprintf("setting multicast interface: %s", err.Error()),
						slog.String("localIP", localIP))
				}
			}
		}
	}

	s.conn = conn
	s.dst = dst
	return conn, dst, nil
}

func (s *Sender) resetSocket() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.dst = nil
}

// Close releases the socket. The sender can still be used afterwards; the
// next send recreates the socket.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetSocket()
	return nil
}

func (s *Sender) destLabel() string {
	label := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	if via := s.resolveLocalIPLocked(); via != "" {
		label += " via " + via
	}
	return label
}

func (s *Sender) report(status string) {
	s.logger.Info(status)
	if s.status != nil {
		s.status(status)
	}
}
