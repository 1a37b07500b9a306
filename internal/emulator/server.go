package emulator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifican/internal/config"
	"github.com/muurk/wifican/internal/logging"
	"github.com/muurk/wifican/internal/periodic"
	"github.com/muurk/wifican/internal/protocol"
)

const (
	// DefaultMaxClients matches the Pico W socket limit
	DefaultMaxClients = 4

	// DefaultHeartbeatPeriod is how often the firmware announces itself
	DefaultHeartbeatPeriod = 500 * time.Millisecond

	// writeTimeout bounds a send to one slow client
	writeTimeout = 2 * time.Second

	// scanBuffer must exceed protocol.MaxPending
	scanBuffer = 4 * protocol.MaxPending
)

// DefaultHeartbeat is the version frame the firmware broadcasts (v1.0.0).
var DefaultHeartbeat = protocol.Message{ID: 0x1FFFFF22, Extended: true, Data: []byte{1, 0, 0}}

// Config holds the emulator configuration
type Config struct {
	Host       string
	Port       int
	MaxClients int

	// Echo sends a client's frames back to it as well as to the others.
	// The real gateway never does this.
	Echo bool

	// HeartbeatPeriod of zero disables the heartbeat.
	HeartbeatPeriod time.Duration
	Heartbeat       protocol.Message

	// Traffic frames are broadcast as if received from the CAN bus.
	Traffic []config.PeriodicMessage
}

// DefaultConfig returns an emulator listening on the gateway port.
func DefaultConfig() *Config {
	return &Config{
		Port:            config.DefaultPort,
		MaxClients:      DefaultMaxClients,
		HeartbeatPeriod: DefaultHeartbeatPeriod,
		Heartbeat:       DefaultHeartbeat,
	}
}

// Option configures a Server.
type Option func(*Server)

// WithOnFrame registers a callback for every frame received from a
// client. msg is the zero Message and err is set when the frame does
// not decode.
func WithOnFrame(fn func(from string, frame []byte, msg protocol.Message, err error)) Option {
	return func(s *Server) { s.onFrame = fn }
}

// WithClock sets the clock used by the heartbeat and traffic transmitters.
func WithClock(c periodic.Clock) Option {
	return func(s *Server) { s.clock = c }
}

type peer struct {
	addr string
	conn net.Conn
	wmu  sync.Mutex
}

func (p *peer) send(frame []byte) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := p.conn.Write(frame)
	return err
}

// Server is an emulated gateway
type Server struct {
	config  *Config
	onFrame func(string, []byte, protocol.Message, error)
	clock   periodic.Clock

	listener net.Listener
	bus      *periodic.Group
	wg       sync.WaitGroup

	mu    sync.Mutex
	peers map[string]*peer

	frames    atomic.Uint64
	malformed atomic.Uint64
	rejected  atomic.Uint64
}

// New creates a new Server instance
func New(cfg *Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port %d out of range 0-65535", cfg.Port)
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = DefaultMaxClients
	}
	if cfg.HeartbeatPeriod < 0 {
		return nil, fmt.Errorf("heartbeat period must not be negative")
	}
	if cfg.HeartbeatPeriod > 0 {
		if err := cfg.Heartbeat.Validate(); err != nil {
			return nil, fmt.Errorf("heartbeat: %w", err)
		}
	}

	s := &Server{
		config: cfg,
		clock:  periodic.SystemClock{},
		peers:  make(map[string]*peer),
	}
	for _, opt := range opts {
		opt(s)
	}

	bus, err := s.buildBus()
	if err != nil {
		return nil, err
	}
	s.bus = bus
	return s, nil
}

// buildBus creates one transmitter per simulated bus frame, all writing
// to every connected client.
func (s *Server) buildBus() (*periodic.Group, error) {
	group := periodic.NewGroup()
	out := broadcaster{s}

	if s.config.HeartbeatPeriod > 0 {
		hb := s.config.Heartbeat
		tx, err := periodic.New(&hb, s.config.HeartbeatPeriod, out,
			periodic.WithName("heartbeat"),
			periodic.WithClock(s.clock),
		)
		if err != nil {
			return nil, err
		}
		group.Add(tx)
	}

	for i, pm := range s.config.Traffic {
		msg, err := pm.Message()
		if err != nil {
			return nil, fmt.Errorf("traffic %d (%s): %w", i, pm.DisplayName(), err)
		}
		tx, err := periodic.New(&msg, pm.Period.D(), out,
			periodic.WithName("bus/"+pm.DisplayName()),
			periodic.WithClock(s.clock),
		)
		if err != nil {
			return nil, fmt.Errorf("traffic %d (%s): %w", i, pm.DisplayName(), err)
		}
		group.Add(tx)
	}
	return group, nil
}

// Listen opens the TCP listener. Serve must be called afterwards.
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	logging.Info("Gateway emulator listening",
		zap.String("addr", listener.Addr().String()),
		zap.Int("max_clients", s.config.MaxClients),
		zap.Bool("echo", s.config.Echo),
		zap.Duration("heartbeat", s.config.HeartbeatPeriod),
	)
	return nil
}

// Addr returns the listening address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts clients until ctx is done, then shuts down.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("emulator is not listening")
	}

	if err := s.bus.Start(); err != nil {
		return fmt.Errorf("start bus traffic: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.acceptConnections()
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutdown requested, stopping emulator...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		_ = s.Shutdown(context.Background())
		return err
	}
}

// ListenAndServe combines Listen and Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// acceptConnections accepts and handles incoming connections
func (s *Server) acceptConnections() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection relays frames from one client until it disconnects
func (s *Server) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()
	p := &peer{addr: remoteAddr, conn: conn}

	s.mu.Lock()
	if len(s.peers) >= s.config.MaxClients {
		s.mu.Unlock()
		s.rejected.Add(1)
		logging.Warn("Client slots full, dropping connection",
			zap.String("remote_addr", remoteAddr),
			zap.Int("max_clients", s.config.MaxClients),
		)
		_ = conn.Close()
		return
	}
	s.peers[remoteAddr] = p
	s.mu.Unlock()

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.peers, remoteAddr)
		s.mu.Unlock()
		logging.LogConnection(remoteAddr, "disconnected")
	}()

	logging.LogConnection(remoteAddr, "connected")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, protocol.MaxFrameLen*4), scanBuffer)
	scanner.Split(protocol.SplitFrames)

	for scanner.Scan() {
		frame := append([]byte(nil), scanner.Bytes()...)
		s.frames.Add(1)
		logging.LogFrame("received", remoteAddr, frame)

		msg, err := protocol.Decode(frame)
		if err != nil {
			s.malformed.Add(1)
			logging.Debug("Relaying malformed frame",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
		}
		if s.onFrame != nil {
			s.onFrame(remoteAddr, frame, msg, err)
		}

		except := remoteAddr
		if s.config.Echo {
			except = ""
		}
		s.broadcast(frame, except)
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		logging.Warn("Client read error",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
	}
}

// broadcast sends frame to every client except the one at except.
// Clients that fail to accept the write are disconnected.
func (s *Server) broadcast(frame []byte, except string) {
	s.mu.Lock()
	targets := make([]*peer, 0, len(s.peers))
	for addr, p := range s.peers {
		if addr != except {
			targets = append(targets, p)
		}
	}
	s.mu.Unlock()

	for _, p := range targets {
		if err := p.send(frame); err != nil {
			logging.Warn("Dropping client after failed write",
				zap.String("remote_addr", p.addr),
				zap.Error(err),
			)
			_ = p.conn.Close()
		}
	}
}

// broadcaster adapts the server to io.Writer for the bus transmitters.
// Writes never fail; a dead client is dropped instead.
type broadcaster struct {
	s *Server
}

func (b broadcaster) Write(p []byte) (int, error) {
	b.s.broadcast(p, "")
	return len(p), nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.bus.StopAll()

	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logging.Error("Error closing listener", zap.Error(err))
		}
	}

	s.mu.Lock()
	for addr, p := range s.peers {
		logging.Debug("Closing client connection", zap.String("remote_addr", addr))
		_ = p.conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("Emulator stopped",
			zap.Uint64("frames", s.frames.Load()),
			zap.Uint64("malformed", s.malformed.Load()),
		)
		return nil
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
		return ctx.Err()
	}
}

// Clients returns the number of connected clients
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Stats is a snapshot of emulator counters.
type Stats struct {
	Clients   int
	Frames    uint64
	Malformed uint64
	Rejected  uint64
	Broadcast uint64
}

// Stats returns the current counters.
func (s *Server) Stats() Stats {
	return Stats{
		Clients:   s.Clients(),
		Frames:    s.frames.Load(),
		Malformed: s.malformed.Load(),
		Rejected:  s.rejected.Load(),
		Broadcast: s.bus.Sent(),
	}
}
