package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/wifican/internal/config"
	"github.com/muurk/wifican/internal/logging"
	"github.com/muurk/wifican/internal/periodic"
	"github.com/muurk/wifican/internal/protocol"
	"github.com/muurk/wifican/internal/sink"
)

const (
	// DefaultReadBufferSize is the largest chunk taken from the socket per read
	DefaultReadBufferSize = 1024

	// DialRetryDelay is the pause between connection attempts
	DialRetryDelay = 500 * time.Millisecond

	// stopGrace bounds how long Run waits for transmitters to exit
	stopGrace = 2 * time.Second
)

var (
	// ErrNotConnected is returned by Run before a successful Dial
	ErrNotConnected = errors.New("not connected")
	// ErrReadTimeout is returned when the gateway sends nothing for ReadTimeout
	ErrReadTimeout = errors.New("read timeout")
	// ErrConnectionClosed is returned when the gateway closes the connection
	ErrConnectionClosed = errors.New("connection closed by gateway")
	// ErrTransmitFailed wraps a transmitter write error when FailFast is set
	ErrTransmitFailed = errors.New("transmit failed")
	// ErrAlreadyRunning is returned by a second Run on the same session
	ErrAlreadyRunning = errors.New("session already ran")
)

// Config holds everything a session needs.
type Config struct {
	Host           string
	Port           int
	DialTimeout    time.Duration
	ReadTimeout    time.Duration
	DialAttempts   int
	ReadBufferSize int
	Messages       []config.PeriodicMessage

	// FailFast ends the session on the first transmitter write error.
	// When false a failing transmitter stops alone and the session
	// keeps receiving.
	FailFast bool
}

// FromConfig builds a session Config from a loaded configuration file.
func FromConfig(c *config.Config) Config {
	return Config{
		Host:         c.Gateway.Host,
		Port:         c.Gateway.Port,
		DialTimeout:  c.Gateway.DialTimeout.D(),
		ReadTimeout:  c.Gateway.ReadTimeout.D(),
		DialAttempts: c.Gateway.DialAttempts,
		Messages:     c.Messages,
	}
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Option configures a Session.
type Option func(*Session)

// WithOnReceive registers a callback run for every chunk read from the
// gateway. The slice is only valid for the duration of the call.
func WithOnReceive(fn func(data []byte)) Option {
	return func(s *Session) { s.onReceive = fn }
}

// WithFormatter replaces the function that turns a received chunk into
// the printed line.
func WithFormatter(fn func(data []byte) string) Option {
	return func(s *Session) { s.format = fn }
}

// WithClock sets the clock used by every transmitter.
func WithClock(c periodic.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// withSink wraps the writer the transmitters share.
func withSink(wrap func(io.Writer) io.Writer) Option {
	return func(s *Session) { s.wrapSink = wrap }
}

type scheduled struct {
	name   string
	msg    protocol.Message
	period time.Duration
}

// Session is one connection to a gateway.
type Session struct {
	cfg       Config
	schedule  []scheduled
	onReceive func([]byte)
	format    func([]byte) string
	clock     periodic.Clock
	wrapSink  func(io.Writer) io.Writer

	mu      sync.Mutex
	conn    net.Conn
	counter *sink.Counting
	group   *periodic.Group
	ran     bool

	bytesReceived atomic.Uint64
	reads         atomic.Uint64
}

// New validates cfg and prepares a session. Nothing is dialed yet.
func New(cfg Config, opts ...Option) (*Session, error) {
	if cfg.Host == "" {
		return nil, errors.New("host is required")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port %d out of range 1-65535", cfg.Port)
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = config.DefaultReadTimeout
	}
	if cfg.DialAttempts < 1 {
		cfg.DialAttempts = config.DefaultDialAttempts
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultReadBufferSize
	}

	s := &Session{
		cfg:    cfg,
		format: FormatReceived,
		clock:  periodic.SystemClock{},
	}
	for i, pm := range cfg.Messages {
		msg, err := pm.Message()
		if err != nil {
			return nil, fmt.Errorf("message %d (%s): %w", i, pm.DisplayName(), err)
		}
		if pm.Period <= 0 {
			return nil, fmt.Errorf("message %d (%s): %w", i, pm.DisplayName(), periodic.ErrInvalidPeriod)
		}
		s.schedule = append(s.schedule, scheduled{
			name:   pm.DisplayName(),
			msg:    msg,
			period: pm.Period.D(),
		})
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the effective session configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// FormatReceived renders a received chunk as printed by Run.
func FormatReceived(data []byte) string {
	return fmt.Sprintf("Received: %q", data)
}

// Dial connects to the gateway, trying up to DialAttempts times.
func (s *Session) Dial(ctx context.Context) error {
	addr := s.cfg.Address()
	dialer := &net.Dialer{Timeout: s.cfg.DialTimeout}

	var conn net.Conn
	err := retry.Do(func() error {
		c, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		conn = c
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(uint(s.cfg.DialAttempts)),
		retry.Delay(DialRetryDelay),
		retry.OnRetry(func(n uint, err error) {
			logging.Warn("Dial failed, retrying",
				zap.String("addr", addr),
				zap.Uint("attempt", n+1),
				zap.Error(err),
			)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.counter = sink.NewCounting(conn)
	s.mu.Unlock()

	logging.LogConnection(conn.RemoteAddr().String(), "connected")
	return nil
}

// Close closes the connection. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	logging.LogConnection(conn.RemoteAddr().String(), "closed")
	return conn.Close()
}

// Run starts the transmitters and prints received data to out until ctx
// ends, the read times out or the connection drops. A nil out discards
// the printed lines. Run stops every transmitter before returning and
// may only be called once per session.
func (s *Session) Run(ctx context.Context, out io.Writer) error {
	s.mu.Lock()
	conn, counter := s.conn, s.counter
	if conn == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if s.ran {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.ran = true

	var w io.Writer = counter
	if s.wrapSink != nil {
		w = s.wrapSink(w)
	}
	shared := sink.NewLocked(w)
	group := periodic.NewGroup()
	for i := range s.schedule {
		sc := &s.schedule[i]
		tx, err := periodic.New(&sc.msg, sc.period, shared,
			periodic.WithName(sc.name),
			periodic.WithClock(s.clock),
		)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("create transmitter %s: %w", sc.name, err)
		}
		group.Add(tx)
	}
	s.group = group
	s.mu.Unlock()

	if out == nil {
		out = io.Discard
	}

	if err := group.Start(); err != nil {
		return err
	}
	defer s.stopTransmitters(group)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return s.receive(egCtx, conn, out)
	})

	// Unblock a pending read once the session is over.
	eg.Go(func() error {
		<-egCtx.Done()
		_ = conn.SetReadDeadline(time.Now())
		return nil
	})

	if s.cfg.FailFast {
		failures := group.FirstFailure()
		eg.Go(func() error {
			select {
			case err, ok := <-failures:
				if ok {
					return fmt.Errorf("%w: %w", ErrTransmitFailed, err)
				}
				return nil
			case <-egCtx.Done():
				return nil
			}
		})
	}

	return eg.Wait()
}

func (s *Session) receive(ctx context.Context, conn net.Conn, out io.Writer) error {
	buf := make([]byte, s.cfg.ReadBufferSize)
	remote := conn.RemoteAddr().String()
	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := conn.Read(buf)
		if n > 0 {
			data := buf[:n]
			s.bytesReceived.Add(uint64(n))
			s.reads.Add(1)
			logging.LogFrame("received", remote, data)
			if s.onReceive != nil {
				s.onReceive(data)
			}
			if _, werr := fmt.Fprintln(out, s.format(data)); werr != nil {
				return fmt.Errorf("print received data: %w", werr)
			}
		}
		if err == nil {
			continue
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w: no data for %s", ErrReadTimeout, s.cfg.ReadTimeout)
		}
		if errors.Is(err, io.EOF) {
			return ErrConnectionClosed
		}
		return fmt.Errorf("read: %w", err)
	}
}

func (s *Session) stopTransmitters(group *periodic.Group) {
	group.StopAll()

	ctx, cancel := context.WithTimeout(context.Background(), stopGrace)
	defer cancel()
	if err := group.Wait(ctx); err != nil {
		logging.Debug("Transmitter ended with error", zap.Error(err))
	}

	logging.Info("Transmitters stopped", zap.Uint64("frames_sent", group.Sent()))
}

// transmitters returns the transmitters of the current run, or nil before
// Run has been called.
func (s *Session) transmitters() []*periodic.Transmitter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.group == nil {
		return nil
	}
	return s.group.Transmitters()
}

// TransmitterStats describes one transmitter.
type TransmitterStats struct {
	Name   string
	Frame  string
	Period time.Duration
	Sent   uint64
	State  periodic.State
	Err    error
}

// Stats is a snapshot of session counters.
type Stats struct {
	BytesSent     uint64
	FramesSent    uint64
	BytesReceived uint64
	Reads         uint64
	Transmitters  []TransmitterStats
}

// Stats returns the current counters. It is safe to call while Run is
// in progress.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	counter, group := s.counter, s.group
	s.mu.Unlock()

	st := Stats{
		BytesReceived: s.bytesReceived.Load(),
		Reads:         s.reads.Load(),
	}
	if counter != nil {
		st.BytesSent = counter.Bytes()
		st.FramesSent = counter.Writes()
	}
	if group == nil {
		for _, sc := range s.schedule {
			st.Transmitters = append(st.Transmitters, TransmitterStats{
				Name:   sc.name,
				Frame:  sc.msg.String(),
				Period: sc.period,
				State:  periodic.StateStopped,
			})
		}
		return st
	}
	for _, tx := range group.Transmitters() {
		st.Transmitters = append(st.Transmitters, TransmitterStats{
			Name:   tx.Name(),
			Frame:  tx.Message().String(),
			Period: tx.Period(),
			Sent:   tx.Sent(),
			State:  tx.State(),
			Err:    tx.Err(),
		})
	}
	return st
}
