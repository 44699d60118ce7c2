package stream

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"crypto-collector/internal/observability"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	stopTimeout      = 5 * time.Second
)

// ConnectorOptions configures a Connector.
type ConnectorOptions struct {
	Exchange Exchange
	// Primary is the endpoint dialed on Start. Backup, when non-empty, is
	// tried at most once after a primary session ends with an error.
	Primary string
	Backup  string
	// Delay rate-limits sink writes: a tick is accepted only when at least
	// Delay has passed since the last accepted tick. Everything else is
	// dropped, never buffered.
	Delay  time.Duration
	Sink   Sink
	Logger *log.Logger
	Now    func() time.Time
}

// Connector owns one exchange feed session: dial, subscribe, receive until
// error or Stop, with a single failover to the backup endpoint.
type Connector struct {
	exchange Exchange
	primary  string
	backup   string
	delay    time.Duration
	sink     Sink
	logger   *log.Logger
	now      func() time.Time

	mu      sync.Mutex
	conn    *websocket.Conn
	started bool
	exited  chan struct{}

	stopping atomic.Bool
	lastEmit time.Time
}

// NewConnector creates a Connector.
func NewConnector(opts ConnectorOptions) *Connector {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Connector{
		exchange: opts.Exchange,
		primary:  opts.Primary,
		backup:   opts.Backup,
		delay:    opts.Delay,
		sink:     opts.Sink,
		logger:   logger,
		now:      now,
	}
}

// Start spawns the control goroutine. It returns an error if the connector
// is already running.
func (c *Connector) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("connector %s already started", c.exchange.Name())
	}
	c.started = true
	c.stopping.Store(false)
	c.exited = make(chan struct{})
	go c.run()
	return nil
}

// Stop tears the session down: best-effort unsubscribe, close, then a
// bounded wait on the control goroutine. It never blocks indefinitely.
func (c *Connector) Stop() {
	c.stopping.Store(true)

	c.mu.Lock()
	conn := c.conn
	exited := c.exited
	c.started = false
	c.mu.Unlock()

	if conn != nil {
		if payload, err := c.exchange.UnsubscribePayload(); err == nil {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Printf("stream %s: unsubscribe failed: %v", c.exchange.Name(), err)
			}
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}

	if exited != nil {
		select {
		case <-exited:
		case <-time.After(stopTimeout):
			c.logger.Printf("stream %s: control goroutine did not exit within %s", c.exchange.Name(), stopTimeout)
		}
	}
}

func (c *Connector) run() {
	defer close(c.exited)

	err := c.session(c.primary)
	if err == nil || c.stopping.Load() {
		return
	}
	c.logger.Printf("stream %s: primary endpoint failed: %v", c.exchange.Name(), err)

	if c.backup == "" {
		return
	}
	observability.RecordStreamFailover(c.exchange.Name())
	if err := c.session(c.backup); err != nil && !c.stopping.Load() {
		c.logger.Printf("stream %s: backup endpoint failed: %v", c.exchange.Name(), err)
	}
}

// session dials one endpoint, subscribes and consumes the feed until a
// connection error or Stop.
func (c *Connector) session(base string) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.Dial(c.exchange.Endpoint(base), nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	payload, err := c.exchange.SubscribePayload()
	if err != nil {
		return fmt.Errorf("subscribe payload: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.stopping.Load() {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		c.handleMessage(message)
	}
}

// handleMessage parses one inbound message and pushes accepted ticks to the
// sink. Malformed messages are logged and skipped; the connection stays up.
func (c *Connector) handleMessage(message []byte) {
	tick, ok, err := c.exchange.ParseTick(message)
	if err != nil {
		c.logger.Printf("stream %s: malformed message: %v", c.exchange.Name(), err)
		return
	}
	if !ok {
		return
	}

	// Coalescing rate limit: accept at most one tick per delay window.
	now := c.now()
	if !c.lastEmit.IsZero() && now.Sub(c.lastEmit) < c.delay {
		observability.RecordStreamTick(c.exchange.Name(), false)
		return
	}
	c.lastEmit = now
	observability.RecordStreamTick(c.exchange.Name(), true)

	if c.sink == nil {
		return
	}
	if err := c.sink.Write(tick); err != nil {
		c.logger.Printf("stream %s: sink write failed: %v", c.exchange.Name(), err)
	}
}
