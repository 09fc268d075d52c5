// Package softphone implements the two signaling roles of the sandbox
// endpoint: a registering phone that keeps its binding alive and
// auto-answers inbound calls, and an originating call that drives the
// INVITE/ACK/BYE sequence a platform test needs. Both roles share one
// message codec, digest authenticator and UDP transport; each runs as a
// single loop on its own socket, so dialog state needs no locking.
package softphone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/frostbyte73/core"

	"github.com/voipbin/sandbox/pkg/sip/message"
	"github.com/voipbin/sandbox/pkg/sip/transport"
)

// Phone is the answering endpoint. Construct with NewPhone, drive with
// Run, stop with Close or by canceling the context.
type Phone struct {
	cfg     Config
	conn    *transport.Conn
	server  *net.UDPAddr
	logger  *slog.Logger
	reg     *registration
	calls   *callTable
	closing core.Fuse

	localIP          string
	autoAnswer       bool
	settleDelay      time.Duration
	registerWait     time.Duration
	registerInterval time.Duration
}

// NewPhone binds the signaling socket and fixes the registration
// identity. The phone is not registered until Run sends the first
// REGISTER.
func NewPhone(cfg Config, opts ...Option) (*Phone, error) {
	server, err := cfg.serverAddr()
	if err != nil {
		return nil, fmt.Errorf("resolve server: %w", err)
	}

	localIP := cfg.LocalIP
	if localIP == "" {
		localIP, err = advertisedIP(cfg.Server, cfg.Port)
		if err != nil {
			return nil, err
		}
	}

	conn, err := transport.Bind("0.0.0.0", cfg.LocalPort)
	if err != nil {
		return nil, err
	}

	p := &Phone{
		cfg:              cfg,
		conn:             conn,
		server:           server,
		logger:           slog.Default(),
		calls:            newCallTable(),
		localIP:          localIP,
		autoAnswer:       true,
		settleDelay:      DefaultSettleDelay,
		registerWait:     DefaultRegisterWait,
		registerInterval: DefaultRegisterInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("extension", cfg.Extension)
	p.reg = newRegistration(conn, server, cfg, localIP, p.registerWait, p.logger)
	return p, nil
}

// Registered reports whether the last REGISTER cycle succeeded.
func (p *Phone) Registered() bool {
	return p.reg.registered()
}

// LocalPort returns the bound signaling port.
func (p *Phone) LocalPort() int {
	return p.conn.LocalPort()
}

// ContactURI returns the address-of-record contact the phone advertises.
func (p *Phone) ContactURI() string {
	return p.reg.contactURI()
}

// Run registers and then serves the socket until ctx is canceled or
// Close is called. One iteration at a time: check the refresh deadline,
// receive with a short timeout, dispatch. Registration failures are
// logged and retried on the refresh schedule, never fatal.
func (p *Phone) Run(ctx context.Context) error {
	p.logger.Info("softphone starting",
		"local", fmt.Sprintf("%s:%d", p.localIP, p.conn.LocalPort()),
		"server", p.server.String(),
		"domain", p.cfg.Domain)

	var lastRegister time.Time
	for {
		if ctx.Err() != nil || p.closing.IsBroken() {
			return nil
		}
		if time.Since(lastRegister) > p.registerInterval {
			// Failure already logged; the next deadline retries.
			_ = p.reg.register(ctx)
			lastRegister = time.Now()
		}

		data, from, err := p.conn.Recv(idleRecvTimeout)
		if errors.Is(err, transport.ErrTimeout) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil || p.closing.IsBroken() {
				return nil
			}
			return fmt.Errorf("receive loop: %w", err)
		}
		p.dispatch(ctx, data, from)
	}
}

// Close stops Run and releases the socket. Safe to call more than once.
func (p *Phone) Close() error {
	p.closing.Break()
	return p.conn.Close()
}

func (p *Phone) dispatch(ctx context.Context, data []byte, from *net.UDPAddr) {
	msg, err := message.ParseMessage(data)
	if err != nil {
		metricMalformed.Inc()
		p.logger.Debug("dropped unparsable datagram", "from", from.String(), "error", err)
		return
	}
	switch m := msg.(type) {
	case *message.Request:
		p.dispatchRequest(ctx, m, from)
	case *message.Response:
		// Late or retransmitted; no register cycle is waiting for it.
		p.logger.Debug("ignoring stray response", "status", m.StatusCode, "cseq", m.GetHeader(message.HeaderCSeq))
	}
}

func (p *Phone) dispatchRequest(ctx context.Context, req *message.Request, from *net.UDPAddr) {
	switch req.Method {
	case message.MethodInvite:
		if !p.autoAnswer {
			p.logger.Info("incoming call ignored, auto-answer off", "call_id", req.GetHeader(message.HeaderCallID))
			return
		}
		p.handleInvite(ctx, req, from)
	case message.MethodAck:
		// Closes the answer handshake; an ACK never gets a reply.
	case message.MethodBye:
		p.handleBye(ctx, req, from)
	case message.MethodOptions:
		p.handleOptions(req, from)
	default:
		p.logger.Debug("ignoring request", "method", req.Method, "from", from.String())
	}
}

// pause waits d, ending early (and reporting false) on cancellation.
func (p *Phone) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil && !p.closing.IsBroken()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-p.closing.Watch():
		return false
	case <-t.C:
		return true
	}
}
