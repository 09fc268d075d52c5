package softphone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/looplab/fsm"

	"github.com/voipbin/sandbox/pkg/sip/auth"
	"github.com/voipbin/sandbox/pkg/sip/message"
	"github.com/voipbin/sandbox/pkg/sip/sdp"
	"github.com/voipbin/sandbox/pkg/sip/transport"
)

const userAgent = "VoIPBin-TestClient/1.0"

// offerSessionName is the s= line of generated SDP offers.
const offerSessionName = "Test Call"

// callerMediaPort is the advertised audio port of the originating side.
// Like the answering side's port it is illustrative; no RTP flows.
const callerMediaPort = 10000

const (
	outStateIdle        = "idle"
	outStateInviteSent  = "invite_sent"
	outStateChallenged  = "challenged"
	outStateRinging     = "ringing"
	outStateEstablished = "established"
	outStateTerminated  = "terminated"
	outStateFailed      = "failed"
)

const (
	outEventInvite    = "invite"
	outEventChallenge = "challenge"
	outEventRing      = "ring"
	outEventAnswer    = "answer"
	outEventBye       = "bye"
	outEventFail      = "fail"
)

// CallConfig identifies the parties of an originated call and bounds the
// response poll loop.
type CallConfig struct {
	// Server is the proxy the call is placed through.
	Server string
	Port   int
	// Domain is the registration domain both extensions live in.
	Domain string
	// From is the calling extension, also the digest username.
	From     string
	Password string
	// To is the called extension.
	To string
	// LocalIP overrides the advertised address; empty derives it.
	LocalIP string
	// LocalPort fixes the signaling port; 0 binds an ephemeral one.
	LocalPort int
	// Attempts and Wait bound the response poll loop. Zero values pick
	// the defaults (20 attempts of 15s each).
	Attempts int
	Wait     time.Duration
}

// CallOption adjusts Call behavior at construction.
type CallOption func(*Call)

// WithCallLogger sets the structured logger for one originated call.
func WithCallLogger(logger *slog.Logger) CallOption {
	return func(c *Call) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Call originates one session: INVITE, at most one digest retry per
// challenge, ACK on the 200, BYE when hung up. It owns its own socket,
// independent of any registered Phone.
type Call struct {
	cfg    CallConfig
	conn   *transport.Conn
	server *net.UDPAddr
	logger *slog.Logger
	fsm    *fsm.FSM

	localIP  string
	callID   string
	tag      string
	toTag    string
	cseq     uint32
	offer    []byte
	attempts int
	wait     time.Duration
}

// NewCall binds a socket and prepares the INVITE identity. The SDP offer
// is generated once and reused byte for byte on authenticated retries.
func NewCall(cfg CallConfig, opts ...CallOption) (*Call, error) {
	c := &Call{
		cfg:      cfg,
		logger:   slog.Default(),
		tag:      NewTag(),
		cseq:     1,
		attempts: cfg.Attempts,
		wait:     cfg.Wait,
	}
	if c.attempts <= 0 {
		c.attempts = DefaultAttempts
	}
	if c.wait <= 0 {
		c.wait = DefaultAttemptWait
	}
	for _, opt := range opts {
		opt(c)
	}

	server, err := Config{Server: cfg.Server, Port: cfg.Port}.serverAddr()
	if err != nil {
		return nil, fmt.Errorf("resolve server: %w", err)
	}
	c.server = server

	c.localIP = cfg.LocalIP
	if c.localIP == "" {
		c.localIP, err = advertisedIP(cfg.Server, cfg.Port)
		if err != nil {
			return nil, err
		}
	}
	c.callID = NewCallerCallID(cfg.Server)

	conn, err := transport.Bind("0.0.0.0", cfg.LocalPort)
	if err != nil {
		return nil, err
	}
	c.conn = conn

	c.offer, err = sdp.Session{
		Name: offerSessionName,
		IP:   c.localIP,
		Port: callerMediaPort,
	}.Offer()
	if err != nil {
		conn.Close()
		return nil, err
	}

	c.fsm = fsm.NewFSM(
		outStateIdle,
		fsm.Events{
			{Name: outEventInvite, Src: []string{outStateIdle}, Dst: outStateInviteSent},
			{Name: outEventChallenge, Src: []string{outStateInviteSent, outStateRinging}, Dst: outStateChallenged},
			{Name: outEventRing, Src: []string{outStateInviteSent, outStateChallenged}, Dst: outStateRinging},
			{Name: outEventAnswer, Src: []string{outStateInviteSent, outStateChallenged, outStateRinging}, Dst: outStateEstablished},
			{Name: outEventBye, Src: []string{outStateEstablished}, Dst: outStateTerminated},
			{Name: outEventFail, Src: []string{outStateInviteSent, outStateChallenged, outStateRinging}, Dst: outStateFailed},
		},
		fsm.Callbacks{
			"after_event": func(_ context.Context, e *fsm.Event) {
				c.logger.Debug("call state changed", "call_id", c.callID, "event", e.Event, "from", e.Src, "to", e.Dst)
			},
		},
	)
	return c, nil
}

// State reports the current dialog state, e.g. "established".
func (c *Call) State() string {
	return c.fsm.Current()
}

// Close releases the socket. Pending receives unblock with an error.
func (c *Call) Close() error {
	return c.conn.Close()
}

func (c *Call) callerURI() string {
	return fmt.Sprintf("sip:%s@%s", c.cfg.From, c.cfg.Domain)
}

func (c *Call) calleeURI() string {
	return fmt.Sprintf("sip:%s@%s", c.cfg.To, c.cfg.Domain)
}

func (c *Call) contactURI() string {
	return fmt.Sprintf("sip:%s@%s:%d", c.cfg.From, c.localIP, c.conn.LocalPort())
}

// Place sends the INVITE and polls for the answer. It returns nil once
// the 200 is ACKed, a StatusError on a non-auth final of 400 or above,
// and a timeout error when the attempt budget runs out. Provisionals
// keep the poll going; each 401/407 is answered with fresh credentials,
// a new branch and the next cseq on the same Call-ID.
func (c *Call) Place(ctx context.Context) error {
	req := c.invite(NewBranch(), nil, 0)
	if err := c.conn.Send(req.Bytes(), c.server); err != nil {
		return err
	}
	c.step(ctx, outEventInvite)
	c.logger.Info("INVITE sent", "call_id", c.callID, "to", c.calleeURI())

	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, _, err := c.conn.Recv(c.wait)
		if errors.Is(err, transport.ErrTimeout) {
			c.logger.Debug("no response yet", "attempt", attempt, "attempts", c.attempts)
			continue
		}
		if err != nil {
			return err
		}
		msg, err := message.ParseMessage(data)
		if err != nil {
			metricMalformed.Inc()
			c.logger.Debug("dropped unparsable datagram", "error", err)
			continue
		}
		resp, isResp := msg.(*message.Response)
		if !isResp {
			c.logger.Debug("dropped request during call setup", "method", msg.(*message.Request).Method)
			continue
		}
		if _, method, cerr := message.ParseCSeq(resp.GetHeader(message.HeaderCSeq)); cerr == nil && method != message.MethodInvite {
			c.logger.Debug("ignoring response to other request", "cseq", resp.GetHeader(message.HeaderCSeq))
			continue
		}
		c.logger.Info("response", "status", resp.StatusCode, "reason", resp.ReasonPhrase)

		switch {
		case resp.StatusCode == 401 || resp.StatusCode == 407:
			if err := c.answerChallenge(ctx, resp); err != nil {
				c.step(ctx, outEventFail)
				metricOutboundCalls.WithLabelValues(resultRejected).Inc()
				return err
			}
		case resp.Provisional():
			if resp.StatusCode == 180 && c.fsm.Current() != outStateRinging {
				c.step(ctx, outEventRing)
			}
		case resp.StatusCode == 200:
			c.toTag = message.ExtractTag(resp.GetHeader(message.HeaderTo))
			ack := c.ack(NewBranch())
			if err := c.conn.Send(ack.Bytes(), c.server); err != nil {
				return err
			}
			c.step(ctx, outEventAnswer)
			metricOutboundCalls.WithLabelValues(resultEstablished).Inc()
			c.logger.Info("call established", "call_id", c.callID, "to_tag", c.toTag)
			if len(resp.Body()) > 0 {
				if media, err := sdp.Parse(resp.Body()); err == nil {
					c.logger.Info("negotiated media", "ip", media.IP, "port", media.Port)
				} else {
					c.logger.Debug("unreadable SDP in answer", "error", err)
				}
			}
			return nil
		case resp.StatusCode >= 400:
			c.step(ctx, outEventFail)
			metricOutboundCalls.WithLabelValues(resultRejected).Inc()
			return &StatusError{Code: resp.StatusCode, Reason: resp.ReasonPhrase}
		}
		// 3xx is not followed; the sandbox proxy never redirects.
	}

	c.step(ctx, outEventFail)
	metricOutboundCalls.WithLabelValues(resultTimeout).Inc()
	return fmt.Errorf("no final response after %d attempts: %w", c.attempts, transport.ErrTimeout)
}

// Hangup ends an established call: BYE with the next cseq, then one
// bounded wait. Any response, or none, completes the teardown.
func (c *Call) Hangup(ctx context.Context) error {
	c.cseq++
	bye := message.NewRequest(message.MethodBye, c.calleeURI()).
		Via("UDP", c.localIP, c.conn.LocalPort(), NewBranch()).
		MaxForwards(70).
		From(c.callerURI(), c.tag).
		To(c.calleeURI(), c.toTag).
		CallID(c.callID).
		CSeq(c.cseq, message.MethodBye).
		Contact(c.contactURI()).
		Build()
	if err := c.conn.Send(bye.Bytes(), c.server); err != nil {
		return err
	}
	c.logger.Info("BYE sent", "call_id", c.callID, "cseq", c.cseq)

	data, _, err := c.conn.Recv(c.wait)
	switch {
	case errors.Is(err, transport.ErrTimeout):
		c.logger.Warn("no response to BYE", "call_id", c.callID)
	case err != nil:
		return err
	default:
		if msg, perr := message.ParseMessage(data); perr == nil {
			if resp, isResp := msg.(*message.Response); isResp {
				c.logger.Info("BYE answered", "status", resp.StatusCode)
			}
		}
	}
	c.step(ctx, outEventBye)
	return nil
}

// answerChallenge resends the INVITE with credentials for the given 401
// or 407. The Call-ID and From tag stay, branch and cseq move on.
func (c *Call) answerChallenge(ctx context.Context, resp *message.Response) error {
	ch, err := auth.ExtractChallenge(resp)
	if err != nil {
		return err
	}
	cred := auth.Answer(ch, c.cfg.From, c.cfg.Password, message.MethodInvite, c.calleeURI())
	metricChallenges.Inc()

	c.cseq++
	req := c.invite(NewBranch(), &cred, resp.StatusCode)
	if err := c.conn.Send(req.Bytes(), c.server); err != nil {
		return err
	}
	if c.fsm.Current() != outStateChallenged {
		c.step(ctx, outEventChallenge)
	}
	c.logger.Info("INVITE re-sent with credentials", "call_id", c.callID, "cseq", c.cseq, "header", auth.HeaderName(resp.StatusCode))
	return nil
}

func (c *Call) invite(branch string, cred *auth.Credentials, challengeCode int) *message.Request {
	b := message.NewRequest(message.MethodInvite, c.calleeURI()).
		Via("UDP", c.localIP, c.conn.LocalPort(), branch).
		MaxForwards(70).
		From(c.callerURI(), c.tag).
		To(c.calleeURI(), "").
		CallID(c.callID).
		CSeq(c.cseq, message.MethodInvite).
		Contact(c.contactURI())
	if cred != nil {
		b.Header(auth.HeaderName(challengeCode), cred.Header())
	}
	b.Body("application/sdp", c.offer).
		Header(message.HeaderAllow, allowedMethods).
		Header(message.HeaderUserAgent, userAgent)
	return b.Build()
}

// ack confirms the answered INVITE. It reuses that INVITE's cseq number
// and Request-URI; only the branch is fresh.
func (c *Call) ack(branch string) *message.Request {
	return message.NewRequest(message.MethodAck, c.calleeURI()).
		Via("UDP", c.localIP, c.conn.LocalPort(), branch).
		MaxForwards(70).
		From(c.callerURI(), c.tag).
		To(c.calleeURI(), c.toTag).
		CallID(c.callID).
		CSeq(c.cseq, message.MethodAck).
		Contact(c.contactURI()).
		Build()
}

func (c *Call) step(ctx context.Context, event string) {
	if err := c.fsm.Event(ctx, event); err != nil {
		c.logger.Warn("call transition rejected", "call_id", c.callID, "event", event, "state", c.fsm.Current(), "error", err)
	}
}
