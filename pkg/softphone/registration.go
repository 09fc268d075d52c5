package softphone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/looplab/fsm"

	"github.com/voipbin/sandbox/pkg/sip/auth"
	"github.com/voipbin/sandbox/pkg/sip/message"
	"github.com/voipbin/sandbox/pkg/sip/transport"
)

// Registration states. Failed is not terminal for the owning loop, which
// keeps calling register on its refresh schedule.
const (
	regStateIdle          = "idle"
	regStateSent          = "sent"
	regStateChallenged    = "challenged"
	regStateAuthenticated = "authenticated"
	regStateRegistered    = "registered"
	regStateFailed        = "failed"
)

const (
	regEventSend      = "send"
	regEventRefresh   = "refresh"
	regEventChallenge = "challenge"
	regEventRetry     = "retry"
	regEventOK        = "ok"
	regEventFail      = "fail"
)

// registration keeps one binding with the registrar alive. Tag and
// Call-ID are fixed for the life of the phone, so every attempt and
// refresh belongs to the same registration dialog and cseq climbs
// monotonically across all of them.
type registration struct {
	conn   *transport.Conn
	server *net.UDPAddr
	logger *slog.Logger
	fsm    *fsm.FSM

	domain    string
	extension string
	password  string
	localIP   string
	localPort int

	tag    string
	callID string
	cseq   uint32
	wait   time.Duration
}

func newRegistration(conn *transport.Conn, server *net.UDPAddr, cfg Config, localIP string, wait time.Duration, logger *slog.Logger) *registration {
	r := &registration{
		conn:      conn,
		server:    server,
		logger:    logger,
		domain:    cfg.Domain,
		extension: cfg.Extension,
		password:  cfg.Password,
		localIP:   localIP,
		localPort: conn.LocalPort(),
		tag:       NewTag(),
		callID:    NewCallID(localIP),
		wait:      wait,
	}
	r.fsm = fsm.NewFSM(
		regStateIdle,
		fsm.Events{
			{Name: regEventSend, Src: []string{regStateIdle, regStateFailed}, Dst: regStateSent},
			{Name: regEventRefresh, Src: []string{regStateRegistered}, Dst: regStateSent},
			{Name: regEventChallenge, Src: []string{regStateSent}, Dst: regStateChallenged},
			{Name: regEventRetry, Src: []string{regStateChallenged}, Dst: regStateAuthenticated},
			{Name: regEventOK, Src: []string{regStateSent, regStateAuthenticated}, Dst: regStateRegistered},
			{Name: regEventFail, Src: []string{regStateSent, regStateChallenged, regStateAuthenticated}, Dst: regStateFailed},
		},
		fsm.Callbacks{
			"after_event": func(_ context.Context, e *fsm.Event) {
				logger.Debug("registration state changed", "event", e.Event, "from", e.Src, "to", e.Dst)
			},
		},
	)
	return r
}

func (r *registration) registered() bool {
	return r.fsm.Current() == regStateRegistered
}

func (r *registration) registrarURI() string {
	return "sip:" + r.domain
}

func (r *registration) aor() string {
	return fmt.Sprintf("sip:%s@%s", r.extension, r.domain)
}

func (r *registration) contactURI() string {
	return fmt.Sprintf("sip:%s@%s:%d", r.extension, r.localIP, r.localPort)
}

// register runs one REGISTER cycle: send, wait once, answer at most one
// digest challenge, wait once more. The outcome is returned to the
// caller; scheduling the next cycle is the caller's business.
func (r *registration) register(ctx context.Context) error {
	event := regEventSend
	if r.registered() {
		event = regEventRefresh
	}
	r.step(ctx, event)

	r.cseq++
	req := r.request(NewBranch(), nil, 0)
	if err := r.conn.Send(req.Bytes(), r.server); err != nil {
		r.step(ctx, regEventFail)
		metricRegistered.Set(0)
		return err
	}

	resp, err := r.await(ctx)
	if err != nil {
		r.step(ctx, regEventFail)
		r.noteFailure(err)
		return err
	}

	if resp.StatusCode == 401 || resp.StatusCode == 407 {
		r.step(ctx, regEventChallenge)
		resp, err = r.authenticate(ctx, resp)
		if err != nil {
			r.step(ctx, regEventFail)
			r.noteFailure(err)
			return err
		}
	}

	if resp.StatusCode == 200 {
		r.step(ctx, regEventOK)
		metricRegistrations.WithLabelValues(resultOK).Inc()
		metricRegistered.Set(1)
		r.logger.Info("registered", "aor", r.aor(), "expires", DefaultRegisterExpires)
		return nil
	}

	r.step(ctx, regEventFail)
	statusErr := &StatusError{Code: resp.StatusCode, Reason: resp.ReasonPhrase}
	r.noteFailure(statusErr)
	return statusErr
}

// authenticate answers the challenge carried by resp and waits for the
// final response to the credentialed REGISTER.
func (r *registration) authenticate(ctx context.Context, resp *message.Response) (*message.Response, error) {
	ch, err := auth.ExtractChallenge(resp)
	if err != nil {
		return nil, err
	}
	cred := auth.Answer(ch, r.extension, r.password, message.MethodRegister, r.registrarURI())
	metricChallenges.Inc()

	r.cseq++
	req := r.request(NewBranch(), &cred, resp.StatusCode)
	r.step(ctx, regEventRetry)
	if err := r.conn.Send(req.Bytes(), r.server); err != nil {
		return nil, err
	}
	return r.await(ctx)
}

// request builds one REGISTER. cred is nil for the unauthenticated first
// attempt; challengeCode picks Authorization vs Proxy-Authorization.
func (r *registration) request(branch string, cred *auth.Credentials, challengeCode int) *message.Request {
	b := message.NewRequest(message.MethodRegister, r.registrarURI()).
		Via("UDP", r.localIP, r.localPort, branch).
		MaxForwards(70).
		From(r.aor(), r.tag).
		To(r.aor(), "").
		CallID(r.callID).
		CSeq(r.cseq, message.MethodRegister).
		Contact(r.contactURI())
	if cred != nil {
		b.Header(auth.HeaderName(challengeCode), cred.Header())
	}
	b.Header(message.HeaderExpires, strconv.Itoa(DefaultRegisterExpires))
	return b.Build()
}

// await blocks until a response arrives or the wait budget runs out.
// Requests and unparsable datagrams landing on the socket meanwhile are
// dropped; the shared port belongs to the registration until the cycle
// finishes.
func (r *registration) await(ctx context.Context) (*message.Response, error) {
	deadline := time.Now().Add(r.wait)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("awaiting REGISTER response: %w", transport.ErrTimeout)
		}
		data, _, err := r.conn.Recv(remaining)
		if errors.Is(err, transport.ErrTimeout) {
			return nil, fmt.Errorf("awaiting REGISTER response: %w", transport.ErrTimeout)
		}
		if err != nil {
			return nil, err
		}
		msg, err := message.ParseMessage(data)
		if err != nil {
			metricMalformed.Inc()
			r.logger.Debug("dropped unparsable datagram", "error", err)
			continue
		}
		if resp, ok := msg.(*message.Response); ok {
			return resp, nil
		}
		req := msg.(*message.Request)
		r.logger.Debug("dropped request while awaiting REGISTER response", "method", req.Method)
	}
}

func (r *registration) noteFailure(err error) {
	metricRegistered.Set(0)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	if errors.Is(err, transport.ErrTimeout) {
		metricRegistrations.WithLabelValues(resultTimeout).Inc()
	} else {
		metricRegistrations.WithLabelValues(resultRejected).Inc()
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		r.logger.Warn("registration failed", "code", statusErr.Code)
		return
	}
	r.logger.Warn("registration failed", "error", err)
}

// step fires an FSM event. The call sites only fire transitions the
// event table allows, so a rejection here is a bug worth shouting about
// rather than an error to hand the caller.
func (r *registration) step(ctx context.Context, event string) {
	if err := r.fsm.Event(ctx, event); err != nil {
		r.logger.Warn("registration transition rejected", "event", event, "state", r.fsm.Current(), "error", err)
	}
}
