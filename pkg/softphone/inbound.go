package softphone

import (
	"context"
	"log/slog"
	"net"

	"github.com/looplab/fsm"

	"github.com/voipbin/sandbox/pkg/sip/message"
	"github.com/voipbin/sandbox/pkg/sip/sdp"
)

// allowedMethods is advertised on OPTIONS replies and outbound INVITEs.
const allowedMethods = "INVITE,ACK,CANCEL,BYE,OPTIONS"

// answerSessionName is the s= line of generated SDP answers.
const answerSessionName = "SIP Call"

const (
	inStateIdle       = "idle"
	inStateRinging    = "ringing"
	inStateAnswered   = "answered"
	inStateTerminated = "terminated"
)

const (
	inEventInvite = "invite"
	inEventAnswer = "answer"
	inEventBye    = "bye"
)

// inboundCall is one answered-side dialog. The local tag is generated
// when the dialog is first seen and reused for every response in it,
// re-INVITEs included.
type inboundCall struct {
	callID   string
	localTag string
	logger   *slog.Logger
	fsm      *fsm.FSM
}

func newInboundCall(callID string, logger *slog.Logger) *inboundCall {
	c := &inboundCall{
		callID:   callID,
		localTag: NewTag(),
		logger:   logger,
	}
	c.fsm = fsm.NewFSM(
		inStateIdle,
		fsm.Events{
			{Name: inEventInvite, Src: []string{inStateIdle, inStateAnswered}, Dst: inStateRinging},
			{Name: inEventAnswer, Src: []string{inStateRinging}, Dst: inStateAnswered},
			{Name: inEventBye, Src: []string{inStateRinging, inStateAnswered}, Dst: inStateTerminated},
		},
		fsm.Callbacks{
			"after_event": func(_ context.Context, e *fsm.Event) {
				c.logger.Debug("call state changed", "call_id", c.callID, "event", e.Event, "from", e.Src, "to", e.Dst)
			},
		},
	)
	return c
}

func (c *inboundCall) step(ctx context.Context, event string) {
	if err := c.fsm.Event(ctx, event); err != nil {
		c.logger.Warn("call transition rejected", "call_id", c.callID, "event", event, "state", c.fsm.Current(), "error", err)
	}
}

// handleInvite answers an incoming call: 180 Ringing at once, then after
// the settle delay a 200 OK carrying the SDP answer. Both responses echo
// the INVITE's Via set verbatim and carry the same dialog tag.
func (p *Phone) handleInvite(ctx context.Context, req *message.Request, from *net.UDPAddr) {
	callID := req.GetHeader(message.HeaderCallID)
	call, known := p.calls.get(callID)
	if !known {
		call = newInboundCall(callID, p.logger)
		p.calls.put(call)
	}
	call.step(ctx, inEventInvite)
	p.logger.Info("incoming call", "call_id", callID, "from", req.GetHeader(message.HeaderFrom))

	ringing := message.NewResponse(req, 180, "").
		ToTag(call.localTag).
		Contact(p.reg.contactURI()).
		Build()
	if err := p.conn.Send(ringing.Bytes(), from); err != nil {
		p.logger.Warn("sending 180 Ringing failed", "call_id", callID, "error", err)
		return
	}

	if !p.pause(ctx, p.settleDelay) {
		return
	}

	body, err := sdp.Session{
		Name: answerSessionName,
		IP:   p.localIP,
		Port: p.conn.LocalPort() + mediaPortOffset,
	}.Answer()
	if err != nil {
		p.logger.Error("building SDP answer failed", "call_id", callID, "error", err)
		return
	}
	ok := message.NewResponse(req, 200, "").
		ToTag(call.localTag).
		Contact(p.reg.contactURI()).
		Body("application/sdp", body).
		Build()
	if err := p.conn.Send(ok.Bytes(), from); err != nil {
		p.logger.Warn("sending 200 OK failed", "call_id", callID, "error", err)
		return
	}
	call.step(ctx, inEventAnswer)
	metricCallsAnswered.Inc()
	p.logger.Info("call answered", "call_id", callID)
}

// handleBye confirms the teardown with a bare 200 echo. Unknown dialogs
// are confirmed too; the peer is hanging up either way.
func (p *Phone) handleBye(ctx context.Context, req *message.Request, from *net.UDPAddr) {
	resp := message.NewResponse(req, 200, "").Build()
	if err := p.conn.Send(resp.Bytes(), from); err != nil {
		p.logger.Warn("replying to BYE failed", "error", err)
	}
	callID := req.GetHeader(message.HeaderCallID)
	if call, known := p.calls.get(callID); known {
		call.step(ctx, inEventBye)
		p.calls.remove(callID)
	}
	p.logger.Info("call ended", "call_id", callID)
}

// handleOptions answers the liveness probe. Dialog state is untouched.
func (p *Phone) handleOptions(req *message.Request, from *net.UDPAddr) {
	resp := message.NewResponse(req, 200, "").
		Header(message.HeaderAllow, allowedMethods).
		Build()
	if err := p.conn.Send(resp.Bytes(), from); err != nil {
		p.logger.Warn("replying to OPTIONS failed", "error", err)
	}
}
