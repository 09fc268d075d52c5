package message

import (
	"fmt"
	"strings"
	"testing"
)

func TestRequestBuilder_Register(t *testing.T) {
	req := NewRequest(MethodRegister, "sip:test.registrar.voipbin.net").
		Via("UDP", "10.0.0.20", 5060, "z9hG4bK735146251").
		From("sip:2001@test.registrar.voipbin.net", "58214966").
		To("sip:2001@test.registrar.voipbin.net", "").
		CallID("1_4821730@10.0.0.20").
		CSeq(1, MethodRegister).
		Contact("sip:2001@10.0.0.20:5060").
		Header(HeaderExpires, "300").
		Build()

	want := "REGISTER sip:test.registrar.voipbin.net SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP 10.0.0.20:5060;branch=z9hG4bK735146251;rport\r\n" +
		"From: <sip:2001@test.registrar.voipbin.net>;tag=58214966\r\n" +
		"To: <sip:2001@test.registrar.voipbin.net>\r\n" +
		"Call-ID: 1_4821730@10.0.0.20\r\n" +
		"CSeq: 1 REGISTER\r\n" +
		"Contact: <sip:2001@10.0.0.20:5060>\r\n" +
		"Expires: 300\r\n" +
		"Max-Forwards: 70\r\n" +
		"Content-Length: 0\r\n" +
		"\r\n"
	if got := req.String(); got != want {
		t.Errorf("serialized REGISTER differs:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestRequestBuilder_BodySetsExactContentLength(t *testing.T) {
	bodies := [][]byte{
		[]byte("v=0\r\n"),
		[]byte(""),
		[]byte(strings.Repeat("x", 1371)),
	}
	for _, body := range bodies {
		req := NewRequest(MethodInvite, "sip:2002@h").
			CSeq(1, MethodInvite).
			Body("application/sdp", body).
			Build()
		want := fmt.Sprintf("%d", len(body))
		if got := req.GetHeader(HeaderContentLength); got != want {
			t.Errorf("Content-Length = %q, want %q", got, want)
		}
		if len(body) == 0 && req.Header().Has(HeaderContentType) {
			t.Error("Content-Type must be absent without a body")
		}
	}
}

func TestRequestBuilder_ContentLengthComesLast(t *testing.T) {
	req := NewRequest(MethodInvite, "sip:2002@h").
		Via("UDP", "10.0.0.30", 5070, "z9hG4bK181055831").
		MaxForwards(70).
		From("sip:2001@h", "10958264").
		To("sip:2002@h", "").
		CSeq(1, MethodInvite).
		Body("application/sdp", []byte("v=0\r\n")).
		Header(HeaderUserAgent, "VoIPBin-TestClient/1.0").
		Build()

	entries := req.Header().Entries()
	last := entries[len(entries)-1]
	if last.Name != HeaderContentLength || last.Value != "5" {
		t.Errorf("last header = %s: %s, want Content-Length: 5", last.Name, last.Value)
	}
	if req.GetHeader(HeaderMaxForwards) != "70" {
		t.Errorf("Max-Forwards = %q", req.GetHeader(HeaderMaxForwards))
	}
}

func TestResponseBuilder_EchoesRequestIdentity(t *testing.T) {
	raw := "INVITE sip:2001@10.0.0.20:5060 SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP proxy1.voipbin.net:5060;branch=z9hG4bK111111111\r\n" +
		"Via: SIP/2.0/UDP 10.0.0.30:5070;branch=z9hG4bK222222222\r\n" +
		"From: <sip:2002@test.registrar.voipbin.net>;tag=77391045\r\n" +
		"To: <sip:2001@test.registrar.voipbin.net>\r\n" +
		"Call-ID: 9921384756@10.89.0.10\r\n" +
		"CSeq: 1 INVITE\r\n" +
		"Content-Length: 0\r\n" +
		"\r\n"
	parsed, err := ParseMessage([]byte(raw))
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	req := parsed.(*Request)

	resp := NewResponse(req, 180, "").ToTag("49518203").Build()

	vias := resp.Header().GetAll(HeaderVia)
	if len(vias) != 2 ||
		!strings.Contains(vias[0], "proxy1.voipbin.net") ||
		!strings.Contains(vias[1], "10.0.0.30:5070") {
		t.Errorf("Via echo broken: %v", vias)
	}
	if resp.ReasonPhrase != "Ringing" {
		t.Errorf("ReasonPhrase = %q, want Ringing", resp.ReasonPhrase)
	}
	if got := resp.GetHeader(HeaderTo); got != "<sip:2001@test.registrar.voipbin.net>;tag=49518203" {
		t.Errorf("To = %q", got)
	}
	if got := resp.GetHeader(HeaderFrom); got != req.GetHeader(HeaderFrom) {
		t.Errorf("From = %q, want %q", got, req.GetHeader(HeaderFrom))
	}
	if got := resp.GetHeader(HeaderCSeq); got != "1 INVITE" {
		t.Errorf("CSeq = %q", got)
	}
	if got := resp.GetHeader(HeaderContentLength); got != "0" {
		t.Errorf("Content-Length = %q", got)
	}
}

func TestResponseBuilder_ToTagNotDuplicated(t *testing.T) {
	raw := "BYE sip:2001@10.0.0.20:5060 SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP 10.89.0.10:5060;branch=z9hG4bK44982\r\n" +
		"From: <sip:2002@h>;tag=77391045\r\n" +
		"To: <sip:2001@h>;tag=31502876\r\n" +
		"Call-ID: 9921384756@10.89.0.10\r\n" +
		"CSeq: 2 BYE\r\n" +
		"\r\n"
	parsed, err := ParseMessage([]byte(raw))
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	resp := NewResponse(parsed.(*Request), 200, "").ToTag("99999999").Build()

	if got := resp.GetHeader(HeaderTo); got != "<sip:2001@h>;tag=31502876" {
		t.Errorf("To = %q, existing tag must be kept", got)
	}
}

func TestResponseBuilder_WithBody(t *testing.T) {
	raw := "INVITE sip:2001@10.0.0.20:5060 SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP 10.89.0.10:5060;branch=z9hG4bK7731\r\n" +
		"From: <sip:2002@h>;tag=77391045\r\n" +
		"To: <sip:2001@h>\r\n" +
		"Call-ID: 9921384756@10.89.0.10\r\n" +
		"CSeq: 1 INVITE\r\n" +
		"\r\n"
	parsed, err := ParseMessage([]byte(raw))
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	sdp := []byte("v=0\r\no=- 123 123 IN IP4 10.0.0.20\r\n")
	resp := NewResponse(parsed.(*Request), 200, "").
		ToTag("31502876").
		Contact("sip:2001@10.0.0.20:5060").
		Body("application/sdp", sdp).
		Build()

	if got := resp.GetHeader(HeaderContentType); got != "application/sdp" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := resp.GetHeader(HeaderContentLength); got != fmt.Sprintf("%d", len(sdp)) {
		t.Errorf("Content-Length = %q, want %d", got, len(sdp))
	}
	if string(resp.Body()) != string(sdp) {
		t.Errorf("Body = %q", resp.Body())
	}

	// The response must survive a codec round trip unchanged.
	reparsed, err := ParseMessage(resp.Bytes())
	if err != nil {
		t.Fatalf("reparse error = %v", err)
	}
	if reparsed.String() != resp.String() {
		t.Errorf("round trip changed response:\n%s\nvs\n%s", reparsed.String(), resp.String())
	}
}
