package softphone

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voipbin/sandbox/pkg/sip/message"
)

// testPeer plays the registrar and proxy on a loopback socket.
type testPeer struct {
	t    *testing.T
	conn *net.UDPConn
}

func newTestPeer(t *testing.T) *testPeer {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testPeer{t: t, conn: conn}
}

func (p *testPeer) port() int {
	return p.conn.LocalAddr().(*net.UDPAddr).Port
}

func (p *testPeer) recv(timeout time.Duration) (message.Message, *net.UDPAddr) {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(timeout)))
	buf := make([]byte, message.MaxMessageSize)
	n, addr, err := p.conn.ReadFromUDP(buf)
	require.NoError(p.t, err, "peer expected a message")
	msg, err := message.ParseMessage(buf[:n])
	require.NoError(p.t, err)
	return msg, addr
}

func (p *testPeer) recvRequest(method string, timeout time.Duration) (*message.Request, *net.UDPAddr) {
	p.t.Helper()
	msg, addr := p.recv(timeout)
	req, ok := msg.(*message.Request)
	require.True(p.t, ok, "expected a request, got %T", msg)
	require.Equal(p.t, method, req.Method)
	return req, addr
}

func (p *testPeer) recvResponse(timeout time.Duration) *message.Response {
	p.t.Helper()
	msg, _ := p.recv(timeout)
	resp, ok := msg.(*message.Response)
	require.True(p.t, ok, "expected a response, got %T", msg)
	return resp
}

func (p *testPeer) send(addr *net.UDPAddr, data []byte) {
	p.t.Helper()
	_, err := p.conn.WriteToUDP(data, addr)
	require.NoError(p.t, err)
}

// quiet asserts nothing arrives within d.
func (p *testPeer) quiet(d time.Duration) {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(d)))
	buf := make([]byte, message.MaxMessageSize)
	n, _, err := p.conn.ReadFromUDP(buf)
	if err == nil {
		p.t.Fatalf("unexpected message: %q", buf[:n])
	}
	var nerr net.Error
	require.ErrorAs(p.t, err, &nerr)
	require.True(p.t, nerr.Timeout(), "read failed for a reason other than silence: %v", err)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func phoneConfig(peer *testPeer) Config {
	return Config{
		Server:    "127.0.0.1",
		Port:      peer.port(),
		Domain:    "cust1.registrar.voipbin.net",
		Extension: "2000",
		Password:  "pass2000",
		LocalIP:   "127.0.0.1",
	}
}

// startPhone runs a Phone against the peer and tears it down with the
// test. The registration cycle is left to the caller.
func startPhone(t *testing.T, peer *testPeer, opts ...Option) *Phone {
	t.Helper()
	base := []Option{
		WithLogger(discardLogger()),
		WithRegisterWait(500 * time.Millisecond),
		WithSettleDelay(10 * time.Millisecond),
	}
	phone, err := NewPhone(phoneConfig(peer), append(base, opts...)...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- phone.Run(ctx) }()

	t.Cleanup(func() {
		phone.Close()
		cancel()
		select {
		case err := <-errCh:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not stop after Close")
		}
	})
	return phone
}

// startRegisteredPhone additionally answers the initial REGISTER.
func startRegisteredPhone(t *testing.T, peer *testPeer, opts ...Option) *Phone {
	t.Helper()
	phone := startPhone(t, peer, opts...)
	req, addr := peer.recvRequest(message.MethodRegister, 2*time.Second)
	peer.send(addr, message.NewResponse(req, 200, "").Build().Bytes())
	require.Eventually(t, phone.Registered, 2*time.Second, 10*time.Millisecond,
		"phone did not reach registered state")
	return phone
}
