package transport

import (
	"errors"
	"net"
	"testing"
	"time"
)

func bindLoopback(t *testing.T) *Conn {
	t.Helper()
	conn, err := Bind("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBind_EphemeralPort(t *testing.T) {
	conn := bindLoopback(t)
	if conn.LocalPort() == 0 {
		t.Error("LocalPort() = 0, want a resolved ephemeral port")
	}
	if got := conn.LocalAddr().IP.String(); got != "127.0.0.1" {
		t.Errorf("LocalAddr() = %s", got)
	}
}

func TestBind_NonLocalAddress(t *testing.T) {
	// TEST-NET-2 is never assigned locally, so the bind must fail.
	_, err := Bind("198.51.100.77", 0)
	var terr *Error
	if !errors.As(err, &terr) || terr.Op != "bind" {
		t.Fatalf("error = %v, want *Error with Op bind", err)
	}
}

func TestSendRecv_RoundTrip(t *testing.T) {
	a := bindLoopback(t)
	b := bindLoopback(t)

	payload := []byte("OPTIONS sip:2001@127.0.0.1 SIP/2.0\r\n\r\n")
	if err := a.Send(payload, b.LocalAddr()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	data, from, err := b.Recv(2 * time.Second)
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("payload = %q, want %q", data, payload)
	}
	if from.Port != a.LocalPort() {
		t.Errorf("sender port = %d, want %d", from.Port, a.LocalPort())
	}
}

func TestRecv_ReturnsFreshBuffers(t *testing.T) {
	a := bindLoopback(t)
	b := bindLoopback(t)

	for _, msg := range []string{"first", "second"} {
		if err := a.Send([]byte(msg), b.LocalAddr()); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}

	got1, _, err := b.Recv(2 * time.Second)
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	got2, _, err := b.Recv(2 * time.Second)
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if string(got1) != "first" || string(got2) != "second" {
		t.Errorf("datagrams = %q, %q; a later receive must not clobber an earlier one", got1, got2)
	}
}

func TestRecv_Timeout(t *testing.T) {
	conn := bindLoopback(t)

	start := time.Now()
	_, _, err := conn.Recv(60 * time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Recv returned after %v, before the timeout", elapsed)
	}
}

func TestClose_UnblocksPendingRecv(t *testing.T) {
	conn := bindLoopback(t)

	errCh := make(chan error, 1)
	go func() {
		_, _, err := conn.Recv(10 * time.Second)
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	if err := conn.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, net.ErrClosed) {
			t.Errorf("Recv after Close = %v, want wrapped net.ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Recv still blocked after Close")
	}
}

func TestSend_AfterClose(t *testing.T) {
	conn := bindLoopback(t)
	peer := bindLoopback(t)
	conn.Close()

	err := conn.Send([]byte("x"), peer.LocalAddr())
	if !errors.Is(err, net.ErrClosed) {
		t.Errorf("Send after Close = %v, want wrapped net.ErrClosed", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	conn := bindLoopback(t)
	if err := conn.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestError_Formatting(t *testing.T) {
	e := &Error{Op: "send", Addr: "10.0.0.1:5060", Err: errors.New("boom")}
	if got := e.Error(); got != "udp send 10.0.0.1:5060: boom" {
		t.Errorf("Error() = %q", got)
	}
	e = &Error{Op: "recv", Err: errors.New("boom")}
	if got := e.Error(); got != "udp recv: boom" {
		t.Errorf("Error() = %q", got)
	}
}
