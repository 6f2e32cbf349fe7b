package relay

import (
	"net"
	"testing"
	"time"
)

func startTestServer(t *testing.T) (addr string, srv *Server) {
	t.Helper()
	srv = New(4, 600, 1_000_000, discardLogger())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Stop()
		ln.Close()
	})
	return ln.Addr().String(), srv
}

func TestClientDialRegistersSuccessfully(t *testing.T) {
	addr, _ := startTestServer(t)
	c, err := Dial(addr, "studio-a", discardLogger())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
}

func TestClientDialRefusedOnDuplicateName(t *testing.T) {
	addr, _ := startTestServer(t)
	first, err := Dial(addr, "studio-a", discardLogger())
	if err != nil {
		t.Fatalf("first Dial: %v", err)
	}
	defer first.Close()

	if _, err := Dial(addr, "studio-a", discardLogger()); err == nil {
		t.Fatalf("expected the second registration with a duplicate name to be refused")
	}
}

func TestStateUpdateFansOutBetweenClients(t *testing.T) {
	addr, _ := startTestServer(t)
	a, err := Dial(addr, "a", discardLogger())
	if err != nil {
		t.Fatalf("dial a: %v", err)
	}
	defer a.Close()
	b, err := Dial(addr, "b", discardLogger())
	if err != nil {
		t.Fatalf("dial b: %v", err)
	}
	defer b.Close()

	if err := a.Send([]byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	_ = b.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msg, err := b.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if msg.Kind != KindStateUpdate || string(msg.Data) != "hello" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.SourceID != "a" {
		t.Fatalf("expected source_id to be stamped by the relay, got %q", msg.SourceID)
	}
}
