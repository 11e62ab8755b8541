package tcpsocket

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/shadowmesh/shadowmesh/pkg/tlsport"
)

func listenerPair(t *testing.T) (server, client net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	acceptCh := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			acceptCh <- nil
			return
		}
		acceptCh <- conn
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	server = <-acceptCh
	if server == nil {
		t.Fatal("accept failed")
	}
	return server, client
}

func TestReadReportsWouldBlockWhenIdle(t *testing.T) {
	server, client := listenerPair(t)
	defer server.Close()
	defer client.Close()

	sock := New(server)
	buf := make([]byte, 64)
	n, err := sock.Read(buf)
	if n != 0 {
		t.Fatalf("expected 0 bytes read, got %d", n)
	}
	if !errors.Is(err, tlsport.ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock, got %v", err)
	}
}

func TestReadReturnsAvailableData(t *testing.T) {
	server, client := listenerPair(t)
	defer server.Close()
	defer client.Close()

	sock := New(server)

	if _, err := client.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	buf := make([]byte, 64)
	for {
		n, err := sock.Read(buf)
		if n > 0 {
			if string(buf[:n]) != "hello" {
				t.Fatalf("unexpected payload: %q", buf[:n])
			}
			return
		}
		if err != nil && !errors.Is(err, tlsport.ErrWouldBlock) {
			t.Fatalf("Read: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for data")
		}
	}
}

func TestWritePassesThrough(t *testing.T) {
	server, client := listenerPair(t)
	defer server.Close()
	defer client.Close()

	sock := New(server)
	if _, err := sock.Write([]byte("ping")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	if string(buf[:n]) != "ping" {
		t.Fatalf("unexpected payload: %q", buf[:n])
	}
}
