package main

import (
	"net"
	"testing"
	"time"
)

func TestHandshakeAgreesOnTrafficKeys(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	type result struct {
		tx, rx [32]byte
		err    error
	}

	serverCh := make(chan result, 1)
	clientCh := make(chan result, 1)

	go func() {
		tx, rx, err := serverHandshake(serverConn)
		serverCh <- result{tx, rx, err}
	}()
	go func() {
		tx, rx, err := clientHandshake(clientConn)
		clientCh <- result{tx, rx, err}
	}()

	var server, client result
	select {
	case server = <-serverCh:
	case <-time.After(5 * time.Second):
		t.Fatal("server handshake timed out")
	}
	select {
	case client = <-clientCh:
	case <-time.After(5 * time.Second):
		t.Fatal("client handshake timed out")
	}

	if server.err != nil {
		t.Fatalf("server handshake: %v", server.err)
	}
	if client.err != nil {
		t.Fatalf("client handshake: %v", client.err)
	}

	if server.tx != client.rx {
		t.Fatal("server's tx key does not match client's rx key")
	}
	if server.rx != client.tx {
		t.Fatal("server's rx key does not match client's tx key")
	}
	if server.tx == server.rx {
		t.Fatal("server tx and rx keys must differ")
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := readFrame(serverConn)
		errCh <- err
	}()

	go func() {
		lenPrefix := []byte{0xFF, 0xFF, 0xFF, 0xFF}
		clientConn.Write(lenPrefix)
	}()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected an error for an oversized declared frame length")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("readFrame timed out")
	}
}
