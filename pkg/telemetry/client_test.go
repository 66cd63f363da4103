package telemetry

import (
	"fmt"
	"net"
	"testing"
	"time"
)

// closedPort returns a port that was just released, so dialing it fails
func closedPort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to grab a port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()
	return port
}

// TestDisconnectWhenNotConnected checks Disconnect is safe to call cold
func TestDisconnectWhenNotConnected(t *testing.T) {
	client := ClientFactory("127.0.0.1", 47808, time.Second)

	client.Disconnect()
	client.Disconnect()

	if client.Connected() {
		t.Error("Expected client to report not connected")
	}
}

// TestConnectIsIdempotent checks a second Connect on a live connection is
// a no-op
func TestConnectIsIdempotent(t *testing.T) {
	_, _, port := startTestServer(t)

	client := ClientFactory("127.0.0.1", port, 2*time.Second)
	defer client.Disconnect()

	if err := client.Connect(); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	if err := client.Connect(); err != nil {
		t.Errorf("Second connect failed: %v", err)
	}
	if !client.Connected() {
		t.Error("Expected client to report connected")
	}
}

// TestSendFailureMarksDisconnected checks the reconnect contract: after a
// failed round trip the client reports not connected and the caller must
// connect again
func TestSendFailureMarksDisconnected(t *testing.T) {
	port := closedPort(t)
	client := ClientFactory("127.0.0.1", port, 500*time.Millisecond)

	_, err := client.Send(&Request{Command: CmdReadAll})
	if err == nil {
		t.Fatal("Expected send to a dead server to fail")
	}
	if client.Connected() {
		t.Error("Expected client to report not connected after failure")
	}
}

// TestWithConnectionAlwaysDisconnects checks the scoped-connection helper
// closes the connection on both success and failure
func TestWithConnectionAlwaysDisconnects(t *testing.T) {
	_, _, port := startTestServer(t)

	client := ClientFactory("127.0.0.1", port, 2*time.Second)

	err := client.WithConnection(func(c *Client) error {
		if _, err := c.ReadAll(); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithConnection failed: %v", err)
	}
	if client.Connected() {
		t.Error("Expected connection to be closed after WithConnection")
	}

	wantErr := fmt.Errorf("boom")
	err = client.WithConnection(func(c *Client) error {
		return wantErr
	})
	if err != wantErr {
		t.Errorf("Expected fn error to propagate, got %v", err)
	}
	if client.Connected() {
		t.Error("Expected connection to be closed after failing WithConnection")
	}
}

// TestLazyConnect checks Send dials on demand without an explicit Connect
func TestLazyConnect(t *testing.T) {
	_, _, port := startTestServer(t)

	client := ClientFactory("127.0.0.1", port, 2*time.Second)
	defer client.Disconnect()

	if client.Connected() {
		t.Fatal("Expected a fresh client to be disconnected")
	}

	resp, err := client.Send(&Request{Command: CmdDeviceInfo})
	if err != nil {
		t.Fatalf("Lazy connect failed: %v", err)
	}
	if resp.Status != StatusSuccess {
		t.Errorf("Expected success, got %s", resp.Status)
	}
	if !client.Connected() {
		t.Error("Expected client to be connected after Send")
	}
}
