package telemetry

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/bms-iot/telemetry/pkg/types"
)

// DefaultTimeout is the default bound for dialing and for one round trip
const DefaultTimeout = 5 * time.Second

// Client talks to a telemetry server, one request per round trip
type Client struct {
	Host    string
	Port    int
	Timeout time.Duration

	mutex     sync.Mutex //serializes round trips and guards connection state
	conn      net.Conn
	reader    *bufio.Reader
	connected bool
}

// ClientFactory creates a new client for the given server address
func ClientFactory(host string, port int, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		Host:    host,
		Port:    port,
		Timeout: timeout,
	}
}

// Connect opens the TCP connection; calling it while connected is a no-op
func (c *Client) Connect() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	if c.connected {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", c.Host, c.Port)
	conn, err := net.DialTimeout("tcp", addr, c.Timeout)
	if err != nil {
		return fmt.Errorf("error connecting to %s: %w", addr, err)
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.connected = true
	return nil
}

// Disconnect closes the connection; safe to call when not connected
func (c *Client) Disconnect() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.dropLocked()
}

func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.reader = nil
	}
	c.connected = false
}

// Connected reports whether the client currently holds a live connection
func (c *Client) Connected() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.connected
}

// Send performs one request/response round trip, connecting lazily if
// needed. Any I/O or decode failure drops the connection; the caller must
// reconnect to retry.
func (c *Client) Send(req *Request) (*Response, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.connectLocked(); err != nil {
		return nil, err
	}

	c.conn.SetDeadline(time.Now().Add(c.Timeout))

	if err := WriteMessage(c.conn, req); err != nil {
		c.dropLocked()
		return nil, err
	}

	resp, err := ReadResponse(c.reader)
	if err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	return resp, nil
}

// ReadSensor reads a single sensor value
func (c *Client) ReadSensor(name string) (float64, error) {
	resp, err := c.Send(&Request{Command: CmdReadSensor, Sensor: name})
	if err != nil {
		return 0, err
	}

	if resp.Status != StatusSuccess {
		return 0, fmt.Errorf("server error: %s", resp.Message)
	}
	if resp.Value == nil {
		return 0, fmt.Errorf("server response missing value for sensor %s", name)
	}
	return *resp.Value, nil
}

// ReadAll reads a snapshot of every sensor
func (c *Client) ReadAll() (map[string]float64, error) {
	resp, err := c.Send(&Request{Command: CmdReadAll})
	if err != nil {
		return nil, err
	}

	if resp.Status != StatusSuccess {
		return nil, fmt.Errorf("server error: %s", resp.Message)
	}
	return resp.Data, nil
}

// DeviceInfo reads the device identity and lifecycle state
func (c *Client) DeviceInfo() (*types.DeviceInfo, error) {
	resp, err := c.Send(&Request{Command: CmdDeviceInfo})
	if err != nil {
		return nil, err
	}

	if resp.Status != StatusSuccess {
		return nil, fmt.Errorf("server error: %s", resp.Message)
	}
	if resp.Info == nil {
		return nil, fmt.Errorf("server response missing device info")
	}
	return resp.Info, nil
}

// WithConnection runs fn with a connected client and guarantees the
// connection is closed afterwards, whatever fn returns
func (c *Client) WithConnection(fn func(*Client) error) error {
	if err := c.Connect(); err != nil {
		return err
	}
	defer c.Disconnect()

	return fn(c)
}
