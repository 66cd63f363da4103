package telemetry

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/bms-iot/telemetry/pkg/types"
)

const (
	//acceptPollInterval bounds how long the accept loop blocks before
	//re-checking the running flag
	acceptPollInterval = 1 * time.Second

	//readPollInterval bounds how long a handler waits for the first byte
	//of a request, so shutdown is observed even with an idle peer
	readPollInterval = 1 * time.Second

	//requestReadTimeout is how long a request may take to arrive in full
	//once its first byte has been seen
	requestReadTimeout = 30 * time.Second

	//writeTimeout bounds a single response write
	writeTimeout = 10 * time.Second

	//drainTimeout bounds how long Stop waits for open handlers to exit
	drainTimeout = 5 * time.Second
)

// Device is the read surface the server exposes over the wire. The server
// never writes to it.
type Device interface {
	Value(name string) (float64, bool)
	Snapshot() map[string]float64
	Info() types.DeviceInfo
}

// Server exposes the readings of a device to TCP clients through a
// line-oriented JSON request/response protocol
type Server struct {
	Host string
	Port int

	device   Device
	listener *net.TCPListener
	wg       sync.WaitGroup
	running  bool
	mutex    sync.Mutex
}

// ServerFactory creates a new telemetry server for the given device
func ServerFactory(host string, port int, dev Device) *Server {
	return &Server{
		Host:   host,
		Port:   port,
		device: dev,
	}
}

// Start binds the listening socket and starts the accept loop
func (s *Server) Start() error {
	s.mutex.Lock()
	if s.running {
		s.mutex.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.mutex.Unlock()

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.mutex.Lock()
		s.running = false
		s.mutex.Unlock()
		return fmt.Errorf("error starting server on %s: %w", addr, err)
	}
	s.listener = listener.(*net.TCPListener)

	log.Printf("Telemetry server started on %s for device %s", s.listener.Addr(), s.device.Info().DeviceID)

	//accept connections in a goroutine
	go s.acceptConnections()

	return nil
}

// Stop closes the listener and waits for all open handlers with a bounded
// timeout; a timeout is logged, not fatal
func (s *Server) Stop() error {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return fmt.Errorf("server not running")
	}
	s.running = false
	s.mutex.Unlock()

	err := s.listener.Close()

	//wait for all connections to finish, but only so long
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Printf("Telemetry server stopped")
	case <-time.After(drainTimeout):
		log.Printf("Open connections did not drain within %v", drainTimeout)
	}

	return err
}

// Addr returns the bound listener address, useful when Port was 0
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) isRunning() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.running
}

// acceptConnections accepts new connections and handles each in its own
// goroutine. The accept deadline only exists to poll the running flag, it
// never rejects a connection.
func (s *Server) acceptConnections() {
	for s.isRunning() {
		s.listener.SetDeadline(time.Now().Add(acceptPollInterval))

		conn, err := s.listener.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			//the server has shut down so there is nothing to report
			if !s.isRunning() {
				break
			}

			log.Printf("Error accepting connection: %v", err)
			continue
		}

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer c.Close()

			s.handleConnection(c)
		}(conn)
	}
}

// handleConnection serves one client until it disconnects, an I/O error
// occurs or the server shuts down. A malformed request gets an error
// response; it never tears the session down.
func (s *Server) handleConnection(conn net.Conn) {
	log.Printf("Client connected from %s", conn.RemoteAddr())
	defer log.Printf("Client %s disconnected", conn.RemoteAddr())

	reader := bufio.NewReader(conn)

	for s.isRunning() {
		//wait for the first byte with a short deadline; Peek does not
		//consume, so a timeout here loses nothing
		conn.SetReadDeadline(time.Now().Add(readPollInterval))
		if _, err := reader.Peek(1); err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if !errors.Is(err, io.EOF) {
				log.Printf("Error reading from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}

		//a request has started, give it a full read window
		conn.SetReadDeadline(time.Now().Add(requestReadTimeout))

		req, err := ReadRequest(reader)
		if err != nil {
			var decodeErr *DecodeError
			if errors.As(err, &decodeErr) {
				//malformed payload, answer and keep the session alive
				if werr := s.writeResponse(conn, ErrorResponse(decodeErr.Error())); werr != nil {
					return
				}
				continue
			}

			if !errors.Is(err, io.EOF) {
				log.Printf("Error reading from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}

		resp := s.dispatch(req)
		if err := s.writeResponse(conn, resp); err != nil {
			log.Printf("Error writing response to %s: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

func (s *Server) writeResponse(conn net.Conn, resp *Response) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return WriteMessage(conn, resp)
}

// dispatch executes one command against the device. All failures become an
// error response; nothing escapes the handler.
func (s *Server) dispatch(req *Request) *Response {
	switch req.Command {
	case CmdReadSensor:
		value, ok := s.device.Value(req.Sensor)
		if !ok {
			return ErrorResponse(fmt.Sprintf("unknown sensor: %s", req.Sensor))
		}
		return &Response{
			Status: StatusSuccess,
			Sensor: req.Sensor,
			Value:  &value,
		}

	case CmdReadAll:
		return &Response{
			Status:    StatusSuccess,
			Data:      s.device.Snapshot(),
			Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		}

	case CmdDeviceInfo:
		info := s.device.Info()
		return &Response{
			Status: StatusSuccess,
			Info:   &info,
		}

	default:
		return ErrorResponse("Unknown command")
	}
}
