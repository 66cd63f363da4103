package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/bms-iot/telemetry/pkg/types"
)

// supported commands, a closed set; anything else gets an error response
const (
	CmdReadSensor = "read_sensor"
	CmdReadAll    = "read_all"
	CmdDeviceInfo = "device_info"
)

// response status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Request represents one command sent by a client
type Request struct {
	Command string `json:"command"`
	Sensor  string `json:"sensor,omitempty"` //only set for read_sensor
}

// Response represents one reply from the server. Only the fields relevant
// to the command are populated; Value is a pointer so a legitimate zero
// reading survives omitempty.
type Response struct {
	Status    string             `json:"status"`
	Message   string             `json:"message,omitempty"`
	Sensor    string             `json:"sensor,omitempty"`
	Value     *float64           `json:"value,omitempty"`
	Data      map[string]float64 `json:"data,omitempty"`
	Timestamp float64            `json:"timestamp,omitempty"`
	Info      *types.DeviceInfo  `json:"info,omitempty"`
}

// ErrorResponse creates an error response with the given message
func ErrorResponse(message string) *Response {
	return &Response{
		Status:  StatusError,
		Message: message,
	}
}

// WriteMessage serializes a request or response as one JSON line.
// Messages are newline-delimited so a reader never depends on TCP
// segment boundaries.
func WriteMessage(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error marshaling message: %w", err)
	}

	data = append(data, '\n')
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("error writing message: %w", err)
	}
	return nil
}

// ReadRequest reads one newline-delimited request from the reader
func ReadRequest(reader *bufio.Reader) (*Request, error) {
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &req, nil
}

// ReadResponse reads one newline-delimited response from the reader
func ReadResponse(reader *bufio.Reader) (*Response, error) {
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &resp, nil
}

// DecodeError marks a payload that arrived intact but was not valid JSON.
// The server answers these with an error response instead of dropping the
// connection.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid request: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
