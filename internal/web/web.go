package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bms-iot/telemetry/internal/device"
)

// streamInterval is how often each websocket client receives a snapshot
const streamInterval = 1 * time.Second

// snapshotMessage is what every websocket client receives once per interval
type snapshotMessage struct {
	DeviceID  string             `json:"device_id"`
	Timestamp time.Time          `json:"timestamp"`
	Data      map[string]float64 `json:"data"`
}

// Server serves a live data viewer page and a websocket snapshot stream.
// It is strictly read-only on the device.
type Server struct {
	Addr string

	device     *device.Device
	httpServer *http.Server
	listener   net.Listener
	upgrader   websocket.Upgrader
}

// ServerFactory creates a web view server for the given device
func ServerFactory(addr string, dev *device.Device) *Server {
	return &Server{
		Addr:   addr,
		device: dev,
	}
}

// Start binds the listener and serves in a goroutine
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWebsocket)

	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("error starting web view on %s: %w", s.Addr, err)
	}
	s.listener = listener
	s.httpServer = &http.Server{Handler: mux}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Web view server error: %v", err)
		}
	}()

	log.Printf("Web view started on http://%s", listener.Addr())
	return nil
}

// Stop shuts the HTTP server down with a bounded grace period
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("Error stopping web view: %v", err)
	}
	log.Printf("Web view stopped")
}

// handleWebsocket upgrades the connection and streams snapshots until the
// client goes away
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Error upgrading websocket connection: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("Websocket client connected from %s", conn.RemoteAddr())

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for range ticker.C {
		msg := snapshotMessage{
			DeviceID:  s.device.DeviceID,
			Timestamp: time.Now(),
			Data:      s.device.Snapshot(),
		}

		payload, err := json.Marshal(msg)
		if err != nil {
			log.Printf("Error marshaling snapshot: %v", err)
			return
		}

		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			//client gone, nothing left to do
			return
		}
	}
}

// handleIndex serves a small live viewer page fed by the websocket stream
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	html := `
		<!DOCTYPE html>
		<html>
		<head>
			<title>BMS Sensor Viewer</title>
			<style>
				body { font-family: Arial, sans-serif; margin: 0; padding: 20px; }
				h1 { color: #333; }
				table { border-collapse: collapse; width: 100%; }
				th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
				th { background-color: #f2f2f2; }
				tr:nth-child(even) { background-color: #f9f9f9; }
			</style>
			<script>
				// Live updates over websocket
				document.addEventListener('DOMContentLoaded', () => {
					const ws = new WebSocket('ws://' + location.host + '/ws');
					ws.onmessage = (event) => {
						const msg = JSON.parse(event.data);
						document.getElementById('deviceId').textContent = msg.device_id;
						document.getElementById('updated').textContent = new Date(msg.timestamp).toLocaleString();

						const tableBody = document.getElementById('dataTable').getElementsByTagName('tbody')[0];
						tableBody.innerHTML = '';
						Object.keys(msg.data).sort().forEach(sensor => {
							const row = tableBody.insertRow();
							row.insertCell(0).textContent = sensor;
							row.insertCell(1).textContent = msg.data[sensor].toFixed(2);
						});
					};
				});
			</script>
		</head>
		<body>
			<h1>BMS Sensor Data</h1>
			<p>Device: <span id="deviceId"></span> &mdash; last update: <span id="updated"></span></p>
			<table id="dataTable">
				<thead>
					<tr>
						<th>Sensor</th>
						<th>Value</th>
					</tr>
				</thead>
				<tbody>
					<!-- Filled by the websocket stream -->
				</tbody>
			</table>
		</body>
		</html>
	`

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}
