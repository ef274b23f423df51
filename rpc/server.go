package rpc

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"
)

// Request bodies above this size are rejected outright.
const maxRequestBody = 1 << 20

// Server serves JSON-RPC on "/" and, when a stream is attached, the
// WebSocket event feed on "/events". No read or write deadline is set on
// the underlying http.Server because the event feed holds connections
// open indefinitely; ReadHeaderTimeout still bounds slow-header attacks.
type Server struct {
	handler   *Handler
	stream    *EventStream
	addr      string
	authToken string // empty disables auth
	srv       *http.Server
	ln        net.Listener
}

// NewServer prepares a server on addr. A non-empty authToken requires
// every request to carry "Authorization: Bearer <token>". stream may be
// nil; /events is then not mounted.
func NewServer(addr string, handler *Handler, stream *EventStream, authToken string) *Server {
	s := &Server{handler: handler, stream: stream, addr: addr, authToken: authToken}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveRPC)
	if stream != nil {
		mux.HandleFunc("/events", stream.ServeWS)
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start binds the listener synchronously, so a port conflict surfaces
// here, then serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("[rpc] server: %v", err)
		}
	}()
	return nil
}

// Addr reports the bound address. Valid only after Start; mainly useful
// when listening on port 0.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Stop closes the event feed, then drains in-flight HTTP requests for up
// to five seconds.
func (s *Server) Stop() error {
	if s.stream != nil {
		s.stream.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.authToken != "" && r.Header.Get("Authorization") != "Bearer "+s.authToken {
		writeJSON(w, errResponse(nil, CodeUnauthorized, "unauthorized"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, errResponse(nil, CodeParseError, err.Error()))
		return
	}
	if req.JSONRPC != "2.0" {
		writeJSON(w, errResponse(req.ID, CodeInvalidRequest, "jsonrpc must be '2.0'"))
		return
	}

	writeJSON(w, s.handler.Dispatch(req))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
