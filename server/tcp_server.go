package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"championship-engine/models"

	log "github.com/sirupsen/logrus"
)

// TCPServer speaks line-delimited JSON with the game-room and presence
// services: one Command per line in, one Response per line out, with engine
// events pushed to every connection as they happen.
type TCPServer struct {
	address  string
	listener net.Listener
	handler  *CommandHandler
	conns    map[*connection]struct{}
	mu       sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
}

type connection struct {
	net.Conn
	writeMu sync.Mutex
}

func (c *connection) writeLine(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.Write(data)
	return err
}

// NewTCPServer creates a line-protocol server bound to address once Listen is called.
func NewTCPServer(address string, handler *CommandHandler) *TCPServer {
	return &TCPServer{
		address:  address,
		handler:  handler,
		conns:    make(map[*connection]struct{}),
		stopChan: make(chan struct{}),
	}
}

// Listen binds the address; Serve then accepts connections.
func (s *TCPServer) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start server: %v", err)
	}
	s.listener = listener
	log.Printf("[TCP] Server listening on %s", listener.Addr())
	return nil
}

// Addr returns the bound listener address, or nil before Listen.
func (s *TCPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start listens and serves until Stop is called.
func (s *TCPServer) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Serve accepts connections until Stop is called.
func (s *TCPServer) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			log.Printf("[TCP] Error accepting connection: %v", err)
			continue
		}

		log.Printf("[TCP] Client connected from %s", conn.RemoteAddr().String())
		c := &connection{Conn: conn}
		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		go s.handleConnection(c)
	}
}

func (s *TCPServer) handleConnection(conn *connection) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		log.Printf("[TCP] Client %s disconnected", conn.RemoteAddr())
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()

		var cmd models.Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			s.sendResponse(conn, models.Response{
				Success: false,
				Error:   fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}

		s.sendResponse(conn, s.handler.Handle(context.Background(), cmd))
	}

	if err := scanner.Err(); err != nil {
		log.Printf("[TCP] Scanner error: %v", err)
	}
}

func (s *TCPServer) sendResponse(conn *connection, response models.Response) {
	if err := conn.writeLine(response); err != nil {
		log.Printf("[TCP] Error writing response: %v", err)
	}
}

// Deliver pushes an engine event to every connected client. It implements
// notify.Sink.
func (s *TCPServer) Deliver(_ context.Context, event models.Event) error {
	s.mu.Lock()
	conns := make([]*connection, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	frame := struct {
		Type  string       `json:"type"`
		Event models.Event `json:"event"`
	}{Type: "event", Event: event}

	var errs []error
	for _, c := range conns {
		if err := c.writeLine(frame); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.RemoteAddr(), err))
		}
	}
	return errors.Join(errs...)
}

// Stop closes the listener and every open connection.
func (s *TCPServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Lock()
		for c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
	})
}
