// Package server is the appliance's HTTP endpoint: a TCP acceptor feeding a
// fixed worker pool, one request per connection.
package server

import (
	"bufio"
	"context"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Lorinet/Hypefuse/lib/config"
	"github.com/Lorinet/Hypefuse/lib/server/httpproto"
	"github.com/Lorinet/Hypefuse/lib/system"
	"github.com/Lorinet/Hypefuse/lib/util/logger"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

var log = logger.GetHypefuseLogger()

// Server accepts connections and hands each one to the worker pool.
type Server struct {
	cfg        config.ServerConfig
	router     *Router
	textPolicy httpproto.TextPolicy

	listener net.Listener
	pool     *WorkerPool

	mu      sync.Mutex
	running bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a server for sys. The listener is not opened until Start.
func New(cfg config.ServerConfig, sys *system.System) (*Server, error) {
	policy, err := httpproto.ParseTextPolicy(cfg.TextPolicy)
	if err != nil {
		return nil, err
	}

	log.WithFields(logger.Fields{
		"at":             "server.New",
		"address":        cfg.Address,
		"workers":        cfg.Workers,
		"queue_depth":    cfg.QueueDepth,
		"status_mapping": cfg.StatusMapping,
		"text_policy":    policy.String(),
	}).Info("creating_server")

	return &Server{
		cfg:        cfg,
		router:     NewRouter(cfg, sys),
		textPolicy: policy,
	}, nil
}

// Start opens the listener and begins accepting connections. A stopped
// server may be started again.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return oops.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return oops.Wrapf(err, "failed to listen on %s", s.cfg.Address)
	}
	s.listener = listener
	s.pool = NewWorkerPool(s.cfg.Workers, s.cfg.QueueDepth)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true

	log.WithFields(logger.Fields{
		"at":      "(Server).Start",
		"address": listener.Addr().String(),
	}).Info("server_started")

	s.wg.Add(1)
	go s.acceptLoop(s.ctx, listener, s.pool)
	return nil
}

// Addr returns the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and waits for queued connections to be served.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	listener, pool, cancel := s.listener, s.pool, s.cancel
	s.mu.Unlock()

	cancel()
	if err := listener.Close(); err != nil {
		log.WithField("at", "(Server).Stop").WithError(err).Warn("error_closing_listener")
	}
	s.wg.Wait()
	pool.Close()

	log.WithField("at", "(Server).Stop").Info("server_stopped")
	return nil
}

// Close implements io.Closer.
func (s *Server) Close() error { return s.Stop() }

func (s *Server) acceptLoop(ctx context.Context, listener net.Listener, pool *WorkerPool) {
	defer s.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.handleAcceptError(ctx, err) {
				return
			}
			continue
		}
		if !pool.Submit(func() { s.handleConnection(conn) }) {
			conn.Close()
			return
		}
	}
}

// handleAcceptError reports whether the accept loop should terminate.
func (s *Server) handleAcceptError(ctx context.Context, err error) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		log.WithField("at", "(Server).acceptLoop").WithError(err).Error("client_connection_error")
		time.Sleep(10 * time.Millisecond)
		return false
	}
}

// handleConnection serves exactly one request and closes the connection.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	entry := log.WithFields(logger.Fields{
		"at":     "(Server).handleConnection",
		"conn":   uuid.NewString(),
		"remote": conn.RemoteAddr().String(),
	})

	defer func() {
		if r := recover(); r != nil {
			err := oops.Errorf("panic while serving request: %v", r)
			entry.WithField("panic", r).WithField("stack", string(debug.Stack())).Error("panic_in_handler")
			s.writeResponse(conn, entry, s.errorResponse(httpproto.ServerError(err)))
		}
	}()

	if s.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}
	req, err := httpproto.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		entry.WithError(err).Warn("failed_to_read_request")
		if httpproto.AsHTTPError(err).Kind == httpproto.KindBadRequest {
			s.writeResponse(conn, entry, s.errorResponse(err))
		}
		return
	}
	entry = entry.WithFields(logger.Fields{
		"method": req.Method.String(),
		"route":  req.Route,
	})

	resp := s.serve(req)
	s.writeResponse(conn, entry, resp)
	entry.WithField("status", resp.Status).Debug("request_served")
}

// serve runs the router and enforces the text policy on the result.
func (s *Server) serve(req *httpproto.Request) *httpproto.Response {
	resp, err := s.router.Dispatch(req)
	if err != nil {
		log.WithFields(logger.Fields{
			"at":    "(Server).serve",
			"route": req.Route,
			"kind":  httpproto.AsHTTPError(err).Kind.String(),
		}).WithError(err).Warn("request_failed")
		return s.errorResponse(err)
	}
	body, err := s.textPolicy.Apply(resp.ContentType, resp.Body)
	if err != nil {
		return s.errorResponse(err)
	}
	resp.Body = body
	return resp
}

// errorResponse converts err into a response. Without status mapping every
// failure is a 500.
func (s *Server) errorResponse(err error) *httpproto.Response {
	if !s.cfg.StatusMapping {
		return httpproto.ErrorResponse(err, 500, s.cfg.ErrorTraces)
	}
	he := httpproto.AsHTTPError(err)
	if he.Kind == httpproto.KindRedirect {
		return httpproto.RedirectTo(he.Target)
	}
	return httpproto.ErrorResponse(err, he.Status(), s.cfg.ErrorTraces)
}

func (s *Server) writeResponse(conn net.Conn, entry *logger.Entry, resp *httpproto.Response) {
	if err := resp.Write(conn); err != nil {
		entry.WithError(err).Warn("failed_to_write_response")
	}
}
