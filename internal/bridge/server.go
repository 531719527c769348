// internal/bridge/server.go
package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/forge3d/blenderbridge/internal/schedule"
)

// Logger is the interface for bridge server logging
type Logger interface {
	Printf(format string, v ...interface{})
	Debugf(format string, v ...interface{})
}

// defaultLogger is the default logger that writes to stderr
type defaultLogger struct {
	logger *log.Logger
	debug  bool
}

func newDefaultLogger(debug bool) *defaultLogger {
	return &defaultLogger{
		logger: log.New(os.Stderr, "[bridge] ", log.LstdFlags),
		debug:  debug,
	}
}

func (l *defaultLogger) Printf(format string, v ...interface{}) {
	l.logger.Printf(format, v...)
}

func (l *defaultLogger) Debugf(format string, v ...interface{}) {
	if l.debug {
		l.logger.Printf("[DEBUG] "+format, v...)
	}
}

// EventSink receives job lifecycle notifications for observers. The monitor
// hub implements it; a nil sink is replaced by a no-op.
type EventSink interface {
	JobEvent(jobID, status, message string)
}

// noopSink discards events.
type noopSink struct{}

func (noopSink) JobEvent(jobID, status, message string) {}

// Stats is a snapshot of the server's counters.
type Stats struct {
	TotalConnections  int64 `json:"total_connections"`
	FailedConnections int64 `json:"failed_connections"`
	ActiveConnections int64 `json:"active_connections"`
	JobsSucceeded     int64 `json:"jobs_succeeded"`
	JobsFailed        int64 `json:"jobs_failed"`
	JobsTimedOut      int64 `json:"jobs_timed_out"`
	DroppedProgress   int64 `json:"dropped_progress"`
	QueueDepth        int   `json:"queue_depth"`
}

// Server is the TCP bridge server. It accepts framed script submissions,
// marshals them onto the host thread through the scheduler, and relays
// progress plus exactly one terminal frame back to each client.
type Server struct {
	config *Config
	sched  *schedule.Scheduler
	logger *defaultLogger

	limiter *RateLimiter
	events  EventSink

	mu       sync.RWMutex
	running  bool
	listener net.Listener
	conns    map[net.Conn]struct{}

	quit chan struct{}
	wg   sync.WaitGroup

	// inflight counts requests between submission and their terminal frame.
	// Stop waits for it to drain before closing connections so shutdown
	// never cuts off a pending terminal frame.
	inflight int64

	totalConnections  int64
	failedConnections int64
	activeConnections int64
	jobsSucceeded     int64
	jobsFailed        int64
	jobsTimedOut      int64
	droppedProgress   int64
}

// NewServer creates a new bridge server over the given scheduler.
func NewServer(config *Config, sched *schedule.Scheduler) *Server {
	return &Server{
		config:  config,
		sched:   sched,
		logger:  newDefaultLogger(config.Debug),
		limiter: NewRateLimiter(RateLimiterConfig{RPS: config.RateLimitRPS, Burst: config.RateLimitBurst}),
		events:  noopSink{},
		conns:   make(map[net.Conn]struct{}),
		quit:    make(chan struct{}),
	}
}

// SetEventSink wires an observer for job lifecycle events. Must be called
// before Start.
func (s *Server) SetEventSink(sink EventSink) {
	if sink != nil {
		s.events = sink
	}
}

// Start binds the listen port and begins accepting connections. A bind
// failure is fatal and reported, never retried.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrServerAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		s.mu.Unlock()
		s.logger.Printf("failed to start: %v", err)
		return fmt.Errorf("%w %s: %v", ErrBind, s.config.Addr(), err)
	}

	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.logger.Printf("listening on %s", listener.Addr().String())
	s.logger.Debugf("configuration: max_connections=%d, max_payload=%d, queue_depth=%d, exec_timeout=%v",
		s.config.MaxConnections, s.config.MaxPayloadBytes, s.config.MaxQueueDepth, s.config.ExecTimeout)

	s.wg.Add(1)
	go s.acceptLoop(listener)

	return nil
}

// Stop shuts the server down: intake stops first, then the scheduler is
// closed so every queued job resolves and its handler can write the one
// terminal frame, and only then are connections closed. A request that was
// accepted before Stop still gets its terminal frame unless ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrServerNotRunning
	}
	s.running = false
	listener := s.listener
	s.mu.Unlock()

	s.logger.Printf("stopping bridge server...")

	close(s.quit)
	listener.Close()
	s.limiter.Stop()

	// Resolving stranded jobs unblocks every relay; the job currently on
	// the host thread resolves on its own when the tick finishes.
	s.sched.Close()

	drained := make(chan struct{})
	go func() {
		for atomic.LoadInt64(&s.inflight) > 0 {
			time.Sleep(10 * time.Millisecond)
		}
		close(drained)
	}()

	graceExpired := false
	select {
	case <-drained:
	case <-ctx.Done():
		graceExpired = true
		s.logger.Printf("grace period expired with %d requests in flight", atomic.LoadInt64(&s.inflight))
	}

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if graceExpired {
		return ctx.Err()
	}

	s.logger.Printf("bridge server stopped (total=%d, failed=%d)",
		atomic.LoadInt64(&s.totalConnections), atomic.LoadInt64(&s.failedConnections))
	return nil
}

// Addr returns the bound listen address, useful when port 0 was configured.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// IsRunning returns whether the server is currently running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Stats returns a snapshot of the server counters.
func (s *Server) Stats() Stats {
	return Stats{
		TotalConnections:  atomic.LoadInt64(&s.totalConnections),
		FailedConnections: atomic.LoadInt64(&s.failedConnections),
		ActiveConnections: atomic.LoadInt64(&s.activeConnections),
		JobsSucceeded:     atomic.LoadInt64(&s.jobsSucceeded),
		JobsFailed:        atomic.LoadInt64(&s.jobsFailed),
		JobsTimedOut:      atomic.LoadInt64(&s.jobsTimedOut),
		DroppedProgress:   atomic.LoadInt64(&s.droppedProgress),
		QueueDepth:        s.sched.QueueDepth(),
	}
}

// acceptLoop accepts connections until the listener closes.
func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
			}
			s.logger.Printf("accept error: %v", err)
			continue
		}

		atomic.AddInt64(&s.totalConnections, 1)

		ip := remoteIP(conn)
		if !s.limiter.Allow(ip) {
			s.logger.Printf("rate limit exceeded for %s", ip)
			atomic.AddInt64(&s.failedConnections, 1)
			s.reject(conn, ErrRateLimited.Error())
			continue
		}

		if atomic.LoadInt64(&s.activeConnections) >= int64(s.config.MaxConnections) {
			s.logger.Printf("max connections reached (%d), rejecting %s", s.config.MaxConnections, ip)
			atomic.AddInt64(&s.failedConnections, 1)
			s.reject(conn, ErrMaxConnectionsReached.Error())
			continue
		}

		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		atomic.AddInt64(&s.activeConnections, 1)
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// reject sends a terminal error frame on a connection that never got a
// handler, then closes it.
func (s *Server) reject(conn net.Conn, reason string) {
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	WriteResponse(conn, NewErrorResponse(reason, ""))
	conn.Close()
}

// handleConn reads framed requests off one connection and drives each to a
// terminal frame. Requests on the same connection are handled one at a
// time, in order; a second request sent while the first is in flight waits
// in the socket buffer.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		atomic.AddInt64(&s.activeConnections, -1)
	}()

	ip := remoteIP(conn)
	s.logger.Printf("client connected: %s", ip)
	defer s.logger.Printf("client disconnected: %s", ip)

	reader := bufio.NewReader(conn)

	for {
		conn.SetReadDeadline(time.Now().Add(s.config.IdleTimeout))

		req, err := ReadRequest(reader, s.config.MaxPayloadBytes)
		if err != nil {
			if err == io.EOF {
				return
			}
			select {
			case <-s.quit:
				return
			default:
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.logger.Debugf("closing idle connection from %s", ip)
				return
			}
			if IsFramingError(err) {
				s.logger.Printf("framing error from %s: %v", ip, err)
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				WriteResponse(conn, NewErrorResponse(fmt.Sprintf("framing error: %v", err), ""))
			} else {
				s.logger.Debugf("read error from %s: %v", ip, err)
			}
			return
		}

		if err := req.Validate(); err != nil {
			s.logger.Debugf("invalid request from %s: %v", ip, err)
			if werr := WriteResponse(conn, NewErrorResponse(err.Error(), "")); werr != nil {
				return
			}
			continue
		}

		if !s.runJob(conn, ip, req.Payload()) {
			return
		}

		// During shutdown the terminal frame for the request above is the
		// last thing this connection carries.
		select {
		case <-s.quit:
			return
		default:
		}
	}
}

// runJob submits one payload and relays its response stream. It returns
// false when the connection is no longer usable.
func (s *Server) runJob(conn net.Conn, ip, code string) bool {
	atomic.AddInt64(&s.inflight, 1)
	defer atomic.AddInt64(&s.inflight, -1)

	job := schedule.NewJob(code)

	if err := s.sched.Submit(job); err != nil {
		s.logger.Printf("rejecting job from %s: %v", ip, err)
		s.events.JobEvent(job.ID, "rejected", err.Error())
		if werr := WriteResponse(conn, NewErrorResponse(err.Error(), "")); werr != nil {
			return false
		}
		// A full queue is a transient condition; a closed scheduler means
		// shutdown, so stop reading.
		return err == schedule.ErrQueueFull
	}

	s.logger.Debugf("job %s queued from %s (%d bytes)", job.ID, ip, len(code))
	s.events.JobEvent(job.ID, "queued", "")

	// Writes below race only with this goroutine; the relay owns the
	// connection until the terminal frame is out.
	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	if err := WriteResponse(conn, NewRunningResponse()); err != nil {
		s.logger.Debugf("write failed for job %s: %v", job.ID, err)
		return false
	}
	s.events.JobEvent(job.ID, StatusRunning, "")

	ok := s.relay(conn, job)
	atomic.AddInt64(&s.droppedProgress, job.Dropped())
	return ok
}

// relay forwards progress events as they arrive and writes exactly one
// terminal frame: the job's outcome, or a timeout error if the wait bound
// expires first. After the terminal frame nothing further is written for
// this job.
func (s *Server) relay(conn net.Conn, job *schedule.Job) bool {
	timer := time.NewTimer(s.config.ExecTimeout)
	defer timer.Stop()

	for {
		select {
		case msg := <-job.Status():
			if err := WriteResponse(conn, NewProgressResponse(msg)); err != nil {
				s.logger.Debugf("dropping job %s: client gone: %v", job.ID, err)
				return false
			}
			s.events.JobEvent(job.ID, StatusProgress, msg)

		case out := <-job.Result():
			// Progress emitted before the outcome is already buffered;
			// flush it so ordering is preserved on the wire.
			if !s.flushStatus(conn, job) {
				return false
			}
			return s.writeTerminal(conn, job, out)

		case <-timer.C:
			atomic.AddInt64(&s.jobsTimedOut, 1)
			s.logger.Printf("job %s timed out after %v (job may still be running)", job.ID, s.config.ExecTimeout)
			s.events.JobEvent(job.ID, "timeout", "")
			err := WriteResponse(conn, NewErrorResponse(
				fmt.Sprintf("%v (waited %v)", ErrExecTimeout, s.config.ExecTimeout), ""))
			return err == nil
		}
	}
}

// flushStatus drains buffered progress events before the terminal frame.
func (s *Server) flushStatus(conn net.Conn, job *schedule.Job) bool {
	for {
		select {
		case msg := <-job.Status():
			if err := WriteResponse(conn, NewProgressResponse(msg)); err != nil {
				return false
			}
			s.events.JobEvent(job.ID, StatusProgress, msg)
		default:
			return true
		}
	}
}

// writeTerminal emits the one terminal frame for a resolved job.
func (s *Server) writeTerminal(conn net.Conn, job *schedule.Job, out schedule.Outcome) bool {
	var resp *Response
	if out.OK {
		atomic.AddInt64(&s.jobsSucceeded, 1)
		resp = NewOKResponse()
		s.events.JobEvent(job.ID, StatusOK, "")
	} else {
		atomic.AddInt64(&s.jobsFailed, 1)
		resp = NewErrorResponse(out.Message, out.Trace)
		s.events.JobEvent(job.ID, StatusError, out.Message)
	}
	if err := WriteResponse(conn, resp); err != nil {
		s.logger.Debugf("terminal write failed for job %s: %v", job.ID, err)
		return false
	}
	return true
}

// remoteIP extracts the IP from a connection's remote address.
func remoteIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}
