package tracking

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SessionState tracks the session lifecycle. Transitions only move forward:
// Connecting -> Authenticated -> Active -> Closed, with Closed reachable
// from any state.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the server side of one live connection: the verified identity,
// the set of joined order topics, and the outbound delivery queue. Outbound
// events pass through a buffered channel drained by a single writer
// goroutine so fan-out never blocks on a slow consumer.
type Session struct {
	id           uuid.UUID
	identity     Identity
	transport    Transport
	send         chan OutboundEvent
	done         chan struct{}
	state        atomic.Int32
	closeOnce    sync.Once
	writeTimeout time.Duration
	onClose      func(*Session)

	mu     sync.Mutex
	joined map[uuid.UUID]struct{}
}

func newSession(identity Identity, transport Transport, buffer int, writeTimeout time.Duration, onClose func(*Session)) *Session {
	if buffer <= 0 {
		buffer = 32
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	s := &Session{
		id:           uuid.New(),
		identity:     identity,
		transport:    transport,
		send:         make(chan OutboundEvent, buffer),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		onClose:      onClose,
		joined:       make(map[uuid.UUID]struct{}),
	}
	s.state.Store(int32(StateAuthenticated))
	return s
}

// ID returns the server-assigned session id.
func (s *Session) ID() uuid.UUID { return s.id }

// Identity returns the identity attached at authentication time.
func (s *Session) Identity() Identity { return s.identity }

// State returns the current lifecycle state.
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// RoleChannel returns the channel this session was auto-joined to.
func (s *Session) RoleChannel() string {
	return RoleChannel(s.identity.Role, s.identity.SubjectID)
}

func (s *Session) markActive() {
	s.state.CompareAndSwap(int32(StateAuthenticated), int32(StateActive))
}

// Enqueue queues an event for delivery. A full buffer means the consumer
// cannot keep up; the session is closed rather than blocking the router.
func (s *Session) Enqueue(evt OutboundEvent) bool {
	if s.State() == StateClosed {
		return false
	}
	select {
	case s.send <- evt:
		return true
	default:
		s.Close("send buffer overflow")
		return false
	}
}

// Close transitions the session to Closed, releases its memberships via the
// onClose hook and tears down the transport. Safe to call more than once.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.done)
		if s.onClose != nil {
			s.onClose(s)
		}
		if s.transport != nil {
			_ = s.transport.Close(reason)
		}
	})
}

// Done is closed when the session reaches Closed.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) trackJoin(orderID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joined[orderID] = struct{}{}
}

func (s *Session) trackLeave(orderID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.joined, orderID)
}

func (s *Session) joinedOrders() map[uuid.UUID]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]struct{}, len(s.joined))
	for id := range s.joined {
		out[id] = struct{}{}
	}
	return out
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case evt := <-s.send:
			ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
			err := s.transport.WriteEvent(ctx, evt)
			cancel()
			if err != nil {
				s.Close("write failed")
				return
			}
		}
	}
}
