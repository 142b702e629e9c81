package tracking

import (
	"fmt"
	"sync"

	"github.com/angelmondragon/trackline-backend/pkg/enums"
	"github.com/google/uuid"
)

// RoleChannel returns the always-subscribed channel name for one actor,
// e.g. "customer:<id>".
func RoleChannel(role enums.ActorRole, actorID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", role, actorID)
}

// Registry holds topic membership for one Router instance. Order topics and
// role channels are both plain fan-out groups; the registry knows nothing
// about authorization.
type Registry struct {
	mu       sync.RWMutex
	orders   map[uuid.UUID]map[*Session]struct{}
	channels map[string]map[*Session]struct{}
}

// NewRegistry creates an empty membership registry.
func NewRegistry() *Registry {
	return &Registry{
		orders:   make(map[uuid.UUID]map[*Session]struct{}),
		channels: make(map[string]map[*Session]struct{}),
	}
}

// JoinOrder adds the session to an order topic. Joining twice is the same
// as joining once.
func (r *Registry) JoinOrder(orderID uuid.UUID, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.orders[orderID]
	if !ok {
		members = make(map[*Session]struct{})
		r.orders[orderID] = members
	}
	members[s] = struct{}{}
}

// LeaveOrder removes the session from an order topic; no-op if absent.
func (r *Registry) LeaveOrder(orderID uuid.UUID, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeFromOrder(orderID, s)
}

// JoinChannel adds the session to a named channel.
func (r *Registry) JoinChannel(channel string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.channels[channel]
	if !ok {
		members = make(map[*Session]struct{})
		r.channels[channel] = members
	}
	members[s] = struct{}{}
}

// RemoveSession releases every membership the session holds, both order
// topics and channels.
func (r *Registry) RemoveSession(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for orderID := range s.joinedOrders() {
		r.removeFromOrder(orderID, s)
	}
	for channel, members := range r.channels {
		delete(members, s)
		if len(members) == 0 {
			delete(r.channels, channel)
		}
	}
}

// OrderMembers snapshots the current members of an order topic. The slice
// is safe to iterate without holding any lock.
func (r *Registry) OrderMembers(orderID uuid.UUID) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.orders[orderID])
}

// ChannelMembers snapshots the current members of a channel.
func (r *Registry) ChannelMembers(channel string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.channels[channel])
}

func (r *Registry) removeFromOrder(orderID uuid.UUID, s *Session) {
	members, ok := r.orders[orderID]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(r.orders, orderID)
	}
}

func snapshot(members map[*Session]struct{}) []*Session {
	if len(members) == 0 {
		return nil
	}
	out := make([]*Session, 0, len(members))
	for s := range members {
		out = append(out, s)
	}
	return out
}
