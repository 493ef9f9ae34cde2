// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheme maintains the broker registry a Core owns per listening
// or dialing endpoint: lookup by id, convenience network accessors, and
// the callback set brokers invoke on events. This is the indirection
// point where protocol layers (HTTP, WebSocket, ...) plug into the
// reactor.
package scheme

import (
	"fmt"
	"net"
	"sync"

	"github.com/corenetio/corenet/broker"
)

// Callbacks is the event set a Scheme publishes; Core wires each member
// to the matching broker.Callbacks slot when a broker is registered.
type Callbacks struct {
	OnConnect    func(id broker.ID)
	OnDisconnect func(id broker.ID)
	OnRead       func(id broker.ID)
	OnWrite      func(id broker.ID)
	OnTimeout    func(id broker.ID)
}

// Endpoint is the address/hardware metadata scheme tracks per broker,
// independent of Broker itself so that a listening endpoint's bind
// address and a connected peer's remote address use the same shape.
type Endpoint struct {
	IP   net.IP
	MAC  net.HardwareAddr
	Port uint16
}

// Scheme is a named collection of brokers sharing one set of callbacks
// and one allow-list of source addresses to dial from.
type Scheme struct {
	Name      string
	Callbacks Callbacks

	// Alive controls whether a dropped client connection is eligible for
	// the reconnect policy (Core consults this before scheduling a retry).
	Alive bool

	// Attempts bounds how many reconnect attempts Core's open(client)
	// path will make for a broker under this scheme before surfacing a
	// disconnect instead of retrying.
	Attempts int

	// SourceAddrs is the allow-list open(client) selects a bind address
	// from before calling connect(): the first entry of the target's
	// address family is used. A nil/empty list, or one with no entry of
	// that family, means "let the kernel pick".
	SourceAddrs []net.IP

	// MaxBrokers caps how many brokers this scheme may hold at once. Zero
	// means unlimited. Core's accept path consults AtCapacity before
	// registering a newly accepted connection and rejects it instead of
	// growing past the ceiling.
	MaxBrokers int

	mu       sync.RWMutex
	brokers  map[broker.ID]*broker.Broker
	endpoint map[broker.ID]Endpoint
}

// New creates an empty Scheme named name.
func New(name string) *Scheme {
	return &Scheme{
		Name:     name,
		Attempts: 0,
		brokers:  make(map[broker.ID]*broker.Broker),
		endpoint: make(map[broker.ID]Endpoint),
	}
}

// Register adds b to the scheme's index with the given network endpoint
// metadata, wiring the scheme's callback set onto b.
func (s *Scheme) Register(b *broker.Broker, ep Endpoint) {
	b.Callbacks = broker.Callbacks{
		OnRead:       s.Callbacks.OnRead,
		OnWrite:      s.Callbacks.OnWrite,
		OnConnect:    s.Callbacks.OnConnect,
		OnDisconnect: s.Callbacks.OnDisconnect,
		OnTimeout:    s.Callbacks.OnTimeout,
	}

	s.mu.Lock()
	s.brokers[b.ID] = b
	s.endpoint[b.ID] = ep
	s.mu.Unlock()
}

// Unregister removes bid from the scheme's index without touching the
// broker's own state; Core calls this as part of close(bid) after the
// broker has already been torn down.
func (s *Scheme) Unregister(bid broker.ID) {
	s.mu.Lock()
	delete(s.brokers, bid)
	delete(s.endpoint, bid)
	s.mu.Unlock()
}

// Lookup returns the broker registered under bid, if any.
func (s *Scheme) Lookup(bid broker.ID) (*broker.Broker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.brokers[bid]
	return b, ok
}

// IP returns bid's tracked IP address.
func (s *Scheme) IP(bid broker.ID) (net.IP, error) {
	ep, err := s.endpointOf(bid)
	if err != nil {
		return nil, err
	}
	return ep.IP, nil
}

// MAC returns bid's tracked hardware address.
func (s *Scheme) MAC(bid broker.ID) (net.HardwareAddr, error) {
	ep, err := s.endpointOf(bid)
	if err != nil {
		return nil, err
	}
	return ep.MAC, nil
}

// Port returns bid's tracked port.
func (s *Scheme) Port(bid broker.ID) (uint16, error) {
	ep, err := s.endpointOf(bid)
	if err != nil {
		return 0, err
	}
	return ep.Port, nil
}

// Socket returns bid's raw socket descriptor.
func (s *Scheme) Socket(bid broker.ID) (int, error) {
	b, ok := s.Lookup(bid)
	if !ok {
		return -1, fmt.Errorf("scheme %q: unknown broker %d", s.Name, bid)
	}
	return b.SocketFD, nil
}

func (s *Scheme) endpointOf(bid broker.ID) (Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ep, ok := s.endpoint[bid]
	if !ok {
		return Endpoint{}, fmt.Errorf("scheme %q: unknown broker %d", s.Name, bid)
	}
	return ep, nil
}

// Len reports how many brokers are currently registered.
func (s *Scheme) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.brokers)
}

// AtCapacity reports whether the scheme has reached MaxBrokers. A
// MaxBrokers of zero never reports at capacity.
func (s *Scheme) AtCapacity() bool {
	if s.MaxBrokers <= 0 {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.brokers) >= s.MaxBrokers
}

// Each calls fn once per registered broker, in no particular order. fn
// must not register or unregister brokers on this scheme.
func (s *Scheme) Each(fn func(*broker.Broker)) {
	s.mu.RLock()
	snapshot := make([]*broker.Broker, 0, len(s.brokers))
	for _, b := range s.brokers {
		snapshot = append(snapshot, b)
	}
	s.mu.RUnlock()

	for _, b := range snapshot {
		fn(b)
	}
}

// Clear drains every registered broker: each is transitioned to CLOSING,
// given its exactly-once Disconnect call, and dropped from the index.
// The caller (Core) is expected to have already closed the underlying
// socket descriptors; Clear only handles the scheme-level bookkeeping.
func (s *Scheme) Clear() {
	s.mu.Lock()
	brokers := make([]*broker.Broker, 0, len(s.brokers))
	for _, b := range s.brokers {
		brokers = append(brokers, b)
	}
	s.brokers = make(map[broker.ID]*broker.Broker)
	s.endpoint = make(map[broker.ID]Endpoint)
	s.mu.Unlock()

	for _, b := range brokers {
		b.Fail()
		b.Disconnect()
	}
}
