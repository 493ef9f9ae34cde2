//go:build linux || darwin || freebsd || netbsd || dragonfly || openbsd

// SPDX-License-Identifier: GPL-3.0-or-later

package corenet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"syscall"
	"time"

	"github.com/corenetio/corenet/broker"
	"github.com/corenetio/corenet/dispatcher"
	"github.com/corenetio/corenet/internal/poller"
	"github.com/corenetio/corenet/internal/sockopt"
	"github.com/corenetio/corenet/scheme"
	"golang.org/x/sys/unix"
)

func toSockoptKeepAlive(p *KeepAliveParams) sockopt.KeepAliveParams {
	if p == nil {
		return sockopt.KeepAliveParams{}
	}
	return sockopt.KeepAliveParams{
		Idle:     int(p.Idle / time.Second),
		Interval: int(p.Interval / time.Second),
		Count:    p.Count,
	}
}

func familyFor(addr netip.Addr) int {
	if addr.Is4() || addr.Is4In6() {
		return unix.AF_INET
	}
	return unix.AF_INET6
}

// Open resolves and brings up sid per its [SchemeDef]: bind+listen for a
// listening scheme, or DNS-lookup+connect for a client scheme.
func (c *Core) Open(ctx context.Context, sid SchemeID) error {
	c.mu.Lock()
	def, ok := c.schemes[sid]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("corenet: unknown scheme %d", sid)
	}
	if def.Listen {
		return c.openListener(sid, def)
	}
	return c.openClient(ctx, sid, def)
}

func (c *Core) openListener(sid SchemeID, def *SchemeDef) error {
	addr, err := netip.ParseAddrPort(def.ListenAddr)
	if err != nil {
		return fmt.Errorf("corenet: parsing listen address %q: %w", def.ListenAddr, err)
	}

	family := familyFor(addr.Addr())
	var fd int
	if def.Network == "udp" {
		fd, err = sockopt.NewDatagramSocket(family)
	} else {
		fd, err = sockopt.NewStreamSocket(family)
	}
	if err != nil {
		return NewKindError(ErrKindStart, err)
	}

	if err := sockopt.SetReuseAddr(fd); err != nil {
		c.Logger.Warn("open: SetReuseAddr failed", "error", err)
	}
	if err := sockopt.Bind(fd, addr); err != nil {
		return NewKindError(ErrKindStart, err)
	}
	if def.Network != "udp" {
		if err := sockopt.Listen(fd); err != nil {
			return NewKindError(ErrKindStart, err)
		}
	}

	bid := c.allocateBrokerID()
	b := broker.New(bid, fd)
	b.Listening = true
	b.TransitionTo(broker.OPEN)
	def.Scheme.Register(b, schemeEndpointFrom(addr))

	c.mu.Lock()
	c.brokerScheme[bid] = sid
	c.mu.Unlock()

	return c.dispatcher.RegisterFD(fd, poller.Readable, dispatcher.Handlers{
		OnReadable: func() { c.acceptLoop(sid, def, b) },
		OnError:    func() { c.Logger.Error("open: listener socket error", "broker", bid) },
	})
}

func (c *Core) acceptLoop(sid SchemeID, def *SchemeDef, listener *broker.Broker) {
	for {
		nfd, sa, err := sockopt.Accept(listener.SocketFD)
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
				return
			}
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			c.Logger.Warn("accept: tuning/accept failed", "error", err)
			return
		}

		if def.Scheme.AtCapacity() {
			c.Logger.Info("accept: scheme at MaxBrokers capacity, rejecting", "scheme", def.Scheme.Name)
			unix.Close(nfd)
			continue
		}

		if err := sockopt.SetNoDelay(nfd); err != nil {
			c.Logger.Warn("accept: SetNoDelay failed", "error", err)
		}
		if def.KeepAlive != nil {
			if err := sockopt.SetKeepAlive(nfd, toSockoptKeepAlive(def.KeepAlive)); err != nil {
				c.Logger.Warn("accept: SetKeepAlive failed", "error", err)
			}
		}

		ep, _ := sockopt.AddrPortFromSockaddr(sa)
		bid := c.allocateBrokerID()
		nb := broker.New(bid, nfd)
		nb.Timeouts = schemeTimeoutsFrom(c.Config)
		nb.TransitionTo(broker.OPEN)
		def.Scheme.Register(nb, schemeEndpointFrom(ep))

		c.mu.Lock()
		c.brokerScheme[bid] = sid
		c.mu.Unlock()

		if err := c.dispatcher.RegisterFD(nfd, poller.Readable, dispatcher.Handlers{
			OnReadable: func() { c.onReadableSocket(nb, def) },
			OnWritable: func() { c.onWritable(nb) },
			OnError:    func() { c.failBroker(nb, def) },
		}); err != nil {
			c.Logger.Warn("accept: RegisterFD failed", "error", err)
			continue
		}
		if nb.Callbacks.OnConnect != nil {
			nb.Callbacks.OnConnect(bid)
		}
	}
}

func (c *Core) openClient(ctx context.Context, sid SchemeID, def *SchemeDef) error {
	resolver := def.Resolver
	if resolver == nil {
		resolver = c.Config.ResolverOrDefault()
	}
	addrs, err := resolver.LookupAddrs(ctx, def.DialHost)
	if err != nil || len(addrs) == 0 {
		return NewKindError(ErrKindConnect, err)
	}
	target := netip.AddrPortFrom(addrs[0], def.DialPort)

	family := familyFor(target.Addr())
	var fd int
	if def.Network == "udp" {
		fd, err = sockopt.NewDatagramSocket(family)
	} else {
		fd, err = sockopt.NewStreamSocket(family)
	}
	if err != nil {
		return NewKindError(ErrKindStart, err)
	}
	for _, ip := range def.Scheme.SourceAddrs {
		src, ok := netip.AddrFromSlice(ip)
		if !ok || familyFor(src) != family {
			continue
		}
		if err := sockopt.Bind(fd, netip.AddrPortFrom(src.Unmap(), 0)); err != nil {
			_ = unix.Close(fd)
			return NewKindError(ErrKindStart, err)
		}
		break
	}
	if err := sockopt.SetNoDelay(fd); err != nil {
		c.Logger.Warn("open: SetNoDelay failed", "error", err)
	}
	if def.KeepAlive != nil {
		if err := sockopt.SetKeepAlive(fd, toSockoptKeepAlive(def.KeepAlive)); err != nil {
			c.Logger.Warn("open: SetKeepAlive failed", "error", err)
		}
	}

	bid := c.allocateBrokerID()
	b := broker.New(bid, fd)
	b.Timeouts = schemeTimeoutsFrom(c.Config)
	b.TransitionTo(broker.CONNECTING)
	def.Scheme.Register(b, schemeEndpointFrom(target))

	c.mu.Lock()
	c.brokerScheme[bid] = sid
	c.mu.Unlock()

	return c.beginConnect(sid, def, b, target)
}

func (c *Core) beginConnect(sid SchemeID, def *SchemeDef, b *broker.Broker, target netip.AddrPort) error {
	c.mu.Lock()
	if c.dialTargets == nil {
		c.dialTargets = make(map[broker.ID]netip.AddrPort)
	}
	c.dialTargets[b.ID] = target
	c.mu.Unlock()

	err := sockopt.Connect(b.SocketFD, target)
	if err == nil {
		c.finishConnect(sid, def, b)
		return nil
	}
	if !errors.Is(err, syscall.EINPROGRESS) {
		c.abandonConnect(sid, def, b)
		return NewKindError(ErrKindConnect, err)
	}

	regErr := c.dispatcher.RegisterFD(b.SocketFD, poller.Writable, dispatcher.Handlers{
		OnWritable: func() { c.onConnectWritable(sid, def, b) },
		OnError:    func() { c.onConnectWritable(sid, def, b) },
	})
	if regErr != nil {
		return regErr
	}

	if c.Config.ConnectTimeout > 0 {
		tid := c.dispatcher.SetTimeout(c.Config.ConnectTimeout, func(dispatcher.TimerID) {
			c.onConnectTimeout(sid, def, b)
		})
		c.mu.Lock()
		if c.connectTimers == nil {
			c.connectTimers = make(map[broker.ID]dispatcher.TimerID)
		}
		c.connectTimers[b.ID] = tid
		c.mu.Unlock()
	}
	return nil
}

func (c *Core) onConnectWritable(sid SchemeID, def *SchemeDef, b *broker.Broker) {
	c.clearConnectTimer(b.ID)
	_ = c.dispatcher.UnregisterFD(b.SocketFD)

	if err := sockopt.SocketError(b.SocketFD); err != nil {
		c.retryOrAbandon(sid, def, b)
		return
	}
	c.finishConnect(sid, def, b)
}

func (c *Core) onConnectTimeout(sid SchemeID, def *SchemeDef, b *broker.Broker) {
	_ = c.dispatcher.UnregisterFD(b.SocketFD)
	b.DispatchTimeout()
	c.retryOrAbandon(sid, def, b)
}

func (c *Core) finishConnect(sid SchemeID, def *SchemeDef, b *broker.Broker) {
	c.mu.Lock()
	delete(c.dialTargets, b.ID)
	c.mu.Unlock()

	b.TransitionTo(broker.OPEN)
	_ = c.dispatcher.RegisterFD(b.SocketFD, poller.Readable, dispatcher.Handlers{
		OnReadable: func() { c.onReadableSocket(b, def) },
		OnWritable: func() { c.onWritable(b) },
		OnError:    func() { c.failBroker(b, def) },
	})
	if b.Callbacks.OnConnect != nil {
		b.Callbacks.OnConnect(b.ID)
	}
}

// retryOrAbandon implements the reconnect policy: a failed client connect
// retries once more if the scheme is still alive and under its attempt
// budget, otherwise the broker's failure is surfaced as a disconnect.
func (c *Core) retryOrAbandon(sid SchemeID, def *SchemeDef, b *broker.Broker) {
	attempt := b.IncrementAttempt()
	_ = unix.Close(b.SocketFD)

	c.mu.Lock()
	target, haveTarget := c.dialTargets[b.ID]
	c.mu.Unlock()

	if def.Scheme.Alive && attempt <= def.Scheme.Attempts && haveTarget {
		family := familyFor(target.Addr())
		var fd int
		var err error
		if def.Network == "udp" {
			fd, err = sockopt.NewDatagramSocket(family)
		} else {
			fd, err = sockopt.NewStreamSocket(family)
		}
		if err != nil {
			c.abandonConnect(sid, def, b)
			return
		}
		b.SocketFD = fd
		c.dispatcher.SetTimeout(c.Config.ConnectRetryBackoff(), func(dispatcher.TimerID) {
			_ = c.beginConnect(sid, def, b, target)
		})
		return
	}
	c.abandonConnect(sid, def, b)
}

func (c *Core) abandonConnect(sid SchemeID, def *SchemeDef, b *broker.Broker) {
	c.clearConnectTimer(b.ID)
	_ = unix.Close(b.SocketFD)
	b.Fail()
	b.Disconnect()
	def.Scheme.Unregister(b.ID)
	c.markRecentlyDisconnected(b.ID)
}

func (c *Core) clearConnectTimer(bid broker.ID) {
	c.mu.Lock()
	tid, ok := c.connectTimers[bid]
	if ok {
		delete(c.connectTimers, bid)
	}
	c.mu.Unlock()
	if ok {
		c.dispatcher.ClearTimer(tid)
	}
}

func (c *Core) markRecentlyDisconnected(bid broker.ID) {
	c.mu.Lock()
	c.recentlyDisconnected[bid] = c.Config.TimeNow()
	delete(c.brokerScheme, bid)
	c.mu.Unlock()
}

// failBroker drives the CLOSING->exactly-once-disconnect sequence in
// response to a socket-level error observed by the dispatcher.
func (c *Core) failBroker(b *broker.Broker, def *SchemeDef) {
	b.Fail()
	_ = c.dispatcher.UnregisterFD(b.SocketFD)
	_ = unix.Close(b.SocketFD)
	def.Scheme.Unregister(b.ID)
	c.markRecentlyDisconnected(b.ID)
	b.Disconnect()
}

func (c *Core) closeBrokerSocket(b *broker.Broker) {
	_ = c.dispatcher.UnregisterFD(b.SocketFD)
	_ = unix.Close(b.SocketFD)
}

// Close closes one broker (bid != 0) or every broker across every scheme
// (bid == 0).
func (c *Core) Close(bid broker.ID) {
	if bid == 0 {
		c.mu.Lock()
		defs := make([]*SchemeDef, 0, len(c.schemes))
		for _, def := range c.schemes {
			defs = append(defs, def)
		}
		c.mu.Unlock()
		for _, def := range defs {
			def.Scheme.Each(func(b *broker.Broker) { c.Close(b.ID) })
		}
		return
	}

	b, def, ok := c.lookupBroker(bid)
	if !ok {
		return
	}
	c.clearConnectTimer(bid)
	c.closeBrokerSocket(b)
	def.Scheme.Unregister(bid)
	c.markRecentlyDisconnected(bid)
	b.Disconnect()
}

func (c *Core) lookupBroker(bid broker.ID) (*broker.Broker, *SchemeDef, bool) {
	c.mu.Lock()
	sid, ok := c.brokerScheme[bid]
	if !ok {
		c.mu.Unlock()
		return nil, nil, false
	}
	def := c.schemes[sid]
	c.mu.Unlock()
	if def == nil {
		return nil, nil, false
	}
	b, ok := def.Scheme.Lookup(bid)
	if !ok {
		return nil, nil, false
	}
	return b, def, true
}

// Read pulls up to ReadMark.Max already-buffered bytes for bid. Callers
// invoke this from within the broker's read callback to actually consume
// bytes; a nil slice with a nil error means nothing is buffered (the
// watermark hasn't been crossed, or the callback was invoked speculatively).
// The socket itself is read by the dispatcher's readability handler, which
// accumulates into the broker's inbox and only triggers the read callback
// once ReadMark.Min bytes are available — see onReadableSocket.
func (c *Core) Read(bid broker.ID) ([]byte, error) {
	b, _, ok := c.lookupBroker(bid)
	if !ok {
		return nil, fmt.Errorf("corenet: unknown broker %d", bid)
	}
	if b.InboxLen() == 0 {
		return nil, nil
	}
	return b.DrainInbox(), nil
}

// onReadableSocket is the dispatcher's OnReadable handler for an open
// broker. It performs the actual recv syscall, feeds the bytes into the
// broker's inbox, and delivers the read callback only once the inbox has
// crossed ReadMark.Min — implementing the read watermark without the user
// callback ever touching the socket directly.
func (c *Core) onReadableSocket(b *broker.Broker, def *SchemeDef) {
	scratch := make([]byte, 64*1024)
	var n int
	var err error
	for {
		n, err = unix.Read(b.SocketFD, scratch)
		if err == nil || !errors.Is(err, syscall.EINTR) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
			return
		}
		c.failBroker(b, def)
		return
	}
	if n == 0 {
		c.failBroker(b, def)
		return
	}
	b.AddRXBytes(n)
	if b.FillInbox(scratch[:n]) {
		b.DispatchRead()
	}
}

// Write enqueues data for bid and attempts an immediate partial drain.
func (c *Core) Write(bid broker.ID, data []byte) error {
	b, def, ok := c.lookupBroker(bid)
	if !ok {
		return fmt.Errorf("corenet: unknown broker %d", bid)
	}
	b.Enqueue(data)
	c.flushWrite(b, def)
	return nil
}

func (c *Core) onWritable(b *broker.Broker) {
	_, def, ok := c.lookupBroker(b.ID)
	if !ok {
		return
	}
	c.flushWrite(b, def)
}

func (c *Core) flushWrite(b *broker.Broker, def *SchemeDef) {
	chunk, empty := b.DrainOutbox()
	if len(chunk) == 0 {
		return
	}

	n, err := unix.Write(b.SocketFD, chunk)
	switch {
	case err != nil && errors.Is(err, syscall.EINTR):
		b.Requeue(chunk)
		c.flushWrite(b, def)
		return
	case err != nil && (errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)):
		b.Requeue(chunk)
		_ = c.dispatcher.ModifyFD(b.SocketFD, poller.Readable|poller.Writable)
		return
	case err != nil:
		c.failBroker(b, def)
		return
	}
	b.AddTXBytes(n)

	if n < len(chunk) {
		b.Requeue(chunk[n:])
		_ = c.dispatcher.ModifyFD(b.SocketFD, poller.Readable|poller.Writable)
		return
	}

	if empty {
		_ = c.dispatcher.ModifyFD(b.SocketFD, poller.Readable)
		b.DispatchWrite()
	}
}

func schemeEndpointFrom(addr netip.AddrPort) scheme.Endpoint {
	return scheme.Endpoint{
		IP:   net.IP(addr.Addr().AsSlice()),
		Port: addr.Port(),
	}
}

func schemeTimeoutsFrom(cfg *Config) broker.Timeouts {
	return broker.Timeouts{
		Read:    cfg.ReadTimeout,
		Write:   cfg.WriteTimeout,
		Connect: cfg.ConnectTimeout,
		Idle:    cfg.IdleTimeout,
	}
}
