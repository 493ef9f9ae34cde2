// SPDX-License-Identifier: GPL-3.0-or-later

package scheme_test

import (
	"net"
	"testing"

	"github.com/corenetio/corenet/broker"
	"github.com/corenetio/corenet/scheme"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterWiresCallbacksOntoBroker(t *testing.T) {
	s := scheme.New("echo")
	var connected broker.ID
	s.Callbacks.OnConnect = func(id broker.ID) { connected = id }

	b := broker.New(42, 7)
	s.Register(b, scheme.Endpoint{IP: net.ParseIP("127.0.0.1"), Port: 8080})

	b.Callbacks.OnConnect(b.ID)
	assert.Equal(t, broker.ID(42), connected)
}

func TestAccessorsReturnRegisteredEndpoint(t *testing.T) {
	s := scheme.New("echo")
	b := broker.New(1, 7)
	mac, _ := net.ParseMAC("01:02:03:04:05:06")
	s.Register(b, scheme.Endpoint{IP: net.ParseIP("10.0.0.1"), MAC: mac, Port: 443})

	ip, err := s.IP(1)
	require.NoError(t, err)
	assert.Equal(t, net.ParseIP("10.0.0.1"), ip)

	gotMAC, err := s.MAC(1)
	require.NoError(t, err)
	assert.Equal(t, mac, gotMAC)

	port, err := s.Port(1)
	require.NoError(t, err)
	assert.EqualValues(t, 443, port)

	fd, err := s.Socket(1)
	require.NoError(t, err)
	assert.Equal(t, 7, fd)
}

func TestAccessorsReturnErrorForUnknownBroker(t *testing.T) {
	s := scheme.New("echo")

	_, err := s.IP(99)
	assert.Error(t, err)

	_, err = s.Socket(99)
	assert.Error(t, err)
}

func TestUnregisterRemovesBroker(t *testing.T) {
	s := scheme.New("echo")
	b := broker.New(1, 7)
	s.Register(b, scheme.Endpoint{})
	require.Equal(t, 1, s.Len())

	s.Unregister(1)
	assert.Equal(t, 0, s.Len())
	_, ok := s.Lookup(1)
	assert.False(t, ok)
}

func TestClearDrainsAllBrokersExactlyOnce(t *testing.T) {
	s := scheme.New("echo")
	var disconnects int
	s.Callbacks.OnDisconnect = func(broker.ID) { disconnects++ }

	b1 := broker.New(1, 7)
	b2 := broker.New(2, 8)
	s.Register(b1, scheme.Endpoint{})
	s.Register(b2, scheme.Endpoint{})

	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 2, disconnects)
	assert.Equal(t, broker.CLOSED, b1.State())
	assert.Equal(t, broker.CLOSED, b2.State())
}

func TestEachVisitsEveryRegisteredBroker(t *testing.T) {
	s := scheme.New("echo")
	s.Register(broker.New(1, 7), scheme.Endpoint{})
	s.Register(broker.New(2, 8), scheme.Endpoint{})

	var seen []broker.ID
	s.Each(func(b *broker.Broker) { seen = append(seen, b.ID) })

	assert.ElementsMatch(t, []broker.ID{1, 2}, seen)
}

func TestAtCapacityIsUnboundedByDefault(t *testing.T) {
	s := scheme.New("echo")
	for i := broker.ID(1); i <= 100; i++ {
		s.Register(broker.New(i, int(i)), scheme.Endpoint{})
	}
	assert.False(t, s.AtCapacity())
}

func TestAtCapacityRespectsMaxBrokers(t *testing.T) {
	s := scheme.New("echo")
	s.MaxBrokers = 2

	assert.False(t, s.AtCapacity())
	s.Register(broker.New(1, 7), scheme.Endpoint{})
	assert.False(t, s.AtCapacity())
	s.Register(broker.New(2, 8), scheme.Endpoint{})
	assert.True(t, s.AtCapacity())

	s.Unregister(1)
	assert.False(t, s.AtCapacity())
}
