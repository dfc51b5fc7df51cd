package topology

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/s3sim/core/addr"
	"github.com/s3sim/core/entity"
	"github.com/s3sim/core/ltime"
	"github.com/s3sim/core/message"
	"github.com/s3sim/core/nic"
	"github.com/s3sim/core/scheduler"
	"github.com/s3sim/core/socket"
)

func newTestEngine(t *testing.T) *entity.Engine {
	t.Helper()
	e, err := entity.NewEngine(1, nil)
	require.NoError(t, err)
	return e
}

func TestPointToPointTCPHandshakeAndData(t *testing.T) {
	e := newTestEngine(t)
	b := NewBuilder(e)

	link := LinkSpec{MinDelay: ltime.D2T(0.001, 6), PropDelay: ltime.D2T(0.001, 6), BitrateBps: 10_000_000}
	client, server, err := NewPointToPoint(b, entity.TopNet,
		HostSpec{Name: "client", TimelineID: 0, IP: addr.IPAddr(0x0A000001), Queue: nic.DroptailConfig{}},
		HostSpec{Name: "server", TimelineID: 0, IP: addr.IPAddr(0x0A000002), Queue: nic.DroptailConfig{}},
		link,
	)
	require.NoError(t, err)

	require.NoError(t, e.BuildModel())
	e.InitModel()
	defer e.Close()

	serverSock := server.Sockets.NewSocket()
	require.NoError(t, server.Sockets.Bind(serverSock, 9000, "tcp"))

	var acceptedID int
	var acceptFailed bool
	server.Sockets.Accept(serverSock, true, &acceptedID, socket.Continuation{
		Success: func(int) {},
		Failure: func() { acceptFailed = true },
	})

	clientSock := client.Sockets.NewSocket()
	require.NoError(t, client.Sockets.Bind(clientSock, 0, "tcp"))

	var connected, connectFailed bool
	client.Sockets.Connect(clientSock, addr.IPAddr(0x0A000002), 9000, socket.Continuation{
		Success: func(int) { connected = true },
		Failure: func() { connectFailed = true },
	})

	_, err = e.Sched.Advance(scheduler.StopBeforeTime, ltime.D2T(1.0, 6), scheduler.StopOnAll, nil)
	require.NoError(t, err)

	require.False(t, connectFailed)
	require.False(t, acceptFailed)
	require.True(t, connected)

	acceptedSock := server.Sockets
	_ = acceptedSock
	require.NotZero(t, acceptedID)

	var sent int
	var sendFailed bool
	client.Sockets.Send(clientSock, message.DataChunk{RealLength: 64}, socket.Continuation{
		Success: func(n int) { sent = n },
		Failure: func() { sendFailed = true },
	})

	_, err = e.Sched.Advance(scheduler.StopBeforeTime, ltime.D2T(2.0, 6), scheduler.StopOnAll, nil)
	require.NoError(t, err)

	require.False(t, sendFailed)
	require.Equal(t, 64, sent)
}

func TestStarTopologyWiresLeavesThroughRouter(t *testing.T) {
	e := newTestEngine(t)
	b := NewBuilder(e)

	link := LinkSpec{MinDelay: ltime.D2T(0.001, 6), PropDelay: ltime.D2T(0.001, 6), BitrateBps: 10_000_000}
	leaves := []HostSpec{
		{Name: "leaf0", TimelineID: 0, IP: addr.IPAddr(0x0A000010)},
		{Name: "leaf1", TimelineID: 0, IP: addr.IPAddr(0x0A000011)},
	}
	routerIPs := []addr.IPAddr{addr.IPAddr(0x0A0000F0), addr.IPAddr(0x0A0000F1)}

	router, hosts, err := NewStar(b, entity.TopNet, leaves, routerIPs, "router", 0, link)
	require.NoError(t, err)
	require.Len(t, hosts, 2)
	require.Len(t, router.Ifaces, 2)

	route, ok := router.FIB.GetRoute(addr.IPAddr(0x0A000011))
	require.True(t, ok)
	require.Equal(t, router.Ifaces[1], route.Nic)
}
