package server

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dotchat/internal/proto"
	"dotchat/internal/storage"
)

func bootstrapManager(t *testing.T, reapEvery time.Duration) *manager {
	t.Helper()

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	mgr := newManager(logger.Sugar(), bootstrapHandler(t), reapEvery)
	t.Cleanup(mgr.close)
	return mgr
}

// readReply drains one full message from the peer side of a pipe.
func readReply(t *testing.T, conn net.Conn) *proto.Message {
	t.Helper()

	var pending []byte
	buf := make([]byte, 4096)
	for {
		s := proto.NewBytestream(pending)
		m, err := proto.Decode(s)
		if err == nil {
			return m
		}
		require.True(t, proto.IsWireKind(err, proto.Truncated))

		n, err := conn.Read(buf)
		require.NoError(t, err)
		pending = append(pending, buf[:n]...)
	}
}

func send(t *testing.T, conn net.Conn, m *proto.Message) {
	t.Helper()
	enc, err := m.Encode()
	require.NoError(t, err)
	_, err = conn.Write(enc)
	require.NoError(t, err)
}

func TestWorkerServesRequests(t *testing.T) {
	t.Parallel()

	mgr := bootstrapManager(t, time.Hour)
	srvConn, cliConn := net.Pipe()
	w := mgr.enlist(srvConn)

	login := &proto.LoginRequest{User: storage.SeedUserName, Pass: storage.SeedUserPass}
	send(t, cliConn, login.Message())

	reply := readReply(t, cliConn)
	tr, err := proto.ParseTokenResponse(reply)
	require.NoError(t, err)
	require.NotZero(t, tr.Token)

	// peer close finishes the worker
	cliConn.Close()
	require.Eventually(t, w.terminated, time.Second, 10*time.Millisecond)
	require.Equal(t, stateFinished, w.state.Load())
}

func TestWorkerSplitAcrossReads(t *testing.T) {
	t.Parallel()

	mgr := bootstrapManager(t, time.Hour)
	srvConn, cliConn := net.Pipe()
	w := mgr.enlist(srvConn)

	enc, err := (&proto.LogoutRequest{TokenRequest: proto.TokenRequest{Token: 0}}).Message().Encode()
	require.NoError(t, err)

	// feed the message one byte at a time; the worker must re-frame
	for _, b := range enc {
		_, err := cliConn.Write([]byte{b})
		require.NoError(t, err)
	}

	reply := readReply(t, cliConn)
	er, err := proto.ParseErrResponse(reply)
	require.NoError(t, err)
	require.Contains(t, er.Reason, "invalid or has expired")

	cliConn.Close()
	require.Eventually(t, w.terminated, time.Second, 10*time.Millisecond)
}

func TestWorkerDropsConnectionOnBadFraming(t *testing.T) {
	t.Parallel()

	mgr := bootstrapManager(t, time.Hour)
	srvConn, cliConn := net.Pipe()
	w := mgr.enlist(srvConn)

	_, err := cliConn.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	require.NoError(t, err)

	require.Eventually(t, w.terminated, time.Second, 10*time.Millisecond)
	cliConn.Close()
}

func TestWorkerObservesStopBetweenMessages(t *testing.T) {
	t.Parallel()

	mgr := bootstrapManager(t, time.Hour)
	srvConn, cliConn := net.Pipe()
	w := mgr.enlist(srvConn)

	send(t, cliConn, (&proto.LoginRequest{User: storage.SeedUserName, Pass: storage.SeedUserPass}).Message())
	readReply(t, cliConn)

	// let the worker settle into its blocking read; the stop request is
	// honored only after the next message is served
	time.Sleep(20 * time.Millisecond)
	w.requestStop()

	send(t, cliConn, (&proto.ChannelListRequest{TokenRequest: proto.TokenRequest{Token: 0}}).Message())
	readReply(t, cliConn)

	require.Eventually(t, w.terminated, time.Second, 10*time.Millisecond)
	require.Equal(t, stateStopped, w.state.Load())
}

func TestEnlistConcurrent(t *testing.T) {
	t.Parallel()

	mgr := bootstrapManager(t, time.Hour)

	const k = 8
	clients := make([]net.Conn, k)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			srvConn, cliConn := net.Pipe()
			mgr.enlist(srvConn)
			mu.Lock()
			clients[i] = cliConn
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, k, mgr.count())

	for _, c := range clients {
		c.Close()
	}
	mgr.stopAll()
}

func TestReaperRemovesTerminatedWorkers(t *testing.T) {
	t.Parallel()

	mgr := bootstrapManager(t, 10*time.Millisecond)

	srvConn, cliConn := net.Pipe()
	w := mgr.enlist(srvConn)
	require.Equal(t, 1, mgr.count())

	cliConn.Close()
	require.Eventually(t, w.terminated, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return mgr.count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestStopAllDrainsWorkers(t *testing.T) {
	t.Parallel()

	mgr := bootstrapManager(t, time.Hour)

	var clients []net.Conn
	var workers []*worker
	for i := 0; i < 2; i++ {
		srvConn, cliConn := net.Pipe()
		workers = append(workers, mgr.enlist(srvConn))
		clients = append(clients, cliConn)
	}

	// workers blocked in reads only notice the stop once their peers
	// hang up
	go func() {
		time.Sleep(20 * time.Millisecond)
		for _, c := range clients {
			c.Close()
		}
	}()

	mgr.stopAll()
	for _, w := range workers {
		require.True(t, w.terminated())
	}
}
