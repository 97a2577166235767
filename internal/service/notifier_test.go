package service

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tournament-registration/internal/queue"
)

// A broker that accepts TCP but never answers the handshake must not hold
// the publish past the notifier timeout.
func TestAMQPNotifierGivesUpOnSilentBroker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	accepted := make(chan net.Conn, 1)
	go func() {
		if conn, err := ln.Accept(); err == nil {
			accepted <- conn
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		select {
		case conn := <-accepted:
			conn.Close()
		default:
		}
	})

	n := &AMQPNotifier{URL: "amqp://guest:guest@" + ln.Addr().String() + "/", Timeout: 200 * time.Millisecond}
	start := time.Now()
	err = n.publish(context.Background(), queue.RegistrationEvent{EventID: "ev-1", Type: queue.EventRegistered})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
