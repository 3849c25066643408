package replication

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn stands in for a Redis connection. It records every command and
// serves queued pub/sub replies.
type fakeConn struct {
	mu       sync.Mutex
	commands [][]interface{}
	replies  chan interface{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{replies: make(chan interface{}, 8)}
}

func (c *fakeConn) record(cmd string, args ...interface{}) {
	if cmd == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, append([]interface{}{cmd}, args...))
}

func (c *fakeConn) sent(cmd string) [][]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out [][]interface{}
	for _, command := range c.commands {
		if command[0] == cmd {
			out = append(out, command)
		}
	}
	return out
}

func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) Err() error   { return nil }
func (c *fakeConn) Flush() error { return nil }

func (c *fakeConn) Send(cmd string, args ...interface{}) error {
	c.record(cmd, args...)
	return nil
}

func (c *fakeConn) Do(cmd string, args ...interface{}) (interface{}, error) {
	c.record(cmd, args...)
	switch cmd {
	case "PING":
		return "PONG", nil
	case "PUBLISH":
		return int64(1), nil
	}
	return nil, nil
}

func (c *fakeConn) DoContext(_ context.Context, cmd string, args ...interface{}) (interface{}, error) {
	return c.Do(cmd, args...)
}

func (c *fakeConn) Receive() (interface{}, error) {
	return nil, io.EOF
}

func (c *fakeConn) ReceiveContext(ctx context.Context) (interface{}, error) {
	select {
	case r := <-c.replies:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newFakeBroadcaster(conn *fakeConn, dialErr error) *RedisBroadcaster {
	pool := &redis.Pool{
		Dial: func() (redis.Conn, error) {
			if dialErr != nil {
				return nil, dialErr
			}
			return conn, nil
		},
	}
	return newRedisBroadcaster(pool, "planner", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRedisBroadcaster_Publish(t *testing.T) {
	conn := newFakeConn()
	b := newFakeBroadcaster(conn, nil)
	defer b.Close()

	require.NoError(t, b.Ping(context.Background()))
	require.NoError(t, b.Publish(context.Background(), sampleMessage()))

	published := conn.sent("PUBLISH")
	require.Len(t, published, 1)
	assert.Equal(t, "planner", published[0][1])

	msg, err := Decode(published[0][2].([]byte))
	require.NoError(t, err)
	assert.Equal(t, "node-a", msg.Origin)
}

func TestRedisBroadcaster_DialError(t *testing.T) {
	b := newFakeBroadcaster(nil, errors.New("connection refused"))
	defer b.Close()

	err := b.Publish(context.Background(), sampleMessage())
	assert.ErrorContains(t, err, "connection refused")

	err = b.Subscribe(context.Background(), func(Message) {})
	assert.ErrorContains(t, err, "connection refused")
}

func TestRedisBroadcaster_Subscribe(t *testing.T) {
	conn := newFakeConn()
	b := newFakeBroadcaster(conn, nil)
	defer b.Close()

	payload, err := Encode(sampleMessage())
	require.NoError(t, err)
	conn.replies <- []interface{}{[]byte("subscribe"), []byte("planner"), int64(1)}
	conn.replies <- []interface{}{[]byte("message"), []byte("planner"), []byte("garbage")}
	conn.replies <- []interface{}{[]byte("message"), []byte("planner"), payload}

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- b.Subscribe(ctx, func(m Message) { received <- m })
	}()

	select {
	case msg := <-received:
		assert.Equal(t, "node-a", msg.Origin)
		assert.Len(t, msg.Tasks, 1)
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Len(t, conn.sent("SUBSCRIBE"), 1)
}
