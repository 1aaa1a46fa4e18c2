package transport

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Send and Receive after the connection is
// closed and the incoming direction is drained.
var ErrClosed = errors.New("transport: connection closed")

// Conn is the explicit two-method boundary between dispatcher and
// worker. There is no open-ended pass-through to an inner channel;
// everything crosses via Send and Receive.
type Conn interface {
	// Send serializes and delivers one message. It blocks while the
	// underlying channel is full (backpressure).
	Send(msg Message) error
	// Receive blocks for the next message and deserializes it.
	Receive() (Message, error)
}

// chanConn is one directed endpoint over in-memory frame channels.
// Each frame is the serialized form a process-boundary transport would
// put on its pipe, so the in-memory pair exercises the identical
// encode/decode path.
type chanConn struct {
	out    chan<- []byte
	in     <-chan []byte
	mc     *MessageCodec
	closed chan struct{}
}

// Pipe returns two connected endpoints sharing a message codec: what
// one side Sends, the other Receives. Each direction is a bounded FIFO
// of the given capacity. The returned stop function closes both
// endpoints; queued frames may still be drained by Receive.
func Pipe(mc *MessageCodec, capacity int) (Conn, Conn, func()) {
	ab := make(chan []byte, capacity)
	ba := make(chan []byte, capacity)
	closed := make(chan struct{})

	a := &chanConn{out: ab, in: ba, mc: mc, closed: closed}
	b := &chanConn{out: ba, in: ab, mc: mc, closed: closed}

	var once sync.Once
	stop := func() { once.Do(func() { close(closed) }) }
	return a, b, stop
}

// Send implements Conn.
func (c *chanConn) Send(msg Message) error {
	frame, err := c.mc.Encode(msg)
	if err != nil {
		return err
	}
	select {
	case c.out <- frame:
		return nil
	case <-c.closed:
		return ErrClosed
	}
}

// Receive implements Conn.
func (c *chanConn) Receive() (Message, error) {
	select {
	case frame := <-c.in:
		return c.mc.Decode(frame)
	case <-c.closed:
		// Drain frames already queued before reporting closure.
		select {
		case frame := <-c.in:
			return c.mc.Decode(frame)
		default:
			return Message{}, ErrClosed
		}
	}
}
