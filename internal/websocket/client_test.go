package websocket

import (
	"sync"
	"testing"

	"collectsync-service/internal/domain/staff"

	"go.uber.org/zap"
)

// The conn is never touched by SendMessage or Close, so a nil conn is enough
// to exercise the queueing side of the client.
func newQueueOnlyClient() *Client {
	return NewClient(nil, nil, "s1", staff.RoleAgent, zap.NewNop())
}

func TestSendAfterCloseDoesNotPanic(t *testing.T) {
	c := newQueueOnlyClient()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.SendMessage(NewMessage(EventTypePing, nil))
			}
		}()
	}
	c.Close()
	wg.Wait()
}

func TestCloseIsIdempotent(t *testing.T) {
	c := newQueueOnlyClient()
	c.Close()
	c.Close()

	select {
	case <-c.ctx.Done():
	default:
		t.Fatal("expected the client context to be canceled")
	}
}

func TestSendAfterCloseIsDiscarded(t *testing.T) {
	c := newQueueOnlyClient()
	c.Close()

	c.SendMessage(NewMessage(EventTypePing, nil))

	select {
	case <-c.send:
		t.Fatal("messages sent after Close must be discarded")
	default:
	}
}
