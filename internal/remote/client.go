// internal/remote/client.go
package remote

import (
	"context"

	"collectsync-service/internal/store"
)

// Client is the remote synchronized store boundary: the authoritative,
// network-accessible store. Subscribe delivers full collection snapshots, in
// the order the backend emits them, until the returned cancel func is called;
// a delivery with a non-nil error reports the live stream as unhealthy while
// the implementation retries behind the scenes. Implementations live in the
// firestore and postgres subpackages; tests use remotetest.Fake.
type Client interface {
	ReadCollection(ctx context.Context, collection string) ([]store.Document, error)
	WriteDocument(ctx context.Context, collection string, doc store.Document) error
	DeleteDocument(ctx context.Context, collection, id string) error
	Subscribe(ctx context.Context, collection string, deliver func(docs []store.Document, err error)) (func(), error)
	Close() error
}
