// internal/remote/firestore/client.go
package firestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"collectsync-service/internal/store"

	cf "cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
)

// Client adapts Cloud Firestore to the remote.Client boundary. Each tracked
// collection maps to a Firestore collection whose documents carry the entity
// JSON as a string field; the snapshot listener gives us the live-subscription
// primitive and the SDK's own offline write queue.
type Client struct {
	fs     *cf.Client
	logger *zap.Logger
}

func New(ctx context.Context, projectID string, logger *zap.Logger) (*Client, error) {
	fs, err := cf.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &Client{fs: fs, logger: logger}, nil
}

func (c *Client) ReadCollection(ctx context.Context, collection string) ([]store.Document, error) {
	it := c.fs.Collection(collection).OrderBy("updated_at", cf.Asc).Documents(ctx)
	defer it.Stop()

	var docs []store.Document
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read collection %s: %w", collection, err)
		}
		doc, err := decodeSnapshot(snap)
		if err != nil {
			c.logger.Warn("skipping undecodable remote document",
				zap.String("collection", collection),
				zap.String("id", snap.Ref.ID),
				zap.Error(err),
			)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *Client) WriteDocument(ctx context.Context, collection string, doc store.Document) error {
	_, err := c.fs.Collection(collection).Doc(doc.ID).Set(ctx, map[string]interface{}{
		"updated_at": doc.UpdatedAt,
		"data":       string(doc.Data),
	})
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", collection, doc.ID, err)
	}
	return nil
}

func (c *Client) DeleteDocument(ctx context.Context, collection, id string) error {
	if _, err := c.fs.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (c *Client) Subscribe(ctx context.Context, collection string, deliver func(docs []store.Document, err error)) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)

	// The snapshot stream is re-opened with a capped backoff when it drops;
	// each failure is delivered so the engine can track connectivity.
	go func() {
		backoff := time.Second
		for {
			delivered := c.pump(subCtx, collection, deliver)
			if subCtx.Err() != nil {
				return
			}
			if delivered {
				backoff = time.Second
			}
			select {
			case <-time.After(backoff):
			case <-subCtx.Done():
				return
			}
			if backoff *= 2; backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
		}
	}()

	return cancel, nil
}

// pump consumes one snapshot stream until it fails, reporting whether any
// snapshot was delivered so the caller can reset its retry backoff.
func (c *Client) pump(ctx context.Context, collection string, deliver func(docs []store.Document, err error)) bool {
	snaps := c.fs.Collection(collection).OrderBy("updated_at", cf.Asc).Snapshots(ctx)
	defer snaps.Stop()

	delivered := false
	for {
		qs, err := snaps.Next()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("firestore snapshot stream failed, retrying",
					zap.String("collection", collection), zap.Error(err))
				deliver(nil, err)
			}
			return delivered
		}

		var docs []store.Document
		for {
			snap, err := qs.Documents.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				c.logger.Warn("failed to drain snapshot",
					zap.String("collection", collection), zap.Error(err))
				break
			}
			doc, derr := decodeSnapshot(snap)
			if derr != nil {
				continue
			}
			docs = append(docs, doc)
		}
		deliver(docs, nil)
		delivered = true
	}
}

func (c *Client) Close() error {
	return c.fs.Close()
}

func decodeSnapshot(snap *cf.DocumentSnapshot) (store.Document, error) {
	fields := snap.Data()

	raw, ok := fields["data"].(string)
	if !ok {
		return store.Document{}, fmt.Errorf("document %s has no data field", snap.Ref.ID)
	}
	if !json.Valid([]byte(raw)) {
		return store.Document{}, fmt.Errorf("document %s carries invalid JSON", snap.Ref.ID)
	}

	updatedAt, _ := fields["updated_at"].(time.Time)
	return store.Document{
		ID:        snap.Ref.ID,
		UpdatedAt: updatedAt,
		Data:      json.RawMessage(raw),
	}, nil
}
