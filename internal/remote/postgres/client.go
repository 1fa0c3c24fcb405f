// internal/remote/postgres/client.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"collectsync-service/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const notifyChannel = "collectsync_changes"

// Client adapts PostgreSQL to the remote.Client boundary. Documents live in a
// single table keyed by (collection, id); LISTEN/NOTIFY provides the
// live-subscription primitive: every write NOTIFYs the collection name and
// listeners re-read the collection into a fresh snapshot.
type Client struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	mu        sync.Mutex
	subSeq    int
	subs      map[string]map[int]func(docs []store.Document, err error)
	listening bool
	cancel    context.CancelFunc
}

func New(ctx context.Context, dsn string, logger *zap.Logger) (*Client, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS documents (
		collection TEXT        NOT NULL,
		id         TEXT        NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		data       JSONB       NOT NULL,
		PRIMARY KEY (collection, id)
	)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize documents table: %w", err)
	}

	return &Client{
		pool:   pool,
		logger: logger,
		subs:   make(map[string]map[int]func(docs []store.Document, err error)),
	}, nil
}

func (c *Client) ReadCollection(ctx context.Context, collection string) ([]store.Document, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, updated_at, data FROM documents WHERE collection = $1 ORDER BY updated_at, id`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var (
			doc  store.Document
			data []byte
		)
		if err := rows.Scan(&doc.ID, &doc.UpdatedAt, &data); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.Data = json.RawMessage(data)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (c *Client) WriteDocument(ctx context.Context, collection string, doc store.Document) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin write: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO documents (collection, id, updated_at, data)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (collection, id)
		 DO UPDATE SET updated_at = excluded.updated_at, data = excluded.data`,
		collection, doc.ID, doc.UpdatedAt, []byte(doc.Data),
	); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", collection, doc.ID, err)
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, collection); err != nil {
		return fmt.Errorf("failed to notify %s: %w", collection, err)
	}

	return tx.Commit(ctx)
}

func (c *Client) DeleteDocument(ctx context.Context, collection, id string) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, collection); err != nil {
		return fmt.Errorf("failed to notify %s: %w", collection, err)
	}

	return tx.Commit(ctx)
}

func (c *Client) Subscribe(ctx context.Context, collection string, deliver func(docs []store.Document, err error)) (func(), error) {
	c.mu.Lock()
	c.subSeq++
	id := c.subSeq
	if c.subs[collection] == nil {
		c.subs[collection] = make(map[int]func(docs []store.Document, err error))
	}
	c.subs[collection][id] = deliver

	if !c.listening {
		listenCtx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		c.listening = true
		go c.listen(listenCtx)
	}
	c.mu.Unlock()

	// Initial snapshot so new subscribers converge without waiting for a write.
	docs, err := c.ReadCollection(ctx, collection)
	if err != nil {
		c.logger.Warn("initial snapshot read failed, waiting for first notify",
			zap.String("collection", collection), zap.Error(err))
	} else {
		deliver(docs, nil)
	}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs[collection], id)
	}, nil
}

// listen holds one dedicated connection on the notify channel and fans
// collection re-reads out to subscribers. The connection is re-established
// with a capped backoff when it drops.
func (c *Client) listen(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		if err := c.listenOnce(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("listener connection lost", zap.Error(err),
				zap.Duration("retry_in", backoff))
			c.notifyDown(err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff *= 2; backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			continue
		}
		backoff = time.Second
	}
}

func (c *Client) listenOnce(ctx context.Context) error {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		c.dispatch(ctx, n.Payload)
	}
}

func (c *Client) dispatch(ctx context.Context, collection string) {
	c.mu.Lock()
	targets := make([]func(docs []store.Document, err error), 0, len(c.subs[collection]))
	for _, deliver := range c.subs[collection] {
		targets = append(targets, deliver)
	}
	c.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	docs, err := c.ReadCollection(ctx, collection)
	if err != nil {
		c.logger.Warn("failed to re-read collection after notify",
			zap.String("collection", collection), zap.Error(err))
		for _, deliver := range targets {
			deliver(nil, err)
		}
		return
	}
	for _, deliver := range targets {
		deliver(docs, nil)
	}
}

// notifyDown tells every subscriber the live stream is unhealthy.
func (c *Client) notifyDown(err error) {
	c.mu.Lock()
	var targets []func(docs []store.Document, err error)
	for _, subs := range c.subs {
		for _, deliver := range subs {
			targets = append(targets, deliver)
		}
	}
	c.mu.Unlock()

	for _, deliver := range targets {
		deliver(nil, err)
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	c.pool.Close()
	return nil
}
