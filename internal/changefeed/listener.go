package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Channel is the NOTIFY channel the schema triggers publish on.
const Channel = "row_changes"

// relations whose truncated payloads may be re-read by id.
var refetchable = map[string]bool{
	"connections": true,
	"messages":    true,
	"profiles":    true,
}

// Listener holds one pooled connection in LISTEN mode and publishes every
// notification to the broker, reconnecting with exponential backoff.
type Listener struct {
	pool   *pgxpool.Pool
	broker *Broker
}

func NewListener(pool *pgxpool.Pool, broker *Broker) *Listener {
	return &Listener{pool: pool, broker: broker}
}

// Run blocks until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	bo.MaxInterval = 30 * time.Second

	return backoff.RetryNotify(func() error {
		err := l.listen(ctx, bo)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		log.Warningf("change feed interrupted: %v, reconnecting in %s", err, wait)
	})
}

func (l *Listener) listen(ctx context.Context, bo backoff.BackOff) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer func() {
		// leave the pooled connection clean
		conn.Exec(context.Background(), "UNLISTEN *")
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{Channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", Channel, err)
	}
	bo.Reset()
	log.Infof("Listening for row changes on %s", Channel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		e, err := l.decode(ctx, n.Payload)
		if err != nil {
			log.Warningf("skipping notification: %v", err)
			continue
		}
		l.broker.Publish(e)
	}
}

func (l *Listener) decode(ctx context.Context, payload string) (Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return e, fmt.Errorf("decode payload: %w", err)
	}
	if e.Truncated {
		row, err := l.refetch(ctx, e)
		if err != nil {
			return e, err
		}
		e.New = row
		e.Truncated = false
	}
	return e, nil
}

func (l *Listener) refetch(ctx context.Context, e Event) (json.RawMessage, error) {
	if !refetchable[e.Relation] {
		return nil, fmt.Errorf("cannot refetch relation %q", e.Relation)
	}
	var ref struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(e.New, &ref); err != nil || ref.ID == "" {
		return nil, fmt.Errorf("truncated %s event without id", e.Relation)
	}

	query := fmt.Sprintf(`SELECT row_to_json(t)::text FROM %s t WHERE t.id = $1`, pgx.Identifier{e.Relation}.Sanitize())
	var row string
	if err := l.pool.QueryRow(ctx, query, ref.ID).Scan(&row); err != nil {
		return nil, fmt.Errorf("refetch %s %s: %w", e.Relation, ref.ID, err)
	}
	return json.RawMessage(row), nil
}
