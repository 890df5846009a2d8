package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqljson"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ChangeChannel is the LISTEN/NOTIFY channel carrying the changed collection name.
const ChangeChannel = "documents_changed"

const documentsTable = "documents"

// PostgresStore keeps documents as JSONB rows and turns NOTIFY messages into
// subscription refreshes. Run must be running for subscriptions to follow
// writes made by any process.
type PostgresStore struct {
	db     *sqlx.DB
	dsn    string
	hub    *Hub
	logger *log.Logger
}

type documentRow struct {
	ID   string `db:"id"`
	Body []byte `db:"body"`
}

// NewPostgresStore wraps db; dsn is used to open the dedicated listener connection.
func NewPostgresStore(db *sqlx.DB, dsn string, logger *log.Logger) *PostgresStore {
	if logger == nil {
		logger = log.Default()
	}
	return &PostgresStore{
		db:     db,
		dsn:    dsn,
		hub:    NewHub(),
		logger: logger,
	}
}

// QueryScoped selects documents whose JSON field equals q.Value, oldest first.
func (s *PostgresStore) QueryScoped(ctx context.Context, q Query) ([]Document, error) {
	if err := ValidateQuery(q); err != nil {
		return nil, err
	}

	query, args := entsql.Dialect(dialect.Postgres).
		Select("id", "body").
		From(entsql.Table(documentsTable)).
		Where(entsql.And(
			entsql.EQ("collection", q.Collection),
			sqljson.ValueEQ("body", q.Value, sqljson.Path(q.Field)),
		)).
		OrderBy("created_at").
		Query()

	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		doc, err := row.document()
		if err != nil {
			s.logger.Printf("[docstore] skipping document %s: %v", row.ID, err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Subscribe registers a live query; refreshes are driven by Run.
func (s *PostgresStore) Subscribe(_ context.Context, q Query, fn SnapshotFunc) (Unsubscribe, error) {
	if err := ValidateQuery(q); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(q, func(ctx context.Context) ([]Document, error) {
		return s.QueryScoped(ctx, q)
	}, fn), nil
}

// Insert stores a new document and notifies listeners on commit.
func (s *PostgresStore) Insert(ctx context.Context, collection string, fields Fields) (string, error) {
	if collection == "" {
		return "", ErrInvalidArgument
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	id := uuid.NewString()
	err = s.inTx(ctx, collection, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO documents (id, collection, body) VALUES ($1, $2, $3::jsonb)`,
			id, collection, string(body),
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

// Mutate merges partial into the stored body (top-level keys, nulls kept).
func (s *PostgresStore) Mutate(ctx context.Context, collection, id string, partial Fields) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("mutate %s/%s: %w", collection, id, ErrNotFound)
	}
	body, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	return s.inTx(ctx, collection, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE documents SET body = body || $1::jsonb, updated_at = now() WHERE collection = $2 AND id = $3`,
			string(body), collection, id,
		)
		if err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("mutate %s/%s: %w", collection, id, ErrNotFound)
		}
		return nil
	})
}

// Remove deletes a document; a missing id is not an error.
func (s *PostgresStore) Remove(ctx context.Context, collection, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}

	query, args := entsql.Dialect(dialect.Postgres).
		Delete(documentsTable).
		Where(entsql.And(
			entsql.EQ("collection", collection),
			entsql.EQ("id", id),
		)).
		Query()

	err := s.inTx(ctx, collection, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("remove document: %w", err)
	}
	return nil
}

// Get loads one document.
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, ErrNotFound)
	}

	var row documentRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, body FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	return row.document()
}

// Run listens for change notifications until ctx is done, then closes all
// subscriptions.
func (s *PostgresStore) Run(ctx context.Context) error {
	defer s.hub.Close()

	listener := pq.NewListener(s.dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.Printf("[docstore] listener event %d: %v", ev, err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(ChangeChannel); err != nil {
		return fmt.Errorf("listen %s: %w", ChangeChannel, err)
	}
	s.logger.Printf("[docstore] listening on %s", ChangeChannel)

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			if n == nil {
				// Reconnected; notifications may have been lost.
				s.hub.NotifyAll()
				continue
			}
			s.hub.Notify(n.Extra)
		case <-ping.C:
			go func() {
				if err := listener.Ping(); err != nil {
					s.logger.Printf("[docstore] listener ping: %v", err)
				}
			}()
		}
	}
}

func (s *PostgresStore) inTx(ctx context.Context, collection string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		return rollback(tx, err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, ChangeChannel, collection); err != nil {
		return rollback(tx, fmt.Errorf("notify %s: %w", ChangeChannel, err))
	}
	return tx.Commit()
}

func rollback(tx *sqlx.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		err = fmt.Errorf("%w: %v", err, rerr)
	}
	return err
}

func (r documentRow) document() (Document, error) {
	fields := Fields{}
	if err := json.Unmarshal(r.Body, &fields); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	return Document{ID: r.ID, Fields: fields}, nil
}
