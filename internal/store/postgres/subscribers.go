package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/znz-systems/mailbrief/internal/models"
	"github.com/znz-systems/mailbrief/internal/stage"
	"github.com/znz-systems/mailbrief/internal/store"
)

const uniqueViolation = "23505"

type SubscriberStore struct {
	db *sql.DB
}

func NewSubscriberStore(db *sql.DB) *SubscriberStore {
	return &SubscriberStore{db: db}
}

func (s *SubscriberStore) GetSubscriber(ctx context.Context, subscriberID string) (*models.Subscriber, error) {
	sub := &models.Subscriber{}
	var lastMessageAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT subscriber_id, alias, status, created_at, last_message_at
		 FROM subscribers WHERE subscriber_id = $1`,
		subscriberID,
	).Scan(&sub.SubscriberID, &sub.Alias, &sub.Status, &sub.CreatedAt, &lastMessageAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrSubscriberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get subscriber %s: %w", stage.ErrTransientIO, subscriberID, err)
	}
	if lastMessageAt.Valid {
		t := lastMessageAt.Time
		sub.LastMessageAt = &t
	}
	return sub, nil
}

// PutSubscriber inserts sub, or overwrites an existing inactive record. The
// WHERE clause on the conflict branch makes the write conditional in a
// single statement.
func (s *SubscriberStore) PutSubscriber(ctx context.Context, sub *models.Subscriber) error {
	var id string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO subscribers (subscriber_id, alias, status, created_at, last_message_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (subscriber_id) DO UPDATE
		 SET alias = EXCLUDED.alias,
		     status = EXCLUDED.status,
		     created_at = EXCLUDED.created_at,
		     last_message_at = EXCLUDED.last_message_at
		 WHERE subscribers.status <> 'active'
		 RETURNING subscriber_id`,
		sub.SubscriberID, sub.Alias, string(sub.Status), sub.CreatedAt, sub.LastMessageAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("put subscriber %s: %w", sub.SubscriberID, store.ErrConditionFailed)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("put subscriber %s: alias in use: %w", sub.SubscriberID, store.ErrConditionFailed)
	}
	if err != nil {
		return fmt.Errorf("%w: put subscriber %s: %w", stage.ErrTransientIO, sub.SubscriberID, err)
	}
	return nil
}

func (s *SubscriberStore) UpdateSubscriberField(ctx context.Context, subscriberID string, field models.SubscriberField, value any) error {
	if err := store.CheckField(field, value); err != nil {
		return err
	}
	column, err := columnFor(field)
	if err != nil {
		return err
	}
	if status, ok := value.(models.SubscriberStatus); ok {
		value = string(status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE subscribers SET `+column+` = $2 WHERE subscriber_id = $1`,
		subscriberID, value,
	)
	if err != nil {
		return fmt.Errorf("%w: update subscriber %s: %w", stage.ErrTransientIO, subscriberID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrSubscriberNotFound
	}
	return nil
}

// columnFor maps a field onto a fixed column name; values never reach the
// statement text.
func columnFor(field models.SubscriberField) (string, error) {
	switch field {
	case models.FieldStatus:
		return "status", nil
	case models.FieldLastMessageAt:
		return "last_message_at", nil
	default:
		return "", fmt.Errorf("%w: %q", store.ErrUnknownField, field)
	}
}
