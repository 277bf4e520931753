// Package store defines the subscriber record store. Backends provide
// single-key atomic operations only; callers never rely on transactions
// spanning more than one call.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/znz-systems/mailbrief/internal/models"
	"github.com/znz-systems/mailbrief/internal/stage"
)

var (
	ErrSubscriberNotFound = fmt.Errorf("subscriber %w", stage.ErrNotFound)
	ErrConditionFailed    = errors.New("conditional write failed")
	ErrUnknownField       = errors.New("unknown subscriber field")
)

type SubscriberStore interface {
	// GetSubscriber returns ErrSubscriberNotFound when no record exists.
	GetSubscriber(ctx context.Context, subscriberID string) (*models.Subscriber, error)
	// PutSubscriber writes sub only if no record exists for its id or the
	// existing record is not active. Otherwise it returns ErrConditionFailed.
	PutSubscriber(ctx context.Context, sub *models.Subscriber) error
	// UpdateSubscriberField sets one attribute of an existing record and
	// returns ErrSubscriberNotFound when there is none.
	UpdateSubscriberField(ctx context.Context, subscriberID string, field models.SubscriberField, value any) error
}

// CheckField validates a field/value pair before it reaches a backend.
func CheckField(field models.SubscriberField, value any) error {
	switch field {
	case models.FieldStatus:
		if v, ok := value.(models.SubscriberStatus); ok && (v == models.StatusActive || v == models.StatusInactive) {
			return nil
		}
		return fmt.Errorf("invalid status value %v", value)
	case models.FieldLastMessageAt:
		if _, ok := value.(time.Time); ok {
			return nil
		}
		return fmt.Errorf("invalid %s value %v", field, value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
}
