package idempotency

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const firestoreCollection = "idempotencyKeys"

type firestoreRecord struct {
	Fingerprint    string    `firestore:"fingerprint"`
	Completed      bool      `firestore:"completed"`
	ResponseStatus int       `firestore:"responseStatus,omitempty"`
	ResponseBody   []byte    `firestore:"responseBody,omitempty"`
	ContentType    string    `firestore:"contentType,omitempty"`
	CreatedAt      time.Time `firestore:"createdAt"`
	ExpiresAt      time.Time `firestore:"expiresAt"`
}

// FirestoreStore persists idempotency records in a Firestore collection so
// replays survive process restarts and multiple instances.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore constructs a store backed by the provided client.
func NewFirestoreStore(client *firestore.Client) (*FirestoreStore, error) {
	if client == nil {
		return nil, errors.New("idempotency: firestore client is required")
	}
	return &FirestoreStore{client: client}, nil
}

// Reserve implements Store with a transactional claim on the key document.
func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref := s.client.Collection(firestoreCollection).Doc(recordKey(key))

	var reservation Reservation
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			var existing firestoreRecord
			if err := snap.DataTo(&existing); err != nil {
				return err
			}
			if existing.ExpiresAt.After(now) {
				if existing.Fingerprint != fingerprint {
					return ErrFingerprintMismatch
				}
				state := StateInFlight
				if existing.Completed {
					state = StateReplay
				}
				reservation = Reservation{
					State: state,
					Record: Record{
						Key:            ref.ID,
						Fingerprint:    existing.Fingerprint,
						Completed:      existing.Completed,
						ResponseStatus: existing.ResponseStatus,
						ResponseBody:   existing.ResponseBody,
						ContentType:    existing.ContentType,
						CreatedAt:      existing.CreatedAt,
						ExpiresAt:      existing.ExpiresAt,
					},
				}
				return nil
			}
		case status.Code(err) == codes.NotFound:
		default:
			return err
		}

		reservation = Reservation{State: StateNew}
		return tx.Set(ref, firestoreRecord{
			Fingerprint: fingerprint,
			CreatedAt:   now,
			ExpiresAt:   now.Add(ttl),
		})
	})
	if err != nil {
		return Reservation{}, err
	}
	return reservation, nil
}

// Complete implements Store.
func (s *FirestoreStore) Complete(ctx context.Context, key, fingerprint string, responseStatus int, contentType string, body []byte, now time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref := s.client.Collection(firestoreCollection).Doc(recordKey(key))
	_, err := ref.Set(ctx, firestoreRecord{
		Fingerprint:    fingerprint,
		Completed:      true,
		ResponseStatus: responseStatus,
		ResponseBody:   body,
		ContentType:    contentType,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	})
	return err
}

// Release implements Store.
func (s *FirestoreStore) Release(ctx context.Context, key string) error {
	ref := s.client.Collection(firestoreCollection).Doc(recordKey(key))
	_, err := ref.Delete(ctx)
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}
