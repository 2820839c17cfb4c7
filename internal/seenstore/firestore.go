package seenstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const seenCollection = "seen_items"

// FirestoreStore keeps the seen-set in a Firestore collection, one document
// per listing identifier. Useful when the bot runs on ephemeral hosting where
// a local JSON file would not survive restarts.
type FirestoreStore struct {
	client  *firestore.Client
	ids     map[string]struct{}
	pending []string
}

type seenDoc struct {
	DispatchedAt time.Time `firestore:"dispatchedAt"`
}

// OpenFirestore connects and loads all known identifiers up front so Contains
// stays a pure in-memory check during the run. A load failure degrades to an
// empty set, matching the file backend's fail-soft contract.
func OpenFirestore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}

	s := &FirestoreStore{client: client, ids: make(map[string]struct{})}

	iter := client.Collection(seenCollection).Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			slog.Warn("Failed to load seen set from Firestore, starting empty", "error", err)
			s.ids = make(map[string]struct{})
			break
		}
		s.ids[doc.Ref.ID] = struct{}{}
	}

	return s, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *FirestoreStore) Add(id string) {
	if _, ok := s.ids[id]; ok {
		return
	}
	s.ids[id] = struct{}{}
	s.pending = append(s.pending, id)
}

func (s *FirestoreStore) Len() int {
	return len(s.ids)
}

// Persist creates a document per newly-added identifier. AlreadyExists is
// tolerated: another run may have dispatched the same item first, and the
// seen-set only grows.
func (s *FirestoreStore) Persist() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var failed []string
	for _, id := range s.pending {
		_, err := s.client.Collection(seenCollection).Doc(id).Create(ctx, seenDoc{DispatchedAt: time.Now()})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			failed = append(failed, id)
			slog.Warn("Failed to persist seen identifier", "id", id, "error", err)
		}
	}

	s.pending = failed
	if len(failed) > 0 {
		return fmt.Errorf("failed to persist %d seen identifiers", len(failed))
	}
	return nil
}
