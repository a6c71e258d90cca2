package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/appendiscan/backend/internal/metrics"
)

// Firestore writes documents to a Cloud Firestore collection. Identifiers
// are assigned by Firestore.
type Firestore struct {
	client     *firestore.Client
	collection string
}

// NewFirestore authenticates with the service-account file at credentialsFile.
// An empty projectID is read from the credentials.
func NewFirestore(ctx context.Context, credentialsFile, projectID, collection string) (*Firestore, error) {
	if _, err := os.Stat(credentialsFile); err != nil {
		return nil, fmt.Errorf("firestore credentials: %w", err)
	}
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := firestore.NewClient(ctx, projectID, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}

	return &Firestore{client: client, collection: collection}, nil
}

func (f *Firestore) Add(ctx context.Context, doc Document) (string, error) {
	if len(doc) == 0 {
		return "", ErrEmptyDocument
	}
	defer metrics.ObserveUpstream("firestore")()

	ref, _, err := f.client.Collection(f.collection).Add(ctx, map[string]interface{}(doc))
	if err != nil {
		return "", fmt.Errorf("firestore add to %s: %w", f.collection, err)
	}
	return ref.ID, nil
}

func (f *Firestore) List(ctx context.Context) ([]Record, error) {
	defer metrics.ObserveUpstream("firestore")()

	iter := f.client.Collection(f.collection).Documents(ctx)
	defer iter.Stop()

	var out []Record
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore list %s: %w", f.collection, err)
		}
		out = append(out, Record{ID: snap.Ref.ID, Data: Document(snap.Data())})
	}
	return out, nil
}

// Ping reads at most one document to confirm the collection is reachable.
func (f *Firestore) Ping(ctx context.Context) error {
	iter := f.client.Collection(f.collection).Limit(1).Documents(ctx)
	defer iter.Stop()

	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}
