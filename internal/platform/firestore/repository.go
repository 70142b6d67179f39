package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// BaseRepository provides typed helpers over a single Firestore collection.
type BaseRepository[T any] struct {
	provider   *Provider
	collection string
	decode     func(*firestore.DocumentSnapshot) (T, error)
}

// NewBaseRepository builds a repository for the named collection. The decoder
// converts raw snapshots into domain values and may attach the document ID.
func NewBaseRepository[T any](provider *Provider, collection string, decode func(*firestore.DocumentSnapshot) (T, error)) (*BaseRepository[T], error) {
	if provider == nil {
		return nil, errors.New("firestore: provider is required")
	}
	collection = strings.TrimSpace(collection)
	if collection == "" {
		return nil, errors.New("firestore: collection name is required")
	}
	if decode == nil {
		decode = func(snap *firestore.DocumentSnapshot) (T, error) {
			var value T
			err := snap.DataTo(&value)
			return value, err
		}
	}
	return &BaseRepository[T]{provider: provider, collection: collection, decode: decode}, nil
}

// Collection resolves the underlying collection reference.
func (r *BaseRepository[T]) Collection(ctx context.Context) (*firestore.CollectionRef, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, WrapError("collection "+r.collection, err)
	}
	return client.Collection(r.collection), nil
}

// Doc resolves a document reference within the collection.
func (r *BaseRepository[T]) Doc(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, WrapError("doc "+r.collection, errors.New("document id is required"))
	}
	col, err := r.Collection(ctx)
	if err != nil {
		return nil, err
	}
	return col.Doc(id), nil
}

// Get loads and decodes a single document.
func (r *BaseRepository[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	doc, err := r.Doc(ctx, id)
	if err != nil {
		return zero, err
	}
	snap, err := doc.Get(ctx)
	if err != nil {
		return zero, WrapError("get "+r.collection, err)
	}
	value, err := r.decode(snap)
	if err != nil {
		return zero, WrapError("decode "+r.collection, err)
	}
	return value, nil
}

// Update applies partial field updates to an existing document.
func (r *BaseRepository[T]) Update(ctx context.Context, id string, updates []firestore.Update) error {
	if len(updates) == 0 {
		return nil
	}
	doc, err := r.Doc(ctx, id)
	if err != nil {
		return err
	}
	if _, err := doc.Update(ctx, updates); err != nil {
		return WrapError("update "+r.collection, err)
	}
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (r *BaseRepository[T]) Delete(ctx context.Context, id string) error {
	doc, err := r.Doc(ctx, id)
	if err != nil {
		return err
	}
	if _, err := doc.Delete(ctx); err != nil {
		return WrapError("delete "+r.collection, err)
	}
	return nil
}

// QueryAll runs the supplied query builder against the collection and decodes
// every matching document.
func (r *BaseRepository[T]) QueryAll(ctx context.Context, build func(firestore.Query) firestore.Query) ([]T, error) {
	col, err := r.Collection(ctx)
	if err != nil {
		return nil, err
	}
	query := col.Query
	if build != nil {
		query = build(query)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var results []T
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, WrapError("query "+r.collection, err)
		}
		value, err := r.decode(snap)
		if err != nil {
			return nil, WrapError("decode "+r.collection, err)
		}
		results = append(results, value)
	}
	return results, nil
}

// RunTransaction executes fn inside a Firestore transaction.
func (r *BaseRepository[T]) RunTransaction(ctx context.Context, fn TxFunc, opts ...TxOption) error {
	return r.provider.RunTransaction(ctx, fn, opts...)
}
