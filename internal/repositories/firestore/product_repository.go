package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/freshpress/api/internal/domain"
	pfirestore "github.com/freshpress/api/internal/platform/firestore"
	"github.com/freshpress/api/internal/repositories"
)

const defaultProductListLimit = 200

// ProductRepository persists the juice catalog and stock levels.
type ProductRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[domain.Product]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository: firestore provider is required")
	}
	base, err := pfirestore.NewBaseRepository(provider, productsCollection, decodeProductSnapshot)
	if err != nil {
		return nil, err
	}
	return &ProductRepository{provider: provider, base: base}, nil
}

func decodeProductSnapshot(snap *firestore.DocumentSnapshot) (domain.Product, error) {
	var doc productDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Product{}, err
	}
	return decodeProduct(snap.Ref.ID, doc), nil
}

// Create stores a new product document. The ID must be unique.
func (r *ProductRepository) Create(ctx context.Context, product domain.Product) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	productID := strings.TrimSpace(product.ID)
	if productID == "" {
		return errors.New("product repository: product id is required")
	}
	docRef, err := r.base.Doc(ctx, productID)
	if err != nil {
		return err
	}
	if _, err := docRef.Create(ctx, encodeProduct(product)); err != nil {
		return pfirestore.WrapError("products.create", err)
	}
	return nil
}

// Update replaces the persisted product state with the provided snapshot.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	productID := strings.TrimSpace(product.ID)
	if productID == "" {
		return errors.New("product repository: product id is required")
	}
	docRef, err := r.base.Doc(ctx, productID)
	if err != nil {
		return err
	}
	if _, err := docRef.Set(ctx, encodeProduct(product)); err != nil {
		return pfirestore.WrapError("products.update", err)
	}
	return nil
}

// Delete removes a product from the catalog.
func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return errors.New("product repository: product id is required")
	}
	return r.base.Delete(ctx, productID)
}

// FindByID fetches a single product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}
	return r.base.Get(ctx, productID)
}

// List returns catalog products, optionally filtered by category or featured flag.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) ([]domain.Product, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("product repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultProductListLimit
	}

	return r.base.QueryAll(ctx, func(q firestore.Query) firestore.Query {
		if category := strings.TrimSpace(filter.Category); category != "" {
			q = q.Where("category", "==", category)
		}
		if filter.Featured != nil {
			q = q.Where("featured", "==", *filter.Featured)
		}
		return q.Limit(limit)
	})
}

// SetStock overwrites the stock level and derived inStock flag.
func (r *ProductRepository) SetStock(ctx context.Context, productID string, stock int) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}
	if stock < 0 {
		stock = 0
	}

	if err := r.base.Update(ctx, productID, []firestore.Update{
		{Path: "stock", Value: stock},
		{Path: "inStock", Value: stock > 0},
		{Path: "updatedAt", Value: time.Now().UTC()},
	}); err != nil {
		return domain.Product{}, err
	}
	return r.base.Get(ctx, productID)
}
