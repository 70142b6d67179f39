package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/freshpress/api/internal/domain"
	"github.com/freshpress/api/internal/repositories"
)

const productIDPrefix = "prod_"

var (
	// ErrCatalogInvalidInput indicates the caller supplied invalid product parameters.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogNotFound indicates no product exists for the supplied ID.
	ErrCatalogNotFound = errors.New("catalog: product not found")
	// ErrCatalogConflict indicates a duplicate product ID.
	ErrCatalogConflict = errors.New("catalog: conflict")
	// ErrCatalogUnavailable indicates catalog persistence is currently unavailable.
	ErrCatalogUnavailable = errors.New("catalog: unavailable")
)

// CatalogServiceDeps wires the dependencies required by the catalog service.
type CatalogServiceDeps struct {
	Products repositories.ProductRepository
	Clock    func() time.Time
	IDGen    func() string
}

type catalogService struct {
	products repositories.ProductRepository
	now      func() time.Time
	newID    func() string
}

// NewCatalogService constructs a CatalogService validating required dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGen
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}

	return &catalogService{
		products: deps.Products,
		now: func() time.Time {
			return clock().UTC()
		},
		newID: newID,
	}, nil
}

// ListProducts returns catalog products with optional filtering and sorting.
func (s *catalogService) ListProducts(ctx context.Context, query ProductListQuery) ([]domain.Product, error) {
	if s == nil || s.products == nil {
		return nil, ErrCatalogUnavailable
	}

	sortBy := strings.ToLower(strings.TrimSpace(query.SortBy))
	switch sortBy {
	case "", "price", "title":
	default:
		return nil, ErrCatalogInvalidInput
	}

	products, err := s.products.List(ctx, repositories.ProductListFilter{
		Category: strings.TrimSpace(query.Category),
		Limit:    query.Limit,
	})
	if err != nil {
		return nil, ErrCatalogUnavailable
	}

	if query.InStockOnly {
		filtered := products[:0]
		for _, product := range products {
			if product.InStock {
				filtered = append(filtered, product)
			}
		}
		products = filtered
	}

	switch sortBy {
	case "price":
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].CurrentCost < products[j].CurrentCost
		})
	case "title":
		sort.SliceStable(products, func(i, j int) bool {
			return strings.ToLower(products[i].Title) < strings.ToLower(products[j].Title)
		})
	}
	return products, nil
}

// GetProduct fetches a single product.
func (s *catalogService) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	if s == nil || s.products == nil {
		return domain.Product{}, ErrCatalogUnavailable
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, ErrCatalogInvalidInput
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.Product{}, ErrCatalogNotFound
		}
		return domain.Product{}, ErrCatalogUnavailable
	}
	return product, nil
}

// CreateProduct validates and stores a new catalog entry.
func (s *catalogService) CreateProduct(ctx context.Context, input ProductInput) (domain.Product, error) {
	if s == nil || s.products == nil {
		return domain.Product{}, ErrCatalogUnavailable
	}
	if err := validateProductInput(input); err != nil {
		return domain.Product{}, err
	}

	now := s.now()
	product := productFromInput(input)
	product.ID = productIDPrefix + s.newID()
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.products.Create(ctx, product); err != nil {
		if repositories.IsConflict(err) {
			return domain.Product{}, ErrCatalogConflict
		}
		return domain.Product{}, ErrCatalogUnavailable
	}
	return product, nil
}

// UpdateProduct replaces an existing product's attributes.
func (s *catalogService) UpdateProduct(ctx context.Context, productID string, input ProductInput) (domain.Product, error) {
	if s == nil || s.products == nil {
		return domain.Product{}, ErrCatalogUnavailable
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, ErrCatalogInvalidInput
	}
	if err := validateProductInput(input); err != nil {
		return domain.Product{}, err
	}

	current, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.Product{}, ErrCatalogNotFound
		}
		return domain.Product{}, ErrCatalogUnavailable
	}

	product := productFromInput(input)
	product.ID = productID
	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = s.now()

	if err := s.products.Update(ctx, product); err != nil {
		if repositories.IsNotFound(err) {
			return domain.Product{}, ErrCatalogNotFound
		}
		return domain.Product{}, ErrCatalogUnavailable
	}
	return product, nil
}

// DeleteProduct removes a product from the catalog.
func (s *catalogService) DeleteProduct(ctx context.Context, productID string) error {
	if s == nil || s.products == nil {
		return ErrCatalogUnavailable
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return ErrCatalogInvalidInput
	}
	if err := s.products.Delete(ctx, productID); err != nil {
		if repositories.IsNotFound(err) {
			return ErrCatalogNotFound
		}
		return ErrCatalogUnavailable
	}
	return nil
}

// SetStock overwrites the stock level for a product.
func (s *catalogService) SetStock(ctx context.Context, productID string, stock int) (domain.Product, error) {
	if s == nil || s.products == nil {
		return domain.Product{}, ErrCatalogUnavailable
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, ErrCatalogInvalidInput
	}
	if stock < 0 {
		return domain.Product{}, ErrCatalogInvalidInput
	}

	product, err := s.products.SetStock(ctx, productID, stock)
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.Product{}, ErrCatalogNotFound
		}
		return domain.Product{}, ErrCatalogUnavailable
	}
	return product, nil
}

func validateProductInput(input ProductInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return ErrCatalogInvalidInput
	}
	if input.CurrentCost <= 0 || input.OriginalCost < 0 {
		return ErrCatalogInvalidInput
	}
	if input.Stock < 0 {
		return ErrCatalogInvalidInput
	}
	return nil
}

func productFromInput(input ProductInput) domain.Product {
	originalCost := input.OriginalCost
	if originalCost == 0 {
		originalCost = input.CurrentCost
	}
	return domain.Product{
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		Category:     strings.TrimSpace(input.Category),
		OriginalCost: originalCost,
		CurrentCost:  input.CurrentCost,
		ImageURL:     strings.TrimSpace(input.ImageURL),
		Tags:         input.Tags,
		InStock:      input.Stock > 0,
		Featured:     input.Featured,
		Stock:        input.Stock,
	}
}
