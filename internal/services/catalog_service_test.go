package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/freshpress/api/internal/domain"
	"github.com/freshpress/api/internal/repositories"
)

type stubProductRepo struct {
	products  map[string]domain.Product
	listFn    func(filter repositories.ProductListFilter) ([]domain.Product, error)
	created   []domain.Product
	updated   []domain.Product
	deleted   []string
	createErr error
}

func (s *stubProductRepo) Create(_ context.Context, product domain.Product) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, product)
	return nil
}

func (s *stubProductRepo) Update(_ context.Context, product domain.Product) error {
	s.updated = append(s.updated, product)
	return nil
}

func (s *stubProductRepo) Delete(_ context.Context, productID string) error {
	if _, ok := s.products[productID]; !ok {
		return stubRepoErr{notFound: true}
	}
	s.deleted = append(s.deleted, productID)
	return nil
}

func (s *stubProductRepo) FindByID(_ context.Context, productID string) (domain.Product, error) {
	if product, ok := s.products[productID]; ok {
		return product, nil
	}
	return domain.Product{}, stubRepoErr{notFound: true}
}

func (s *stubProductRepo) List(_ context.Context, filter repositories.ProductListFilter) ([]domain.Product, error) {
	if s.listFn != nil {
		return s.listFn(filter)
	}
	out := make([]domain.Product, 0, len(s.products))
	for _, product := range s.products {
		out = append(out, product)
	}
	return out, nil
}

func (s *stubProductRepo) SetStock(_ context.Context, productID string, stock int) (domain.Product, error) {
	product, ok := s.products[productID]
	if !ok {
		return domain.Product{}, stubRepoErr{notFound: true}
	}
	product.Stock = stock
	product.InStock = stock > 0
	s.products[productID] = product
	return product, nil
}

func newTestCatalogService(t *testing.T, repo *stubProductRepo) CatalogService {
	t.Helper()
	svc, err := NewCatalogService(CatalogServiceDeps{
		Products: repo,
		Clock:    func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) },
		IDGen:    func() string { return "01CATULID" },
	})
	if err != nil {
		t.Fatalf("NewCatalogService returned error: %v", err)
	}
	return svc
}

func TestListProductsSortsAndFilters(t *testing.T) {
	repo := &stubProductRepo{
		listFn: func(repositories.ProductListFilter) ([]domain.Product, error) {
			return []domain.Product{
				{ID: "a", Title: "Citrus Sunrise", CurrentCost: 799, InStock: true},
				{ID: "b", Title: "Beet Boost", CurrentCost: 549, InStock: false},
				{ID: "c", Title: "Apple Zing", CurrentCost: 649, InStock: true},
			}, nil
		},
	}
	svc := newTestCatalogService(t, repo)

	byPrice, err := svc.ListProducts(context.Background(), ProductListQuery{SortBy: "price"})
	if err != nil {
		t.Fatalf("ListProducts returned error: %v", err)
	}
	if byPrice[0].ID != "b" || byPrice[2].ID != "a" {
		t.Fatalf("unexpected price order: %s %s %s", byPrice[0].ID, byPrice[1].ID, byPrice[2].ID)
	}

	inStock, err := svc.ListProducts(context.Background(), ProductListQuery{SortBy: "title", InStockOnly: true})
	if err != nil {
		t.Fatalf("ListProducts returned error: %v", err)
	}
	if len(inStock) != 2 || inStock[0].Title != "Apple Zing" {
		t.Fatalf("unexpected in-stock listing: %+v", inStock)
	}

	if _, err := svc.ListProducts(context.Background(), ProductListQuery{SortBy: "rating"}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected ErrCatalogInvalidInput for unknown sort, got %v", err)
	}
}

func TestCreateProduct(t *testing.T) {
	repo := &stubProductRepo{}
	svc := newTestCatalogService(t, repo)

	product, err := svc.CreateProduct(context.Background(), ProductInput{
		Title:       "Green Machine",
		Category:    "greens",
		CurrentCost: 699,
		Stock:       12,
	})
	if err != nil {
		t.Fatalf("CreateProduct returned error: %v", err)
	}
	if product.ID != "prod_01CATULID" {
		t.Fatalf("unexpected product id %s", product.ID)
	}
	if product.OriginalCost != 699 {
		t.Fatalf("expected original cost to default to current cost, got %d", product.OriginalCost)
	}
	if !product.InStock {
		t.Fatal("expected product with stock to be in stock")
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one create, got %d", len(repo.created))
	}
}

func TestCreateProductValidation(t *testing.T) {
	svc := newTestCatalogService(t, &stubProductRepo{})

	cases := []struct {
		name  string
		input ProductInput
	}{
		{"missing title", ProductInput{CurrentCost: 100}},
		{"zero price", ProductInput{Title: "Freebie"}},
		{"negative stock", ProductInput{Title: "Odd", CurrentCost: 100, Stock: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateProduct(context.Background(), tc.input); !errors.Is(err, ErrCatalogInvalidInput) {
				t.Fatalf("expected ErrCatalogInvalidInput, got %v", err)
			}
		})
	}
}

func TestUpdateProductPreservesCreatedAt(t *testing.T) {
	createdAt := time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC)
	repo := &stubProductRepo{products: map[string]domain.Product{
		"prod_1": {ID: "prod_1", Title: "Old Title", CurrentCost: 500, CreatedAt: createdAt},
	}}
	svc := newTestCatalogService(t, repo)

	product, err := svc.UpdateProduct(context.Background(), "prod_1", ProductInput{Title: "New Title", CurrentCost: 550, Stock: 3})
	if err != nil {
		t.Fatalf("UpdateProduct returned error: %v", err)
	}
	if !product.CreatedAt.Equal(createdAt) {
		t.Fatalf("expected createdAt preserved, got %s", product.CreatedAt)
	}
	if product.Title != "New Title" || product.Stock != 3 {
		t.Fatalf("unexpected product %+v", product)
	}
}

func TestSetStockValidation(t *testing.T) {
	repo := &stubProductRepo{products: map[string]domain.Product{
		"prod_1": {ID: "prod_1", Title: "Juice", CurrentCost: 500, Stock: 5, InStock: true},
	}}
	svc := newTestCatalogService(t, repo)

	if _, err := svc.SetStock(context.Background(), "prod_1", -2); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected ErrCatalogInvalidInput, got %v", err)
	}

	product, err := svc.SetStock(context.Background(), "prod_1", 0)
	if err != nil {
		t.Fatalf("SetStock returned error: %v", err)
	}
	if product.Stock != 0 || product.InStock {
		t.Fatalf("expected zero stock and out-of-stock flag, got %+v", product)
	}

	if _, err := svc.SetStock(context.Background(), "prod_missing", 4); !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("expected ErrCatalogNotFound, got %v", err)
	}
}
