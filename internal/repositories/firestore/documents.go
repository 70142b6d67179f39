package firestore

import (
	"time"

	"github.com/freshpress/api/internal/domain"
)

// Collection names shared across repositories.
const (
	transactionsCollection = "transactions"
	ordersCollection       = "orders"
	productsCollection     = "products"
)

type addonDocument struct {
	Name  string `firestore:"name"`
	Price int64  `firestore:"price"`
}

type lineDocument struct {
	ProductID string          `firestore:"productId"`
	Title     string          `firestore:"title"`
	UnitCost  int64           `firestore:"unitCost"`
	Quantity  int             `firestore:"quantity"`
	Addons    []addonDocument `firestore:"addons,omitempty"`
}

type addressDocument struct {
	FullName     string `firestore:"fullName"`
	AddressLine1 string `firestore:"addressLine1"`
	AddressLine2 string `firestore:"addressLine2,omitempty"`
	Area         string `firestore:"area,omitempty"`
	City         string `firestore:"city"`
	State        string `firestore:"state"`
	PinCode      string `firestore:"pinCode"`
	PhoneNumber  string `firestore:"phoneNumber,omitempty"`
}

type transactionDocument struct {
	UserID          string          `firestore:"userId,omitempty"`
	Items           []lineDocument  `firestore:"items"`
	Subtotal        int64           `firestore:"subtotal"`
	Shipping        int64           `firestore:"shipping"`
	Total           int64           `firestore:"total"`
	CustomerEmail   string          `firestore:"customerEmail"`
	CustomerName    string          `firestore:"customerName"`
	Status          string          `firestore:"status"`
	PaymentStatus   string          `firestore:"paymentStatus"`
	FailureReason   string          `firestore:"failureReason,omitempty"`
	OrderID         string          `firestore:"orderId,omitempty"`
	ShippingAddress addressDocument `firestore:"shippingAddress"`
	PhoneNumber     string          `firestore:"phoneNumber,omitempty"`
	CreatedAt       time.Time       `firestore:"createdAt"`
	UpdatedAt       time.Time       `firestore:"updatedAt"`
}

type orderDocument struct {
	TransactionID   string          `firestore:"transactionId"`
	UserID          string          `firestore:"userId,omitempty"`
	Items           []lineDocument  `firestore:"items"`
	Subtotal        int64           `firestore:"subtotal"`
	Shipping        int64           `firestore:"shipping"`
	Total           int64           `firestore:"total"`
	CustomerEmail   string          `firestore:"customerEmail"`
	CustomerName    string          `firestore:"customerName"`
	Status          string          `firestore:"status"`
	PaymentStatus   string          `firestore:"paymentStatus"`
	PaymentID       string          `firestore:"paymentId,omitempty"`
	PaymentMode     string          `firestore:"paymentMode,omitempty"`
	ShippingAddress addressDocument `firestore:"shippingAddress"`
	PhoneNumber     string          `firestore:"phoneNumber,omitempty"`
	CreatedAt       time.Time       `firestore:"createdAt"`
	UpdatedAt       time.Time       `firestore:"updatedAt"`
}

type productDocument struct {
	Title        string    `firestore:"title"`
	Description  string    `firestore:"description,omitempty"`
	Category     string    `firestore:"category,omitempty"`
	OriginalCost int64     `firestore:"originalCost"`
	CurrentCost  int64     `firestore:"currentCost"`
	ImageURL     string    `firestore:"imageUrl,omitempty"`
	Tags         []string  `firestore:"tags,omitempty"`
	InStock      bool      `firestore:"inStock"`
	Featured     bool      `firestore:"featured"`
	Stock        int       `firestore:"stock"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

func encodeLines(lines []domain.CartLine) []lineDocument {
	out := make([]lineDocument, 0, len(lines))
	for _, line := range lines {
		doc := lineDocument{
			ProductID: line.Product.ID,
			Title:     line.Product.Title,
			UnitCost:  int64(line.Product.UnitCost),
			Quantity:  line.Quantity,
		}
		for _, addon := range line.Addons {
			doc.Addons = append(doc.Addons, addonDocument{Name: addon.Name, Price: int64(addon.Price)})
		}
		out = append(out, doc)
	}
	return out
}

func decodeLines(docs []lineDocument) []domain.CartLine {
	out := make([]domain.CartLine, 0, len(docs))
	for _, doc := range docs {
		line := domain.CartLine{
			Product: domain.ProductRef{
				ID:       doc.ProductID,
				Title:    doc.Title,
				UnitCost: domain.Cents(doc.UnitCost),
			},
			Quantity: doc.Quantity,
		}
		for _, addon := range doc.Addons {
			line.Addons = append(line.Addons, domain.Addon{Name: addon.Name, Price: domain.Cents(addon.Price)})
		}
		out = append(out, line)
	}
	return out
}

func encodeAddress(addr domain.Address) addressDocument {
	return addressDocument{
		FullName:     addr.FullName,
		AddressLine1: addr.AddressLine1,
		AddressLine2: addr.AddressLine2,
		Area:         addr.Area,
		City:         addr.City,
		State:        addr.State,
		PinCode:      addr.PinCode,
		PhoneNumber:  addr.PhoneNumber,
	}
}

func decodeAddress(doc addressDocument) domain.Address {
	return domain.Address{
		FullName:     doc.FullName,
		AddressLine1: doc.AddressLine1,
		AddressLine2: doc.AddressLine2,
		Area:         doc.Area,
		City:         doc.City,
		State:        doc.State,
		PinCode:      doc.PinCode,
		PhoneNumber:  doc.PhoneNumber,
	}
}

func encodeTransaction(txn domain.Transaction) transactionDocument {
	return transactionDocument{
		UserID:          txn.UserID,
		Items:           encodeLines(txn.Items),
		Subtotal:        int64(txn.Subtotal),
		Shipping:        int64(txn.Shipping),
		Total:           int64(txn.Total),
		CustomerEmail:   txn.CustomerEmail,
		CustomerName:    txn.CustomerName,
		Status:          string(txn.Status),
		PaymentStatus:   string(txn.PaymentStatus),
		FailureReason:   txn.FailureReason,
		OrderID:         txn.OrderID,
		ShippingAddress: encodeAddress(txn.ShippingAddress),
		PhoneNumber:     txn.PhoneNumber,
		CreatedAt:       txn.CreatedAt.UTC(),
		UpdatedAt:       txn.UpdatedAt.UTC(),
	}
}

func decodeTransaction(id string, doc transactionDocument) domain.Transaction {
	return domain.Transaction{
		ID:              id,
		UserID:          doc.UserID,
		Items:           decodeLines(doc.Items),
		Subtotal:        domain.Cents(doc.Subtotal),
		Shipping:        domain.Cents(doc.Shipping),
		Total:           domain.Cents(doc.Total),
		CustomerEmail:   doc.CustomerEmail,
		CustomerName:    doc.CustomerName,
		Status:          domain.TransactionStatus(doc.Status),
		PaymentStatus:   domain.PaymentStatus(doc.PaymentStatus),
		FailureReason:   doc.FailureReason,
		OrderID:         doc.OrderID,
		ShippingAddress: decodeAddress(doc.ShippingAddress),
		PhoneNumber:     doc.PhoneNumber,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}

func encodeOrder(order domain.Order) orderDocument {
	return orderDocument{
		TransactionID:   order.TransactionID,
		UserID:          order.UserID,
		Items:           encodeLines(order.Items),
		Subtotal:        int64(order.Subtotal),
		Shipping:        int64(order.Shipping),
		Total:           int64(order.Total),
		CustomerEmail:   order.CustomerEmail,
		CustomerName:    order.CustomerName,
		Status:          string(order.Status),
		PaymentStatus:   string(order.PaymentStatus),
		PaymentID:       order.PaymentID,
		PaymentMode:     order.PaymentMode,
		ShippingAddress: encodeAddress(order.ShippingAddress),
		PhoneNumber:     order.PhoneNumber,
		CreatedAt:       order.CreatedAt.UTC(),
		UpdatedAt:       order.UpdatedAt.UTC(),
	}
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	return domain.Order{
		ID:              id,
		TransactionID:   doc.TransactionID,
		UserID:          doc.UserID,
		Items:           decodeLines(doc.Items),
		Subtotal:        domain.Cents(doc.Subtotal),
		Shipping:        domain.Cents(doc.Shipping),
		Total:           domain.Cents(doc.Total),
		CustomerEmail:   doc.CustomerEmail,
		CustomerName:    doc.CustomerName,
		Status:          domain.OrderStatus(doc.Status),
		PaymentStatus:   domain.PaymentStatus(doc.PaymentStatus),
		PaymentID:       doc.PaymentID,
		PaymentMode:     doc.PaymentMode,
		ShippingAddress: decodeAddress(doc.ShippingAddress),
		PhoneNumber:     doc.PhoneNumber,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}

func encodeProduct(product domain.Product) productDocument {
	return productDocument{
		Title:        product.Title,
		Description:  product.Description,
		Category:     product.Category,
		OriginalCost: int64(product.OriginalCost),
		CurrentCost:  int64(product.CurrentCost),
		ImageURL:     product.ImageURL,
		Tags:         product.Tags,
		InStock:      product.InStock,
		Featured:     product.Featured,
		Stock:        product.Stock,
		CreatedAt:    product.CreatedAt.UTC(),
		UpdatedAt:    product.UpdatedAt.UTC(),
	}
}

func decodeProduct(id string, doc productDocument) domain.Product {
	return domain.Product{
		ID:           id,
		Title:        doc.Title,
		Description:  doc.Description,
		Category:     doc.Category,
		OriginalCost: domain.Cents(doc.OriginalCost),
		CurrentCost:  domain.Cents(doc.CurrentCost),
		ImageURL:     doc.ImageURL,
		Tags:         doc.Tags,
		InStock:      doc.InStock,
		Featured:     doc.Featured,
		Stock:        doc.Stock,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}
