package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/freshpress/api/internal/domain"
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
)

const defaultBodyLimit = 64 * 1024

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Shared JSON shapes. Monetary fields travel as decimal dollars; cents only
// exist server-side.

type addonPayload struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type lineItemPayload struct {
	ProductID string         `json:"productId"`
	Title     string         `json:"title"`
	UnitCost  float64        `json:"unitCost"`
	Quantity  int            `json:"quantity"`
	Addons    []addonPayload `json:"addons,omitempty"`
	LineTotal float64        `json:"lineTotal"`
}

type addressPayload struct {
	FullName     string `json:"fullName,omitempty"`
	AddressLine1 string `json:"addressLine1,omitempty"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	Area         string `json:"area,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PinCode      string `json:"pinCode,omitempty"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
}

func buildLineItemPayloads(lines []domain.CartLine) []lineItemPayload {
	out := make([]lineItemPayload, 0, len(lines))
	for _, line := range lines {
		item := lineItemPayload{
			ProductID: line.Product.ID,
			Title:     line.Product.Title,
			UnitCost:  line.Product.UnitCost.Float(),
			Quantity:  line.Quantity,
			LineTotal: line.Total().Float(),
		}
		for _, addon := range line.Addons {
			item.Addons = append(item.Addons, addonPayload{Name: addon.Name, Price: addon.Price.Float()})
		}
		out = append(out, item)
	}
	return out
}

func buildAddressPayload(addr domain.Address) addressPayload {
	return addressPayload{
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

type addressRequest struct {
	FullName     string `json:"fullName"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	Area         string `json:"area"`
	City         string `json:"city"`
	State        string `json:"state"`
	PinCode      string `json:"pinCode"`
	PhoneNumber  string `json:"phoneNumber"`
}

func (a addressRequest) toDomain() domain.Address {
	return domain.Address{
		FullName:     strings.TrimSpace(a.FullName),
		AddressLine1: strings.TrimSpace(a.AddressLine1),
		AddressLine2: strings.TrimSpace(a.AddressLine2),
		Area:         strings.TrimSpace(a.Area),
		City:         strings.TrimSpace(a.City),
		State:        strings.TrimSpace(a.State),
		PinCode:      strings.TrimSpace(a.PinCode),
		PhoneNumber:  strings.TrimSpace(a.PhoneNumber),
	}
}

type cartLineRequest struct {
	ProductID string  `json:"productId"`
	Title     string  `json:"title"`
	UnitCost  float64 `json:"unitCost"`
	Quantity  int     `json:"quantity"`
	Addons    []struct {
		Name  string  `json:"name"`
		Price float64 `json:"price"`
	} `json:"addons"`
}

func (c cartLineRequest) toDomain() domain.CartLine {
	line := domain.CartLine{
		Product: domain.ProductRef{
			ID:       strings.TrimSpace(c.ProductID),
			Title:    strings.TrimSpace(c.Title),
			UnitCost: domain.CentsFromFloat(c.UnitCost),
		},
		Quantity: c.Quantity,
	}
	for _, addon := range c.Addons {
		line.Addons = append(line.Addons, domain.Addon{
			Name:  strings.TrimSpace(addon.Name),
			Price: domain.CentsFromFloat(addon.Price),
		})
	}
	return line
}
