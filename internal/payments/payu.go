package payments

import (
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const defaultEndpoint = "https://secure.payu.in/_payment"

var (
	errMerchantKeyRequired = errors.New("payu: merchant key is required")
	errSaltRequired        = errors.New("payu: salt is required")
)

// PayUConfig carries the merchant credentials and endpoint for the hosted
// checkout. The salt signs every request and must never leave the server.
type PayUConfig struct {
	MerchantKey string
	Salt        string
	BaseURL     string
	ProductInfo string
}

// PayU builds signed hosted-checkout requests for the PayU gateway.
type PayU struct {
	key         string
	salt        string
	endpoint    string
	productInfo string
}

// NewPayU validates the merchant credentials and returns a request builder.
func NewPayU(cfg PayUConfig) (*PayU, error) {
	key := strings.TrimSpace(cfg.MerchantKey)
	if key == "" {
		return nil, errMerchantKeyRequired
	}
	salt := strings.TrimSpace(cfg.Salt)
	if salt == "" {
		return nil, errSaltRequired
	}
	endpoint := strings.TrimSpace(cfg.BaseURL)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	productInfo := strings.TrimSpace(cfg.ProductInfo)
	if productInfo == "" {
		productInfo = "Order from Fresh Press"
	}
	return &PayU{
		key:         key,
		salt:        salt,
		endpoint:    endpoint,
		productInfo: productInfo,
	}, nil
}

// RequestParams are the per-transaction inputs to a hosted-checkout request.
type RequestParams struct {
	TxnID      string
	Amount     string
	FirstName  string
	Email      string
	Phone      string
	SuccessURL string
	FailureURL string
}

// Request is the set of form fields the browser posts to the gateway. The
// gateway recomputes Hash server-side and rejects tampered amount/identity
// fields.
type Request struct {
	Key         string `json:"key"`
	TxnID       string `json:"txnid"`
	Amount      string `json:"amount"`
	ProductInfo string `json:"productinfo"`
	FirstName   string `json:"firstname"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	SuccessURL  string `json:"surl"`
	FailureURL  string `json:"furl"`
	Hash        string `json:"hash"`
	Endpoint    string `json:"payuBaseUrl"`
}

// BuildRequest assembles and signs the hosted-checkout form fields.
func (p *PayU) BuildRequest(params RequestParams) Request {
	req := Request{
		Key:         p.key,
		TxnID:       strings.TrimSpace(params.TxnID),
		Amount:      strings.TrimSpace(params.Amount),
		ProductInfo: p.productInfo,
		FirstName:   strings.TrimSpace(params.FirstName),
		Email:       strings.TrimSpace(params.Email),
		Phone:       strings.TrimSpace(params.Phone),
		SuccessURL:  strings.TrimSpace(params.SuccessURL),
		FailureURL:  strings.TrimSpace(params.FailureURL),
		Endpoint:    p.endpoint,
	}
	req.Hash = p.sign(req)
	return req
}

// sign computes the SHA-512 request hash over the gateway's pipe-delimited
// field sequence: key|txnid|amount|productinfo|firstname|email followed by
// eleven empty udf slots and the salt.
func (p *PayU) sign(req Request) string {
	payload := fmt.Sprintf("%s|%s|%s|%s|%s|%s|||||||||||%s",
		req.Key, req.TxnID, req.Amount, req.ProductInfo, req.FirstName, req.Email, p.salt)
	sum := sha512.Sum512([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Notification is the server-to-server callback body posted by the gateway.
type Notification struct {
	TxnID        string `json:"txnid"`
	Status       string `json:"status"`
	Amount       string `json:"amount"`
	Mode         string `json:"mode"`
	MihpayID     string `json:"mihpayid"`
	ErrorMessage string `json:"error_Message"`
}

// Succeeded reports whether the notification carries the gateway's success
// code. Anything unrecognised counts as failure.
func (n Notification) Succeeded() bool {
	return IsSuccessStatus(n.Status)
}

// FailureReason returns the gateway's error message, defaulting to a generic
// reason so failed transactions always record a non-empty cause.
func (n Notification) FailureReason() string {
	if reason := strings.TrimSpace(n.ErrorMessage); reason != "" {
		return reason
	}
	return "Payment failed"
}

// IsSuccessStatus classifies a gateway status string.
func IsSuccessStatus(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), "success")
}
