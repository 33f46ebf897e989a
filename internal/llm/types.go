package llm

import (
	"context"
	"encoding/base64"
)

const (
	// MaxPrices is the most store prices kept from a product lookup.
	MaxPrices = 5
	// MaxTags is the most tags kept from a tag generation.
	MaxTags = 10
)

// ProductQuery is what the user typed into the search form.
type ProductQuery struct {
	Barcode         string
	ProductNameHint string // Optional
}

// PriceQuote is a single fictional store offer.
type PriceQuote struct {
	Store string  `json:"store"`
	Price float64 `json:"price"`
	URL   string  `json:"url"`
}

// ProductInfo is the fabricated product data for a barcode.
type ProductInfo struct {
	ProductName        string       `json:"productName"`
	ProductDescription string       `json:"productDescription"`
	Prices             []PriceQuote `json:"prices"`
}

// Clone returns a deep copy.
func (p *ProductInfo) Clone() *ProductInfo {
	if p == nil {
		return nil
	}
	c := *p
	if p.Prices != nil {
		c.Prices = make([]PriceQuote, len(p.Prices))
		copy(c.Prices, p.Prices)
	}
	return &c
}

// Banner is a generated promotional image.
type Banner struct {
	MIMEType string
	Data     []byte
}

// DataURI returns the banner as a base64 data URI suitable for an <img> src.
func (b *Banner) DataURI() string {
	return "data:" + b.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(b.Data)
}

// Usage contains token usage and cost information for one call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// ProductLookup fabricates product information and store prices for a barcode.
type ProductLookup interface {
	FetchProductInfo(ctx context.Context, q ProductQuery) (*ProductInfo, error)
}

// TagGenerator generates marketing tags for a product.
type TagGenerator interface {
	GenerateTags(ctx context.Context, productName, productDescription string) ([]string, error)
}

// BannerGenerator generates a promotional banner image.
type BannerGenerator interface {
	GenerateBanner(ctx context.Context, productName string, price float64) (*Banner, error)
}

// Gateway is the full set of generative calls the controller depends on.
type Gateway interface {
	ProductLookup
	TagGenerator
	BannerGenerator
}
