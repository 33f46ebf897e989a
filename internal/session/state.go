package session

import (
	"github.com/raine/pricebanner/internal/llm"
	"github.com/raine/pricebanner/internal/pricing"
)

// Slot identifies one of the controller's independent async operations.
type Slot int

const (
	SlotPrices Slot = iota
	SlotTags
	SlotBanner
	slotCount
)

func (s Slot) String() string {
	switch s {
	case SlotPrices:
		return "prices"
	case SlotTags:
		return "tags"
	case SlotBanner:
		return "banner"
	default:
		return "unknown"
	}
}

// Field identifies a pricing input.
type Field string

const (
	FieldCost     Field = "cost"
	FieldShipping Field = "shipping"
	FieldMargin   Field = "margin"
)

// ParseField maps a field name to a Field.
func ParseField(name string) (Field, bool) {
	switch f := Field(name); f {
	case FieldCost, FieldShipping, FieldMargin:
		return f, true
	}
	return "", false
}

// Loading holds one in-flight flag per slot. The flags are never coupled.
type Loading struct {
	Prices bool `json:"prices"`
	Tags   bool `json:"tags"`
	Banner bool `json:"banner"`
}

func (l *Loading) set(slot Slot, v bool) {
	switch slot {
	case SlotPrices:
		l.Prices = v
	case SlotTags:
		l.Tags = v
	case SlotBanner:
		l.Banner = v
	}
}

// State is a snapshot of everything a front end renders.
type State struct {
	Barcode         string           `json:"barcode"`
	ProductNameHint string           `json:"productName"`
	Inputs          pricing.Inputs   `json:"inputs"`
	OptimalPrice    float64          `json:"optimalPrice"`
	ProductInfo     *llm.ProductInfo `json:"productInfo"`
	Tags            []string         `json:"tags"` // nil until generated
	BannerURL       string           `json:"bannerUrl"`
	Loading         Loading          `json:"loading"`
	Error           string           `json:"error"`
}

func (s State) clone() State {
	c := s
	c.ProductInfo = s.ProductInfo.Clone()
	if s.Tags != nil {
		c.Tags = append([]string{}, s.Tags...)
	}
	return c
}

func (s *State) setInput(f Field, v string) {
	switch f {
	case FieldCost:
		s.Inputs.Cost = v
	case FieldShipping:
		s.Inputs.Shipping = v
	case FieldMargin:
		s.Inputs.Margin = v
	}
	s.OptimalPrice = s.Inputs.OptimalPrice()
}

func (s *State) hasProductText() bool {
	return s.ProductInfo != nil && s.ProductInfo.ProductName != "" && s.ProductInfo.ProductDescription != ""
}
