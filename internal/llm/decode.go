package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSONObject extracts a JSON object from text that may contain markdown
// code blocks or other formatting.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("%w: no JSON object found in response: %s", ErrInvalidShape, text)
	}
	return text[start : end+1], nil
}

// Payload types use pointers so a missing field can be told apart from a zero
// value.
type productPayload struct {
	ProductName        *string        `json:"productName"`
	ProductDescription *string        `json:"productDescription"`
	Prices             []pricePayload `json:"prices"`
}

type pricePayload struct {
	Store *string  `json:"store"`
	Price *float64 `json:"price"`
	URL   *string  `json:"url"`
}

type tagsPayload struct {
	Tags *[]*string `json:"tags"`
}

// decodeProductInfo parses and validates a product lookup reply. Prices beyond
// MaxPrices are dropped before validation.
func decodeProductInfo(text string) (*ProductInfo, error) {
	jsonStr, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var p productPayload
	if err := json.Unmarshal([]byte(jsonStr), &p); err != nil {
		return nil, fmt.Errorf("%w: failed to parse product json: %v (response: %s)", ErrInvalidShape, err, jsonStr)
	}

	switch {
	case p.ProductName == nil:
		return nil, fmt.Errorf("%w: missing productName", ErrInvalidShape)
	case p.ProductDescription == nil:
		return nil, fmt.Errorf("%w: missing productDescription", ErrInvalidShape)
	case p.Prices == nil:
		return nil, fmt.Errorf("%w: missing prices", ErrInvalidShape)
	}

	if len(p.Prices) > MaxPrices {
		p.Prices = p.Prices[:MaxPrices]
	}

	info := &ProductInfo{
		ProductName:        *p.ProductName,
		ProductDescription: *p.ProductDescription,
		Prices:             make([]PriceQuote, 0, len(p.Prices)),
	}
	for i, pp := range p.Prices {
		switch {
		case pp.Store == nil:
			return nil, fmt.Errorf("%w: prices[%d] missing store", ErrInvalidShape, i)
		case pp.Price == nil:
			return nil, fmt.Errorf("%w: prices[%d] missing price", ErrInvalidShape, i)
		case pp.URL == nil:
			return nil, fmt.Errorf("%w: prices[%d] missing url", ErrInvalidShape, i)
		case *pp.Price < 0:
			return nil, fmt.Errorf("%w: prices[%d] has negative price %v", ErrInvalidShape, i, *pp.Price)
		}
		info.Prices = append(info.Prices, PriceQuote{Store: *pp.Store, Price: *pp.Price, URL: *pp.URL})
	}

	return info, nil
}

// decodeTags parses and validates a tag generation reply. A reply without a
// tags array is an error, not an empty result.
func decodeTags(text string) ([]string, error) {
	jsonStr, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var p tagsPayload
	if err := json.Unmarshal([]byte(jsonStr), &p); err != nil {
		return nil, fmt.Errorf("%w: failed to parse tags json: %v (response: %s)", ErrInvalidShape, err, jsonStr)
	}
	if p.Tags == nil {
		return nil, fmt.Errorf("%w: missing tags array", ErrInvalidShape)
	}

	raw := *p.Tags
	if len(raw) > MaxTags {
		raw = raw[:MaxTags]
	}
	tags := make([]string, 0, len(raw))
	for i, t := range raw {
		if t == nil {
			return nil, fmt.Errorf("%w: tags[%d] is null", ErrInvalidShape, i)
		}
		tags = append(tags, *t)
	}
	return tags, nil
}
