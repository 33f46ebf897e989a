package llm

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"

	"github.com/raine/pricebanner/internal/pricing"
)

const productInfoPrompt = `
	You are a product information simulator.
	The user has provided the following information:
	- Barcode: %q
	%s
	Your task is to act as a product information and price comparison engine.
	1. If a product name is provided, use it. If not, invent a plausible product name based on the barcode.
	2. Provide a brief, engaging description for the product.
	3. Find and list up to 5 fictional online stores with their lowest prices and plausible URLs for this product.

	Respond strictly in JSON format according to the provided schema. Be creative with the product details.`

const tagsPrompt = `
	Generate exactly 10 optimal, SEO-friendly tags for the following product. The tags should be relevant, concise, and useful for e-commerce listings and marketing.
	Product Name: %q
	Description: %q
	Respond strictly in JSON format according to the provided schema.`

const bannerPrompt = `Create an eye-catching promotional banner for an e-commerce website. The product is %q. The price is %q. The banner should be vibrant, modern, and professional, designed to attract customers. The price should be prominent and easy to read.`

func buildProductInfoPrompt(q ProductQuery) string {
	hintLine := ""
	if hint := strings.TrimSpace(q.ProductNameHint); hint != "" {
		hintLine = fmt.Sprintf("- Product Name: %q\n", hint)
	}
	return strings.TrimSpace(fmt.Sprintf(dedent.Dedent(productInfoPrompt), q.Barcode, hintLine))
}

func buildTagsPrompt(productName, productDescription string) string {
	return strings.TrimSpace(fmt.Sprintf(dedent.Dedent(tagsPrompt), productName, productDescription))
}

func buildBannerPrompt(productName string, price float64) string {
	return fmt.Sprintf(bannerPrompt, productName, pricing.FormatWon(price))
}
