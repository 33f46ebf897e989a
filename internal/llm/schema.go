package llm

import "google.golang.org/genai"

// productInfoSchema constrains the product lookup reply.
var productInfoSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"productName": {
			Type:        genai.TypeString,
			Description: "A plausible, creative name for the product.",
		},
		"productDescription": {
			Type:        genai.TypeString,
			Description: "A short, engaging description for the product.",
		},
		"prices": {
			Type:        genai.TypeArray,
			Description: "A list of up to 5 fictional online stores with their prices.",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"store": {Type: genai.TypeString, Description: "The name of the online store."},
					"price": {Type: genai.TypeNumber, Description: "The price of the product."},
					"url":   {Type: genai.TypeString, Description: "A plausible URL for the product page."},
				},
				Required:         []string{"store", "price", "url"},
				PropertyOrdering: []string{"store", "price", "url"},
			},
		},
	},
	Required:         []string{"productName", "productDescription", "prices"},
	PropertyOrdering: []string{"productName", "productDescription", "prices"},
}

// tagsSchema constrains the tag generation reply.
var tagsSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"tags": {
			Type:        genai.TypeArray,
			Description: "A list of 10 relevant and effective tags for the product.",
			Items: &genai.Schema{
				Type:        genai.TypeString,
				Description: "A single product tag.",
			},
		},
	},
	Required: []string{"tags"},
}
