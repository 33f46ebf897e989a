package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	geminiModel      = "gemini-2.5-flash"
	geminiImageModel = "gemini-2.5-flash-image"
)

// Gemini pricing (per million tokens)
const (
	geminiInputPricePerMillion       = 0.30
	geminiOutputPricePerMillion      = 2.50
	geminiImageInputPricePerMillion  = 0.30
	geminiImageOutputPricePerMillion = 30.00 // image output tokens
)

// contentGenerator is the subset of *genai.Models used by the gateway.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGateway implements Gateway on top of the Gemini API. It holds no
// mutable state besides the shared rate limiter, so one instance serves every
// session.
type GeminiGateway struct {
	models  contentGenerator
	limiter *rate.Limiter
}

// NewGeminiGateway creates a gateway authenticated with apiKey. A nil limiter
// disables throttling.
func NewGeminiGateway(ctx context.Context, apiKey string, limiter *rate.Limiter) (*GeminiGateway, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiGateway{models: client.Models, limiter: limiter}, nil
}

func (g *GeminiGateway) generate(ctx context.Context, model, prompt string, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
	}
	result, err := g.models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: empty response from gemini", ErrInvalidShape)
	}
	return result, nil
}

// FetchProductInfo fabricates product details and up to MaxPrices fictional
// store prices for a barcode.
func (g *GeminiGateway) FetchProductInfo(ctx context.Context, q ProductQuery) (*ProductInfo, error) {
	if strings.TrimSpace(q.Barcode) == "" {
		return nil, userError(MsgFetchProductFailed, fmt.Errorf("%w: barcode is required", ErrInvalidRequest))
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   productInfoSchema,
	}

	result, err := g.generate(ctx, geminiModel, buildProductInfoPrompt(q), config)
	if err != nil {
		log.Error().Err(err).Str("barcode", q.Barcode).Msg("product lookup failed")
		return nil, userError(MsgFetchProductFailed, err)
	}

	info, err := decodeProductInfo(result.Text())
	if err != nil {
		log.Error().Err(err).Str("barcode", q.Barcode).Msg("product lookup returned invalid data")
		return nil, userError(MsgFetchProductFailed, err)
	}

	usage := usageOf(result, geminiInputPricePerMillion, geminiOutputPricePerMillion)
	log.Info().
		Str("model", geminiModel).
		Str("barcode", q.Barcode).
		Str("productName", info.ProductName).
		Int("priceCount", len(info.Prices)).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Int64("totalTokens", usage.TotalTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("product lookup llm call")

	return info, nil
}

// GenerateTags asks for 10 marketing tags and returns at most MaxTags.
func (g *GeminiGateway) GenerateTags(ctx context.Context, productName, productDescription string) ([]string, error) {
	if productName == "" || productDescription == "" {
		return nil, userError(MsgGenerateTagsFailed, fmt.Errorf("%w: product name and description are required", ErrInvalidRequest))
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   tagsSchema,
	}

	result, err := g.generate(ctx, geminiModel, buildTagsPrompt(productName, productDescription), config)
	if err != nil {
		log.Error().Err(err).Str("productName", productName).Msg("tag generation failed")
		return nil, userError(MsgGenerateTagsFailed, err)
	}

	tags, err := decodeTags(result.Text())
	if err != nil {
		log.Error().Err(err).Str("productName", productName).Msg("tag generation returned invalid data")
		return nil, userError(MsgGenerateTagsFailed, err)
	}

	usage := usageOf(result, geminiInputPricePerMillion, geminiOutputPricePerMillion)
	log.Info().
		Str("model", geminiModel).
		Strs("tags", tags).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Int64("totalTokens", usage.TotalTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("tag generation llm call")

	return tags, nil
}

// GenerateBanner renders a promotional banner showing the product name and
// price. Only the first inline image of the first candidate is used.
func (g *GeminiGateway) GenerateBanner(ctx context.Context, productName string, price float64) (*Banner, error) {
	if productName == "" || price <= 0 {
		return nil, userError(MsgGenerateBannerFailed, fmt.Errorf("%w: product name and a positive price are required", ErrInvalidRequest))
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage)},
	}

	result, err := g.generate(ctx, geminiImageModel, buildBannerPrompt(productName, price), config)
	if err != nil {
		log.Error().Err(err).Str("productName", productName).Msg("banner generation failed")
		return nil, userError(MsgGenerateBannerFailed, err)
	}

	banner, err := firstInlineImage(result)
	if err != nil {
		log.Error().Err(err).Str("productName", productName).Msg("banner generation returned no image")
		return nil, userError(MsgGenerateBannerFailed, err)
	}

	usage := usageOf(result, geminiImageInputPricePerMillion, geminiImageOutputPricePerMillion)
	log.Info().
		Str("model", geminiImageModel).
		Str("productName", productName).
		Float64("price", price).
		Str("mimeType", banner.MIMEType).
		Int("bytes", len(banner.Data)).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Int64("totalTokens", usage.TotalTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("banner generation llm call")

	return banner, nil
}

// firstInlineImage extracts the inline image of the first part of the first
// candidate.
func firstInlineImage(result *genai.GenerateContentResponse) (*Banner, error) {
	if result == nil || len(result.Candidates) == 0 {
		return nil, ErrNoImageData
	}
	content := result.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 || content.Parts[0] == nil {
		return nil, ErrNoImageData
	}
	blob := content.Parts[0].InlineData
	if blob == nil || len(blob.Data) == 0 {
		return nil, ErrNoImageData
	}
	return &Banner{MIMEType: blob.MIMEType, Data: blob.Data}, nil
}

func usageOf(result *genai.GenerateContentResponse, inputPrice, outputPrice float64) Usage {
	usage := Usage{}
	if result.UsageMetadata != nil {
		usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
		usage.CostUSD = calculateGeminiCost(usage.InputTokens, usage.OutputTokens, inputPrice, outputPrice)
	}
	return usage
}

func calculateGeminiCost(inputTokens, outputTokens int64, inputPrice, outputPrice float64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * inputPrice
	outputCost := float64(outputTokens) / 1_000_000 * outputPrice
	return inputCost + outputCost
}
