package bot

// =============================================================================
// General messages
// =============================================================================

const (
	MsgStart = `
		Send a barcode to look up a product:
		/search <barcode> [product name]

		Then set your pricing with /cost, /shipping and /margin,
		and create /tags and a /banner.`
	MsgUnknownCommand = "Unknown command. Try /start."
	MsgUnexpectedErr  = `Unexpected error: %s`
	MsgSessionClosed  = "The session is closed. Please try again."
)

// =============================================================================
// Action messages
// =============================================================================

const (
	MsgSearchUsage      = "Usage: `/search <barcode> [product name]`"
	MsgSearchStarted    = "Looking up prices for `%s`..."
	MsgTagsStarted      = "Generating tags..."
	MsgBannerStarted    = "Generating a banner for %s..."
	MsgInputUsage       = "Usage: `/%s <amount>`"
	MsgInputInvalid     = "Please enter a number, for example `/%s 10000`."
	MsgInputUpdated     = "%s set to %s. Optimal sale price: *%s*"
	MsgBannerCaption    = "%s · %s"
	MsgBannerDecodeFail = "The generated banner could not be sent."
)

// =============================================================================
// Result messages
// =============================================================================

const (
	MsgProductHeader = "*%s*\n%s"
	MsgPricesHeader  = "Lowest prices (up to 5):"
	MsgPriceLine     = "• %s: %s\n  %s"
	MsgNoPrices      = "No store prices found."
	MsgTagsHeader    = "Suggested tags:"
	MsgNoTags        = "No tags were generated."
	MsgStatus        = `
		Barcode: %s
		Product: %s
		Cost: %s
		Shipping: %s
		Margin: %s
		Optimal sale price: *%s*
		In progress: %s`
	MsgStatusNone = "-"
	MsgStatusIdle = "nothing"
)
