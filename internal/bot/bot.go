package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/raine/pricebanner/internal/llm"
	"github.com/raine/pricebanner/internal/pricing"
	"github.com/raine/pricebanner/internal/session"
)

// BotAPI defines the interface for Telegram bot API operations.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot is the Telegram front end. Each chat gets its own session controller.
type Bot struct {
	tg      BotAPI
	gateway llm.Gateway
	state   BotState
}

// NewBot creates a new Bot instance.
func NewBot(tg BotAPI, gateway llm.Gateway) *Bot {
	bot := &Bot{
		tg:      tg,
		gateway: gateway,
	}
	bot.state = bot.NewBotState()
	return bot
}

// Shutdown stops every chat session.
func (b *Bot) Shutdown() {
	b.state.Shutdown()
}

// HandleUpdate is the main message router.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	if message == nil || message.Chat == nil {
		return
	}
	chatID := message.Chat.ID

	log.Info().Int64("chatId", chatID).Str("text", message.Text).Msg("got message")

	cmd, args := parseCommand(message.Text)
	if cmd == "" {
		return
	}
	if !strings.HasPrefix(cmd, "/") {
		// A bare barcode is a search.
		if isBarcode(cmd) {
			b.handleSearch(chatID, append([]string{cmd}, args...))
		} else {
			b.reply(chatID, MsgUnknownCommand)
		}
		return
	}

	switch cmd {
	case "/start":
		b.reply(chatID, MsgStart)
	case "/search":
		b.handleSearch(chatID, args)
	case "/cost":
		b.handleInput(chatID, session.FieldCost, args)
	case "/shipping":
		b.handleInput(chatID, session.FieldShipping, args)
	case "/margin":
		b.handleInput(chatID, session.FieldMargin, args)
	case "/tags":
		c := b.state.getSession(chatID)
		b.replyAction(chatID, c.GenerateTags(), MsgTagsStarted)
	case "/banner":
		b.handleBanner(chatID)
	case "/status":
		b.handleStatus(chatID)
	default:
		b.reply(chatID, MsgUnknownCommand)
	}
}

func (b *Bot) handleSearch(chatID int64, args []string) {
	if len(args) == 0 {
		b.reply(chatID, MsgSearchUsage)
		return
	}
	barcode := args[0]
	hint := strings.Join(args[1:], " ")

	c := b.state.getSession(chatID)
	b.replyAction(chatID, c.Search(barcode, hint), formatReplyText(MsgSearchStarted, codeSpanText(barcode)))
}

func (b *Bot) handleInput(chatID int64, field session.Field, args []string) {
	if len(args) != 1 {
		b.reply(chatID, MsgInputUsage, field)
		return
	}

	c := b.state.getSession(chatID)
	if !c.SetInput(field, args[0]) {
		b.reply(chatID, MsgInputInvalid, field)
		return
	}
	s := c.State()
	b.reply(chatID, MsgInputUpdated, fieldLabel(field), pricing.FormatWon(pricing.ParseAmount(args[0])), pricing.FormatWon(s.OptimalPrice))
}

func (b *Bot) handleBanner(chatID int64) {
	c := b.state.getSession(chatID)
	err := c.GenerateBanner()
	started := formatReplyText(MsgBannerStarted, pricing.FormatWon(c.State().OptimalPrice))
	b.replyAction(chatID, err, started)
}

func (b *Bot) handleStatus(chatID int64) {
	s := b.state.getSession(chatID).State()

	product := MsgStatusNone
	if s.ProductInfo != nil {
		product = escapeMarkdown(s.ProductInfo.ProductName)
	}
	barcode := MsgStatusNone
	if s.Barcode != "" {
		barcode = escapeMarkdown(s.Barcode)
	}

	var busy []string
	for _, slot := range []session.Slot{session.SlotPrices, session.SlotTags, session.SlotBanner} {
		if isLoading(s.Loading, slot) {
			busy = append(busy, slot.String())
		}
	}
	inProgress := MsgStatusIdle
	if len(busy) > 0 {
		inProgress = strings.Join(busy, ", ")
	}

	b.reply(chatID, MsgStatus,
		barcode,
		product,
		pricing.FormatWon(pricing.ParseAmount(s.Inputs.Cost)),
		pricing.FormatWon(pricing.ParseAmount(s.Inputs.Shipping)),
		pricing.FormatWon(pricing.ParseAmount(s.Inputs.Margin)),
		pricing.FormatWon(s.OptimalPrice),
		inProgress,
	)
}

// replyAction reports whether an action was accepted.
func (b *Bot) replyAction(chatID int64, err error, started string) {
	var ve *session.ValidationError
	switch {
	case err == nil:
		b.reply(chatID, "%s", started)
	case errors.As(err, &ve):
		b.reply(chatID, "%s", escapeMarkdown(ve.Message))
	case errors.Is(err, context.Canceled):
		log.Warn().Err(err).Int64("chatId", chatID).Msg("action not dispatched")
		b.reply(chatID, MsgSessionClosed)
	default:
		log.Error().Err(err).Int64("chatId", chatID).Msg("action not dispatched")
		b.reply(chatID, MsgUnexpectedErr, escapeMarkdown(err.Error()))
	}
}

func (b *Bot) reply(chatID int64, text string, a ...any) tgbotapi.Message {
	msg := tgbotapi.NewMessage(chatID, formatReplyText(text, a...))
	msg.ParseMode = tgbotapi.ModeMarkdown
	return b.send(msg)
}

func (b *Bot) send(c tgbotapi.Chattable) tgbotapi.Message {
	sent, err := b.tg.Send(c)
	if err != nil {
		log.Error().Err(fmt.Errorf("failed to send reply message: %w", err)).Send()
	}
	return sent
}

// chatListener pushes settled results to a chat.
type chatListener struct {
	bot    *Bot
	chatID int64
}

func (l *chatListener) OnSettled(slot session.Slot, state session.State, err error) {
	b := l.bot
	if err != nil {
		b.reply(l.chatID, "%s", escapeMarkdown(state.Error))
		return
	}

	switch slot {
	case session.SlotPrices:
		b.reply(l.chatID, "%s", renderProduct(state.ProductInfo))
	case session.SlotTags:
		b.reply(l.chatID, "%s", renderTags(state.Tags))
	case session.SlotBanner:
		b.sendBanner(l.chatID, state)
	}
}

func (b *Bot) sendBanner(chatID int64, state session.State) {
	mimeType, data, err := decodeDataURI(state.BannerURL)
	if err != nil {
		log.Error().Err(err).Int64("chatId", chatID).Msg("failed to decode banner")
		b.reply(chatID, MsgBannerDecodeFail)
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "banner" + imageExtension(mimeType), Bytes: data})
	name := ""
	if state.ProductInfo != nil {
		name = state.ProductInfo.ProductName
	}
	photo.Caption = fmt.Sprintf(MsgBannerCaption, name, pricing.FormatWon(state.OptimalPrice))
	b.send(photo)
}

func renderProduct(info *llm.ProductInfo) string {
	if info == nil {
		return MsgNoPrices
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(MsgProductHeader, escapeMarkdown(info.ProductName), escapeMarkdown(info.ProductDescription)))
	sb.WriteString("\n\n")
	if len(info.Prices) == 0 {
		sb.WriteString(MsgNoPrices)
		return sb.String()
	}
	sb.WriteString(MsgPricesHeader)
	for _, p := range info.Prices {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf(MsgPriceLine, escapeMarkdown(p.Store), pricing.FormatWon(p.Price), escapeMarkdown(p.URL)))
	}
	return sb.String()
}

func renderTags(tags []string) string {
	if len(tags) == 0 {
		return MsgNoTags
	}
	hashtags := make([]string, len(tags))
	for i, t := range tags {
		hashtags[i] = "#" + escapeMarkdown(strings.ReplaceAll(t, " ", "_"))
	}
	return MsgTagsHeader + "\n" + strings.Join(hashtags, " ")
}

func fieldLabel(f session.Field) string {
	switch f {
	case session.FieldCost:
		return "Cost"
	case session.FieldShipping:
		return "Shipping"
	default:
		return "Margin"
	}
}

func isLoading(l session.Loading, slot session.Slot) bool {
	switch slot {
	case session.SlotPrices:
		return l.Prices
	case session.SlotTags:
		return l.Tags
	default:
		return l.Banner
	}
}

func isBarcode(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func imageExtension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
