package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/raine/pricebanner/internal/llm"
	"github.com/raine/pricebanner/internal/pricing"
)

// Validation messages shown when an action is rejected before any call.
const (
	MsgBarcodeRequired      = "Please enter a barcode."
	MsgProductInfoForTags   = "Product information is required to generate tags."
	MsgProductInfoForBanner = "Product information and a valid sale price are required to generate a banner."
)

// Fallbacks used when a failed call carries no user-facing message.
const (
	msgFetchFallback  = "Failed to fetch information."
	msgTagsFallback   = "Failed to generate tags."
	msgBannerFallback = "Failed to generate banner."
)

// ValidationError is returned by an action that was rejected locally.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Listener is notified on the worker goroutine whenever a slot settles with a
// current (non-stale) result. err is the call's error, nil on success.
type Listener interface {
	OnSettled(slot Slot, state State, err error)
}

type messageType string

const (
	msgSearch messageType = "search"
	msgTags   messageType = "tags"
	msgBanner messageType = "banner"
	msgInput  messageType = "input"
	msgSettle messageType = "settle"
)

// message is processed by the controller's worker.
type message struct {
	Type  messageType
	Done  chan struct{} // Closed when processing is complete
	Error chan error    // Optional: receives the action's validation result

	Query  llm.ProductQuery // For search
	Field  Field            // For input
	Value  string           // For input
	Settle *settlement      // For settle
}

// settlement is the outcome of one gateway call.
type settlement struct {
	Slot       Slot
	Generation uint64
	Info       *llm.ProductInfo
	Tags       []string
	Banner     *llm.Banner
	Err        error
}

// Controller owns the interaction state of one session.
//
// Threading model:
//   - A dedicated worker goroutine processes messages sequentially; it is the
//     only writer of state.
//   - Gateway calls run in their own goroutines and report back through the
//     inbox as settle messages.
//   - State() may be called from any goroutine; it reads under mu.
//
// Every action bumps a per-slot generation counter. A settlement carrying an
// older generation is discarded, so a slow stale call cannot overwrite the
// result of a newer one.
type Controller struct {
	id       string
	gateway  llm.Gateway
	listener Listener

	mu         sync.Mutex
	state      State
	generation [slotCount]uint64

	inbox  chan message
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a controller and starts its worker. listener may be nil.
func New(id string, gateway llm.Gateway, listener Listener) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		id:       id,
		gateway:  gateway,
		listener: listener,
		inbox:    make(chan message, 16),
		ctx:      ctx,
		cancel:   cancel,
	}
	c.wg.Add(1)
	go c.runWorker()
	return c
}

// ID returns the session identifier the controller was created with.
func (c *Controller) ID() string { return c.id }

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Search starts a product lookup. It fully resets the previous product, tags
// and banner before the call is made.
func (c *Controller) Search(barcode, productNameHint string) error {
	return c.dispatch(message{
		Type:  msgSearch,
		Query: llm.ProductQuery{Barcode: barcode, ProductNameHint: productNameHint},
	})
}

// GenerateTags starts tag generation for the current product.
func (c *Controller) GenerateTags() error {
	return c.dispatch(message{Type: msgTags})
}

// GenerateBanner starts banner generation for the current product and the
// current optimal price.
func (c *Controller) GenerateBanner() error {
	return c.dispatch(message{Type: msgBanner})
}

// SetInput updates a pricing field. Values that are not numeric input are
// rejected and leave the field unchanged.
func (c *Controller) SetInput(field Field, value string) bool {
	if !pricing.IsNumericInput(value) {
		return false
	}
	c.sendSync(message{Type: msgInput, Field: field, Value: value})
	return true
}

func (c *Controller) SetCost(v string) bool     { return c.SetInput(FieldCost, v) }
func (c *Controller) SetShipping(v string) bool { return c.SetInput(FieldShipping, v) }
func (c *Controller) SetMargin(v string) bool   { return c.SetInput(FieldMargin, v) }

// Stop stops the worker and waits for it to finish. In-flight gateway calls
// see their context cancelled and their results are dropped.
func (c *Controller) Stop() {
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) dispatch(msg message) error {
	msg.Error = make(chan error, 1)
	c.sendSync(msg)
	select {
	case err := <-msg.Error:
		return err
	default:
		return c.ctx.Err()
	}
}

// send queues a message for the worker without waiting.
func (c *Controller) send(msg message) {
	if c.ctx.Err() != nil {
		if msg.Done != nil {
			close(msg.Done)
		}
		return
	}
	select {
	case c.inbox <- msg:
	case <-c.ctx.Done():
		if msg.Done != nil {
			close(msg.Done)
		}
	}
}

// sendSync queues a message and waits until the worker has processed it.
func (c *Controller) sendSync(msg message) {
	msg.Done = make(chan struct{})
	c.send(msg)
	select {
	case <-msg.Done:
	case <-c.ctx.Done():
	}
}

func (c *Controller) runWorker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			// Drain any remaining messages and signal completion
			for {
				select {
				case msg := <-c.inbox:
					if msg.Done != nil {
						close(msg.Done)
					}
				default:
					return
				}
			}
		case msg := <-c.inbox:
			c.processMessage(msg)
		}
	}
}

func (c *Controller) processMessage(msg message) {
	defer func() {
		// Recover from any panics to keep the worker running
		if r := recover(); r != nil {
			log.Error().
				Str("sessionId", c.id).
				Interface("panic", r).
				Msg("recovered from panic in session worker")
		}
		if msg.Done != nil {
			close(msg.Done)
		}
	}()

	var err error
	switch msg.Type {
	case msgSearch:
		err = c.handleSearch(msg.Query)
	case msgTags:
		err = c.handleTags()
	case msgBanner:
		err = c.handleBanner()
	case msgInput:
		c.mu.Lock()
		c.state.setInput(msg.Field, msg.Value)
		c.mu.Unlock()
	case msgSettle:
		c.handleSettle(msg.Settle)
	}

	if msg.Error != nil {
		msg.Error <- err
	}
}

// reject records a validation failure. No call is made.
func (c *Controller) reject(message string) error {
	c.mu.Lock()
	c.state.Error = message
	c.mu.Unlock()
	log.Info().Str("sessionId", c.id).Str("reason", message).Msg("action rejected")
	return &ValidationError{Message: message}
}

func (c *Controller) handleSearch(q llm.ProductQuery) error {
	if strings.TrimSpace(q.Barcode) == "" {
		return c.reject(MsgBarcodeRequired)
	}

	c.mu.Lock()
	c.state.Barcode = q.Barcode
	c.state.ProductNameHint = q.ProductNameHint
	c.state.Error = ""
	c.state.ProductInfo = nil
	c.state.Tags = nil
	c.state.BannerURL = ""
	c.state.Loading = Loading{Prices: true}
	// Results of tag or banner calls for the previous product are now stale.
	c.generation[SlotTags]++
	c.generation[SlotBanner]++
	gen := c.nextGeneration(SlotPrices)
	c.mu.Unlock()

	log.Info().Str("sessionId", c.id).Str("barcode", q.Barcode).Str("productNameHint", q.ProductNameHint).Msg("search started")

	c.call(SlotPrices, gen, func(ctx context.Context, s *settlement) {
		s.Info, s.Err = c.gateway.FetchProductInfo(ctx, q)
	})
	return nil
}

func (c *Controller) handleTags() error {
	c.mu.Lock()
	if !c.state.hasProductText() {
		c.mu.Unlock()
		return c.reject(MsgProductInfoForTags)
	}
	name := c.state.ProductInfo.ProductName
	description := c.state.ProductInfo.ProductDescription
	c.state.Error = ""
	c.state.Loading.Tags = true
	gen := c.nextGeneration(SlotTags)
	c.mu.Unlock()

	log.Info().Str("sessionId", c.id).Str("productName", name).Msg("tag generation started")

	c.call(SlotTags, gen, func(ctx context.Context, s *settlement) {
		s.Tags, s.Err = c.gateway.GenerateTags(ctx, name, description)
	})
	return nil
}

func (c *Controller) handleBanner() error {
	c.mu.Lock()
	price := c.state.OptimalPrice
	if c.state.ProductInfo == nil || c.state.ProductInfo.ProductName == "" || price <= 0 {
		c.mu.Unlock()
		return c.reject(MsgProductInfoForBanner)
	}
	name := c.state.ProductInfo.ProductName
	c.state.Error = ""
	c.state.Loading.Banner = true
	gen := c.nextGeneration(SlotBanner)
	c.mu.Unlock()

	log.Info().Str("sessionId", c.id).Str("productName", name).Float64("price", price).Msg("banner generation started")

	c.call(SlotBanner, gen, func(ctx context.Context, s *settlement) {
		s.Banner, s.Err = c.gateway.GenerateBanner(ctx, name, price)
	})
	return nil
}

// nextGeneration must be called with mu held.
func (c *Controller) nextGeneration(slot Slot) uint64 {
	c.generation[slot]++
	return c.generation[slot]
}

// call runs fn in a goroutine and posts its settlement back to the worker.
func (c *Controller) call(slot Slot, gen uint64, fn func(ctx context.Context, s *settlement)) {
	go func() {
		s := &settlement{Slot: slot, Generation: gen}
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("sessionId", c.id).Stringer("slot", slot).Interface("panic", r).Msg("recovered from panic in gateway call")
				s.Err = fmt.Errorf("gateway panic: %v", r)
			}
			c.send(message{Type: msgSettle, Settle: s})
		}()
		fn(c.ctx, s)
	}()
}

func (c *Controller) handleSettle(s *settlement) {
	c.mu.Lock()
	if s.Generation != c.generation[s.Slot] {
		c.mu.Unlock()
		log.Info().
			Str("sessionId", c.id).
			Stringer("slot", s.Slot).
			Uint64("generation", s.Generation).
			Msg("discarding stale result")
		return
	}

	c.state.Loading.set(s.Slot, false)

	if s.Err == nil && ((s.Slot == SlotPrices && s.Info == nil) || (s.Slot == SlotBanner && s.Banner == nil)) {
		s.Err = fmt.Errorf("%w: empty %s result", llm.ErrInvalidShape, s.Slot)
	}

	if s.Err != nil {
		c.state.Error = llm.UserMessage(s.Err, fallbackMessage(s.Slot))
		log.Error().Err(s.Err).Str("sessionId", c.id).Stringer("slot", s.Slot).Msg("action failed")
	} else {
		switch s.Slot {
		case SlotPrices:
			c.state.ProductInfo = s.Info
		case SlotTags:
			c.state.Tags = s.Tags
			if c.state.Tags == nil {
				c.state.Tags = []string{}
			}
		case SlotBanner:
			c.state.BannerURL = s.Banner.DataURI()
		}
		log.Info().Str("sessionId", c.id).Stringer("slot", s.Slot).Msg("action settled")
	}
	snapshot := c.state.clone()
	c.mu.Unlock()

	if c.listener != nil {
		c.listener.OnSettled(s.Slot, snapshot, s.Err)
	}
}

func fallbackMessage(slot Slot) string {
	switch slot {
	case SlotTags:
		return msgTagsFallback
	case SlotBanner:
		return msgBannerFallback
	default:
		return msgFetchFallback
	}
}
