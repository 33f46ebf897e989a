package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raine/pricebanner/internal/llm"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

// fakeGateway lets each test script the gateway replies.
type fakeGateway struct {
	mu          sync.Mutex
	fetchCalls  []llm.ProductQuery
	tagCalls    int
	bannerCalls []float64

	fetch  func(ctx context.Context, q llm.ProductQuery) (*llm.ProductInfo, error)
	tags   func(ctx context.Context, name, description string) ([]string, error)
	banner func(ctx context.Context, name string, price float64) (*llm.Banner, error)
}

func (f *fakeGateway) FetchProductInfo(ctx context.Context, q llm.ProductQuery) (*llm.ProductInfo, error) {
	f.mu.Lock()
	f.fetchCalls = append(f.fetchCalls, q)
	fn := f.fetch
	f.mu.Unlock()
	return fn(ctx, q)
}

func (f *fakeGateway) GenerateTags(ctx context.Context, name, description string) ([]string, error) {
	f.mu.Lock()
	f.tagCalls++
	fn := f.tags
	f.mu.Unlock()
	return fn(ctx, name, description)
}

func (f *fakeGateway) GenerateBanner(ctx context.Context, name string, price float64) (*llm.Banner, error) {
	f.mu.Lock()
	f.bannerCalls = append(f.bannerCalls, price)
	fn := f.banner
	f.mu.Unlock()
	return fn(ctx, name, price)
}

func (f *fakeGateway) counts() (fetch, tags, banner int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetchCalls), f.tagCalls, len(f.bannerCalls)
}

func sampleInfo(name string) *llm.ProductInfo {
	return &llm.ProductInfo{
		ProductName:        name,
		ProductDescription: "A fine product.",
		Prices: []llm.PriceQuote{
			{Store: "Store A", Price: 12000, URL: "https://a.example/p"},
			{Store: "Store B", Price: 11800, URL: "https://b.example/p"},
		},
	}
}

func newHappyGateway() *fakeGateway {
	return &fakeGateway{
		fetch: func(ctx context.Context, q llm.ProductQuery) (*llm.ProductInfo, error) {
			return sampleInfo("Sparkling Water"), nil
		},
		tags: func(ctx context.Context, name, description string) ([]string, error) {
			return []string{"water", "sparkling", "drink"}, nil
		},
		banner: func(ctx context.Context, name string, price float64) (*llm.Banner, error) {
			return &llm.Banner{MIMEType: "image/png", Data: []byte("img")}, nil
		},
	}
}

// recordingListener collects settled slots.
type recordingListener struct {
	mu    sync.Mutex
	slots []Slot
}

func (l *recordingListener) OnSettled(slot Slot, state State, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slots = append(l.slots, slot)
}

func (l *recordingListener) settled() []Slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Slot(nil), l.slots...)
}

func newTestController(t *testing.T, gw llm.Gateway) *Controller {
	t.Helper()
	c := New("test", gw, nil)
	t.Cleanup(c.Stop)
	return c
}

// searchAndWait runs a successful search and waits for it to settle.
func searchAndWait(t *testing.T, c *Controller) {
	t.Helper()
	require.NoError(t, c.Search("8801062628479", ""))
	require.Eventually(t, func() bool {
		s := c.State()
		return !s.Loading.Prices && s.ProductInfo != nil
	}, waitFor, tick)
}

func TestSearch_RejectsEmptyBarcode(t *testing.T) {
	gw := newHappyGateway()
	c := newTestController(t, gw)

	for _, barcode := range []string{"", "   "} {
		err := c.Search(barcode, "hint")

		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, MsgBarcodeRequired, c.State().Error)
		assert.False(t, c.State().Loading.Prices)
	}

	fetch, _, _ := gw.counts()
	assert.Equal(t, 0, fetch)
}

func TestSearch_StoresProductInfo(t *testing.T) {
	gw := newHappyGateway()
	listener := &recordingListener{}
	c := New("test", gw, listener)
	defer c.Stop()

	require.NoError(t, c.Search("8801062628479", "Choco Pie"))
	require.Eventually(t, func() bool { return c.State().ProductInfo != nil }, waitFor, tick)

	s := c.State()
	assert.Equal(t, "Sparkling Water", s.ProductInfo.ProductName)
	assert.Len(t, s.ProductInfo.Prices, 2)
	assert.False(t, s.Loading.Prices)
	assert.Empty(t, s.Error)
	assert.Equal(t, "8801062628479", s.Barcode)
	assert.Equal(t, []llm.ProductQuery{{Barcode: "8801062628479", ProductNameHint: "Choco Pie"}}, gw.fetchCalls)
	assert.Eventually(t, func() bool { return len(listener.settled()) == 1 }, waitFor, tick)
	assert.Equal(t, []Slot{SlotPrices}, listener.settled())
}

func TestSearch_ResetsBeforeResultArrives(t *testing.T) {
	gw := newHappyGateway()
	c := newTestController(t, gw)

	searchAndWait(t, c)
	require.True(t, c.SetCost("1000"))
	require.NoError(t, c.GenerateTags())
	require.NoError(t, c.GenerateBanner())
	require.Eventually(t, func() bool {
		s := c.State()
		return s.Tags != nil && s.BannerURL != ""
	}, waitFor, tick)

	release := make(chan struct{})
	gw.mu.Lock()
	gw.fetch = func(ctx context.Context, q llm.ProductQuery) (*llm.ProductInfo, error) {
		<-release
		return sampleInfo("Second"), nil
	}
	gw.mu.Unlock()

	require.NoError(t, c.Search("123", ""))

	s := c.State()
	assert.Nil(t, s.ProductInfo)
	assert.Nil(t, s.Tags)
	assert.Empty(t, s.BannerURL)
	assert.True(t, s.Loading.Prices)
	assert.Equal(t, "1000", s.Inputs.Cost, "pricing inputs survive a search")

	close(release)
	require.Eventually(t, func() bool { return c.State().ProductInfo != nil }, waitFor, tick)
	assert.Equal(t, "Second", c.State().ProductInfo.ProductName)
}

func TestSearch_StaleResultIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	gw := newHappyGateway()
	gw.fetch = func(ctx context.Context, q llm.ProductQuery) (*llm.ProductInfo, error) {
		if q.Barcode == "slow" {
			<-release
			return sampleInfo("Stale"), nil
		}
		return sampleInfo("Fresh"), nil
	}
	c := newTestController(t, gw)

	require.NoError(t, c.Search("slow", ""))
	require.NoError(t, c.Search("fast", ""))
	require.Eventually(t, func() bool { return c.State().ProductInfo != nil }, waitFor, tick)

	close(release)
	assert.Never(t, func() bool {
		s := c.State()
		return s.ProductInfo == nil || s.ProductInfo.ProductName != "Fresh" || s.Loading.Prices
	}, 100*time.Millisecond, tick)
}

func TestGenerateTags_RequiresProductInfo(t *testing.T) {
	gw := newHappyGateway()
	c := newTestController(t, gw)

	err := c.GenerateTags()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, MsgProductInfoForTags, c.State().Error)

	gw.fetch = func(ctx context.Context, q llm.ProductQuery) (*llm.ProductInfo, error) {
		return &llm.ProductInfo{ProductName: "No description", Prices: []llm.PriceQuote{}}, nil
	}
	searchAndWait(t, c)

	err = c.GenerateTags()
	require.ErrorAs(t, err, &ve)

	_, tags, _ := gw.counts()
	assert.Equal(t, 0, tags)
	assert.Nil(t, c.State().Tags)
}

func TestGenerateTags_StoresTags(t *testing.T) {
	gw := newHappyGateway()
	c := newTestController(t, gw)
	searchAndWait(t, c)

	require.NoError(t, c.GenerateTags())
	require.Eventually(t, func() bool { return c.State().Tags != nil }, waitFor, tick)

	s := c.State()
	assert.Equal(t, []string{"water", "sparkling", "drink"}, s.Tags)
	assert.False(t, s.Loading.Tags)
}

func TestGenerateTags_ShapeErrorLeavesTagsUnset(t *testing.T) {
	gw := newHappyGateway()
	gw.tags = func(ctx context.Context, name, description string) ([]string, error) {
		return nil, &llm.UserError{Message: llm.MsgGenerateTagsFailed, Err: llm.ErrInvalidShape}
	}
	c := newTestController(t, gw)
	searchAndWait(t, c)

	require.NoError(t, c.GenerateTags())
	require.Eventually(t, func() bool { return c.State().Error != "" }, waitFor, tick)

	s := c.State()
	assert.Nil(t, s.Tags)
	assert.False(t, s.Loading.Tags)
	assert.Equal(t, llm.MsgGenerateTagsFailed, s.Error)
}

func TestGenerateBanner_Validation(t *testing.T) {
	gw := newHappyGateway()
	c := newTestController(t, gw)

	var ve *ValidationError
	require.True(t, c.SetCost("1000"))
	require.ErrorAs(t, c.GenerateBanner(), &ve, "no product info")

	searchAndWait(t, c)
	require.True(t, c.SetCost(""))
	require.ErrorAs(t, c.GenerateBanner(), &ve, "zero price")
	assert.Equal(t, MsgProductInfoForBanner, c.State().Error)

	require.False(t, c.SetCost("abc"))
	require.ErrorAs(t, c.GenerateBanner(), &ve, "garbage input is rejected and price stays zero")

	_, _, banners := gw.counts()
	assert.Equal(t, 0, banners)
}

func TestGenerateBanner_UsesOptimalPrice(t *testing.T) {
	gw := newHappyGateway()
	c := newTestController(t, gw)
	searchAndWait(t, c)

	require.True(t, c.SetCost("10000"))
	require.True(t, c.SetShipping("3000"))
	require.True(t, c.SetMargin("5000"))
	assert.Equal(t, 18000.0, c.State().OptimalPrice)

	require.NoError(t, c.GenerateBanner())
	require.Eventually(t, func() bool { return c.State().BannerURL != "" }, waitFor, tick)

	assert.Equal(t, "data:image/png;base64,aW1n", c.State().BannerURL)
	assert.Equal(t, []float64{18000}, gw.bannerCalls)
}

func TestSetInput_RejectsNonNumeric(t *testing.T) {
	c := newTestController(t, newHappyGateway())

	assert.True(t, c.SetCost("12"))
	assert.False(t, c.SetCost("12.3.4"))
	assert.False(t, c.SetCost("12a"))
	assert.Equal(t, "12", c.State().Inputs.Cost)

	for _, v := range []string{"", "12", "12.", "12.5"} {
		assert.True(t, c.SetMargin(v), v)
		assert.Equal(t, v, c.State().Inputs.Margin)
	}
	assert.Equal(t, 24.5, c.State().OptimalPrice)
}

func TestFailuresOnlyAffectTheirOwnSlot(t *testing.T) {
	boom := errors.New("network down")

	t.Run("prices", func(t *testing.T) {
		gw := newHappyGateway()
		gw.fetch = func(ctx context.Context, q llm.ProductQuery) (*llm.ProductInfo, error) {
			return nil, &llm.UserError{Message: llm.MsgFetchProductFailed, Err: boom}
		}
		c := newTestController(t, gw)

		require.NoError(t, c.Search("1", ""))
		require.Eventually(t, func() bool { return !c.State().Loading.Prices }, waitFor, tick)

		s := c.State()
		assert.Equal(t, llm.MsgFetchProductFailed, s.Error)
		assert.Nil(t, s.ProductInfo)
	})

	t.Run("tags", func(t *testing.T) {
		gw := newHappyGateway()
		c := newTestController(t, gw)
		searchAndWait(t, c)
		require.True(t, c.SetCost("100"))
		require.NoError(t, c.GenerateBanner())
		require.Eventually(t, func() bool { return c.State().BannerURL != "" }, waitFor, tick)

		gw.mu.Lock()
		gw.tags = func(ctx context.Context, name, description string) ([]string, error) {
			return nil, boom
		}
		gw.mu.Unlock()

		require.NoError(t, c.GenerateTags())
		require.Eventually(t, func() bool { return c.State().Error != "" }, waitFor, tick)

		s := c.State()
		assert.False(t, s.Loading.Tags)
		assert.Equal(t, msgTagsFallback, s.Error)
		assert.NotNil(t, s.ProductInfo)
		assert.NotEmpty(t, s.BannerURL)
	})

	t.Run("banner", func(t *testing.T) {
		gw := newHappyGateway()
		gw.banner = func(ctx context.Context, name string, price float64) (*llm.Banner, error) {
			return nil, &llm.UserError{Message: llm.MsgGenerateBannerFailed, Err: llm.ErrNoImageData}
		}
		c := newTestController(t, gw)
		searchAndWait(t, c)
		require.NoError(t, c.GenerateTags())
		require.Eventually(t, func() bool { return c.State().Tags != nil }, waitFor, tick)
		require.True(t, c.SetMargin("500"))

		require.NoError(t, c.GenerateBanner())
		require.Eventually(t, func() bool { return c.State().Error != "" }, waitFor, tick)

		s := c.State()
		assert.False(t, s.Loading.Banner)
		assert.Equal(t, llm.MsgGenerateBannerFailed, s.Error)
		assert.Empty(t, s.BannerURL)
		assert.Len(t, s.Tags, 3)
		assert.NotNil(t, s.ProductInfo)
	})
}

func TestNewActionClearsPreviousError(t *testing.T) {
	gw := newHappyGateway()
	c := newTestController(t, gw)

	_ = c.Search("", "")
	require.Equal(t, MsgBarcodeRequired, c.State().Error)

	searchAndWait(t, c)
	assert.Empty(t, c.State().Error)

	_ = c.GenerateBanner()
	require.Equal(t, MsgProductInfoForBanner, c.State().Error)

	require.NoError(t, c.GenerateTags())
	assert.Empty(t, c.State().Error)
}

func TestState_IsACopy(t *testing.T) {
	c := newTestController(t, newHappyGateway())
	searchAndWait(t, c)

	s := c.State()
	s.ProductInfo.ProductName = "mutated"
	s.ProductInfo.Prices[0].Store = "mutated"

	fresh := c.State()
	assert.Equal(t, "Sparkling Water", fresh.ProductInfo.ProductName)
	assert.Equal(t, "Store A", fresh.ProductInfo.Prices[0].Store)
}

func TestStop_CancelsInFlightCall(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})
	gw := newHappyGateway()
	gw.fetch = func(ctx context.Context, q llm.ProductQuery) (*llm.ProductInfo, error) {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return nil, ctx.Err()
	}
	c := New("test", gw, nil)

	require.NoError(t, c.Search("1", ""))
	<-started
	c.Stop()

	select {
	case <-cancelled:
	case <-time.After(waitFor):
		t.Fatal("gateway call was not cancelled")
	}

	assert.Error(t, c.Search("2", ""), "actions after Stop report the cancelled context")
}

func TestParseField(t *testing.T) {
	f, ok := ParseField("shipping")
	assert.True(t, ok)
	assert.Equal(t, FieldShipping, f)

	_, ok = ParseField("tax")
	assert.False(t, ok)
}

func TestGatewayPanicIsRecovered(t *testing.T) {
	gw := newHappyGateway()
	gw.tags = func(ctx context.Context, name, description string) ([]string, error) {
		panic("simulated gateway panic")
	}
	c := newTestController(t, gw)
	searchAndWait(t, c)

	require.NoError(t, c.GenerateTags())
	require.Eventually(t, func() bool { return !c.State().Loading.Tags }, waitFor, tick)
	assert.Equal(t, msgTagsFallback, c.State().Error)

	// The worker keeps processing.
	assert.True(t, c.SetCost("5"))
	assert.Equal(t, 5.0, c.State().OptimalPrice)
}

func TestSlotString(t *testing.T) {
	assert.Equal(t, "prices", SlotPrices.String())
	assert.Equal(t, "tags", SlotTags.String())
	assert.Equal(t, "banner", SlotBanner.String())
	assert.Equal(t, "unknown", Slot(42).String())
}
