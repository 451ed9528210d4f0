package notify

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"agrimarket/internal/core"
	"agrimarket/internal/lifecycle"
	"agrimarket/internal/mock"
	"agrimarket/pkg/logging"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamServer pushes canned frames to every subscriber.
type streamServer struct {
	t      *testing.T
	server *httptest.Server

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newStreamServer(t *testing.T) *streamServer {
	s := &streamServer{t: t}
	upgrader := websocket.Upgrader{}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *streamServer) url() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *streamServer) push(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		if err := c.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			s.t.Logf("push failed: %v", err)
		}
	}
}

func newSyncedController(t *testing.T) (*lifecycle.Controller, *mock.Marketplace) {
	t.Helper()
	market := mock.NewMarketplace()
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)
	return lifecycle.NewController(lifecycle.Config{OwnerID: "farmer-1"}, market, logger), market
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestListener_ResyncOnConnect(t *testing.T) {
	stream := newStreamServer(t)
	controller, market := newSyncedController(t)
	market.SeedListing(core.Listing{
		ID: "lst-1", OwnerID: "farmer-1", CropType: "Wheat",
		PricePerUnit:      decimal.NewFromInt(20),
		TotalQuantity:     decimal.NewFromInt(100),
		AvailableQuantity: decimal.NewFromInt(100),
		Status:            core.ListingStatusListed,
	})

	logger, _ := logging.NewZapLogger("ERROR")
	l := NewListener(Config{URL: stream.url(), ReconnectDelay: 20 * time.Millisecond}, controller, logger)
	l.Start()
	defer l.Stop()

	// The listener's connect resync populates the controller without any
	// explicit Load call.
	waitFor(t, func() bool {
		_, ok := controller.Listings().Get("lst-1")
		return ok
	}, "connect resync never populated the snapshot")
}

func TestListener_BidEventRefreshesListing(t *testing.T) {
	stream := newStreamServer(t)
	controller, market := newSyncedController(t)
	market.SeedListing(core.Listing{
		ID: "lst-1", OwnerID: "farmer-1", CropType: "Wheat",
		PricePerUnit:      decimal.NewFromInt(20),
		TotalQuantity:     decimal.NewFromInt(100),
		AvailableQuantity: decimal.NewFromInt(100),
		Status:            core.ListingStatusListed,
	})

	logger, _ := logging.NewZapLogger("ERROR")
	l := NewListener(Config{URL: stream.url()}, controller, logger)
	l.Start()
	defer l.Stop()

	waitFor(t, func() bool {
		_, ok := controller.Listings().Get("lst-1")
		return ok
	}, "connect resync never ran")

	// A buyer places a bid; the stream announces it without the payload.
	market.SeedBid(core.Bid{
		ID: "bid-1", ListingID: "lst-1", BuyerID: "buyer-1",
		Quantity:     decimal.NewFromInt(30),
		PricePerUnit: decimal.NewFromInt(20),
		Status:       core.BidStatusPending,
	})
	stream.push(`{"type":"bid.created","listing_id":"lst-1"}`)

	waitFor(t, func() bool {
		return len(controller.Bids().BidsFor("lst-1")) == 1
	}, "bid event never triggered a bid refresh")
}

func TestListener_MalformedFrameIsDiscarded(t *testing.T) {
	stream := newStreamServer(t)
	controller, _ := newSyncedController(t)

	logger, _ := logging.NewZapLogger("ERROR")
	l := NewListener(Config{URL: stream.url()}, controller, logger)
	l.Start()
	defer l.Stop()

	waitFor(t, func() bool {
		stream.mu.Lock()
		defer stream.mu.Unlock()
		return len(stream.conns) > 0
	}, "client never connected")

	stream.push(`{not json`)
	stream.push(`{"type":"unknown.event"}`)

	// Nothing to assert beyond "no panic, still connected": push a
	// valid frame and confirm the stream is alive.
	stream.push(`{"type":"listing.updated","listing_id":""}`)
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, controller.Listings().All())
}
