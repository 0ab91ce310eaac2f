package marketdata

import (
	"context"
	"fmt"
	"sync"

	"github.com/wonny/strikegate/internal/contracts"
)

// Static in-memory market data (CLI dry runs, tests)
// ⭐ Ticker/OrderBook 모두 구현: contracts.MarketData + contracts.OrderBookSource
type Static struct {
	mu      sync.RWMutex
	tickers map[string]contracts.Ticker
	books   map[string]contracts.OrderBook
}

// NewStatic creates an empty source
func NewStatic() *Static {
	return &Static{
		tickers: make(map[string]contracts.Ticker),
		books:   make(map[string]contracts.OrderBook),
	}
}

// SetTicker stores a ticker under its symbol
func (s *Static) SetTicker(t contracts.Ticker) {
	s.mu.Lock()
	s.tickers[t.Symbol] = t
	s.mu.Unlock()
}

// SetOrderBook stores a book under its symbol
func (s *Static) SetOrderBook(b contracts.OrderBook) {
	s.mu.Lock()
	s.books[b.Symbol] = b
	s.mu.Unlock()
}

// Symbols known to the source
func (s *Static) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.tickers))
	for sym := range s.tickers {
		out = append(out, sym)
	}
	return out
}

// Ticker implements contracts.MarketData
func (s *Static) Ticker(ctx context.Context, symbol string) (contracts.Ticker, error) {
	if err := ctx.Err(); err != nil {
		return contracts.Ticker{}, err
	}
	s.mu.RLock()
	t, ok := s.tickers[symbol]
	s.mu.RUnlock()
	if !ok {
		return contracts.Ticker{}, fmt.Errorf("ticker %s: %w", symbol, contracts.ErrNotFound)
	}
	return t, nil
}

// OrderBook implements contracts.OrderBookSource; depth truncates each side
func (s *Static) OrderBook(ctx context.Context, symbol string, depth int) (contracts.OrderBook, error) {
	if err := ctx.Err(); err != nil {
		return contracts.OrderBook{}, err
	}
	s.mu.RLock()
	b, ok := s.books[symbol]
	s.mu.RUnlock()
	if !ok {
		return contracts.OrderBook{}, fmt.Errorf("order book %s: %w", symbol, contracts.ErrNotFound)
	}

	out := contracts.OrderBook{Symbol: b.Symbol, Timestamp: b.Timestamp}
	out.Bids = append([]contracts.BookLevel(nil), truncate(b.Bids, depth)...)
	out.Asks = append([]contracts.BookLevel(nil), truncate(b.Asks, depth)...)
	return out, nil
}

func truncate(levels []contracts.BookLevel, depth int) []contracts.BookLevel {
	if depth > 0 && len(levels) > depth {
		return levels[:depth]
	}
	return levels
}

// Synthetic builds a symmetric book of n levels around mid with the given
// tick and per-level volume, and a matching ticker
func Synthetic(symbol string, mid, tick, volume float64, levels int, volume24h float64) (contracts.Ticker, contracts.OrderBook) {
	book := contracts.OrderBook{Symbol: symbol}
	for i := 0; i < levels; i++ {
		off := tick/2 + float64(i)*tick
		book.Bids = append(book.Bids, contracts.BookLevel{Price: mid - off, Volume: volume})
		book.Asks = append(book.Asks, contracts.BookLevel{Price: mid + off, Volume: volume})
	}
	t := contracts.Ticker{
		Symbol:    symbol,
		Bid:       mid - tick/2,
		Ask:       mid + tick/2,
		Last:      mid,
		Volume24h: volume24h,
	}
	return t, book
}
