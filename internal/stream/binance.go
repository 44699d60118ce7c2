package stream

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"crypto-collector/internal/domain"
)

// Binance speaks the combined trade stream protocol: SUBSCRIBE/UNSUBSCRIBE
// control frames and trade events carrying s/p/q fields.
type Binance struct {
	products []string
	now      func() time.Time
}

// NewBinance creates an adapter for the given products (e.g. "btcusdt").
func NewBinance(products []string, now func() time.Time) *Binance {
	if now == nil {
		now = time.Now
	}
	return &Binance{products: products, now: now}
}

func (b *Binance) Name() string { return "binance" }

// Endpoint appends the raw-stream path to the configured base URL.
func (b *Binance) Endpoint(base string) string {
	return strings.TrimRight(base, "/") + "/ws"
}

type binanceControl struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

func (b *Binance) streams() []string {
	out := make([]string, len(b.products))
	for i, p := range b.products {
		out[i] = strings.ToLower(p) + "@trade"
	}
	return out
}

func (b *Binance) SubscribePayload() ([]byte, error) {
	return json.Marshal(binanceControl{Method: "SUBSCRIBE", Params: b.streams(), ID: 1})
}

func (b *Binance) UnsubscribePayload() ([]byte, error) {
	return json.Marshal(binanceControl{Method: "UNSUBSCRIBE", Params: b.streams(), ID: 2})
}

type binanceTrade struct {
	Symbol   string `json:"s"`
	Price    string `json:"p"`
	Quantity string `json:"q"`
}

// ParseTick decodes one trade event. Messages without price/quantity fields
// (subscribe acks, combined-stream wrappers) are not ticks.
func (b *Binance) ParseTick(message []byte) (domain.TradeTick, bool, error) {
	var trade binanceTrade
	if err := json.Unmarshal(message, &trade); err != nil {
		return domain.TradeTick{}, false, fmt.Errorf("binance message: %w", err)
	}
	if trade.Price == "" || trade.Quantity == "" {
		return domain.TradeTick{}, false, nil
	}
	price, err := strconv.ParseFloat(trade.Price, 64)
	if err != nil {
		return domain.TradeTick{}, false, fmt.Errorf("binance price %q: %w", trade.Price, err)
	}
	volume, err := strconv.ParseFloat(trade.Quantity, 64)
	if err != nil {
		return domain.TradeTick{}, false, fmt.Errorf("binance quantity %q: %w", trade.Quantity, err)
	}
	return domain.TradeTick{
		Exchange:  b.Name(),
		Product:   strings.ToUpper(trade.Symbol),
		Price:     price,
		Volume:    volume,
		Timestamp: b.now().UTC(),
	}, true, nil
}
