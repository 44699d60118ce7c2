package stream

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"crypto-collector/internal/domain"
)

// Coinbase speaks the exchange feed protocol: typed subscribe/unsubscribe
// frames and ticker channel events.
type Coinbase struct {
	products []string
	now      func() time.Time
}

// NewCoinbase creates an adapter for the given products (e.g. "BTC-USD").
func NewCoinbase(products []string, now func() time.Time) *Coinbase {
	if now == nil {
		now = time.Now
	}
	return &Coinbase{products: products, now: now}
}

func (c *Coinbase) Name() string { return "coinbase" }

func (c *Coinbase) Endpoint(base string) string { return base }

type coinbaseControl struct {
	Type       string        `json:"type"`
	ProductIDs []string      `json:"product_ids"`
	Channels   []interface{} `json:"channels"`
}

func (c *Coinbase) channels() []interface{} {
	return []interface{}{
		"heartbeat",
		map[string]interface{}{"name": "ticker", "product_ids": c.products},
	}
}

func (c *Coinbase) SubscribePayload() ([]byte, error) {
	return json.Marshal(coinbaseControl{Type: "subscribe", ProductIDs: c.products, Channels: c.channels()})
}

func (c *Coinbase) UnsubscribePayload() ([]byte, error) {
	return json.Marshal(coinbaseControl{Type: "unsubscribe", ProductIDs: c.products, Channels: c.channels()})
}

type coinbaseTicker struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	LastSize  string `json:"last_size"`
	Volume24h string `json:"volume_24h"`
}

// ParseTick decodes one ticker event. Heartbeats, subscription acks and
// other channel types are not ticks.
func (c *Coinbase) ParseTick(message []byte) (domain.TradeTick, bool, error) {
	var ticker coinbaseTicker
	if err := json.Unmarshal(message, &ticker); err != nil {
		return domain.TradeTick{}, false, fmt.Errorf("coinbase message: %w", err)
	}
	if ticker.Type != "ticker" {
		return domain.TradeTick{}, false, nil
	}
	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return domain.TradeTick{}, false, fmt.Errorf("coinbase price %q: %w", ticker.Price, err)
	}
	// The first ticker after subscribing has no last_size; fall back to the
	// 24h volume the way downstream consumers expect.
	raw := ticker.LastSize
	if raw == "" {
		raw = ticker.Volume24h
	}
	var volume float64
	if raw != "" {
		volume, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.TradeTick{}, false, fmt.Errorf("coinbase volume %q: %w", raw, err)
		}
	}
	return domain.TradeTick{
		Exchange:  c.Name(),
		Product:   ticker.ProductID,
		Price:     price,
		Volume:    volume,
		Timestamp: c.now().UTC(),
	}, true, nil
}
