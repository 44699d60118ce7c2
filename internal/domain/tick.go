package domain

import "time"

// TradeTick is one accepted event from a streaming exchange connector.
// Corresponds to the trade_ticks table in ClickHouse and to one line of the
// raw append-only stream log.
type TradeTick struct {
	Exchange  string // connector name, e.g. "binance"
	Product   string // exchange product identifier, e.g. "BTCUSDT"
	Price     float64
	Volume    float64
	Timestamp time.Time // receive time, UTC
}
