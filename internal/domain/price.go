package domain

// PricePoint is one daily OHLCV candle in a per-asset history dataset.
// Date is the dataset key, formatted as 2006-01-02.
type PricePoint struct {
	Date   string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}
