// Package asset holds the registry of symbols the backtester knows how to
// fetch, keyed by their display form.
package asset

import (
	"fmt"
	"sort"
	"strings"
)

// Type classifies an asset.
type Type string

const (
	Crypto    Type = "crypto"
	Stock     Type = "stock"
	ETF       Type = "etf"
	Commodity Type = "commodity"
)

// Asset describes one tradeable instrument.
type Asset struct {
	Display string `json:"display"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
	Type    Type   `json:"type"`
}

var registry = map[string]Asset{
	"BTC/USDT":  {Display: "BTC/USDT", Symbol: "BTCUSDT", Name: "Bitcoin", Type: Crypto},
	"ETH/USDT":  {Display: "ETH/USDT", Symbol: "ETHUSDT", Name: "Ethereum", Type: Crypto},
	"BNB/USDT":  {Display: "BNB/USDT", Symbol: "BNBUSDT", Name: "BNB", Type: Crypto},
	"XRP/USDT":  {Display: "XRP/USDT", Symbol: "XRPUSDT", Name: "XRP", Type: Crypto},
	"SOL/USDT":  {Display: "SOL/USDT", Symbol: "SOLUSDT", Name: "Solana", Type: Crypto},
	"ADA/USDT":  {Display: "ADA/USDT", Symbol: "ADAUSDT", Name: "Cardano", Type: Crypto},
	"DOGE/USDT": {Display: "DOGE/USDT", Symbol: "DOGEUSDT", Name: "Dogecoin", Type: Crypto},
	"AVAX/USDT": {Display: "AVAX/USDT", Symbol: "AVAXUSDT", Name: "Avalanche", Type: Crypto},
	"DOT/USDT":  {Display: "DOT/USDT", Symbol: "DOTUSDT", Name: "Polkadot", Type: Crypto},
	"LINK/USDT": {Display: "LINK/USDT", Symbol: "LINKUSDT", Name: "Chainlink", Type: Crypto},
	"UNI/USDT":  {Display: "UNI/USDT", Symbol: "UNIUSDT", Name: "Uniswap", Type: Crypto},
	"ATOM/USDT": {Display: "ATOM/USDT", Symbol: "ATOMUSDT", Name: "Cosmos", Type: Crypto},
	"LTC/USDT":  {Display: "LTC/USDT", Symbol: "LTCUSDT", Name: "Litecoin", Type: Crypto},
	"TRX/USDT":  {Display: "TRX/USDT", Symbol: "TRXUSDT", Name: "TRON", Type: Crypto},
	"NEAR/USDT": {Display: "NEAR/USDT", Symbol: "NEARUSDT", Name: "NEAR Protocol", Type: Crypto},
	"SUI/USDT":  {Display: "SUI/USDT", Symbol: "SUIUSDT", Name: "Sui", Type: Crypto},

	"AAPL": {Display: "AAPL", Symbol: "AAPL", Name: "Apple", Type: Stock},
	"MSFT": {Display: "MSFT", Symbol: "MSFT", Name: "Microsoft", Type: Stock},
	"NVDA": {Display: "NVDA", Symbol: "NVDA", Name: "NVIDIA", Type: Stock},
	"TSLA": {Display: "TSLA", Symbol: "TSLA", Name: "Tesla", Type: Stock},
	"AMZN": {Display: "AMZN", Symbol: "AMZN", Name: "Amazon", Type: Stock},
	"META": {Display: "META", Symbol: "META", Name: "Meta", Type: Stock},

	"SPY": {Display: "SPY", Symbol: "SPY", Name: "S&P 500 ETF", Type: ETF},
	"QQQ": {Display: "QQQ", Symbol: "QQQ", Name: "Nasdaq 100 ETF", Type: ETF},
	"IWM": {Display: "IWM", Symbol: "IWM", Name: "Russell 2000 ETF", Type: ETF},

	"GLD": {Display: "GLD", Symbol: "GLD", Name: "Gold ETF (SPDR)", Type: Commodity},
	"SLV": {Display: "SLV", Symbol: "SLV", Name: "Silver ETF (iShares)", Type: Commodity},
	"USO": {Display: "USO", Symbol: "USO", Name: "US Oil Fund", Type: Commodity},
}

// Lookup resolves a display symbol (e.g. "BTC/USDT") or a bare internal
// symbol (e.g. "BTCUSDT") to its registry entry.
func Lookup(symbol string) (Asset, error) {
	if a, ok := registry[symbol]; ok {
		return a, nil
	}
	upper := strings.ToUpper(symbol)
	for _, a := range registry {
		if a.Symbol == upper {
			return a, nil
		}
	}
	return Asset{}, fmt.Errorf("unknown asset: %s", symbol)
}

// List returns every registered asset sorted by display symbol.
func List() []Asset {
	assets := make([]Asset, 0, len(registry))
	for _, a := range registry {
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].Display < assets[j].Display
	})
	return assets
}

// ListByType returns the registered assets of one type, sorted by display
// symbol.
func ListByType(t Type) []Asset {
	var assets []Asset
	for _, a := range List() {
		if a.Type == t {
			assets = append(assets, a)
		}
	}
	return assets
}
