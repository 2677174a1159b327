package pricing

import (
	"regexp"
	"strings"

	"foresight/internal/domain"
)

var cryptoSymbols = map[string]bool{
	"BTC": true, "ETH": true, "SOL": true, "XRP": true, "ADA": true,
	"DOGE": true, "DOT": true, "AVAX": true, "LINK": true, "MATIC": true,
	"LTC": true, "BNB": true, "SHIB": true, "PEPE": true, "UNI": true,
	"ATOM": true, "NEAR": true, "ARB": true, "OP": true, "SUI": true,
}

var etfSymbols = map[string]bool{
	"SPY": true, "QQQ": true, "VOO": true, "VTI": true, "IWM": true,
	"DIA": true, "GLD": true, "SLV": true, "ARKK": true, "TLT": true,
	"XLE": true, "XLF": true, "IBIT": true, "FBTC": true,
}

var indexSymbols = map[string]bool{
	"SPX": true, "NDX": true, "DJI": true, "VIX": true, "RUT": true,
	"DXY": true, "FTSE": true, "DAX": true, "NIKKEI": true,
}

var commoditySymbols = map[string]bool{
	"XAU": true, "XAG": true, "GOLD": true, "SILVER": true,
	"OIL": true, "WTI": true, "BRENT": true, "NATGAS": true, "COPPER": true,
}

var currencyPairPattern = regexp.MustCompile(`^[A-Z]{3}/?[A-Z]{3}$`)

var knownCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true, "CHF": true,
	"AUD": true, "CAD": true, "NZD": true, "CNY": true,
}

// ClassifyAssetType routes a symbol to a price source family. The classifier
// is static on purpose: extraction produces a small, noisy symbol vocabulary
// and a lookup table is both predictable and auditable.
func ClassifyAssetType(symbol string) domain.AssetType {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case cryptoSymbols[symbol]:
		return domain.AssetTypeCrypto
	case etfSymbols[symbol]:
		return domain.AssetTypeETF
	case indexSymbols[symbol], strings.HasPrefix(symbol, "^"):
		return domain.AssetTypeIndex
	case commoditySymbols[symbol]:
		return domain.AssetTypeCommodity
	case isCurrencyPair(symbol):
		return domain.AssetTypeCurrency
	default:
		return domain.AssetTypeStock
	}
}

func isCurrencyPair(symbol string) bool {
	if !currencyPairPattern.MatchString(symbol) {
		return false
	}
	pair := strings.ReplaceAll(symbol, "/", "")
	if len(pair) != 6 {
		return false
	}
	return knownCurrencies[pair[:3]] && knownCurrencies[pair[3:]]
}
