package binance

import "strings"

// NormalizeSymbol maps an alerting-platform ticker to the bare exchange
// symbol. Tickers arrive as "EXCHANGE:BASEQUOTE" (e.g. "BINANCE:BTCUSDT");
// the exchange prefix is dropped and the result uppercased. Tickers quoted
// in USD rather than USDT get the T appended ("BTCUSD" -> "BTCUSDT").
//
// An empty input yields an empty output; callers must treat that as an
// invalid-symbol error.
func NormalizeSymbol(ticker string) string {
	s := strings.TrimSpace(ticker)
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.ToUpper(s)
	if strings.HasSuffix(s, "USD") && !strings.HasSuffix(s, "USDT") {
		s += "T"
	}
	return s
}
