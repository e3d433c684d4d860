package binance

// positionRisk is the subset of the position-risk response the relay reads.
// PositionAmt is signed: positive net long, negative net short.
type positionRisk struct {
	Symbol      string `json:"symbol"`
	PositionAmt string `json:"positionAmt"`
}

// IncomeEntry is one row of the income-history response.
type IncomeEntry struct {
	Symbol     string `json:"symbol"`
	IncomeType string `json:"incomeType"`
	Income     string `json:"income"`
	Asset      string `json:"asset"`
	Time       int64  `json:"time"`
	TranID     int64  `json:"tranId"`
}

// apiError is the exchange's error body, e.g. {"code":-2019,"msg":"..."}.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}
