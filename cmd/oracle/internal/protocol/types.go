package protocol

// LoginRequest carries the shared admin secret; user is optional.
type LoginRequest struct {
	User     string `json:"user,omitempty"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// UpsertPriceRequest is the POST /prices body. The mantissa travels as a
// decimal-digit string so large prices survive JSON intact.
type UpsertPriceRequest struct {
	Token    string `json:"token"`
	Symbol   string `json:"symbol,omitempty"`
	Mantissa string `json:"usd_mantissa"`
	Scale    uint32 `json:"usd_scale"`
	Decimals *int64 `json:"decimals,omitempty"`
}

type UpsertSymbolRequest struct {
	Symbol string `json:"symbol"`
	Token  string `json:"token"`
}

// ErrorResponse is the uniform error body for every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
