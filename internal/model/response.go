package model

// Response is a generic struct for gateway responses
type Response struct {
	Data    interface{} `json:"data,omitempty"`
	Error   *string     `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
	Cached  bool        `json:"cached,omitempty"`
}
