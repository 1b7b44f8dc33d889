package model

import "time"

// Response is a fetched HTTP(S) response, shared between the fetcher, the
// cache and every tool that consumes fetched content.
type Response struct {
	FinalURL      string            `json:"final_url"`
	Status        int               `json:"status"`
	Headers       map[string]string `json:"headers"`
	Body          []byte            `json:"body"`
	FetchedAt     time.Time         `json:"fetched_at"`
	FetchDuration time.Duration     `json:"fetch_duration"`
	Hops          int               `json:"hops"`
}

// ContentType returns the response's Content-Type header value, if any.
func (r *Response) ContentType() string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return r.Headers["Content-Type"]
}
