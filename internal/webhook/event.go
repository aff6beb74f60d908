package webhook

import "time"

// LoggedRequest is the inbound request a stub answered.
type LoggedRequest struct {
	Method Method
	URL    string
	Header Header
	Body   []byte
}

// LoggedResponse is an HTTP response as it was received or sent. A nil Body
// means the response carried no textual body at all.
type LoggedResponse struct {
	Status int
	Header Header
	Body   []byte
}

// ServeEvent describes a request the server answered. Transformers get it as
// read-only context.
type ServeEvent struct {
	ID       string
	Stub     string
	Request  LoggedRequest
	Response LoggedResponse
	At       time.Time
}
