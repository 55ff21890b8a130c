package http

import "github.com/brendan.keane/sqlhttp/internal/header"

// Request is a structured outbound request. An empty ContentType and a nil
// Content mean the attribute is absent.
type Request struct {
	Method      string
	URI         string
	Headers     []header.Entry
	ContentType string
	Content     []byte
}

// Response is a structured, fully buffered response. A nil ContentType,
// Headers or Content means the transport produced none.
type Response struct {
	Status      int
	ContentType *string
	Headers     []header.Entry
	Content     []byte
}
