package models

// Message is one signed feed entry together with its content address.
type Message struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
	// Timestamp is the local receive time. Nil when the frame carried none.
	Timestamp *float64 `json:"timestamp,omitempty"`
}

// Value is the signed part of a message.
type Value struct {
	Previous  *string `json:"previous"`
	Author    string  `json:"author"`
	Sequence  int64   `json:"sequence"`
	Timestamp float64 `json:"timestamp"`
	Hash      string  `json:"hash"`
	// Content is a value.Object for plaintext content or a string for boxed
	// content.
	Content   any    `json:"content"`
	Signature string `json:"signature"`
}
