package models

// IndexedMessage is one row of the messages view.
type IndexedMessage struct {
	FlumeSeq     int64    `json:"flume_seq"`
	Key          string   `json:"key"`
	Author       string   `json:"author"`
	Sequence     int64    `json:"sequence"`
	ReceivedTime *float64 `json:"received_time,omitempty"`
	AssertedTime float64  `json:"asserted_time"`
	ContentType  *string  `json:"content_type,omitempty"`
	Content      string   `json:"content"`
	IsDecrypted  bool     `json:"is_decrypted"`
	Root         *string  `json:"root,omitempty"`
	Fork         *string  `json:"fork,omitempty"`
}

// Contact is the latest follow state between two feeds. State is 1 for
// following, -1 for blocking and 0 for neither.
type Contact struct {
	Author      string `json:"author"`
	Contact     string `json:"contact"`
	State       int    `json:"state"`
	IsDecrypted bool   `json:"is_decrypted"`
}

type About struct {
	From     string  `json:"from"`
	ToAuthor *string `json:"to_author,omitempty"`
	ToKey    *string `json:"to_key,omitempty"`
	Content  string  `json:"content"`
}
