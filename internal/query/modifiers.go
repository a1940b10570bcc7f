package query

import "strings"

// BacklinkExcludedTypes are content types that reference a message without
// being a reply or a mention of it.
var BacklinkExcludedTypes = []string{"about", "vote", "tag"}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func anyArgs(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// ByContentType keeps messages of one content type.
func ByContentType(contentType string) Modifier {
	return func(q *Query) {
		if contentType == "" {
			q.Fail("content type is required")
			return
		}
		q.Where("messages.content_type = ?", contentType)
	}
}

// ExcludeContentType drops messages of the given types. Messages without a
// type, such as undecrypted boxes, are kept.
func ExcludeContentType(types ...string) Modifier {
	return func(q *Query) {
		if len(types) == 0 {
			return
		}
		q.Where("messages.content_type IS NULL OR messages.content_type NOT IN ("+placeholders(len(types))+")", anyArgs(types)...)
	}
}

// OnlyDecrypted keeps private messages this identity could open.
func OnlyDecrypted() Modifier {
	return func(q *Query) {
		q.Where("messages.is_decrypted = 1")
	}
}

// OnlyEncryptedOrFailed keeps public messages and boxes that did not open.
func OnlyEncryptedOrFailed() Modifier {
	return func(q *Query) {
		q.Where("messages.is_decrypted = 0")
	}
}

// JoinAuthor joins the authors table for author filters.
func JoinAuthor() Modifier {
	return func(q *Query) {
		q.Join("authors", "JOIN authors ON authors.id = messages.author_id")
	}
}

// JoinKey joins the keys table for key filters.
func JoinKey() Modifier {
	return func(q *Query) {
		q.Join("keys", "JOIN keys ON keys.id = messages.key_id")
	}
}

// JoinLinksFrom joins the links a message makes. A message with several
// links still appears once.
func JoinLinksFrom() Modifier {
	return func(q *Query) {
		q.addJoin(join{
			name:   "links",
			sql:    "JOIN links_raw ON links_raw.link_from_key_id = messages.key_id",
			fanout: true,
		})
	}
}

// ByAuthor keeps messages by one feed.
func ByAuthor(author string) Modifier {
	return func(q *Query) {
		if author == "" {
			q.Fail("author is required")
			return
		}
		JoinAuthor()(q)
		q.Where("authors.author = ?", author)
	}
}

// ByKey keeps the message with one key.
func ByKey(key string) Modifier {
	return func(q *Query) {
		if key == "" {
			q.Fail("key is required")
			return
		}
		JoinKey()(q)
		q.Where("keys.key = ?", key)
	}
}

// FromMe keeps messages by the local identity.
func FromMe() Modifier {
	return func(q *Query) {
		JoinAuthor()(q)
		q.Where("authors.is_me = 1")
	}
}

// HasLinks keeps messages that reference at least one other message.
func HasLinks() Modifier {
	return JoinLinksFrom()
}

// LinksTo keeps messages with a link edge to target.
func LinksTo(target string) Modifier {
	return func(q *Query) {
		if target == "" {
			q.Fail("link target is required")
			return
		}
		q.Where(`EXISTS (
    SELECT 1 FROM links_raw AS l
    JOIN keys AS lk ON lk.id = l.link_to_key_id
    WHERE l.link_from_key_id = messages.key_id AND lk.key = ?)`, target)
	}
}

// NotInThread drops replies whose thread root is root. Messages without a
// root are kept.
func NotInThread(root string) Modifier {
	return func(q *Query) {
		q.Where("messages.root IS NULL OR messages.root != ?", root)
	}
}

// BacklinksTo keeps messages that reference target, except votes, tags,
// abouts and replies rooted at target.
func BacklinksTo(target string) Modifier {
	return func(q *Query) {
		LinksTo(target)(q)
		ExcludeContentType(BacklinkExcludedTypes...)(q)
		NotInThread(target)(q)
	}
}

// Since keeps messages indexed after a log sequence.
func Since(seq uint64) Modifier {
	return func(q *Query) {
		q.Where("messages.flume_seq > ?", int64(seq))
	}
}

// UpTo keeps messages indexed at or before a log sequence.
func UpTo(seq uint64) Modifier {
	return func(q *Query) {
		q.Where("messages.flume_seq <= ?", int64(seq))
	}
}

// Limit caps the result size. With several limits the smallest wins.
func Limit(n int) Modifier {
	return func(q *Query) {
		if n < 0 {
			q.Fail("limit must not be negative, got %d", n)
			return
		}
		if n == 0 {
			return
		}
		if q.limit == 0 || n < q.limit {
			q.limit = n
		}
	}
}
