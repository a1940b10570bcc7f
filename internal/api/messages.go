package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"ssbsql/internal/db"
	"ssbsql/internal/query"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

func parseLimit(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("limit"))
	if v == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid limit")
	}
	return min(n, maxLimit), nil
}

func parseBool(raw string) (bool, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	switch raw {
	case "false", "0", "no":
		return false, nil
	case "true", "1", "yes":
		return true, nil
	default:
		return false, errors.New("invalid boolean")
	}
}

// parseModifiers maps the list filters shared by /messages and /backlinks.
func parseModifiers(r *http.Request) ([]query.Modifier, error) {
	q := r.URL.Query()
	limit, err := parseLimit(r)
	if err != nil {
		return nil, err
	}
	mods := []query.Modifier{query.Limit(limit)}

	if v := strings.TrimSpace(q.Get("type")); v != "" {
		mods = append(mods, query.ByContentType(v))
	}
	if v := strings.TrimSpace(q.Get("author")); v != "" {
		mods = append(mods, query.ByAuthor(v))
	}
	if v := strings.TrimSpace(q.Get("private")); v != "" {
		private, err := parseBool(v)
		if err != nil {
			return nil, errors.New("invalid private value")
		}
		if private {
			mods = append(mods, query.OnlyDecrypted())
		} else {
			mods = append(mods, query.OnlyEncryptedOrFailed())
		}
	}
	if v := strings.TrimSpace(q.Get("since")); v != "" {
		seq, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, errors.New("invalid since value")
		}
		mods = append(mods, query.Since(seq))
	}
	if v := strings.TrimSpace(q.Get("mine")); v != "" {
		mine, err := parseBool(v)
		if err != nil {
			return nil, errors.New("invalid mine value")
		}
		if mine {
			mods = append(mods, query.FromMe())
		}
	}
	return mods, nil
}

func messagesHandler(database *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		mods, err := parseModifiers(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if v := strings.TrimSpace(r.URL.Query().Get("links_to")); v != "" {
			mods = append(mods, query.LinksTo(v))
		}
		rows, err := query.Messages(r.Context(), database, mods...)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list messages")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"messages": rows,
		})
	})
}

func messageItemHandler(database *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		key, err := pathTail(r, "/api/v1/messages/")
		if err != nil || key == "" {
			writeError(w, http.StatusBadRequest, "invalid message key")
			return
		}
		msg, err := db.GetMessageByKey(r.Context(), database, key)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, http.StatusNotFound, "message not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to read message")
			return
		}
		links, err := db.ListLinksFrom(r.Context(), database, key)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read links")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": msg,
			"links":   links,
		})
	})
}

func backlinksHandler(database *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		key := strings.TrimSpace(r.URL.Query().Get("key"))
		if key == "" {
			writeError(w, http.StatusBadRequest, "missing key query parameter")
			return
		}
		mods, err := parseModifiers(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rows, err := query.Backlinks(r.Context(), database, key, mods...)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list backlinks")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"key":       key,
			"backlinks": rows,
		})
	})
}

func contactsHandler(database *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		author := strings.TrimSpace(r.URL.Query().Get("author"))
		if author == "" {
			writeError(w, http.StatusBadRequest, "missing author query parameter")
			return
		}
		contacts, err := db.ListContacts(r.Context(), database, author)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list contacts")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"author":   author,
			"contacts": contacts,
		})
	})
}

func aboutsHandler(database *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		target := strings.TrimSpace(r.URL.Query().Get("target"))
		if target == "" {
			writeError(w, http.StatusBadRequest, "missing target query parameter")
			return
		}
		abouts, err := db.ListAbouts(r.Context(), database, target)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list abouts")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"target": target,
			"abouts": abouts,
		})
	})
}
