package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ssbsql/internal/codec"
	"ssbsql/internal/config"
	"ssbsql/internal/feedlog"
	"ssbsql/internal/identity"
	"ssbsql/internal/models"
	"ssbsql/internal/value"
)

func seedPebbleLog(t *testing.T, path string, n int) {
	t.Helper()
	author, err := identity.Generate()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	log, err := feedlog.OpenPebble(path, nil)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer log.Close()

	var prev *string
	for i := 1; i <= n; i++ {
		v := models.Value{
			Previous:  prev,
			Author:    author.ID,
			Sequence:  int64(i),
			Timestamp: float64(1_700_000_000_000 + i),
			Hash:      "sha256",
			Content:   value.Object{{Key: "type", Value: "post"}, {Key: "text", Value: fmt.Sprintf("post %d", i)}},
			Signature: "c2lnbmF0dXJl.sig.ed25519",
		}
		key, err := codec.ComputeKey(v)
		if err != nil {
			t.Fatalf("compute key: %v", err)
		}
		data, err := codec.EncodeLegacy(&models.Message{Key: key, Value: v})
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if _, err := log.Append(context.Background(), data); err != nil {
			t.Fatalf("append: %v", err)
		}
		prev = &key
	}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("decode %s: %v (%s)", url, err, body)
		}
	}
	return resp.StatusCode
}

func TestServeIndexesAndAnswers(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.LogPath = filepath.Join(dir, "log")
	cfg.DBPath = filepath.Join(dir, "index", "index.db")
	cfg.SecretPath = filepath.Join(dir, "missing-secret")
	cfg.IdleInterval = 50 * time.Millisecond
	seedPebbleLog(t, cfg.LogPath, 3)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, cfg, zerolog.Nop(), ln)
	}()

	var waited struct {
		Latest uint64 `json:"latest"`
	}
	if status := getJSON(t, base+"/api/v1/wait?seq=3&timeout=5s", &waited); status != http.StatusOK || waited.Latest != 3 {
		t.Fatalf("wait: status %d latest %d", status, waited.Latest)
	}

	var list struct {
		Messages []models.IndexedMessage `json:"messages"`
	}
	if status := getJSON(t, base+"/api/v1/messages?type=post", &list); status != http.StatusOK || len(list.Messages) != 3 {
		t.Fatalf("messages: status %d rows %d", status, len(list.Messages))
	}

	resp, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{"ssbsql_indexer_progress 3", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics missing %q", want)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop after cancel")
	}
}

func TestServeRejectsUnopenableLog(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.LogPath = filepath.Join(dir, "log")
	cfg.DBPath = filepath.Join(dir, "index.db")
	if err := os.WriteFile(cfg.LogPath, []byte("not a directory"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	if err := serve(context.Background(), cfg, zerolog.Nop(), ln); err == nil {
		t.Fatalf("expected serve to fail when the log path is a file")
	}
}
