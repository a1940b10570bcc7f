package query

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ssbsql/internal/db"
)

const (
	alice = "@QlCTpvY7p9ty2yOFrv1WU1AE88aoQc4Y7wYal7PFc+w=.ed25519"
	bob   = "@vt8uK0++cpFioCCBeB3p3jdx4RIdQYJOL/imN1Hv0Wk=.ed25519"
	keyA  = "%kmXb3MXtBJaNugcEL/Q7G40DgcAkMNTj3yhmxKHjfCM=.sha256"
	keyB  = "%5Y2bWjBOLzLMH7RSyU4MLCqfMUKk0mL7GIgDsoEvhbo=.sha256"
	keyC  = "%pcc6RIzvuJ4mlW0Mh7Vb1fR0e5r7kn46Oto1xbtd/8s=.sha256"
	keyD  = "%9mAx3eS1cS1t6r3rKqnV3lH2cQ0p8GkXw5o7mJb0E1Q=.sha256"
	keyE  = "%Yv5gwyU0hJ8zC2nT3rK9pQ1sL6dF4bN7mX0aE2iH5uo=.sha256"
)

type fixtureMessage struct {
	seq         int64
	key         string
	author      string
	contentType string
	root        string
	decrypted   bool
	links       []string
}

func openTestDB(t *testing.T, msgs []fixtureMessage) *sql.DB {
	t.Helper()
	ctx := context.Background()
	database, err := db.Open(filepath.Join(t.TempDir(), "query.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	for _, m := range msgs {
		keyID, err := db.FindOrCreateKeyTx(ctx, tx, m.key)
		if err != nil {
			t.Fatalf("key: %v", err)
		}
		authorID, err := db.FindOrCreateAuthorTx(ctx, tx, m.author)
		if err != nil {
			t.Fatalf("author: %v", err)
		}
		row := db.MessageRow{
			FlumeSeq:     m.seq,
			KeyID:        keyID,
			Sequence:     m.seq,
			AssertedTime: float64(m.seq),
			AuthorID:     authorID,
			Content:      `{}`,
			IsDecrypted:  m.decrypted,
		}
		if m.contentType != "" {
			ct := m.contentType
			row.ContentType = &ct
		}
		if m.root != "" {
			rootID, err := db.FindOrCreateKeyTx(ctx, tx, m.root)
			if err != nil {
				t.Fatalf("root: %v", err)
			}
			row.RootID = &rootID
		}
		if _, err := db.InsertMessageTx(ctx, tx, row); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if err := db.InsertLinksTx(ctx, tx, keyID, m.links); err != nil {
			t.Fatalf("links: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return database
}

func keysOf(t *testing.T, database *sql.DB, mods ...Modifier) []string {
	t.Helper()
	rows, err := Messages(context.Background(), database, mods...)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Key)
	}
	return out
}

var backlinkFixture = []fixtureMessage{
	{seq: 1, key: keyA, author: alice, contentType: "post"},
	{seq: 2, key: keyB, author: bob, contentType: "post", links: []string{keyA}},
	{seq: 3, key: keyC, author: bob, contentType: "vote", links: []string{keyA}},
	{seq: 4, key: keyD, author: alice, contentType: "post", root: keyA, links: []string{keyA}},
	{seq: 5, key: keyE, author: alice, contentType: "post", root: keyB, links: []string{keyA, keyB}},
}

func TestBacklinksExcludeVotesAndOwnThread(t *testing.T) {
	database := openTestDB(t, backlinkFixture[:3])
	got, err := Backlinks(context.Background(), database, keyA)
	if err != nil {
		t.Fatalf("backlinks: %v", err)
	}
	if len(got) != 1 || got[0].Key != keyB {
		t.Fatalf("backlinks = %+v, want only B", got)
	}
	if got[0].Root != nil {
		t.Fatalf("B has no root, got %v", *got[0].Root)
	}
}

func TestBacklinksKeepOtherThreads(t *testing.T) {
	database := openTestDB(t, backlinkFixture)
	got := keysOf(t, database, BacklinksTo(keyA))
	if diff := cmp.Diff([]string{keyB, keyE}, got); diff != "" {
		t.Fatalf("backlinks mismatch (-want +got):\n%s", diff)
	}

	toB := keysOf(t, database, BacklinksTo(keyB))
	if len(toB) != 0 {
		t.Fatalf("E is in B's thread, got %v", toB)
	}
	if got := keysOf(t, database, LinksTo(keyB)); len(got) != 1 || got[0] != keyE {
		t.Fatalf("raw links to B = %v", got)
	}
}

func TestModifiersAreOrderIndependent(t *testing.T) {
	database := openTestDB(t, backlinkFixture)
	mods := []Modifier{
		BacklinksTo(keyA),
		ByAuthor(alice),
		OnlyEncryptedOrFailed(),
		JoinLinksFrom(),
		Limit(10),
	}
	want := keysOf(t, database, mods...)
	if diff := cmp.Diff([]string{keyE}, want); diff != "" {
		t.Fatalf("combined mismatch:\n%s", diff)
	}

	perms := [][]int{{4, 3, 2, 1, 0}, {1, 0, 3, 2, 4}, {2, 4, 0, 3, 1}}
	for _, perm := range perms {
		ordered := make([]Modifier, len(perm))
		for i, idx := range perm {
			ordered[i] = mods[idx]
		}
		if diff := cmp.Diff(want, keysOf(t, database, ordered...)); diff != "" {
			t.Fatalf("order %v changed result:\n%s", perm, diff)
		}
	}

	stepwise := New()
	for _, mod := range mods {
		stepwise = Apply(stepwise, mod)
	}
	got, err := Run(context.Background(), database, stepwise)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got) != 1 || got[0].Key != keyE {
		t.Fatalf("stepwise = %+v", got)
	}
}

func TestJoinsAreShared(t *testing.T) {
	q := New(ByAuthor(alice), FromMe(), JoinAuthor(), ByKey(keyA), JoinKey())
	stmt, args := q.SQL()
	if n := strings.Count(stmt, "JOIN authors"); n != 1 {
		t.Fatalf("authors joined %d times:\n%s", n, stmt)
	}
	if n := strings.Count(stmt, "JOIN keys"); n != 1 {
		t.Fatalf("keys joined %d times:\n%s", n, stmt)
	}
	if diff := cmp.Diff([]any{alice, keyA}, args); diff != "" {
		t.Fatalf("args mismatch:\n%s", diff)
	}
	if strings.Contains(stmt, "DISTINCT") {
		t.Fatalf("one-to-one joins must not add DISTINCT")
	}
	if stmt, _ := New(JoinLinksFrom()).SQL(); !strings.Contains(stmt, "SELECT DISTINCT") {
		t.Fatalf("link join must select distinct rows:\n%s", stmt)
	}
}

func TestTypeAndPrivacyFilters(t *testing.T) {
	database := openTestDB(t, []fixtureMessage{
		{seq: 1, key: keyA, author: alice, contentType: "post"},
		{seq: 2, key: keyB, author: alice, contentType: "post", decrypted: true},
		{seq: 3, key: keyC, author: bob},
		{seq: 4, key: keyD, author: bob, contentType: "vote"},
	})

	cases := []struct {
		name string
		mods []Modifier
		want []string
	}{
		{"all", nil, []string{keyA, keyB, keyC, keyD}},
		{"posts", []Modifier{ByContentType("post")}, []string{keyA, keyB}},
		{"not votes keeps untyped", []Modifier{ExcludeContentType("vote")}, []string{keyA, keyB, keyC}},
		{"decrypted", []Modifier{OnlyDecrypted()}, []string{keyB}},
		{"not decrypted", []Modifier{OnlyEncryptedOrFailed()}, []string{keyA, keyC, keyD}},
		{"by bob", []Modifier{ByAuthor(bob)}, []string{keyC, keyD}},
		{"since", []Modifier{Since(2)}, []string{keyC, keyD}},
		{"up to", []Modifier{UpTo(2)}, []string{keyA, keyB}},
		{"smallest limit wins", []Modifier{Limit(3), Limit(2), Limit(5)}, []string{keyA, keyB}},
		{"by key", []Modifier{ByKey(keyC)}, []string{keyC}},
		{"has links", []Modifier{HasLinks()}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, keysOf(t, database, tc.mods...)); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInvalidModifiersFailWithErrQuery(t *testing.T) {
	database := openTestDB(t, nil)
	for name, mod := range map[string]Modifier{
		"empty type":     ByContentType(""),
		"empty author":   ByAuthor(""),
		"empty target":   BacklinksTo(""),
		"negative limit": Limit(-1),
	} {
		if _, err := Messages(context.Background(), database, mod); !errors.Is(err, ErrQuery) {
			t.Fatalf("%s: err = %v, want ErrQuery", name, err)
		}
	}

	bad := New()
	bad.Where("no_such_column = ?", 1)
	if _, err := Run(context.Background(), database, bad); !errors.Is(err, ErrQuery) {
		t.Fatalf("bad column err = %v, want ErrQuery", err)
	}
}
