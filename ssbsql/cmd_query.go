package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ssbsql/internal/cli/output"
	"ssbsql/internal/db"
	"ssbsql/internal/models"
	"ssbsql/internal/query"
)

// filters are the list flags shared by query and backlinks.
type filters struct {
	contentType string
	author      string
	private     string
	since       uint64
	limit       int
	mine        bool
	linksTo     string
}

func (f *filters) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.contentType, "type", "", "only messages with this content type")
	fs.StringVar(&f.author, "author", "", "only messages by this feed id")
	fs.StringVar(&f.private, "private", "", "true for decrypted messages only, false for public and undecryptable ones")
	fs.Uint64Var(&f.since, "since", 0, "only messages indexed after this log sequence")
	fs.IntVar(&f.limit, "limit", 50, "maximum rows, 0 for no limit")
	fs.BoolVar(&f.mine, "mine", false, "only messages by the local identity")
}

func (f *filters) privacy() (set, private bool, err error) {
	if strings.TrimSpace(f.private) == "" {
		return false, false, nil
	}
	private, err = strconv.ParseBool(f.private)
	if err != nil {
		return false, false, fmt.Errorf("invalid --private value %q", f.private)
	}
	return true, private, nil
}

func (f *filters) modifiers() ([]query.Modifier, error) {
	mods := []query.Modifier{query.Limit(f.limit)}
	if f.contentType != "" {
		mods = append(mods, query.ByContentType(f.contentType))
	}
	if f.author != "" {
		mods = append(mods, query.ByAuthor(f.author))
	}
	set, private, err := f.privacy()
	if err != nil {
		return nil, err
	}
	if set && private {
		mods = append(mods, query.OnlyDecrypted())
	} else if set {
		mods = append(mods, query.OnlyEncryptedOrFailed())
	}
	if f.since > 0 {
		mods = append(mods, query.Since(f.since))
	}
	if f.mine {
		mods = append(mods, query.FromMe())
	}
	if f.linksTo != "" {
		mods = append(mods, query.LinksTo(f.linksTo))
	}
	return mods, nil
}

func (f *filters) values() (url.Values, error) {
	v := url.Values{}
	if f.limit > 0 {
		v.Set("limit", strconv.Itoa(f.limit))
	}
	if f.contentType != "" {
		v.Set("type", f.contentType)
	}
	if f.author != "" {
		v.Set("author", f.author)
	}
	set, private, err := f.privacy()
	if err != nil {
		return nil, err
	}
	if set {
		v.Set("private", strconv.FormatBool(private))
	}
	if f.since > 0 {
		v.Set("since", strconv.FormatUint(f.since, 10))
	}
	if f.mine {
		v.Set("mine", "true")
	}
	if f.linksTo != "" {
		v.Set("links_to", f.linksTo)
	}
	return v, nil
}

// localQuery runs fn against the local index.
func (a *app) localQuery(ctx context.Context, fn func(ctx context.Context, database *sql.DB) ([]models.IndexedMessage, error)) ([]models.IndexedMessage, error) {
	database, err := a.openDB()
	if err != nil {
		return nil, err
	}
	defer closeQuietly(database)
	return fn(ctx, database)
}

func newQueryCmd(a *app) *cobra.Command {
	var f filters
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List indexed messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			var rows []models.IndexedMessage
			if a.remote() {
				params, err := f.values()
				if err != nil {
					return err
				}
				rows, err = a.client().Messages(cmd.Context(), params)
				if err != nil {
					return err
				}
			} else {
				mods, err := f.modifiers()
				if err != nil {
					return err
				}
				rows, err = a.localQuery(cmd.Context(), func(ctx context.Context, database *sql.DB) ([]models.IndexedMessage, error) {
					return query.Messages(ctx, database, mods...)
				})
				if err != nil {
					return err
				}
			}
			return output.Messages(cmd.OutOrStdout(), rows, format)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&f.linksTo, "links-to", "", "only messages linking to this message key")
	return cmd
}

func newBacklinksCmd(a *app) *cobra.Command {
	var f filters
	cmd := &cobra.Command{
		Use:   "backlinks <key>",
		Short: "List messages that reference a message, outside its own thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			target := args[0]
			var rows []models.IndexedMessage
			if a.remote() {
				params, err := f.values()
				if err != nil {
					return err
				}
				rows, err = a.client().Backlinks(cmd.Context(), target, params)
				if err != nil {
					return err
				}
			} else {
				mods, err := f.modifiers()
				if err != nil {
					return err
				}
				rows, err = a.localQuery(cmd.Context(), func(ctx context.Context, database *sql.DB) ([]models.IndexedMessage, error) {
					return query.Backlinks(ctx, database, target, mods...)
				})
				if err != nil {
					return err
				}
			}
			return output.Messages(cmd.OutOrStdout(), rows, format)
		},
	}
	f.register(cmd)
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Show one indexed message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			var msg *models.IndexedMessage
			if a.remote() {
				msg, err = a.client().Message(cmd.Context(), args[0])
			} else {
				database, openErr := a.openDB()
				if openErr != nil {
					return openErr
				}
				defer closeQuietly(database)
				msg, err = db.GetMessageByKey(cmd.Context(), database, args[0])
			}
			if err != nil {
				return err
			}
			return output.Messages(cmd.OutOrStdout(), []models.IndexedMessage{*msg}, format)
		},
	}
}
