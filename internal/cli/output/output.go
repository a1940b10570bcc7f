// Package output renders command results for a terminal or for scripts.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-isatty"

	"ssbsql/internal/models"
)

type Format string

const (
	JSON  Format = "json"
	Table Format = "table"
	Plain Format = "plain"
	Quiet Format = "quiet"
)

var ErrFormat = errors.New("invalid --format value")

// DefaultFormat is a table on a terminal and JSON when piped.
func DefaultFormat() Format {
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return Table
	}
	return JSON
}

func ParseFormat(raw string, quiet bool) (Format, error) {
	if quiet {
		return Quiet, nil
	}
	switch f := Format(strings.TrimSpace(strings.ToLower(raw))); f {
	case "":
		return DefaultFormat(), nil
	case JSON, Table, Plain, Quiet:
		return f, nil
	default:
		return "", ErrFormat
	}
}

// Messages prints index rows. Quiet prints one key per line.
func Messages(w io.Writer, rows []models.IndexedMessage, format Format) error {
	switch format {
	case JSON:
		return printJSON(w, map[string]any{"messages": rows})
	case Table:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SEQ\tKEY\tAUTHOR\tTYPE\tPRIVATE")
		for _, r := range rows {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
				r.FlumeSeq, short(r.Key), short(r.Author), deref(r.ContentType), yesNo(r.IsDecrypted))
		}
		return tw.Flush()
	case Plain:
		for _, r := range rows {
			fmt.Fprintf(w, "%d %s %s %s\n", r.FlumeSeq, r.Key, r.Author, r.Content)
		}
		return nil
	case Quiet:
		for _, r := range rows {
			fmt.Fprintln(w, r.Key)
		}
		return nil
	default:
		return ErrFormat
	}
}

// Fields prints a flat record: a two-column table, key=value lines, or JSON.
// Quiet prints only the value under primary.
func Fields(w io.Writer, record map[string]any, order []string, primary string, format Format) error {
	switch format {
	case JSON:
		return printJSON(w, record)
	case Table:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, k := range order {
			fmt.Fprintf(tw, "%s\t%s\n", strings.ToUpper(k), str(record[k]))
		}
		return tw.Flush()
	case Plain:
		for _, k := range order {
			fmt.Fprintf(w, "%s=%s\n", k, str(record[k]))
		}
		return nil
	case Quiet:
		fmt.Fprintln(w, str(record[primary]))
		return nil
	default:
		return ErrFormat
	}
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// short trims a sigil reference to its first characters for table output.
func short(ref string) string {
	if len(ref) <= 12 {
		return ref
	}
	return ref[:12] + "…"
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case uint64:
		return strconv.FormatUint(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
