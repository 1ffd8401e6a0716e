// Command notes inspects saved medscribe notes from the terminal and runs the
// offline field parser over arbitrary text.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"medscribe/internal/config"
	"medscribe/internal/domain"
	"medscribe/internal/heuristics"
	"medscribe/internal/logging"
	"medscribe/internal/ports"
	"medscribe/internal/store"
)

const usage = `Usage:
  notes [-db PATH] list
  notes [-db PATH] show ID
  notes [-db PATH] delete ID
  notes [-db PATH] extract [-save] [FILE]

ID may be any unique prefix of a note identifier.
extract reads FILE, or standard input when FILE is omitted or "-".`

var errUsage = errors.New("invalid usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprint(stderr, renderError(err))
		return 1
	}

	fs := flag.NewFlagSet("notes", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprintln(stderr, usage) }
	dbPath := fs.String("db", cfg.Store.Path, "path to the notes database")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	logger := logging.New(stderr, logging.ParseLevel(cfg.Log.Level)).
		With().Str("component", "notes-cli").Logger()

	st, err := store.Open(*dbPath)
	if err != nil {
		fmt.Fprint(stderr, renderError(err))
		return 1
	}
	defer st.Close()

	c := cli{
		store:  st,
		stdin:  stdin,
		stdout: stdout,
		logger: logger,
		loc:    time.Local,
	}
	err = c.dispatch(context.Background(), fs.Arg(0), fs.Args()[1:])
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintln(stderr, usage)
		return 2
	default:
		fmt.Fprint(stderr, renderError(err))
		return 1
	}
}

type cli struct {
	store  ports.RecordStore
	stdin  io.Reader
	stdout io.Writer
	logger zerolog.Logger
	loc    *time.Location
}

func (c cli) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "list":
		return c.list(ctx)
	case "show":
		if len(args) != 1 {
			return errUsage
		}
		return c.show(ctx, args[0])
	case "delete":
		if len(args) != 1 {
			return errUsage
		}
		return c.delete(ctx, args[0])
	case "extract":
		return c.extract(ctx, args)
	default:
		return errUsage
	}
}

func (c cli) list(ctx context.Context) error {
	records, err := c.store.List(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(c.stdout, renderList(records, c.loc))
	return nil
}

func (c cli) show(ctx context.Context, ref string) error {
	record, err := c.resolve(ctx, ref)
	if err != nil {
		return err
	}
	fmt.Fprint(c.stdout, renderRecord(record, c.loc))
	return nil
}

func (c cli) delete(ctx context.Context, ref string) error {
	record, err := c.resolve(ctx, ref)
	if err != nil {
		return err
	}
	if err := c.store.Delete(ctx, record.ID); err != nil {
		return err
	}
	c.logger.Info().Str("id", record.ID).Msg("note deleted")
	fmt.Fprintf(c.stdout, "Deleted %s\n", record.ID)
	return nil
}

func (c cli) extract(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	save := fs.Bool("save", false, "store the result as a new note")
	if err := fs.Parse(args); err != nil || fs.NArg() > 1 {
		return errUsage
	}

	text, err := c.readInput(fs.Arg(0))
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("no text to extract from")
	}

	fields := heuristics.Extract(text).Fields
	fmt.Fprint(c.stdout, renderFields("Extracted fields", fields))

	if !*save {
		return nil
	}
	fields.Transcript = text
	id, err := c.store.Insert(ctx, fields)
	if err != nil {
		return err
	}
	c.logger.Info().Str("id", id).Msg("extracted note saved")
	fmt.Fprintf(c.stdout, "\nSaved as %s\n", id)
	return nil
}

func (c cli) readInput(path string) (string, error) {
	if path == "" || path == "-" {
		body, err := io.ReadAll(c.stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(body), nil
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(body), nil
}

// resolve finds a note by exact identifier or by unique prefix.
func (c cli) resolve(ctx context.Context, ref string) (domain.Record, error) {
	record, err := c.store.Get(ctx, ref)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, domain.ErrNoteNotFound) {
		return domain.Record{}, err
	}

	records, err := c.store.List(ctx)
	if err != nil {
		return domain.Record{}, err
	}
	var matches []domain.Record
	for _, r := range records {
		if strings.HasPrefix(r.ID, ref) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return domain.Record{}, fmt.Errorf("%w: %s", domain.ErrNoteNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return domain.Record{}, fmt.Errorf("%q matches %d notes", ref, len(matches))
	}
}
