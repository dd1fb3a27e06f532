// Command insight manages typed datasets and runs queries against them from
// the command line. The archive backend is selected through the
// INSIGHT_ARCHIVE_* environment variables; see internal/archive.Open.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"insightcore/internal/archive"
	"insightcore/internal/core"
	"insightcore/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("insight", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { usage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		usage(stderr, fs)
		return 2
	}

	if err := run(ctx, rest[0], rest[1:], stdout); err != nil {
		if _, writeErr := fmt.Fprintf(stderr, "insight %s: %v\n", rest[0], err); writeErr != nil {
			return 1
		}
		return 1
	}
	return 0
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: insight [flags] <command> [args]")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  add <id> <sections|rooms> <records.json>  store a dataset")
	fmt.Fprintln(w, "  remove <id>                               delete a dataset")
	fmt.Fprintln(w, "  list                                      describe stored datasets")
	fmt.Fprintln(w, "  query <query.json>                        run a query document")
	fs.PrintDefaults()
}

func run(ctx context.Context, command string, args []string, stdout io.Writer) (err error) {
	a, err := archive.Open(ctx)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() {
		if closer, ok := a.(io.Closer); ok {
			if cerr := closer.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close archive: %w", cerr)
			}
		}
	}()
	svc := core.NewService(a, core.WithLogger(core.NewSlogLogger(nil)))

	switch command {
	case "add":
		return runAdd(ctx, svc, args, stdout)
	case "remove":
		return runRemove(ctx, svc, args, stdout)
	case "list":
		return runList(ctx, svc, args, stdout)
	case "query":
		return runQuery(ctx, svc, args, stdout)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func runAdd(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	if len(args) != 3 {
		return fmt.Errorf("expected <id> <kind> <records.json>")
	}
	id, kind := args[0], domain.Kind(args[1])
	if !kind.Valid() {
		return fmt.Errorf("unknown dataset kind %q", args[1])
	}
	payload, err := os.ReadFile(args[2])
	if err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	records, err := domain.DecodeRecords(kind, payload)
	if err != nil {
		return fmt.Errorf("decode records: %w", err)
	}
	ids, err := svc.AddDataset(ctx, id, kind, records)
	if err != nil {
		return err
	}
	return writeJSON(stdout, ids)
}

func runRemove(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("expected <id>")
	}
	removed, err := svc.RemoveDataset(ctx, args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "removed %s\n", removed)
	return err
}

func runList(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	if len(args) != 0 {
		return fmt.Errorf("list takes no arguments")
	}
	infos, err := svc.ListDatasets(ctx)
	if err != nil {
		return err
	}
	if infos == nil {
		infos = []domain.DatasetInfo{}
	}
	return writeJSON(stdout, infos)
}

func runQuery(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("expected <query.json>")
	}
	payload, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read query: %w", err)
	}
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("parse query: %w", err)
	}
	rows, err := svc.PerformQuery(ctx, doc)
	if err != nil {
		return err
	}
	return writeJSON(stdout, rows)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
