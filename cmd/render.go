package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/paddock/internal/engine"
	"github.com/sells-group/paddock/internal/export"
	"github.com/sells-group/paddock/internal/reconcile"
	"github.com/sells-group/paddock/internal/resilience"
)

// printTable writes an aligned table.
func printTable(w io.Writer, header []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

// printDocument prints every table of doc and, when --out is set, writes
// the document there too.
func printDocument(w io.Writer, doc export.Document) error {
	for i, t := range doc.Tables {
		if len(doc.Tables) > 1 {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "%s\n", t.Name)
		}
		printTable(w, t.Header, t.Rows)
	}
	if outPath == "" {
		return nil
	}
	if err := export.Write(outPath, doc); err != nil {
		return eris.Wrapf(err, "export %s", outPath)
	}
	zap.L().Info("exported", zap.String("path", outPath))
	return nil
}

// degraded separates a stale-but-present result from a real failure. It
// prints a warning to w and returns nil for stale values.
func degraded(w io.Writer, err error) error {
	if err == nil {
		return nil
	}
	var stale *engine.StaleError
	if errors.As(err, &stale) {
		fmt.Fprintf(w, "warning: upstream unavailable, showing cached data (%v)\n", stale.Err)
		return nil
	}
	return err
}

// partial splits a season run's error. A run that ended Incomplete with some
// rounds assembled is reported on w and its error is returned as exit, to be
// returned once those rounds are printed. Anything else comes back as fatal.
func partial(w io.Writer, res reconcile.Result, err error) (exit, fatal error) {
	if !errors.Is(err, resilience.ErrIncomplete) || len(res.Races) == 0 {
		return nil, err
	}
	fmt.Fprintf(w, "warning: season %d is incomplete, rounds %v are still missing\n", res.Season, res.Missing)
	return err, nil
}

// userError turns err into the message shown on the terminal.
func userError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, engine.ErrNotFound), errors.Is(err, engine.ErrAmbiguous):
		return err
	case resilience.Retryable(err):
		return fmt.Errorf("upstream is busy or unreachable, please retry: %w", err)
	default:
		return err
	}
}
