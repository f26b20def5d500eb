package runner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"

	"github.com/ethereum/go-ethereum/log"

	"github.com/parabatch/parabatch/junitxml"
	"github.com/parabatch/parabatch/types"
)

// ResultSink receives each batch's parsed document while its result file is
// still on disk, so sinks may archive the raw file before it is deleted.
type ResultSink interface {
	Consume(batch *types.Batch, doc *junitxml.Document) error
}

// ReporterConfig configures a StreamingReporter.
type ReporterConfig struct {
	Writer io.Writer
	Store  *ResultStore
	// Width is the terminal width glyphs wrap at. Zero means DefaultWidth.
	// On Windows the effective width shrinks by one because the console
	// consumes a column rendering the newline.
	Width        int
	TrackSkipped bool
	Sinks        []ResultSink
	Log          log.Logger
}

// StreamingReporter consumes batch completions in completion order: it
// parses the result document, merges it into the store, hands it to the
// artifact sinks, deletes the result file, and renders one glyph per case
// outcome. All counters are plain fields because only the pool's controller
// goroutine calls into the reporter.
type StreamingReporter struct {
	out          io.Writer
	store        *ResultStore
	width        int
	trackSkipped bool
	sinks        []ResultSink
	log          log.Logger

	total        int
	counterWidth int
	column       int
	processed    int
}

// NewStreamingReporter creates a reporter after validating its configuration.
func NewStreamingReporter(cfg ReporterConfig) (*StreamingReporter, error) {
	if cfg.Store == nil {
		return nil, errors.New("result store is required")
	}
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	if cfg.Width == 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Width < 0 {
		return nil, fmt.Errorf("invalid width %d", cfg.Width)
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	return &StreamingReporter{
		out:          cfg.Writer,
		store:        cfg.Store,
		width:        wrapWidthFor(cfg.Width, runtime.GOOS),
		trackSkipped: cfg.TrackSkipped,
		sinks:        cfg.Sinks,
		log:          cfg.Log,
	}, nil
}

// wrapWidthFor returns the number of glyphs per output line on the given
// platform. Windows consoles spend one column on the newline itself.
func wrapWidthFor(width int, goos string) int {
	if goos == "windows" {
		return width - 1
	}
	return width
}

// Begin fixes the progress counter geometry for the whole run from the
// expected case total. Later corrections to the total never change the
// field width, so the right edge of the counter stays put.
func (r *StreamingReporter) Begin(totalExpected int) {
	r.total = totalExpected
	r.counterWidth = len(strconv.Itoa(totalExpected))
	r.column = 0
	r.processed = 0
}

// Complete is the pool's completion callback. A result document that cannot
// be parsed turns the batch into a single fatal failure entry naming the
// worker invocation; scheduling of the remaining queue is unaffected.
func (r *StreamingReporter) Complete(batch *types.Batch, res ProcessResult) {
	doc, err := junitxml.ParseFile(batch.ResultPath)
	if err != nil {
		r.completeFatal(batch, res, err)
		return
	}

	r.store.AddResult(batch.ExpectedCount, doc, r.trackSkipped)

	for _, sink := range r.sinks {
		if err := sink.Consume(batch, doc); err != nil {
			r.log.Error("Result sink failed", "batch", batch.Name, "err", err)
		}
	}

	// The document is merged and archived; the temp file has served its
	// purpose.
	r.removeResultFile(batch)

	r.store.RecordBatch(types.BatchResult{
		Name:       batch.Name,
		Tests:      doc.Totals.Tests,
		Assertions: doc.Totals.Assertions,
		Failures:   doc.Totals.Failures,
		Errors:     doc.Totals.Errors,
		Skipped:    countSkipped(doc),
		Duration:   res.Duration,
	})

	for _, c := range doc.Cases {
		r.processed++
		r.writeGlyph(c.Status.Glyph())
	}
	for _, warning := range batch.Warnings {
		r.store.AddWarning(warning)
		r.writeGlyph(types.WarningGlyph)
	}
}

// completeFatal records a batch whose worker left nothing parsable behind.
func (r *StreamingReporter) completeFatal(batch *types.Batch, res ProcessResult, parseErr error) {
	r.log.Error("Worker produced no parsable result document",
		"batch", batch.Name, "exitCode", res.ExitCode, "err", parseErr)

	detail := fmt.Sprintf("Exit code: %d", res.ExitCode)
	if res.Err != nil {
		detail += fmt.Sprintf("\nWait error: %v", res.Err)
	}
	if res.Stderr != "" {
		detail += "\nStderr:\n" + res.Stderr
	}

	r.store.AddFatalFailure(batch.LastCommand, detail)
	r.store.RecordBatch(types.BatchResult{
		Name:     batch.Name,
		Duration: res.Duration,
		Fatal:    true,
		Detail:   detail,
	})

	// Whatever partial file exists is unusable; clean it up anyway.
	r.removeResultFile(batch)
}

// End closes an unfinished glyph line with a padded counter so the final
// line ends at the same right edge as full ones.
func (r *StreamingReporter) End() {
	if r.column == 0 {
		return
	}
	for i := r.column; i < r.width; i++ {
		fmt.Fprint(r.out, " ")
	}
	r.writeCounter()
	fmt.Fprintln(r.out)
	r.column = 0
}

func (r *StreamingReporter) writeGlyph(g byte) {
	fmt.Fprintf(r.out, "%c", g)
	r.column++
	if r.column >= r.width {
		r.writeCounter()
		fmt.Fprintln(r.out)
		r.column = 0
	}
}

func (r *StreamingReporter) writeCounter() {
	pct := 0
	if r.total > 0 {
		pct = r.processed * 100 / r.total
	}
	fmt.Fprintf(r.out, " %*d / %*d (%3d%%)", r.counterWidth, r.processed, r.counterWidth, r.total, pct)
}

func (r *StreamingReporter) removeResultFile(batch *types.Batch) {
	if batch.ResultPath == "" {
		return
	}
	if err := os.Remove(batch.ResultPath); err != nil && !os.IsNotExist(err) {
		r.log.Warn("Could not remove result file", "path", batch.ResultPath, "err", err)
	}
}

func countSkipped(doc *junitxml.Document) int {
	n := 0
	for _, c := range doc.Cases {
		if c.Status.CountsAsSkipped() {
			n++
		}
	}
	return n
}
