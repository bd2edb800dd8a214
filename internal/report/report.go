package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"

	"github.com/BBerastegui/domain-stream/internal/models"
)

var (
	foundColor  = color.New(color.FgGreen, color.Bold)
	deniedColor = color.New(color.FgYellow)
	statsColor  = color.New(color.FgCyan)
)

// Reporter is the single shared output sink. Console and file writes are
// serialized behind one mutex; counters are atomics so the stats ticker
// never contends with workers.
type Reporter struct {
	mu  sync.Mutex
	out io.Writer

	logToFile bool
	logPath   string
	logFile   *os.File // opened lazily on first finding

	checked atomic.Int64
	found   atomic.Int64
}

// New builds a Reporter writing console output to w. The log file, when
// enabled, is only created once there is something to write.
func New(w io.Writer, logToFile bool, logPath string) *Reporter {
	return &Reporter{out: w, logToFile: logToFile, logPath: logPath}
}

// Checked records one completed probe, whatever its outcome.
func (r *Reporter) Checked() {
	r.checked.Add(1)
}

// Found reports an accessible candidate, optionally with matched keywords.
func (r *Reporter) Found(res models.ProbeResult, keywords []string) {
	r.found.Add(1)

	line := fmt.Sprintf("Found bucket '%s' (from %s)", res.Candidate.Name, res.Candidate.Origin)
	if len(keywords) > 0 {
		line += fmt.Sprintf(" keywords: %s", strings.Join(keywords, ", "))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	foundColor.Fprintln(r.out, line)
	r.appendLog(line)
}

// Denied reports a candidate that exists but refused access.
func (r *Reporter) Denied(res models.ProbeResult) {
	r.found.Add(1)

	line := fmt.Sprintf("Found protected bucket '%s' (from %s)", res.Candidate.Name, res.Candidate.Origin)

	r.mu.Lock()
	defer r.mu.Unlock()
	deniedColor.Fprintln(r.out, line)
	r.appendLog(line)
}

// Counts returns the checked/found totals so far.
func (r *Reporter) Counts() (checked, found int64) {
	return r.checked.Load(), r.found.Load()
}

// RunStats prints a throughput line every interval until ctx is done.
func (r *Reporter) RunStats(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checked, found := r.Counts()
			if checked == 0 {
				continue
			}
			rate := float64(checked-last) / interval.Seconds()
			last = checked

			r.mu.Lock()
			statsColor.Fprintf(r.out, "%d candidates checked (%.0f/s), %d buckets found\n",
				checked, rate, found)
			r.mu.Unlock()
		}
	}
}

// Close releases the log file handle if one was opened.
func (r *Reporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.logFile == nil {
		return nil
	}
	err := r.logFile.Close()
	r.logFile = nil
	return err
}

// appendLog writes one finding per line. Callers hold r.mu.
func (r *Reporter) appendLog(line string) {
	if !r.logToFile {
		return
	}
	if r.logFile == nil {
		f, err := os.OpenFile(r.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open %s: %v\n", r.logPath, err)
			r.logToFile = false
			return
		}
		r.logFile = f
	}
	fmt.Fprintln(r.logFile, line)
}
