// Package errlog maintains an append-only, date-bucketed log of failures.
//
// Each calendar day gets its own file named errors_YYYYMMDD.json holding one
// JSON object per line. The file rolls automatically at the first write of a
// new day; there is no explicit rotation step. A single process owns the
// directory; concurrent writers are out of scope.
package errlog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ppcbatch/internal/shared"
)

// Record is one logged failure. Taxonomy fields are present only for
// classified errors.
type Record struct {
	Timestamp   time.Time      `json:"timestamp"`
	Type        string         `json:"type"`
	Message     string         `json:"message"`
	Category    string         `json:"category,omitempty"`
	Severity    string         `json:"severity,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
	RetryAfter  int            `json:"retry_after,omitempty"`
	UserMessage string         `json:"user_message,omitempty"`
}

// Notifier delivers elevated human-facing notifications outside the log
// stream, for example to a chat channel.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Logger appends classified failures to the current day's file and mirrors
// them to the process log.
type Logger struct {
	dir    string
	log    *slog.Logger
	notify Notifier
	now    func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithNotifier routes critical and high severity failures to n in addition
// to the log stream.
func WithNotifier(n Notifier) Option {
	return func(l *Logger) { l.notify = n }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// New creates a Logger owning dir, creating it if needed.
func New(dir string, log *slog.Logger, opts ...Option) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, shared.Wrap(err, "create error log dir")
	}
	if log == nil {
		log = slog.Default()
	}
	l := &Logger{dir: dir, log: log, now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// file returns the path of the bucket for the given instant.
func (l *Logger) file(t time.Time) string {
	return filepath.Join(l.dir, "errors_"+t.Format("20060102")+".json")
}

// Log records err with optional call-site context and a user-facing message.
// Classified errors contribute their taxonomy fields; critical and high
// severities go to the error channel (and the notifier when configured), the
// rest to the warning channel. Unclassified errors always use the error
// channel.
//
// Log never fails the caller: write problems are reported on the process log
// and swallowed.
func (l *Logger) Log(err error, extra map[string]any, userMessage string) {
	if err == nil {
		return
	}
	now := l.now()
	rec := Record{
		Timestamp:   now,
		Type:        fmt.Sprintf("%T", err),
		Message:     err.Error(),
		Context:     extra,
		UserMessage: userMessage,
	}

	classified, isClassified := shared.Classified(err)
	if isClassified {
		rec.Category = string(classified.Category)
		rec.Severity = string(classified.Severity)
		rec.RetryAfter = classified.RetryAfter
		if len(classified.Context) > 0 {
			if rec.Context == nil {
				rec.Context = make(map[string]any, len(classified.Context))
			}
			for k, v := range classified.Context {
				if _, exists := rec.Context[k]; !exists {
					rec.Context[k] = v
				}
			}
		}
	}

	l.append(rec, now)

	msg := userMessage
	if msg == "" {
		msg = err.Error()
	}
	attrs := []any{slog.String("type", rec.Type)}
	if rec.Category != "" {
		attrs = append(attrs, slog.String("category", rec.Category), slog.String("severity", rec.Severity))
	}

	switch {
	case !isClassified:
		l.log.Error(msg, attrs...)
	case classified.Severity == shared.SeverityCritical || classified.Severity == shared.SeverityHigh:
		l.log.Error(msg, attrs...)
		if l.notify != nil {
			// bound notification latency so a stuck notifier cannot stall the worker
			nctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			if nerr := l.notify.Notify(nctx, msg); nerr != nil {
				l.log.Warn("error notification failed", slog.Any("error", nerr))
			}
			cancel()
		}
	default:
		l.log.Warn(msg, attrs...)
	}
}

const notifyTimeout = 10 * time.Second

func (l *Logger) append(rec Record, now time.Time) {
	data, err := json.Marshal(rec)
	if err != nil {
		l.log.Warn("error record not serializable", slog.Any("error", err))
		return
	}
	f, err := os.OpenFile(l.file(now), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.log.Warn("error log open failed", slog.Any("error", err))
		return
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		l.log.Warn("error log write failed", slog.Any("error", err))
	}
}

// Recent returns records from the current day's file newer than now-window,
// in file order. Prior days are not consulted. Malformed lines are skipped.
func (l *Logger) Recent(window time.Duration) ([]Record, error) {
	now := l.now()
	f, err := os.Open(l.file(now))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, shared.Wrap(err, "open error log")
	}
	defer f.Close()

	cutoff := now.Add(-window)
	var out []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		if rec.Timestamp.After(cutoff) {
			out = append(out, rec)
		}
	}
	if err := sc.Err(); err != nil {
		return out, shared.Wrap(err, "scan error log")
	}
	return out, nil
}

// Prune removes day buckets older than maxAge, judged by the date encoded in
// the filename. It returns the number of files removed.
func (l *Logger) Prune(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return 0, shared.Wrap(err, "read error log dir")
	}
	cutoff := l.now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "errors_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		day, perr := time.Parse("20060102", strings.TrimSuffix(strings.TrimPrefix(name, "errors_"), ".json"))
		if perr != nil {
			continue
		}
		if day.Before(cutoff) {
			if rerr := os.Remove(filepath.Join(l.dir, name)); rerr != nil {
				l.log.Warn("error log prune failed", slog.String("file", name), slog.Any("error", rerr))
				continue
			}
			removed++
		}
	}
	return removed, nil
}
