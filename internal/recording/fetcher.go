package recording

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/click-to-call/pkg/logger"
)

const dayLayout = "2006-01-02"

// LinkResolver resolves a recording id to a download link.
type LinkResolver interface {
	RecordingLink(ctx context.Context, recordingID string) (string, error)
}

// Options configures a Fetcher.
type Options struct {
	// Cooldown is how long to wait before asking for the link, giving the
	// provider time to finish writing the file.
	Cooldown    time.Duration
	RecordsPath string
	StaticRoot  string
	HTTPClient  *http.Client
	Ledger      Ledger
	Logger      *logger.Logger
	Now         func() time.Time
}

// Fetcher downloads call recordings into a per-day directory.
type Fetcher struct {
	resolver    LinkResolver
	ledger      Ledger
	http        *http.Client
	cooldown    time.Duration
	recordsPath string
	staticRoot  string
	log         *logger.Logger
	now         func() time.Time
}

// NewFetcher builds a recording fetcher.
func NewFetcher(resolver LinkResolver, opts Options) *Fetcher {
	f := &Fetcher{
		resolver:    resolver,
		ledger:      opts.Ledger,
		http:        opts.HTTPClient,
		cooldown:    opts.Cooldown,
		recordsPath: opts.RecordsPath,
		staticRoot:  opts.StaticRoot,
		log:         opts.Logger,
		now:         opts.Now,
	}
	if f.http == nil {
		f.http = &http.Client{Timeout: 5 * time.Minute}
	}
	if f.ledger == nil {
		f.ledger = NewMemoryLedger()
	}
	if f.log == nil {
		f.log = logger.NewNop()
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.recordsPath == "" {
		f.recordsPath = os.TempDir()
	}
	return f
}

// Fetch waits for the cooldown, resolves the recording link and downloads the
// audio. It returns the file path relative to the static root, or "" when the
// provider has no link. There is no retry.
func (f *Fetcher) Fetch(ctx context.Context, recordingID string) (string, error) {
	ctx, span := otel.Tracer("clicktocall.recording").Start(ctx, "recording.fetch", trace.WithAttributes(
		attribute.String("recording.id", recordingID),
	))
	defer span.End()

	log := f.log.WithContext(ctx).With(zap.String("recording_id", recordingID))

	if err := f.ledger.MarkPending(ctx, recordingID); err != nil {
		log.Warn("recording ledger: mark pending", zap.Error(err))
	}

	if err := sleep(ctx, f.cooldown); err != nil {
		span.RecordError(err)
		return "", err
	}

	link, err := f.resolver.RecordingLink(ctx, recordingID)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("recording: resolve link: %w", err)
	}
	if link == "" {
		log.Warn("recording link unavailable")
		return "", nil
	}

	file, err := f.download(ctx, link)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	if err := f.ledger.MarkDone(ctx, recordingID); err != nil {
		log.Warn("recording ledger: mark done", zap.Error(err))
	}

	rel := file
	if f.staticRoot != "" {
		if r, err := filepath.Rel(f.staticRoot, file); err == nil {
			rel = r
		}
	}
	log.Info("recording downloaded", zap.String("path", rel))
	return rel, nil
}

// DayDir returns, creating it if needed, the directory for today's recordings.
func (f *Fetcher) DayDir() (string, error) {
	dir := filepath.Join(f.recordsPath, f.now().Format(dayLayout))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("recording: create day dir: %w", err)
	}
	return dir, nil
}

func (f *Fetcher) download(ctx context.Context, link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("recording: parse link: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "", fmt.Errorf("recording: link %q has no file name", link)
	}

	dir, err := f.DayDir()
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("recording: build request: %w", err)
	}
	res, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("recording: download: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("recording: download: unexpected status %d", res.StatusCode)
	}

	target := filepath.Join(dir, name)
	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("recording: create file: %w", err)
	}
	if _, err := io.Copy(out, res.Body); err != nil {
		out.Close()
		_ = os.Remove(target)
		return "", fmt.Errorf("recording: write file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("recording: close file: %w", err)
	}
	return target, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
