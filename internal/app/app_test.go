package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/inkfeed/inkfeed/internal/config"
	"github.com/inkfeed/inkfeed/internal/domain"
	"github.com/inkfeed/inkfeed/internal/ports"
	"github.com/inkfeed/inkfeed/internal/source"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSkipsUnknownFormats(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		OutputFormats: []string{"html", "pdf", "markdown", "gemtext", "epub", "sleepscreen"},
	}
	a := New(cfg, discardLogger())

	if len(a.renderers) != 5 {
		t.Fatalf("renderers = %d, want the unknown format skipped", len(a.renderers))
	}
	formats := map[string]bool{}
	for _, r := range a.renderers {
		formats[r.Format()] = true
	}
	for _, want := range []string{"html", "markdown", "gemtext", "epub", "sleepscreen"} {
		if !formats[want] {
			t.Errorf("format %s missing", want)
		}
	}
}

type fakeRenderer struct {
	format string
	err    error
	calls  int
}

func (f *fakeRenderer) Format() string { return f.format }
func (f *fakeRenderer) Render(context.Context, *domain.Edition, string) error {
	f.calls++
	return f.err
}

func TestRenderAllIsolatesFailures(t *testing.T) {
	t.Parallel()

	good := &fakeRenderer{format: "good"}
	bad := &fakeRenderer{format: "bad", err: errors.New("engine down")}
	also := &fakeRenderer{format: "also"}

	app := &App{
		cfg:       config.Config{Workers: config.WorkerConfig{Renders: 2}},
		logger:    discardLogger(),
		renderers: []ports.Renderer{good, bad, also},
	}
	ed := &domain.Edition{Timestamp: time.Now().UTC()}

	results := app.renderAll(context.Background(), ed, t.TempDir())

	if len(results) != 3 {
		t.Fatalf("results = %d", len(results))
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Error("healthy renderers should succeed despite the failing one")
	}
	if results[1].Err == nil {
		t.Error("failure should be recorded in its result")
	}
	if good.calls != 1 || bad.calls != 1 || also.calls != 1 {
		t.Errorf("calls = %d, %d, %d; want every renderer attempted once",
			good.calls, bad.calls, also.calls)
	}
}

func TestRunRendersEmptyEdition(t *testing.T) {
	t.Parallel()

	html := &fakeRenderer{format: "html"}
	epub := &fakeRenderer{format: "epub"}
	app := &App{
		cfg:       config.Config{OutputDir: t.TempDir()},
		logger:    discardLogger(),
		registry:  source.NewRegistry(),
		renderers: []ports.Renderer{html, epub},
	}

	err := app.Run(context.Background())
	if err == nil {
		t.Fatal("Run should report failure when no source produced items")
	}
	if html.calls != 1 || epub.calls != 1 {
		t.Errorf("calls = %d, %d; want every format rendered even for an empty edition",
			html.calls, epub.calls)
	}
}

func TestRunFailsWithoutRenderers(t *testing.T) {
	t.Parallel()

	app := &App{
		cfg:      config.Config{OutputDir: t.TempDir()},
		logger:   discardLogger(),
		registry: source.NewRegistry(),
	}
	if err := app.Run(context.Background()); err == nil {
		t.Fatal("Run should fail when no output format is wired")
	}
}

func TestRunFailsWhenEveryRendererFails(t *testing.T) {
	t.Parallel()

	bad := &fakeRenderer{format: "html", err: errors.New("disk full")}
	app := &App{
		cfg:       config.Config{OutputDir: t.TempDir()},
		logger:    discardLogger(),
		registry:  source.NewRegistry(),
		renderers: []ports.Renderer{bad},
	}
	if err := app.Run(context.Background()); err == nil {
		t.Fatal("Run should fail when every renderer fails")
	}
}
