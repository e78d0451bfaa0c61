package batch

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/electronjoe/photostamp/internal/codec"
	"github.com/electronjoe/photostamp/internal/photo"
	"github.com/electronjoe/photostamp/internal/testutil"
	"github.com/electronjoe/photostamp/internal/watermark"
)

func newProcessor() *Processor {
	return NewProcessor(watermark.NewRenderer(watermark.NewMemoryCatalog(), nil), nil)
}

func writePhoto(t *testing.T, dir, name, date string) string {
	t.Helper()
	block := testutil.ExifBlock(testutil.Exif{DateTimeOriginal: date + " 12:00:00"})
	return testutil.WriteImage(t, dir, name, testutil.Gradient(80, 40), block)
}

type recorder struct {
	events []Event
}

func (r *recorder) sink(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) count(kind EventKind) int {
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestRun_CountsOutcomes(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "watermarked")
	broken := testutil.WriteBroken(t, dir, "broken.jpg")
	items := []photo.Item{
		{Path: writePhoto(t, dir, "a.jpg", "2025:03:07"), Date: "2025-03-07"},
		{Path: writePhoto(t, dir, "b.png", "2024:02:29"), Date: "2024-02-29"},
		{Path: writePhoto(t, dir, "c.jpg", "2020:01:01"), Date: ""},
		{Path: broken, Date: "2020-01-01"},
		{Path: writePhoto(t, dir, "d.jpg", "1999:01:31"), Date: "1999-01-31"},
	}

	var rec recorder
	res, err := newProcessor().Run(context.Background(), items, watermark.DefaultStyle(), Options{Mode: ModeSeparate, OutputDir: out}, rec.sink)
	if err != nil {
		t.Fatal(err)
	}

	want := Result{Success: 3, Skipped: 1, Failed: 1}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}
	if n := rec.count(EventProgress); n != 5 {
		t.Errorf("progress events = %d, want 5", n)
	}
	if n := rec.count(EventItemFailed); n != 1 {
		t.Errorf("failure events = %d, want 1", n)
	}
	for _, ev := range rec.events {
		if ev.Kind == EventItemFailed && (ev.Path != broken || ev.Err == nil) {
			t.Errorf("failure event = %+v", ev)
		}
	}
	last := rec.events[len(rec.events)-1]
	if last.Kind != EventDone || last.Result != want {
		t.Errorf("last event = %+v, want done with %+v", last, want)
	}

	for _, name := range []string{"a.jpg", "b.png", "d.jpg"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("output %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "c.jpg")); !os.IsNotExist(err) {
		t.Errorf("skipped item was written: %v", err)
	}
}

func TestRun_CancelStopsBeforeNextItem(t *testing.T) {
	dir := t.TempDir()
	var items []photo.Item
	for _, name := range []string{"1.jpg", "2.jpg", "3.jpg", "4.jpg", "5.jpg"} {
		items = append(items, photo.Item{Path: writePhoto(t, dir, name, "2025:03:07"), Date: "2025-03-07"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var rec recorder
	res, err := newProcessor().Run(ctx, items, watermark.DefaultStyle(), Options{Mode: ModeSeparate, OutputDir: filepath.Join(dir, "out")}, func(ev Event) {
		rec.sink(ev)
		if ev.Kind == EventProgress && ev.Done == 2 {
			cancel()
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Cancelled {
		t.Error("result not marked cancelled")
	}
	if sum := res.Success + res.Skipped + res.Failed; sum > 2 {
		t.Errorf("counted %d items after cancelling at 2", sum)
	}
	if n := rec.count(EventProgress); n != 2 {
		t.Errorf("progress events = %d, want 2", n)
	}
}

func TestRun_OverwriteKeepsMetadataAndRotates(t *testing.T) {
	dir := t.TempDir()
	path := writePhoto(t, dir, "a.jpg", "2025:03:07")
	items := []photo.Item{{Path: path, Date: "2025-03-07", Rotation: 90}}

	res, err := newProcessor().Run(context.Background(), items, watermark.DefaultStyle(), Options{Mode: ModeOverwrite}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success != 1 {
		t.Fatalf("result = %+v", res)
	}

	img, _, _, err := codec.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds().Size(); got != image.Pt(40, 80) {
		t.Errorf("rotated size = %v, want 40x80", got)
	}
	if got := photo.ExtractDate(path); got != "2025-03-07" {
		t.Errorf("date after overwrite = %q", got)
	}
}

func TestRun_SeparateLeavesOriginal(t *testing.T) {
	dir := t.TempDir()
	path := writePhoto(t, dir, "a.png", "2025:03:07")
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "nested", "out")
	items := []photo.Item{{Path: path, Date: "2025-03-07"}}
	if _, err := newProcessor().Run(context.Background(), items, watermark.DefaultStyle(), Options{Mode: ModeSeparate, OutputDir: out}, nil); err != nil {
		t.Fatal(err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("original modified in separate mode")
	}
	written, err := os.ReadFile(filepath.Join(out, "a.png"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(before, written) {
		t.Error("output identical to original, no stamp drawn")
	}
}

func TestRun_OutputDirFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := newProcessor().Run(context.Background(), nil, watermark.DefaultStyle(), Options{Mode: ModeSeparate, OutputDir: filepath.Join(blocker, "out")}, nil)
	if err == nil {
		t.Error("expected an error creating the output directory")
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(" Overwrite "); err != nil || m != ModeOverwrite {
		t.Errorf("ParseMode = %q, %v", m, err)
	}
	if _, err := ParseMode("copy"); err == nil {
		t.Error("ParseMode accepted an unknown mode")
	}
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

// blockingRunner returns a Runner whose runs block until ctx is cancelled.
func blockingRunner(started chan<- []photo.Item) *Runner {
	return &Runner{run: func(ctx context.Context, items []photo.Item, _ watermark.Style, _ Options, sink func(Event)) (Result, error) {
		started <- items
		<-ctx.Done()
		res := Result{Cancelled: true}
		sink(Event{Kind: EventDone, Result: res})
		return res, nil
	}}
}

func TestRunner_BusyCancelWait(t *testing.T) {
	started := make(chan []photo.Item, 1)
	r := blockingRunner(started)

	items := []photo.Item{{Path: "a.jpg", Date: "2025-03-07"}}
	job, err := r.Start(context.Background(), items, watermark.DefaultStyle(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	got := <-started
	items[0].Date = "changed"
	if got[0].Date != "2025-03-07" {
		t.Error("runner did not snapshot items")
	}

	if _, err := r.Start(context.Background(), items, watermark.DefaultStyle(), Options{}); !errors.Is(err, ErrBusy) {
		t.Errorf("second Start err = %v, want ErrBusy", err)
	}
	if _, err := job.Wait(20 * time.Millisecond); !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("Wait err = %v, want ErrWaitTimeout", err)
	}

	job.Cancel()
	res, err := job.Wait(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Cancelled {
		t.Errorf("result = %+v, want cancelled", res)
	}

	var kinds []EventKind
	for ev := range job.Events() {
		kinds = append(kinds, ev.Kind)
	}
	if len(kinds) != 1 || kinds[0] != EventDone {
		t.Errorf("events = %v, want [done]", kinds)
	}

	eventually(t, time.Second, func() bool { return !r.Busy() })
	job2, err := r.Start(context.Background(), nil, watermark.DefaultStyle(), Options{})
	if err != nil {
		t.Fatalf("Start after completion: %v", err)
	}
	job2.Cancel()
	job2.Wait(time.Second)
}

func TestRunner_RealProcessor(t *testing.T) {
	dir := t.TempDir()
	items := []photo.Item{
		{Path: writePhoto(t, dir, "a.jpg", "2025:03:07"), Date: "2025-03-07"},
		{Path: filepath.Join(dir, "missing.jpg"), Date: "2025-03-07"},
	}
	r := NewRunner(newProcessor())
	job, err := r.Start(context.Background(), items, watermark.DefaultStyle(), Options{Mode: ModeSeparate, OutputDir: filepath.Join(dir, "out")})
	if err != nil {
		t.Fatal(err)
	}
	res, err := job.Wait(10 * time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if res != (Result{Success: 1, Failed: 1}) {
		t.Errorf("result = %+v", res)
	}
	n := 0
	for range job.Events() {
		n++
	}
	// Two progress, one failure, one done.
	if n != 4 {
		t.Errorf("events = %d, want 4", n)
	}
}
