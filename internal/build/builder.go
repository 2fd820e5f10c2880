package build

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sourcegraph/conc/pool"
	"github.com/username/school-status/internal/calendar"
	"github.com/username/school-status/internal/ics"
	"github.com/username/school-status/internal/status"
	"github.com/username/school-status/internal/store"
	"go.uber.org/zap"
)

// Target names a build task
type Target string

const (
	TargetToday     Target = "today"
	TargetTomorrow  Target = "tomorrow"
	TargetThisWeek  Target = "thisweek"
	TargetNextWeek  Target = "nextweek"
	TargetCalendars Target = "calendars"
	TargetAll       Target = "all"
)

// Targets lists every build target
func Targets() []Target {
	return []Target{TargetToday, TargetTomorrow, TargetThisWeek, TargetNextWeek, TargetCalendars, TargetAll}
}

// ParseTarget converts a string into a build target
func ParseTarget(s string) (Target, error) {
	for _, t := range Targets() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown build target '%s'", s)
}

// Options locates the generated site
type Options struct {
	OutputRoot string
	StaticDir  string
}

// Builder writes the resolved schedules and calendar exports under the output root
type Builder struct {
	aggregator *status.Aggregator
	exporter   *ics.Exporter
	accessor   *store.Accessor
	opts       Options
	logger     *zap.Logger
}

// NewBuilder creates a new Builder
func NewBuilder(aggregator *status.Aggregator, exporter *ics.Exporter, accessor *store.Accessor, opts Options, logger *zap.Logger) *Builder {
	return &Builder{
		aggregator: aggregator,
		exporter:   exporter,
		accessor:   accessor,
		opts:       opts,
		logger:     logger,
	}
}

// Build runs target. The all target cleans the output root first, then runs
// every other task concurrently and reports every failure.
func (b *Builder) Build(ctx context.Context, target Target) error {
	b.logger.Info("Build started",
		zap.String("target", string(target)),
		zap.String("output_root", b.opts.OutputRoot))

	if target == TargetAll {
		if err := b.Clean(); err != nil {
			return err
		}
	}

	tasks := []func(context.Context) error{
		func(context.Context) error { return b.Static() },
	}
	switch target {
	case TargetToday:
		tasks = append(tasks, b.Today)
	case TargetTomorrow:
		tasks = append(tasks, b.Tomorrow)
	case TargetThisWeek:
		tasks = append(tasks, b.ThisWeek)
	case TargetNextWeek:
		tasks = append(tasks, b.NextWeek)
	case TargetCalendars:
		tasks = append(tasks, b.Calendars)
	case TargetAll:
		tasks = append(tasks, b.Today, b.Tomorrow, b.ThisWeek, b.NextWeek, b.Calendars)
	default:
		return fmt.Errorf("unknown build target '%s'", target)
	}

	p := pool.New().WithErrors()
	for _, task := range tasks {
		p.Go(func() error {
			return task(ctx)
		})
	}
	if err := p.Wait(); err != nil {
		b.logger.Error("Build failed", zap.String("target", string(target)), zap.Error(err))
		return fmt.Errorf("failed to build %s: %w", target, err)
	}

	b.logger.Info("Build completed", zap.String("target", string(target)))
	return nil
}

// Clean removes the output root
func (b *Builder) Clean() error {
	root := filepath.Clean(b.opts.OutputRoot)
	if root == "." || root == string(filepath.Separator) || b.opts.OutputRoot == "" {
		return fmt.Errorf("refusing to clean output root '%s'", b.opts.OutputRoot)
	}

	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("failed to clean %s: %w", root, err)
	}
	b.logger.Debug("Output cleaned", zap.String("output_root", root))
	return nil
}

// Static copies the static site directory into the output root.
// A missing static directory is skipped.
func (b *Builder) Static() error {
	if b.opts.StaticDir == "" {
		return nil
	}

	info, err := os.Stat(b.opts.StaticDir)
	if os.IsNotExist(err) {
		b.logger.Warn("Static directory not found, skipping", zap.String("static_dir", b.opts.StaticDir))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat static directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("static path %s is not a directory", b.opts.StaticDir)
	}

	copied := 0
	err = filepath.WalkDir(b.opts.StaticDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(b.opts.StaticDir, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(b.opts.OutputRoot, rel)
		if d.IsDir() {
			return os.MkdirAll(dest, 0o755)
		}
		copied++
		return copyFile(path, dest)
	})
	if err != nil {
		return fmt.Errorf("failed to copy static files: %w", err)
	}

	b.logger.Debug("Static files copied", zap.Int("files", copied))
	return nil
}

// Today writes api/today/index.json
func (b *Builder) Today(ctx context.Context) error {
	day, err := b.aggregator.Today(ctx)
	if err != nil {
		return err
	}
	return b.writeData(day, "api", "today")
}

// Tomorrow writes api/tomorrow/index.json
func (b *Builder) Tomorrow(ctx context.Context) error {
	day, err := b.aggregator.Tomorrow(ctx)
	if err != nil {
		return err
	}
	return b.writeData(day, "api", "tomorrow")
}

// ThisWeek writes api/thisweek/index.json
func (b *Builder) ThisWeek(ctx context.Context) error {
	days, err := b.aggregator.ThisWeek(ctx)
	if err != nil {
		return err
	}
	return b.writeData(days, "api", "thisweek")
}

// NextWeek writes api/nextweek/index.json
func (b *Builder) NextWeek(ctx context.Context) error {
	days, err := b.aggregator.NextWeek(ctx)
	if err != nil {
		return err
	}
	return b.writeData(days, "api", "nextweek")
}

// Calendars writes api/calendar/<type>/<year>.ics for every stored year
func (b *Builder) Calendars(ctx context.Context) error {
	p := pool.New().WithErrors()
	for _, ct := range calendar.CalendarTypes() {
		years, err := b.accessor.ListYears(ctx, ct)
		if err != nil {
			p.Go(func() error { return err })
			continue
		}
		for _, year := range years {
			p.Go(func() error {
				return b.writeCalendar(ctx, ct, year)
			})
		}
	}
	return p.Wait()
}

func (b *Builder) writeCalendar(ctx context.Context, ct calendar.CalendarType, year int) error {
	file := filepath.Join(b.opts.OutputRoot, "api", "calendar", string(ct), strconv.Itoa(year)+".ics")
	return writeAtomic(file, func(w io.Writer) error {
		return b.exporter.Write(ctx, w, ct, year)
	})
}

// writeData writes data as indented JSON to <output root>/<dir...>/index.json
func (b *Builder) writeData(data any, dir ...string) error {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Join(dir...), err)
	}

	file := filepath.Join(append(append([]string{b.opts.OutputRoot}, dir...), "index.json")...)
	if err := writeAtomic(file, func(w io.Writer) error {
		_, err := w.Write(out)
		return err
	}); err != nil {
		return err
	}

	b.logger.Info("Data written", zap.String("file", file))
	return nil
}

// writeAtomic writes through a temp file in the same directory so readers
// never see a partial file
func writeAtomic(file string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(file), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(file), "."+filepath.Base(file)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", file, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", file, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", file, err)
	}
	if err := os.Rename(tmp.Name(), file); err != nil {
		return fmt.Errorf("failed to write %s: %w", file, err)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	return writeAtomic(dest, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}
