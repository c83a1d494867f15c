package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/spektr-org/crossfacet/coordinator"
	"github.com/spektr-org/crossfacet/dataset"
	"github.com/spektr-org/crossfacet/session"
)

var (
	discoverCmd = &cobra.Command{
		Use:   "discover",
		Short: "Propose a session from a dataset",
		Long: `Inspects the records of --data (or the --query result with --dsn) and
writes a session with one facet per useful field.`,
		Example: `  crossfacet discover --data sales.csv --format yaml --out session.yaml
  crossfacet discover --dsn "$DATABASE_URL" --query "select * from parcels"`,
		RunE: runDiscover,
	}
	aggregateCmd = &cobra.Command{
		Use:   "aggregate",
		Short: "Print every widget's aggregation under the session's selections",
		Example: `  crossfacet aggregate --session session.yaml
  crossfacet aggregate -s session.yaml --filter 0=0:50 --filter 1=north,south --format csv`,
		RunE: runAggregate,
	}
	heatmapCmd = &cobra.Command{
		Use:     "heatmap",
		Short:   "Print the id → color map of a heatmap widget",
		Example: `  crossfacet heatmap -s session.yaml --facet income --format csv`,
		RunE:    runHeatmap,
	}
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Re-aggregate whenever the session file changes",
		RunE:  runWatch,
	}

	discoverName    string
	discoverQuery   string
	discoverIDField string
	discoverSample  int
	discoverRecover []string

	aggregateWidget  int
	aggregateFilters []string

	heatmapWidget int
	heatmapFacet  string

	watchMetricsAddr string
	watchDebounce    time.Duration
)

func init() {
	discoverCmd.Flags().StringVar(&discoverName, "name", "", "Session name")
	discoverCmd.Flags().StringVar(&discoverQuery, "query", "", "SQL query to run with --dsn")
	discoverCmd.Flags().StringVar(&discoverIDField, "id-field", "", "Record identifier field (default gid)")
	discoverCmd.Flags().IntVar(&discoverSample, "sample", 0, "Max records to inspect (0 = all)")
	discoverCmd.Flags().StringSliceVar(&discoverRecover, "recover", nil, "Force-include fields discovery would skip")

	aggregateCmd.Flags().IntVarP(&aggregateWidget, "widget", "w", -1, "Only print this widget (index in the session)")
	aggregateCmd.Flags().StringArrayVar(&aggregateFilters, "filter", nil,
		"Select on a widget: IDX=a,b (keys), IDX=lo:hi (range), IDX=x0:x1/y0:y1 (rectangle)")

	heatmapCmd.Flags().IntVarP(&heatmapWidget, "widget", "w", -1, "Heatmap widget index (default: first heatmap)")
	heatmapCmd.Flags().StringVar(&heatmapFacet, "facet", "", "Color by this facet instead of the widget's")
	heatmapCmd.Flags().StringArrayVar(&aggregateFilters, "filter", nil, "Select on a widget before coloring (see aggregate)")

	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 200*time.Millisecond, "Wait this long after a change before reloading")
}

// ============================================================================
// DISCOVER
// ============================================================================

func runDiscover(cmd *cobra.Command, args []string) error {
	if dataPath == "" && dsn == "" {
		return errors.New("--data or --dsn is required")
	}
	ref := session.DatasetRef{Path: dataPath, Format: dataFormat, Query: discoverQuery, IDField: discoverIDField}

	records, err := readRecords(cmd.Context(), ref)
	if err != nil {
		return err
	}
	var opts []dataset.Option
	if discoverIDField != "" {
		opts = append(opts, dataset.WithIDField(discoverIDField))
	}
	ds := dataset.New(opts...)
	if err := ds.Load(records); err != nil {
		return err
	}

	s, err := session.Discover(ds, session.DiscoverOptions{
		SampleSize:    discoverSample,
		RecoverFields: discoverRecover,
		Name:          discoverName,
		Dataset:       ref,
	})
	if err != nil {
		return err
	}
	slog.Info("discovered session", "name", s.Name, "facets", len(s.Facets), "skipped", len(s.Skipped))

	w, err := openOutput()
	if err != nil {
		return err
	}
	defer w.Close()

	switch format {
	case "json", "pretty":
		return writeJSON(w, s, format)
	default:
		return writeYAML(w, s)
	}
}

// ============================================================================
// AGGREGATE
// ============================================================================

func runAggregate(cmd *cobra.Command, args []string) error {
	ws, err := loadWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	if err := applyFilters(ws, aggregateFilters); err != nil {
		return err
	}

	w, err := openOutput()
	if err != nil {
		return err
	}
	defer w.Close()
	return writeAggregates(w, ws, aggregateWidget)
}

// applyFilters applies --filter flags on top of the stored selections.
func applyFilters(ws *workspace, filters []string) error {
	for _, f := range filters {
		idx, sel, err := parseFilter(f)
		if err != nil {
			return err
		}
		wdg, err := ws.widget(idx)
		if err != nil {
			return err
		}
		if err := session.ApplySelection(wdg, sel); err != nil {
			return fmt.Errorf("filter %q: %w", f, err)
		}
	}
	return nil
}

// parseFilter reads IDX=SPEC, where SPEC is a comma-separated key list,
// a lo:hi range or an x0:x1/y0:y1 rectangle.
func parseFilter(s string) (int, *session.Selection, error) {
	idxText, spec, ok := strings.Cut(s, "=")
	if !ok {
		return 0, nil, fmt.Errorf("filter %q: want IDX=SELECTION", s)
	}
	idx, err := strconv.Atoi(strings.TrimSpace(idxText))
	if err != nil {
		return 0, nil, fmt.Errorf("filter %q: bad widget index: %w", s, err)
	}

	if x, y, ok := strings.Cut(spec, "/"); ok {
		x0, x1, okx := strings.Cut(x, ":")
		y0, y1, oky := strings.Cut(y, ":")
		if !okx || !oky {
			return 0, nil, fmt.Errorf("filter %q: want x0:x1/y0:y1", s)
		}
		return idx, &session.Selection{Rect: []string{x0, x1, y0, y1}}, nil
	}
	if lo, hi, ok := strings.Cut(spec, ":"); ok {
		return idx, &session.Selection{Range: []string{lo, hi}}, nil
	}
	var keys []string
	for _, k := range strings.Split(spec, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return idx, &session.Selection{Keys: keys}, nil
}

func (ws *workspace) widget(idx int) (*coordinator.Widget, error) {
	if idx < 0 || idx >= len(ws.widgets) || ws.widgets[idx] == nil {
		return nil, fmt.Errorf("%w: index %d", coordinator.ErrUnknownWidget, idx)
	}
	return ws.widgets[idx], nil
}

// ============================================================================
// HEATMAP
// ============================================================================

func runHeatmap(cmd *cobra.Command, args []string) error {
	ws, err := loadWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	if err := applyFilters(ws, aggregateFilters); err != nil {
		return err
	}

	var wdg *coordinator.Widget
	switch {
	case heatmapWidget >= 0:
		if wdg, err = ws.widget(heatmapWidget); err != nil {
			return err
		}
	default:
		for _, candidate := range ws.widgets {
			if candidate != nil && candidate.Kind() == coordinator.Heatmap {
				wdg = candidate
				break
			}
		}
	}

	if heatmapFacet != "" {
		f, ok := ws.facets[heatmapFacet]
		if !ok {
			return fmt.Errorf("%w: %q", session.ErrUnknownFacet, heatmapFacet)
		}
		if wdg == nil {
			if wdg, err = ws.coord.AddWidget(coordinator.Heatmap, coordinator.Facets{Tertiary: f}); err != nil {
				return err
			}
			defer wdg.Close()
		} else if err := wdg.Rebuild(coordinator.Facets{Tertiary: f}); err != nil {
			return err
		}
	}
	if wdg == nil {
		if wdg, err = ws.coord.AddWidget(coordinator.Heatmap, coordinator.Facets{}); err != nil {
			return err
		}
		defer wdg.Close()
	}
	if wdg.Kind() != coordinator.Heatmap {
		return fmt.Errorf("widget is a %s, not a heatmap", wdg.Kind())
	}

	w, err := openOutput()
	if err != nil {
		return err
	}
	defer w.Close()
	return writeHeatmap(w, colorHeatmap(wdg.Heatmap()))
}

// ============================================================================
// WATCH
// ============================================================================

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws, err := loadWorkspace(ctx)
	if err != nil {
		return err
	}
	if err := applyFilters(ws, aggregateFilters); err != nil {
		return err
	}

	if watchMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: watchMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
		slog.Info("serving metrics", "addr", watchMetricsAddr)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors replace files on save, so watch the directory.
	target, err := filepath.Abs(sessionPath)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", sessionPath, err)
	}

	if err := writeAggregates(os.Stdout, ws, -1); err != nil {
		return err
	}

	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if name, _ := filepath.Abs(event.Name); name != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer = time.After(watchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)
		case <-timer:
			timer = nil
			if err := reloadSession(ctx, ws); err != nil {
				slog.Error("reload failed, keeping previous session", "error", err)
				continue
			}
			if err := writeAggregates(os.Stdout, ws, -1); err != nil {
				return err
			}
		}
	}
}

// reloadSession recompiles the facets of a changed session and rebuilds
// the live widgets in place, keeping their current selections. Widgets
// added to the session are built and widgets removed from it are closed.
// Only a session that cannot be read at all is an error.
func reloadSession(ctx context.Context, ws *workspace) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := session.Load(sessionPath)
	if err != nil {
		return err
	}
	facets, err := s.CompileFacets(slog.Default())
	if err != nil {
		slog.Warn("some facets failed to compile", "error", err)
	}

	widgets := make([]*coordinator.Widget, len(s.Widgets))
	var errs []error
	for i, wc := range s.Widgets {
		kind, fs, err := wc.Resolve(facets)
		if err != nil {
			errs = append(errs, fmt.Errorf("widget %d: %w", i, err))
			continue
		}
		if i < len(ws.widgets) && ws.widgets[i] != nil && ws.widgets[i].Kind() == kind {
			if err := ws.widgets[i].Rebuild(fs); err != nil {
				errs = append(errs, fmt.Errorf("widget %d: %w", i, err))
			}
			widgets[i] = ws.widgets[i]
			continue
		}
		if widgets[i], err = ws.coord.AddWidget(kind, fs); err != nil {
			errs = append(errs, fmt.Errorf("widget %d: %w", i, err))
			continue
		}
		if err := session.ApplySelection(widgets[i], wc.Selection); err != nil {
			errs = append(errs, fmt.Errorf("widget %d: %w", i, err))
		}
	}
	for i, old := range ws.widgets {
		if old != nil && (i >= len(widgets) || widgets[i] != old) {
			if err := old.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	ws.session, ws.facets, ws.widgets = s, facets, widgets
	if err := errors.Join(errs...); err != nil {
		slog.Warn("some widgets failed to rebuild", "error", err)
	}
	slog.Info("reloaded session", "facets", len(facets), "widgets", len(ws.coord.Widgets()))
	return nil
}
