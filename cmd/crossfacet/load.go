package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/spektr-org/crossfacet/coordinator"
	"github.com/spektr-org/crossfacet/dataset"
	"github.com/spektr-org/crossfacet/facet"
	"github.com/spektr-org/crossfacet/session"
)

// workspace is a loaded session with its dataset and live widgets.
type workspace struct {
	session *session.Session
	ds      *dataset.Dataset
	facets  map[string]*facet.Facet
	coord   *coordinator.Coordinator
	widgets []*coordinator.Widget
}

// loadWorkspace reads the session and the records concurrently, then
// builds every widget. When the data source depends on the session (a
// dataset path, a SQL query or a workbook sheet), the records are read
// after it.
func loadWorkspace(ctx context.Context) (*workspace, error) {
	if sessionPath == "" {
		return nil, errors.New("--session is required")
	}

	var (
		s       *session.Session
		records []dataset.Record
	)
	if dataPath != "" && dsn == "" && !sheetAware(dataPath, dataFormat) {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			s, err = session.Load(sessionPath)
			return err
		})
		g.Go(func() error {
			var err error
			records, err = readRecords(gctx, session.DatasetRef{Path: dataPath, Format: dataFormat})
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		var err error
		if s, err = session.Load(sessionPath); err != nil {
			return nil, err
		}
		if records, err = readRecords(ctx, dataRef(s.Dataset)); err != nil {
			return nil, err
		}
	}

	ds := dataset.New(s.DatasetOptions()...)
	if err := ds.Load(records); err != nil {
		return nil, err
	}
	slog.Info("loaded dataset", "records", ds.Len(), "fields", len(ds.Fields()))

	facets, err := s.CompileFacets(slog.Default())
	if err != nil {
		slog.Warn("some facets failed to compile", "error", err)
	}

	coord := coordinator.New(ds)
	widgets, err := s.Build(coord, facets, slog.Default())
	if err != nil {
		slog.Warn("some widgets failed to build", "error", err)
	}
	slog.Info("loaded session", "name", s.Name, "facets", len(facets), "widgets", len(coord.Widgets()))

	return &workspace{session: s, ds: ds, facets: facets, coord: coord, widgets: widgets}, nil
}

// sheetAware reports whether the --data file is a workbook, whose sheet
// comes from the session.
func sheetAware(path, format string) bool {
	f := dataset.Format(format)
	if f == dataset.FormatAuto {
		f = dataset.DetectFormat(path)
	}
	return f == dataset.FormatXLSX
}

// dataRef applies the --data and --data-format overrides to the session's
// dataset reference. The session's sheet and query are kept.
func dataRef(ref session.DatasetRef) session.DatasetRef {
	if dataPath != "" {
		ref.Path, ref.Format = dataPath, ""
	}
	if dataFormat != "" {
		ref.Format = dataFormat
	}
	return ref
}

// readRecords reads records from a SQL query when a DSN is set, or from
// the referenced file.
func readRecords(ctx context.Context, ref session.DatasetRef) ([]dataset.Record, error) {
	if dsn != "" {
		if ref.Query == "" {
			return nil, errors.New("--dsn needs dataset.query in the session")
		}
		db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect: %w", err)
		}
		defer db.Close()
		return dataset.QuerySQL(ctx, db, ref.Query)
	}

	if ref.Path == "" {
		return nil, errors.New("no dataset: pass --data or set dataset.path in the session")
	}
	f := dataset.Format(ref.Format)
	if f == dataset.FormatAuto {
		f = dataset.DetectFormat(ref.Path)
	}
	if f == dataset.FormatXLSX && ref.Sheet != "" {
		file, err := os.Open(ref.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open dataset: %w", err)
		}
		defer file.Close()
		return dataset.ParseXLSX(file, ref.Sheet)
	}
	return dataset.ReadFile(ctx, ref.Path, f)
}
