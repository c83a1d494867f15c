// Package session reads and writes the session file: the dataset to load,
// the facet configurations and the widgets with their last selection.
//
// Sessions are YAML; JSON sessions load as well.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spektr-org/crossfacet/aggregate"
	"github.com/spektr-org/crossfacet/coordinator"
	"github.com/spektr-org/crossfacet/dataset"
	"github.com/spektr-org/crossfacet/facet"
)

// ErrUnknownFacet is returned when a widget names a facet the session lacks.
var ErrUnknownFacet = errors.New("unknown facet")

// ============================================================================
// SESSION FILE
// ============================================================================

// Session is the persisted state of an analysis.
type Session struct {
	Name    string         `yaml:"name,omitempty" json:"name,omitempty"`
	Dataset DatasetRef     `yaml:"dataset" json:"dataset"`
	Facets  []facet.Config `yaml:"facets" json:"facets"`
	Widgets []Widget       `yaml:"widgets,omitempty" json:"widgets,omitempty"`

	// Discovery metadata
	DiscoveredAt string         `yaml:"discovered_at,omitempty" json:"discovered_at,omitempty"`
	Skipped      []SkippedField `yaml:"skipped,omitempty" json:"skipped,omitempty"`
}

// DatasetRef says where the records come from.
type DatasetRef struct {
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
	Format  string `yaml:"format,omitempty" json:"format,omitempty"` // csv, json, xlsx; empty detects from the extension
	Sheet   string `yaml:"sheet,omitempty" json:"sheet,omitempty"`
	Query   string `yaml:"query,omitempty" json:"query,omitempty"` // SQL query, used with a DSN
	IDField string `yaml:"id_field,omitempty" json:"id_field,omitempty"`
}

// Widget is a persisted widget. Facets are referenced by name.
type Widget struct {
	Type      string     `yaml:"type" json:"type"`
	Title     string     `yaml:"title,omitempty" json:"title,omitempty"`
	Primary   string     `yaml:"primary,omitempty" json:"primary,omitempty"`
	Secondary string     `yaml:"secondary,omitempty" json:"secondary,omitempty"`
	Tertiary  string     `yaml:"tertiary,omitempty" json:"tertiary,omitempty"`
	Selection *Selection `yaml:"selection,omitempty" json:"selection,omitempty"`
}

// Selection is a persisted selection in text form: a list of keys, a
// [low, high) range, or a rectangle as [x0, x1, y0, y1].
type Selection struct {
	Keys  []string `yaml:"keys,omitempty" json:"keys,omitempty"`
	Range []string `yaml:"range,omitempty" json:"range,omitempty"`
	Rect  []string `yaml:"rect,omitempty" json:"rect,omitempty"`
}

// SkippedField records why discovery did not propose a facet for a field.
type SkippedField struct {
	Field  string `yaml:"field" json:"field"`
	Reason string `yaml:"reason" json:"reason"`
}

// Load reads a session file.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML or JSON session.
func Parse(data []byte) (*Session, error) {
	s := &Session{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return s, nil
}

// Save writes the session as YAML.
func Save(path string, s *Session) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Facet returns the configuration of the named facet.
func (s *Session) Facet(name string) (facet.Config, bool) {
	for _, f := range s.Facets {
		if f.Name == name {
			return f, true
		}
	}
	return facet.Config{}, false
}

// DatasetOptions returns the dataset options the session asks for.
func (s *Session) DatasetOptions() []dataset.Option {
	if s.Dataset.IDField == "" {
		return nil
	}
	return []dataset.Option{dataset.WithIDField(s.Dataset.IDField)}
}

// ============================================================================
// COMPILATION
// ============================================================================

// CompileFacets compiles every facet. Facets that fail are logged and left
// out; their errors are joined into the returned error.
func (s *Session) CompileFacets(logger *slog.Logger) (map[string]*facet.Facet, error) {
	if logger == nil {
		logger = slog.Default()
	}
	out := make(map[string]*facet.Facet, len(s.Facets))
	var errs []error
	for _, cfg := range s.Facets {
		f, err := facet.Compile(cfg, facet.WithLogger(logger))
		if err != nil {
			logger.Warn("skipping facet", "facet", cfg.Name, "error", err)
			errs = append(errs, err)
			continue
		}
		out[cfg.Name] = f
	}
	return out, errors.Join(errs...)
}

// Resolve looks up the facets of a persisted widget.
func (w Widget) Resolve(facets map[string]*facet.Facet) (coordinator.Kind, coordinator.Facets, error) {
	kind, err := coordinator.ParseKind(w.Type)
	if err != nil {
		return "", coordinator.Facets{}, err
	}

	lookup := func(name string) (*facet.Facet, error) {
		if name == "" {
			return nil, nil
		}
		f, ok := facets[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFacet, name)
		}
		return f, nil
	}

	var fs coordinator.Facets
	if fs.Primary, err = lookup(w.Primary); err != nil {
		return "", fs, err
	}
	if fs.Secondary, err = lookup(w.Secondary); err != nil {
		return "", fs, err
	}
	if fs.Tertiary, err = lookup(w.Tertiary); err != nil {
		return "", fs, err
	}
	return kind, fs, nil
}

// Build adds every persisted widget to c and re-applies its selection.
// Widgets that cannot be built are logged and skipped; the returned slice
// is index-aligned with s.Widgets and holds nil for those.
func (s *Session) Build(c *coordinator.Coordinator, facets map[string]*facet.Facet, logger *slog.Logger) ([]*coordinator.Widget, error) {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]*coordinator.Widget, len(s.Widgets))
	var errs []error
	for i, wc := range s.Widgets {
		kind, fs, err := wc.Resolve(facets)
		if err == nil {
			out[i], err = c.AddWidget(kind, fs)
		}
		if err != nil {
			logger.Warn("skipping widget", "index", i, "type", wc.Type, "error", err)
			errs = append(errs, fmt.Errorf("widget %d: %w", i, err))
			continue
		}
		if wc.Selection == nil {
			continue
		}
		if err := ApplySelection(out[i], wc.Selection); err != nil {
			logger.Warn("dropping stored selection", "index", i, "error", err)
			errs = append(errs, fmt.Errorf("widget %d: %w", i, err))
		}
	}
	return out, errors.Join(errs...)
}

// ============================================================================
// SELECTIONS
// ============================================================================

// ApplySelection parses sel against w's facets and filters w with it. A nil
// sel leaves w untouched.
func ApplySelection(w *coordinator.Widget, sel *Selection) error {
	if sel == nil {
		return nil
	}
	fs := w.Facets()
	parsed, err := sel.Parse(fs.Primary, fs.Secondary)
	if err != nil {
		return err
	}
	return w.Filter(parsed)
}

// Parse turns the text form into a Selection, reading keys and x bounds
// with primary and y bounds with secondary. A nil or blank form selects
// nothing; a form the facets cannot resolve returns ErrSelection.
func (s *Selection) Parse(primary, secondary *facet.Facet) (aggregate.Selection, error) {
	if s == nil || (len(s.Keys) == 0 && len(s.Range) == 0 && len(s.Rect) == 0) {
		return aggregate.Selection{}, nil
	}
	if primary == nil {
		return aggregate.Selection{}, fmt.Errorf("%w: widget has no facet to select on", aggregate.ErrSelection)
	}
	switch {
	case len(s.Rect) > 0:
		if len(s.Rect) != 4 {
			return aggregate.Selection{}, fmt.Errorf("%w: rectangle needs four bounds, got %d", aggregate.ErrSelection, len(s.Rect))
		}
		if secondary == nil {
			return aggregate.Selection{}, fmt.Errorf("%w: rectangle needs a secondary facet", aggregate.ErrSelection)
		}
		return aggregate.SelectRect(
			primary.ParseKey(s.Rect[0]), primary.ParseKey(s.Rect[1]),
			secondary.ParseKey(s.Rect[2]), secondary.ParseKey(s.Rect[3])), nil
	case len(s.Range) > 0:
		if len(s.Range) != 2 {
			return aggregate.Selection{}, fmt.Errorf("%w: range needs two bounds, got %d", aggregate.ErrSelection, len(s.Range))
		}
		return aggregate.SelectRange(primary.ParseKey(s.Range[0]), primary.ParseKey(s.Range[1])), nil
	default:
		keys := make([]facet.Value, len(s.Keys))
		for i, k := range s.Keys {
			keys[i] = primary.ParseKey(k)
		}
		return aggregate.SelectKeys(keys...), nil
	}
}

// SelectionOf is the text form of sel, or nil for an empty selection.
func SelectionOf(sel aggregate.Selection) *Selection {
	switch {
	case sel.Rect != nil:
		r := sel.Rect
		return &Selection{Rect: []string{r.X.Low.Text(), r.X.High.Text(), r.Y.Low.Text(), r.Y.High.Text()}}
	case sel.Range != nil:
		return &Selection{Range: []string{sel.Range.Low.Text(), sel.Range.High.Text()}}
	case len(sel.Keys) > 0:
		keys := make([]string, len(sel.Keys))
		for i, k := range sel.Keys {
			keys[i] = k.Text()
		}
		return &Selection{Keys: keys}
	default:
		return nil
	}
}

// Capture stores the current selection of every widget back into s.
// widgets is index-aligned with s.Widgets, as returned by Build.
func (s *Session) Capture(widgets []*coordinator.Widget) {
	for i, w := range widgets {
		if w == nil || i >= len(s.Widgets) {
			continue
		}
		s.Widgets[i].Selection = SelectionOf(w.Selection())
	}
}
