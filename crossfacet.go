// Package crossfacet links facet aggregations over one shared dataset.
//
// Usage:
//
//	import (
//	    "github.com/spektr-org/crossfacet/aggregate"
//	    "github.com/spektr-org/crossfacet/coordinator"
//	    "github.com/spektr-org/crossfacet/facet"
//	)
//
//	age := facet.MustCompile(facet.Config{Name: "age", MinvalText: "0", MaxvalText: "100", Bins: 10})
//	c := coordinator.New(ds)
//	bars, _ := c.AddWidget(coordinator.Bar, coordinator.Facets{Primary: age})
//	_ = bars.Filter(aggregate.SelectRange(facet.Number(20), facet.Number(40)))
//
// A facet turns a record into a comparable value and a group key. Every
// widget owns one filter dimension; a widget's groups see the filters of
// all other widgets but not its own. The session package persists facets,
// widgets and selections, and cmd/crossfacet drives it all from a shell.
package crossfacet
