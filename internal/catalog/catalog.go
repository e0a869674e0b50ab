// Package catalog bundles the curated longitudinal and survival teaching
// datasets the service publishes. Each dataset ships as an embedded CSV plus
// a manifest entry declaring how its person-period, person-level, survival,
// and life-table views derive from the raw table. Bindings are declared
// statically and prepared at load time, so a catalog that loads is a catalog
// whose reshape configuration is well formed.
package catalog

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"sync"

	"panelcore/pkg/frame"
	"panelcore/pkg/longitudinal"
)

//go:embed data/manifest.yaml
var manifestRaw []byte

//go:embed data/*.csv
var dataFS embed.FS

// View names accepted by Dataset.View.
const (
	ViewRaw          = "raw"
	ViewPersonPeriod = "person-period"
	ViewPersonLevel  = "person-level"
	ViewSurvival     = "survival"
	ViewLifeTable    = "life-table"
)

// ErrUnknownView marks a view name a dataset does not provide.
var ErrUnknownView = errors.New("catalog: unknown view")

// Info is the wire description of a dataset.
type Info struct {
	Key         string             `json:"key"`
	Title       string             `json:"title"`
	Source      string             `json:"source"`
	Description string             `json:"description,omitempty"`
	Layout      string             `json:"layout"`
	Subject     string             `json:"subject"`
	Rows        int                `json:"rows"`
	Columns     []frame.ColumnInfo `json:"columns"`
	Views       []string           `json:"views"`
}

// Dataset is one loaded catalog entry: its manifest metadata, its parsed
// table, and any column groups prepared from a wide binding.
type Dataset struct {
	entry  Entry
	table  frame.Table
	groups []longitudinal.Group
}

// Key returns the dataset key.
func (d *Dataset) Key() string { return d.entry.Key }

// Title returns the dataset title.
func (d *Dataset) Title() string { return d.entry.Title }

// Entry returns the manifest entry the dataset was built from.
func (d *Dataset) Entry() Entry { return d.entry }

// Table returns the raw table.
func (d *Dataset) Table() frame.Table { return d.table }

// Views lists the view names the dataset supports.
func (d *Dataset) Views() []string { return d.entry.Views() }

// Info returns the wire description of the dataset.
func (d *Dataset) Info() Info {
	return Info{
		Key:         d.entry.Key,
		Title:       d.entry.Title,
		Source:      d.entry.Source,
		Description: d.entry.Description,
		Layout:      d.entry.Layout,
		Subject:     d.entry.Subject,
		Rows:        d.table.NumRows(),
		Columns:     d.table.Schema(),
		Views:       d.entry.Views(),
	}
}

// View materializes the named view. The raw view and the view matching the
// storage layout return the table as shipped; the rest run the declared
// bindings through the reshaper.
func (d *Dataset) View(name string) (frame.Table, error) {
	switch name {
	case ViewRaw:
		return d.table, nil
	case ViewPersonPeriod:
		if d.entry.Layout == LayoutPersonPeriod {
			return d.table, nil
		}
		if d.entry.Wide != nil {
			return longitudinal.ToPersonPeriod(d.table, longitudinal.PersonPeriodOptions{
				Subject:  d.entry.Subject,
				Occasion: d.entry.Wide.Occasion,
				Groups:   d.groups,
			})
		}
	case ViewPersonLevel:
		if d.entry.Layout == LayoutPersonLevel {
			return d.table, nil
		}
		if d.entry.Long != nil {
			return longitudinal.ToPersonLevel(d.table, longitudinal.PersonLevelOptions{
				Subject:    d.entry.Subject,
				Occasion:   d.entry.Long.Occasion,
				Values:     d.entry.Long.Values,
				NameFormat: d.entry.Long.NameFormat,
			})
		}
	case ViewSurvival:
		if d.entry.Survival != nil {
			return longitudinal.ExpandSurvival(d.table, d.survivalOptions())
		}
	case ViewLifeTable:
		if d.entry.Survival != nil {
			long, err := longitudinal.ExpandSurvival(d.table, d.survivalOptions())
			if err != nil {
				return frame.Table{}, err
			}
			lt, err := longitudinal.BuildLifeTable(long, longitudinal.LifeTableOptions{Subject: d.entry.Subject})
			if err != nil {
				return frame.Table{}, err
			}
			return lt.Table()
		}
		if d.entry.Event != nil {
			lt, err := longitudinal.BuildLifeTable(d.table, longitudinal.LifeTableOptions{
				Subject: d.entry.Subject,
				Period:  d.entry.Event.Period,
				Event:   d.entry.Event.Event,
			})
			if err != nil {
				return frame.Table{}, err
			}
			return lt.Table()
		}
	}
	return frame.Table{}, fmt.Errorf("catalog: dataset %s has no view %q: %w", d.entry.Key, name, ErrUnknownView)
}

func (d *Dataset) survivalOptions() longitudinal.SurvivalOptions {
	opts := longitudinal.SurvivalOptions{
		Subject:  d.entry.Subject,
		Duration: d.entry.Survival.Duration,
		Censor:   d.entry.Survival.Censor,
		Start:    1,
	}
	if d.entry.Survival.Start != nil {
		opts.Start = *d.entry.Survival.Start
	}
	return opts
}

// Catalog holds the loaded datasets, preserving manifest order for listings.
type Catalog struct {
	order    []string
	datasets map[string]*Dataset
}

// Load parses the embedded manifest and data files and prepares every
// declared binding.
func Load() (*Catalog, error) {
	manifest, err := ParseManifest(manifestRaw)
	if err != nil {
		return nil, err
	}
	c := &Catalog{datasets: make(map[string]*Dataset, len(manifest.Datasets))}
	for _, entry := range manifest.Datasets {
		ds, err := build(entry)
		if err != nil {
			return nil, fmt.Errorf("catalog: dataset %s: %w", entry.Key, err)
		}
		c.order = append(c.order, entry.Key)
		c.datasets[entry.Key] = ds
	}
	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog, loading it once per process.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Load()
	})
	return defaultCatalog, defaultErr
}

// Len returns the number of datasets.
func (c *Catalog) Len() int { return len(c.order) }

// Keys returns the dataset keys in manifest order.
func (c *Catalog) Keys() []string {
	return append([]string(nil), c.order...)
}

// Get returns the dataset for key.
func (c *Catalog) Get(key string) (*Dataset, bool) {
	ds, ok := c.datasets[key]
	return ds, ok
}

// Datasets returns every dataset in manifest order.
func (c *Catalog) Datasets() []*Dataset {
	out := make([]*Dataset, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.datasets[key])
	}
	return out
}

func build(entry Entry) (*Dataset, error) {
	raw, err := dataFS.ReadFile("data/" + entry.File)
	if err != nil {
		return nil, err
	}
	table, err := frame.ReadCSV(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if !table.HasColumn(entry.Subject) {
		return nil, fmt.Errorf("subject column %s not in table", entry.Subject)
	}
	ds := &Dataset{entry: entry, table: table}
	if entry.Wide != nil {
		groups, err := longitudinal.ParseGroups(table, entry.Wide.Attributes...)
		if err != nil {
			return nil, err
		}
		ds.groups = groups
	}
	if entry.Long != nil {
		if err := requireColumns(table, append([]string{entry.Long.Occasion}, entry.Long.Values...)...); err != nil {
			return nil, err
		}
	}
	if entry.Survival != nil {
		if err := requireColumns(table, entry.Survival.Duration, entry.Survival.Censor); err != nil {
			return nil, err
		}
	}
	if entry.Event != nil {
		if err := requireColumns(table, entry.Event.Period, entry.Event.Event); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func requireColumns(table frame.Table, names ...string) error {
	for _, name := range names {
		if !table.HasColumn(name) {
			return fmt.Errorf("bound column %s not in table", name)
		}
	}
	return nil
}
