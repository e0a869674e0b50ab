package catalog

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Dataset storage layouts.
const (
	LayoutPersonLevel  = "person-level"
	LayoutPersonPeriod = "person-period"
)

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Manifest is the parsed catalog description shipped with the package.
type Manifest struct {
	Datasets []Entry `yaml:"datasets"`
}

// Entry describes one curated dataset: provenance, storage layout, and the
// statically declared reshape bindings its derived views are built from.
type Entry struct {
	Key         string `yaml:"key"`
	Title       string `yaml:"title"`
	Source      string `yaml:"source"`
	Description string `yaml:"description,omitempty"`
	File        string `yaml:"file"`
	Layout      string `yaml:"layout"`
	Subject     string `yaml:"subject"`

	Wide     *WideBinding     `yaml:"wide,omitempty"`
	Long     *LongBinding     `yaml:"long,omitempty"`
	Survival *SurvivalBinding `yaml:"survival,omitempty"`
	Event    *EventBinding    `yaml:"event,omitempty"`
}

// WideBinding declares how a person-level table widens into person-period
// form: the occasion column to synthesize and the attribute prefixes whose
// indexed columns carry the repeated measures.
type WideBinding struct {
	Occasion   string   `yaml:"occasion"`
	Attributes []string `yaml:"attributes"`
}

// LongBinding declares how a person-period table collapses to one row per
// subject: the occasion column and the time-varying value columns to spread.
type LongBinding struct {
	Occasion   string   `yaml:"occasion"`
	Values     []string `yaml:"values"`
	NameFormat string   `yaml:"name_format,omitempty"`
}

// SurvivalBinding names the duration and censor columns of a person-level
// survival dataset. Start is the first discrete period; nil means 1.
type SurvivalBinding struct {
	Duration string `yaml:"duration"`
	Censor   string `yaml:"censor"`
	Start    *int   `yaml:"start,omitempty"`
}

// EventBinding names the period and event-indicator columns of a dataset
// recorded natively in person-period survival form.
type EventBinding struct {
	Period string `yaml:"period"`
	Event  string `yaml:"event"`
}

// ParseManifest decodes and validates a manifest document.
func ParseManifest(raw []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("catalog: parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Validate checks every entry and rejects duplicate keys and data files.
func (m Manifest) Validate() error {
	if len(m.Datasets) == 0 {
		return fmt.Errorf("catalog: manifest declares no datasets")
	}
	keys := make(map[string]struct{}, len(m.Datasets))
	files := make(map[string]struct{}, len(m.Datasets))
	for _, entry := range m.Datasets {
		if err := entry.validate(); err != nil {
			return err
		}
		if _, dup := keys[entry.Key]; dup {
			return fmt.Errorf("catalog: duplicate dataset key %s", entry.Key)
		}
		keys[entry.Key] = struct{}{}
		if _, dup := files[entry.File]; dup {
			return fmt.Errorf("catalog: dataset %s reuses data file %s", entry.Key, entry.File)
		}
		files[entry.File] = struct{}{}
	}
	return nil
}

func (e Entry) validate() error {
	if !keyPattern.MatchString(e.Key) {
		return fmt.Errorf("catalog: invalid dataset key %q", e.Key)
	}
	if e.Title == "" || e.Source == "" {
		return fmt.Errorf("catalog: dataset %s needs a title and a source", e.Key)
	}
	if e.File == "" {
		return fmt.Errorf("catalog: dataset %s names no data file", e.Key)
	}
	if e.Subject == "" {
		return fmt.Errorf("catalog: dataset %s names no subject column", e.Key)
	}
	switch e.Layout {
	case LayoutPersonLevel:
		if e.Long != nil || e.Event != nil {
			return fmt.Errorf("catalog: dataset %s is person-level and cannot carry a long or event binding", e.Key)
		}
		if e.Wide != nil && e.Survival != nil {
			return fmt.Errorf("catalog: dataset %s declares both a wide and a survival binding", e.Key)
		}
	case LayoutPersonPeriod:
		if e.Wide != nil || e.Survival != nil {
			return fmt.Errorf("catalog: dataset %s is person-period and cannot carry a wide or survival binding", e.Key)
		}
		if e.Long != nil && e.Event != nil {
			return fmt.Errorf("catalog: dataset %s declares both a long and an event binding", e.Key)
		}
	default:
		return fmt.Errorf("catalog: dataset %s has unknown layout %q", e.Key, e.Layout)
	}
	if e.Wide != nil {
		if e.Wide.Occasion == "" || len(e.Wide.Attributes) == 0 {
			return fmt.Errorf("catalog: dataset %s wide binding needs an occasion name and attributes", e.Key)
		}
	}
	if e.Long != nil {
		if e.Long.Occasion == "" || len(e.Long.Values) == 0 {
			return fmt.Errorf("catalog: dataset %s long binding needs an occasion column and values", e.Key)
		}
	}
	if e.Survival != nil {
		if e.Survival.Duration == "" || e.Survival.Censor == "" {
			return fmt.Errorf("catalog: dataset %s survival binding needs duration and censor columns", e.Key)
		}
		if e.Survival.Start != nil && *e.Survival.Start != 0 && *e.Survival.Start != 1 {
			return fmt.Errorf("catalog: dataset %s survival start must be 0 or 1", e.Key)
		}
	}
	if e.Event != nil {
		if e.Event.Period == "" || e.Event.Event == "" {
			return fmt.Errorf("catalog: dataset %s event binding needs period and event columns", e.Key)
		}
	}
	return nil
}

// Views lists the view names the entry supports, raw first.
func (e Entry) Views() []string {
	views := []string{ViewRaw}
	switch e.Layout {
	case LayoutPersonLevel:
		views = append(views, ViewPersonLevel)
		if e.Wide != nil {
			views = append(views, ViewPersonPeriod)
		}
		if e.Survival != nil {
			views = append(views, ViewSurvival, ViewLifeTable)
		}
	case LayoutPersonPeriod:
		views = append(views, ViewPersonPeriod)
		if e.Long != nil {
			views = append(views, ViewPersonLevel)
		}
		if e.Event != nil {
			views = append(views, ViewLifeTable)
		}
	}
	return views
}
