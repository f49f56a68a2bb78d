package resolution

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"
)

// SupportedSchema is the range of knowledge base schema versions this build
// understands.
const SupportedSchema = ">= 1.0.0, < 2.0.0"

// KnowledgeData is the serialized form of a knowledge base.
type KnowledgeData struct {
	SchemaVersion string     `yaml:"schema_version" json:"schemaVersion"`
	Rules         []Rule     `yaml:"rules" json:"rules"`
	Templates     []Template `yaml:"templates" json:"templates"`
	Generic       *Template  `yaml:"generic,omitempty" json:"generic,omitempty"`
}

// Validate checks schema version, rules and templates.
func (d *KnowledgeData) Validate() error {
	var errs []error

	constraint, err := semver.NewConstraint(SupportedSchema)
	if err != nil {
		return err
	}
	v, err := semver.NewVersion(d.SchemaVersion)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("schema_version %q: %w", d.SchemaVersion, err))
	case !constraint.Check(v):
		errs = append(errs, fmt.Errorf("schema_version %s is not supported (want %s)", v, SupportedSchema))
	}

	if len(d.Rules) == 0 {
		errs = append(errs, fmt.Errorf("at least one classification rule is required"))
	}
	for i, r := range d.Rules {
		if !r.Category.Valid() {
			errs = append(errs, fmt.Errorf("rules[%d]: unknown category %q", i, r.Category))
		}
		if r.Subcategory == "" {
			errs = append(errs, fmt.Errorf("rules[%d]: subcategory is required", i))
		}
		if len(r.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("rules[%d]: at least one keyword is required", i))
		}
		if r.Confidence <= 0 || r.Confidence > 1 {
			errs = append(errs, fmt.Errorf("rules[%d]: confidence must be in (0, 1]", i))
		}
	}

	seen := make(map[string]bool, len(d.Templates))
	for i := range d.Templates {
		t := &d.Templates[i]
		if err := t.Validate(false); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[t.Key()] {
			errs = append(errs, fmt.Errorf("duplicate template %s", t.Key()))
		}
		seen[t.Key()] = true
	}
	if d.Generic != nil {
		if err := d.Generic.Validate(true); err != nil {
			errs = append(errs, fmt.Errorf("generic: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Snapshot is an immutable view of the knowledge base. Resolutions hold the
// snapshot they started with for their whole run.
type Snapshot struct {
	Version    string
	LoadedAt   time.Time
	classifier *Classifier
	rules      []Rule
	templates  map[string]*Template
	generic    *Template
}

// Classifier returns the classifier compiled from the snapshot's rules.
func (s *Snapshot) Classifier() *Classifier {
	return s.classifier
}

// Lookup returns the template for the category and subcategory. When no
// specific template exists it returns the generic template and false.
func (s *Snapshot) Lookup(c Category, subcategory string) (*Template, bool) {
	if t, ok := s.templates[TemplateKey(c, subcategory)]; ok {
		return t, true
	}
	return s.generic, false
}

// Templates returns the number of specific templates.
func (s *Snapshot) Templates() int {
	return len(s.templates)
}

// Rules returns a copy of the classification rules.
func (s *Snapshot) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// KnowledgeBase holds the current snapshot. Readers never block; writers
// serialize on a mutex and publish a new snapshot atomically.
type KnowledgeBase struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

// NewKnowledgeBase validates data and builds the first snapshot.
func NewKnowledgeBase(data KnowledgeData) (*KnowledgeBase, error) {
	kb := &KnowledgeBase{}
	if err := kb.Replace(data); err != nil {
		return nil, err
	}
	return kb, nil
}

// Snapshot returns the current snapshot.
func (kb *KnowledgeBase) Snapshot() *Snapshot {
	return kb.current.Load()
}

// Replace validates data and swaps in a new snapshot. The old snapshot stays
// valid for resolutions already using it.
func (kb *KnowledgeBase) Replace(data KnowledgeData) error {
	if err := data.Validate(); err != nil {
		return fmt.Errorf("knowledge base: %w", err)
	}
	generic := data.Generic
	if generic == nil {
		g := genericTemplate()
		generic = &g
	}
	snap := &Snapshot{
		Version:    data.SchemaVersion,
		LoadedAt:   time.Now(),
		classifier: NewClassifier(data.Rules),
		rules:      data.Rules,
		templates:  make(map[string]*Template, len(data.Templates)),
		generic:    generic,
	}
	for i := range data.Templates {
		t := data.Templates[i]
		snap.templates[t.Key()] = &t
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.current.Store(snap)
	return nil
}

// AddTemplate validates t and publishes a snapshot that includes it. A
// template whose key already exists is rejected with ErrTemplateExists.
func (kb *KnowledgeBase) AddTemplate(t Template) error {
	if err := t.Validate(false); err != nil {
		return err
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	cur := kb.current.Load()
	if _, exists := cur.templates[t.Key()]; exists {
		return fmt.Errorf("%w: %s", ErrTemplateExists, t.Key())
	}
	next := *cur
	next.templates = maps.Clone(cur.templates)
	next.templates[t.Key()] = &t
	next.LoadedAt = time.Now()
	kb.current.Store(&next)
	return nil
}
