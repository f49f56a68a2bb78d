package resolution

import (
	"errors"
	"fmt"
	"time"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
)

var (
	// ErrInvalidTemplate is wrapped by every template validation failure.
	ErrInvalidTemplate = errors.New("invalid resolution template")

	// ErrTemplateExists is returned when adding a template whose key is taken.
	ErrTemplateExists = errors.New("resolution template already exists")

	// ErrActionTimeout is returned when an action exceeds its timeout.
	ErrActionTimeout = errors.New("action timed out")
)

// Category is the closed set of issue categories.
type Category string

const (
	CategoryBooking        Category = "booking"
	CategoryPayment        Category = "payment"
	CategoryDriverBehavior Category = "driver-behavior"
	CategoryTechnical      Category = "technical"
	CategoryCultural       Category = "cultural"
	CategoryBilling        Category = "billing"
	CategoryCancellation   Category = "cancellation"
)

// Categories lists every category in declaration order.
var Categories = []Category{
	CategoryBooking,
	CategoryPayment,
	CategoryDriverBehavior,
	CategoryTechnical,
	CategoryCultural,
	CategoryBilling,
	CategoryCancellation,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Severity is ordered low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Urgency is ordered low < medium < high < immediate.
type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyMedium    Urgency = "medium"
	UrgencyHigh      Urgency = "high"
	UrgencyImmediate Urgency = "immediate"
)

// Classification is the immutable outcome of classifying an issue.
type Classification struct {
	Category      Category `json:"category"`
	Subcategory   string   `json:"subcategory"`
	Severity      Severity `json:"severity"`
	Urgency       Urgency  `json:"urgency"`
	CulturalTags  []string `json:"culturalTags"`
	Language      string   `json:"language"`
	RequiresHuman bool     `json:"requiresHumanIntervention"`
	Confidence    float64  `json:"confidence"`
}

// ActionKind identifies what an action does.
type ActionKind string

const (
	ActionRemoteCall        ActionKind = "remote_call"
	ActionPersistenceUpdate ActionKind = "persistence_update"
	ActionNotification      ActionKind = "notification"
	ActionRefund            ActionKind = "refund"
	ActionEscalation        ActionKind = "escalation"
	ActionCulturalResponse  ActionKind = "cultural_response"
)

// RemoteCall invokes an operation on a downstream service.
type RemoteCall struct {
	Service   string         `yaml:"service" json:"service"`
	Operation string         `yaml:"operation" json:"operation"`
	Params    map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// PersistenceUpdate writes one field of a record owned by another system.
type PersistenceUpdate struct {
	Entity string `yaml:"entity" json:"entity"`
	Field  string `yaml:"field" json:"field"`
	Value  any    `yaml:"value" json:"value"`
}

// Notification sends a message to the customer.
type Notification struct {
	Channel  string            `yaml:"channel" json:"channel"`
	Message  string            `yaml:"message" json:"message"`
	Messages map[string]string `yaml:"messages,omitempty" json:"messages,omitempty"`
}

// Refund returns money to the customer.
type Refund struct {
	Mode    string  `yaml:"mode" json:"mode"`
	Percent float64 `yaml:"percent,omitempty" json:"percent,omitempty"`
	Reason  string  `yaml:"reason" json:"reason"`
}

// Escalation hands the issue to a human queue.
type Escalation struct {
	Queue    string `yaml:"queue" json:"queue"`
	Reason   string `yaml:"reason" json:"reason"`
	Priority string `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// CulturalResponse sends a culturally adapted message. Languages and Regions
// restrict which customers the note applies to; empty means all.
type CulturalResponse struct {
	Languages []string          `yaml:"languages,omitempty" json:"languages,omitempty"`
	Regions   []string          `yaml:"regions,omitempty" json:"regions,omitempty"`
	Messages  map[string]string `yaml:"messages" json:"messages"`
	Note      string            `yaml:"note" json:"note"`
}

// Action is a tagged variant: Kind names which single payload is populated.
type Action struct {
	Kind      ActionKind `yaml:"kind" json:"kind"`
	TimeoutMS int        `yaml:"timeout_ms,omitempty" json:"timeoutMs,omitempty"`

	RemoteCall       *RemoteCall        `yaml:"remote_call,omitempty" json:"remoteCall,omitempty"`
	Persistence      *PersistenceUpdate `yaml:"persistence_update,omitempty" json:"persistenceUpdate,omitempty"`
	Notification     *Notification      `yaml:"notification,omitempty" json:"notification,omitempty"`
	Refund           *Refund            `yaml:"refund,omitempty" json:"refund,omitempty"`
	Escalation       *Escalation        `yaml:"escalation,omitempty" json:"escalation,omitempty"`
	CulturalResponse *CulturalResponse  `yaml:"cultural_response,omitempty" json:"culturalResponse,omitempty"`
}

// Timeout returns the action's own timeout, or def when none is set.
func (a Action) Timeout(def time.Duration) time.Duration {
	if a.TimeoutMS > 0 {
		return time.Duration(a.TimeoutMS) * time.Millisecond
	}
	return def
}

// Validate checks that exactly one payload is set and that it matches Kind.
func (a Action) Validate() error {
	count := 0
	var matches bool
	if a.RemoteCall != nil {
		count++
		matches = a.Kind == ActionRemoteCall
	}
	if a.Persistence != nil {
		count++
		matches = a.Kind == ActionPersistenceUpdate
	}
	if a.Notification != nil {
		count++
		matches = a.Kind == ActionNotification
	}
	if a.Refund != nil {
		count++
		matches = a.Kind == ActionRefund
	}
	if a.Escalation != nil {
		count++
		matches = a.Kind == ActionEscalation
	}
	if a.CulturalResponse != nil {
		count++
		matches = a.Kind == ActionCulturalResponse
	}
	switch {
	case a.Kind == "":
		return fmt.Errorf("action kind is required")
	case count != 1:
		return fmt.Errorf("action %s must have exactly one payload, found %d", a.Kind, count)
	case !matches:
		return fmt.Errorf("action %s payload does not match its kind", a.Kind)
	case a.TimeoutMS < 0:
		return fmt.Errorf("action %s timeout must not be negative", a.Kind)
	}
	return nil
}

// Step is one ordered unit of a template.
type Step struct {
	ID               string            `yaml:"id" json:"id"`
	Description      string            `yaml:"description" json:"description"`
	DescriptionLocal map[string]string `yaml:"description_local,omitempty" json:"descriptionLocal,omitempty"`
	Action           Action            `yaml:"action" json:"action"`
	Params           map[string]any    `yaml:"params,omitempty" json:"params,omitempty"`
	ExpectedOutcome  string            `yaml:"expected_outcome,omitempty" json:"expectedOutcome,omitempty"`
	Fallbacks        []Action          `yaml:"fallbacks,omitempty" json:"fallbacks,omitempty"`
}

// Template is a resolution playbook for one category and subcategory.
type Template struct {
	Category          Category                 `yaml:"category" json:"category"`
	Subcategory       string                   `yaml:"subcategory" json:"subcategory"`
	Title             string                   `yaml:"title" json:"title"`
	TitleLocal        map[string]string        `yaml:"title_local,omitempty" json:"titleLocal,omitempty"`
	Triggers          []string                 `yaml:"triggers,omitempty" json:"triggers,omitempty"`
	Steps             []Step                   `yaml:"steps" json:"steps"`
	SuccessCriteria   []string                 `yaml:"success_criteria,omitempty" json:"successCriteria,omitempty"`
	AverageDurationMS int                      `yaml:"average_duration_ms,omitempty" json:"averageDurationMs,omitempty"`
	Variants          map[api.Situation][]Step `yaml:"variants,omitempty" json:"variants,omitempty"`
}

// TemplateKey builds the lookup key for a category and subcategory.
func TemplateKey(c Category, subcategory string) string {
	return string(c) + "_" + subcategory
}

// Key returns the template's lookup key.
func (t *Template) Key() string {
	return TemplateKey(t.Category, t.Subcategory)
}

// StepsFor returns the steps to run in the given situation. A matching
// variant replaces the base step list entirely.
func (t *Template) StepsFor(s api.Situation) []Step {
	if s != api.SituationNone {
		if v, ok := t.Variants[s]; ok {
			return v
		}
	}
	return t.Steps
}

// LocalizedFor reports whether the template has customer-facing text in lang.
func (t *Template) LocalizedFor(lang string) bool {
	return lang == "en" || t.TitleLocal[lang] != ""
}

// Validate checks the template structure. The generic template is validated
// with generic=true and may omit its category.
func (t *Template) Validate(generic bool) error {
	var errs []error
	if !generic {
		if !t.Category.Valid() {
			errs = append(errs, fmt.Errorf("unknown category %q", t.Category))
		}
		if t.Subcategory == "" {
			errs = append(errs, fmt.Errorf("subcategory is required"))
		}
	}
	if t.Title == "" {
		errs = append(errs, fmt.Errorf("title is required"))
	}
	if len(t.Steps) == 0 {
		errs = append(errs, fmt.Errorf("at least one step is required"))
	}
	errs = append(errs, validateSteps("steps", t.Steps)...)
	for s, steps := range t.Variants {
		if s == api.SituationNone || !s.Valid() {
			errs = append(errs, fmt.Errorf("unknown variant situation %q", s))
			continue
		}
		if len(steps) == 0 {
			errs = append(errs, fmt.Errorf("variant %s has no steps", s))
		}
		errs = append(errs, validateSteps("variants."+string(s), steps)...)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w %s: %w", ErrInvalidTemplate, t.Key(), err)
	}
	return nil
}

func validateSteps(path string, steps []Step) []error {
	var errs []error
	seen := make(map[string]bool, len(steps))
	for i, s := range steps {
		where := fmt.Sprintf("%s[%d]", path, i)
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("%s: id is required", where))
		} else if seen[s.ID] {
			errs = append(errs, fmt.Errorf("%s: duplicate step id %q", where, s.ID))
		}
		seen[s.ID] = true
		if err := s.Action.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		for j, fb := range s.Fallbacks {
			if err := fb.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("%s.fallbacks[%d]: %w", where, j, err))
			}
		}
	}
	return errs
}

// StepStatus is the outcome of one executed step.
type StepStatus string

const (
	StepSucceeded    StepStatus = "succeeded"
	StepRecovered    StepStatus = "recovered"
	StepFailed       StepStatus = "failed"
	StepDeduplicated StepStatus = "deduplicated"
)

// ExecutedStep records what happened when a step ran.
type ExecutedStep struct {
	StepID          string     `json:"stepId"`
	Description     string     `json:"description"`
	Action          ActionKind `json:"action"`
	Status          StepStatus `json:"status"`
	FallbackIndex   int        `json:"fallbackIndex"`
	Error           string     `json:"error,omitempty"`
	Reference       string     `json:"reference,omitempty"`
	ExecutedAt      time.Time  `json:"executedAt"`
	DurationMS      float64    `json:"durationMs"`
	CulturalContext string     `json:"culturalContext"`
}

// Result is the output of one resolution attempt.
type Result struct {
	Resolved             bool           `json:"resolved"`
	TemplateID           string         `json:"templateId,omitempty"`
	Classification       Classification `json:"classification"`
	ExecutedSteps        []ExecutedStep `json:"executedSteps"`
	ExecutionTimeMS      float64        `json:"executionTimeMs"`
	CustomerSatisfaction *float64       `json:"customerSatisfaction,omitempty"`
	EscalationRequired   bool           `json:"escalationRequired"`
	FollowUpActions      []string       `json:"followUpActions"`
	CulturalNotes        []string       `json:"culturalNotes"`
	Summary              string         `json:"summary,omitempty"`
}

// Issue is the problem description inside the engine input.
type Issue struct {
	Type        string  `json:"type,omitempty"`
	Description string  `json:"description"`
	BookingID   string  `json:"bookingId,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
}

// Input is the decoded engine input.
type Input struct {
	Issue    Issue               `json:"issue"`
	Customer api.CustomerContext `json:"customer"`
}
