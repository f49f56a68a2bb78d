package resolution

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
)

const (
	defaultConfidence = 0.3
	hintConfidence    = 0.6
	defaultLanguage   = "en"
)

// Rule maps keywords to a category and subcategory. Rules are evaluated in
// order and the first rule with any matching keyword wins.
type Rule struct {
	Category    Category `yaml:"category" json:"category"`
	Subcategory string   `yaml:"subcategory" json:"subcategory"`
	Keywords    []string `yaml:"keywords" json:"keywords"`
	Confidence  float64  `yaml:"confidence" json:"confidence"`
}

type triage struct {
	severity Severity
	urgency  Urgency
}

var categoryTriage = map[Category]triage{
	CategoryBooking:        {SeverityMedium, UrgencyMedium},
	CategoryPayment:        {SeverityHigh, UrgencyHigh},
	CategoryDriverBehavior: {SeverityHigh, UrgencyImmediate},
	CategoryTechnical:      {SeverityMedium, UrgencyMedium},
	CategoryCultural:       {SeverityLow, UrgencyMedium},
	CategoryBilling:        {SeverityMedium, UrgencyMedium},
	CategoryCancellation:   {SeverityMedium, UrgencyHigh},
}

// festivalKeywords map normalized keywords to a festival tag.
var festivalKeywords = map[string]string{
	"onam":      "onam",
	"ഓണം":       "onam",
	"vishu":     "vishu",
	"വിഷു":      "vishu",
	"diwali":    "diwali",
	"deepavali": "diwali",
	"eid":       "eid",
	"ramadan":   "ramadan",
	"christmas": "christmas",
	"ക്രിസ്മസ്": "christmas",
	"pooram":    "pooram",
	"പൂരം":      "pooram",
}

// Classifier is a deterministic keyword classifier. It is safe for
// concurrent use.
type Classifier struct {
	rules []compiledRule
}

type compiledRule struct {
	Rule
	keywords []string
}

// NewClassifier compiles rules for matching. Keyword order is preserved.
func NewClassifier(rules []Rule) *Classifier {
	c := &Classifier{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		cr := compiledRule{Rule: r}
		for _, kw := range r.Keywords {
			if n := normalize(kw); n != "" {
				cr.keywords = append(cr.keywords, n)
			}
		}
		c.rules = append(c.rules, cr)
	}
	return c
}

// Classify maps issue text to a Classification. The same inputs always
// produce the same output. typeHint is the caller-supplied issue type and
// is used only when no rule matches.
func (c *Classifier) Classify(text, typeHint string, customer api.CustomerContext, cultural api.CulturalContext) Classification {
	normalized := normalize(text)

	cls := Classification{
		Category:    CategoryTechnical,
		Subcategory: "general",
		Confidence:  defaultConfidence,
	}

	matched := false
	for _, r := range c.rules {
		if r.matches(normalized) {
			cls.Category = r.Category
			cls.Subcategory = r.Subcategory
			cls.Confidence = r.Confidence
			matched = true
			break
		}
	}
	if !matched {
		if hint := Category(strings.ToLower(strings.TrimSpace(typeHint))); hint.Valid() {
			cls.Category = hint
			cls.Subcategory = "general"
			cls.Confidence = hintConfidence
		}
	}

	t := categoryTriage[cls.Category]
	cls.Severity = t.severity
	cls.Urgency = t.urgency
	cls.RequiresHuman = cls.Category == CategoryDriverBehavior
	cls.Language = resolveLanguage(text, customer.PreferredLanguage, cultural.Language)
	cls.CulturalTags = culturalTags(normalized, text, customer, cultural)
	return cls
}

func (r compiledRule) matches(text string) bool {
	for _, kw := range r.keywords {
		if containsKeyword(text, kw) {
			return true
		}
	}
	return false
}

// normalize applies NFC and Unicode case folding. Malayalam two-part vowel
// signs arrive both precomposed and as separate code points.
func normalize(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	return cases.Fold().String(s)
}

// containsKeyword matches ASCII keywords on word boundaries and other
// keywords as substrings. Malayalam attaches case suffixes directly to the
// stem, so a boundary check would reject valid inflected forms.
func containsKeyword(text, kw string) bool {
	if !isASCII(kw) {
		return strings.Contains(text, kw)
	}
	for start := 0; start <= len(text)-len(kw); {
		i := strings.Index(text[start:], kw)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(kw)
		if isBoundary(text, i, true) && isBoundary(text, end, false) {
			return true
		}
		start = i + 1
	}
	return false
}

func isBoundary(text string, pos int, before bool) bool {
	var r rune
	if before {
		if pos == 0 {
			return true
		}
		r, _ = utf8.DecodeLastRuneInString(text[:pos])
	} else {
		if pos >= len(text) {
			return true
		}
		r, _ = utf8.DecodeRuneInString(text[pos:])
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func hasMalayalamScript(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Malayalam, r) {
			return true
		}
	}
	return false
}

// resolveLanguage picks the customer's preferred language, then the request
// language, then the script of the text, and finally English.
func resolveLanguage(text string, candidates ...string) string {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		tag, err := language.Parse(c)
		if err != nil {
			continue
		}
		base, _ := tag.Base()
		return base.String()
	}
	if hasMalayalamScript(text) {
		return "ml"
	}
	return defaultLanguage
}

func culturalTags(normalized, raw string, customer api.CustomerContext, cultural api.CulturalContext) []string {
	set := make(map[string]bool)
	for kw, festival := range festivalKeywords {
		if containsKeyword(normalized, normalize(kw)) {
			set["festival:"+festival] = true
		}
	}
	if cultural.Festival != "" {
		set["festival:"+strings.ToLower(cultural.Festival)] = true
	}
	region := cultural.Region
	if region == "" {
		region = customer.CulturalProfile.Region
	}
	if region != "" {
		set["region:"+strings.ToLower(region)] = true
	}
	for _, tag := range customer.CulturalProfile.Tags {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			set[tag] = true
		}
	}
	if hasMalayalamScript(raw) {
		set["malayalam-script"] = true
	}

	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags
}
