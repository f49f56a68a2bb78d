package resolution

import "fmt"

type summaryText struct {
	resolved  string
	escalated string
}

// summaryTemplates take the category name and the executed step count.
var summaryTemplates = map[string]summaryText{
	"en": {
		resolved:  "Your %s issue was resolved in %d steps.",
		escalated: "Your %s issue has been passed to a specialist after %d steps.",
	},
	"ml": {
		resolved:  "നിങ്ങളുടെ %s പ്രശ്നം %d ഘട്ടങ്ങളിലായി പരിഹരിച്ചു.",
		escalated: "നിങ്ങളുടെ %s പ്രശ്നം %d ഘട്ടങ്ങൾക്ക് ശേഷം വിദഗ്ധ സംഘത്തിന് കൈമാറി.",
	},
	"hi": {
		resolved:  "आपकी %s समस्या %d चरणों में हल हो गई।",
		escalated: "आपकी %s समस्या %d चरणों के बाद विशेषज्ञ टीम को भेज दी गई।",
	},
}

// SummaryLanguageSupported reports whether a localized summary exists.
func SummaryLanguageSupported(lang string) bool {
	_, ok := summaryTemplates[lang]
	return ok
}

// Summary renders the customer-facing summary in lang, falling back to
// English for unsupported languages.
func Summary(lang string, category Category, steps int, resolved bool) string {
	t, ok := summaryTemplates[lang]
	if !ok {
		t = summaryTemplates["en"]
	}
	format := t.resolved
	if !resolved {
		format = t.escalated
	}
	return fmt.Sprintf(format, category, steps)
}
