package api

// Situation is a recognized circumstance that selects a template variant.
// Only the enumerated values are meaningful; anything else is rejected at
// decode time.
type Situation string

const (
	SituationNone           Situation = ""
	SituationFestivalPeriod Situation = "festival_period"
	SituationMonsoon        Situation = "monsoon"
	SituationPeakHours      Situation = "peak_hours"
)

// Valid reports whether s is a known situation. The empty situation is valid
// and means no variant applies.
func (s Situation) Valid() bool {
	switch s {
	case SituationNone, SituationFestivalPeriod, SituationMonsoon, SituationPeakHours:
		return true
	}
	return false
}

// CulturalContext is the caller-supplied description of the cultural setting
// of a request.
type CulturalContext struct {
	Language           string    `json:"language,omitempty"`
	Region             string    `json:"region,omitempty"`
	Festival           string    `json:"festival,omitempty"`
	Situation          Situation `json:"situation,omitempty"`
	CommunicationStyle string    `json:"communicationStyle,omitempty"`
}

// ActiveSituation returns the explicit situation, or festival_period when a
// festival is named and no situation was given.
func (c CulturalContext) ActiveSituation() Situation {
	if c.Situation != SituationNone {
		return c.Situation
	}
	if c.Festival != "" {
		return SituationFestivalPeriod
	}
	return SituationNone
}

// CulturalProfile describes a customer's cultural background.
type CulturalProfile struct {
	Region    string   `json:"region,omitempty"`
	Community string   `json:"community,omitempty"`
	Festivals []string `json:"festivals,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// IssueHistoryEntry is one past issue of a customer.
type IssueHistoryEntry struct {
	Category string `json:"category"`
	Resolved bool   `json:"resolved"`
}

// CustomerContext is supplied by the caller inside the request input. The
// service never fetches or persists it.
type CustomerContext struct {
	ID                  string              `json:"id,omitempty"`
	PreferredLanguage   string              `json:"preferredLanguage,omitempty"`
	CulturalProfile     CulturalProfile     `json:"culturalProfile,omitempty"`
	IssueHistory        []IssueHistoryEntry `json:"issueHistory,omitempty"`
	SatisfactionHistory []float64           `json:"satisfactionHistory,omitempty"`
	CommunicationStyle  string              `json:"communicationStyle,omitempty"`
	LoyaltyTier         string              `json:"loyaltyTier,omitempty"`
}
