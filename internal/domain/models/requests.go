package models

// Requests for the HTTP endpoints. Defined in domain for reuse by the CLI.

type ExtractRequest struct {
	Text string `json:"text" validate:"required"`
}

type IngestRequest struct {
	ID     int64  `json:"id"`
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text" validate:"required"`
	Date   string `json:"date" validate:"omitempty"` // RFC3339, defaults to now
}

type DayRequest struct {
	Date string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type ConditionsRequest struct {
	Date     string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
	FromHour int    `query:"from_hour" json:"from_hour" default:"0" validate:"gte=0,lte=23"`
	ToHour   int    `query:"to_hour" json:"to_hour" default:"23" validate:"gte=0,lte=23,gtefield=FromHour"`
}

type SimulateRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	// Strategies optionally fixes the strategy per hour ("17": "infinity").
	Strategies map[string]string `json:"strategies" validate:"omitempty"`
}

type SimulationIDRequest struct {
	ID string `param:"id" validate:"required,uuid"`
}

type StatsRequest struct {
	From string `query:"from" json:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `query:"to" json:"to" validate:"omitempty,datetime=2006-01-02"`
}
