package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// IndicatorSnapshot is one upstream response for a descriptor. The payload
// format belongs to the API and is kept opaque.
type IndicatorSnapshot struct {
	ID         string          `json:"id"`
	Indicator  string          `json:"indicator"`
	AdminLevel AdminLevel      `json:"admin_level"`
	Taxonomy   string          `json:"taxonomy,omitempty"`
	Period     string          `json:"period,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	FetchedAt  time.Time       `json:"fetched_at"`
	Source     string          `json:"source"`
}

// SeriesKey identifies the series a snapshot belongs to.
func (s *IndicatorSnapshot) SeriesKey() string {
	return SeriesKey(s.Descriptor())
}

// Descriptor rebuilds the request descriptor the snapshot answers.
func (s *IndicatorSnapshot) Descriptor() *Indicator {
	ind := &Indicator{Indicator: s.Indicator, Taxonomy: s.Taxonomy, Period: s.Period}
	ind.SetAdminLevel(s.AdminLevel)
	return ind
}

// SeriesKey formats indicator|admin_level|taxonomy|period. An unset admin
// level renders as "-".
func SeriesKey(ind *Indicator) string {
	level := "-"
	if l, ok := ind.AdminLevelValue(); ok {
		level = fmt.Sprintf("%d", int(l))
	}
	return fmt.Sprintf("%s|%s|%s|%s", ind.Indicator, level, ind.Taxonomy, ind.Period)
}
