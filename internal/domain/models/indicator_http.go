package models

import "strconv"

// Requests for indicator HTTP endpoints.

type IndicatorRequest struct {
	Indicator  string `query:"indicator" json:"indicator" validate:"required"`
	AdminLevel string `query:"admin_level" json:"admin_level" validate:"required,numeric"`
	Taxonomy   string `query:"taxonomy" json:"taxonomy"`
	Category   string `query:"category" json:"category"`
	Period     string `query:"period" json:"period"`
	Refresh    bool   `query:"refresh" json:"refresh" default:"false"`
}

type HistoryRequest struct {
	IndicatorRequest
	From  string `query:"from" json:"from"`
	To    string `query:"to" json:"to"`
	Limit int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=5000"`
}

// Descriptor converts the bound request into an Indicator descriptor.
func (r *IndicatorRequest) Descriptor() (*Indicator, error) {
	taxonomy, err := ResolveTaxonomy(r.Taxonomy, r.Category)
	if err != nil {
		return nil, err
	}
	ind := &Indicator{Indicator: r.Indicator, Taxonomy: taxonomy, Period: r.Period}
	if r.AdminLevel != "" {
		level, err := strconv.Atoi(r.AdminLevel)
		if err != nil {
			return nil, err
		}
		ind.SetAdminLevel(AdminLevel(level))
	}
	return ind, nil
}
