package models

import (
	"errors"
	"net/url"
	"strconv"
)

// Query keys used on the wire.
const (
	ParamIndicator  = "indicator"
	ParamAdminLevel = "admin_level"
	ParamTaxonomy   = "taxonomy"
	ParamCategory   = "category"
	ParamPeriod     = "period"
)

// ErrTaxonomyConflict is returned when taxonomy and its category alias disagree.
var ErrTaxonomyConflict = errors.New("taxonomy and category differ")

// Indicator describes one indicator request: which metric, at which
// administrative granularity, optionally segmented by a taxonomy and pinned
// to a period.
//
// Taxonomy and category codes are served by the API and may change without
// notice; do not compile them in. An empty Taxonomy means unsegmented, an
// empty Period means the latest available period.
type Indicator struct {
	Indicator  string
	AdminLevel *AdminLevel
	Taxonomy   string
	Period     string
}

// NewIndicator returns a descriptor with every field unset.
func NewIndicator() *Indicator {
	return &Indicator{}
}

// SetAdminLevel sets the administrative level. Level 0 (country) is a valid value.
func (i *Indicator) SetAdminLevel(l AdminLevel) {
	i.AdminLevel = &l
}

// AdminLevelValue returns the level and whether it is set.
func (i *Indicator) AdminLevelValue() (AdminLevel, bool) {
	if i.AdminLevel == nil {
		return 0, false
	}
	return *i.AdminLevel, true
}

// MandatoryFields implements Mandatory.
func (i *Indicator) MandatoryFields() []MandatoryField {
	return []MandatoryField{
		{Name: ParamIndicator, Present: i.Indicator != ""},
		{Name: ParamAdminLevel, Present: i.AdminLevel != nil},
	}
}

// Valid reports whether the descriptor can be submitted.
func (i *Indicator) Valid() bool {
	return len(MissingFields(i)) == 0
}

// Validate returns a *MissingFieldsError naming unset mandatory fields.
func (i *Indicator) Validate() error {
	return CheckMandatory(i)
}

// Params encodes the descriptor as request parameters. Optional fields are
// omitted when empty. Callers validate first.
func (i *Indicator) Params() url.Values {
	v := url.Values{}
	if i.Indicator != "" {
		v.Set(ParamIndicator, i.Indicator)
	}
	if i.AdminLevel != nil {
		v.Set(ParamAdminLevel, strconv.Itoa(int(*i.AdminLevel)))
	}
	if i.Taxonomy != "" {
		v.Set(ParamTaxonomy, i.Taxonomy)
	}
	if i.Period != "" {
		v.Set(ParamPeriod, i.Period)
	}
	return v
}

// ResolveTaxonomy merges the taxonomy value with its historical category alias.
func ResolveTaxonomy(taxonomy, category string) (string, error) {
	switch {
	case taxonomy == "":
		return category, nil
	case category == "" || category == taxonomy:
		return taxonomy, nil
	default:
		return "", ErrTaxonomyConflict
	}
}
