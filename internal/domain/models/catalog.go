package models

import "fmt"

// Indicator codes known at the time of writing. The API is the source of truth.
const (
	IndicatorSaleRentPercent                  = "s_p"
	IndicatorSaleRentUnits                    = "s_u"
	IndicatorSaleRentDiffPrevQPercent         = "s_u_qq"
	IndicatorSaleRentDiffPrevQPercentile      = "s_u_qq_rk"
	IndicatorSoldRentedDiffPrevQPercent       = "o_u_qq"
	IndicatorSoldRentedDiffPrevQPercentile    = "o_u_qq_rk"
	IndicatorNewStockDiffPrevQPercentile      = "i_u_qq_rk"
	IndicatorTotalAbsorptionRatioPercent      = "o_a"
	IndicatorAvgPrice                         = "o_pm"
	IndicatorAvgPricePerMeter                 = "o_pu"
	IndicatorAvgPricePerMeterDiffPrevQPercent = "o_pu_qq"
	IndicatorEstimatedTimeToSellRent          = "s_t"
	IndicatorEstimatedTimeToSellRentDiffPrevQ = "s_t_qq"
	IndicatorGrossRentProfitability           = "y_r"
	IndicatorGrossSaleProfitability           = "y_s"
	IndicatorInvestmentGrade                  = "r_g"
	IndicatorNegotiationFactor                = "s_fn"
)

// AdminLevel is the administrative granularity of the queried geography.
type AdminLevel int

const (
	AdminLevelCountry AdminLevel = iota
	AdminLevelState
	AdminLevelProvince
	AdminLevelCity
	AdminLevelDistrict
	AdminLevelNeighborhood
)

var adminLevelNames = map[AdminLevel]string{
	AdminLevelCountry:      "country",
	AdminLevelState:        "state",
	AdminLevelProvince:     "province",
	AdminLevelCity:         "city",
	AdminLevelDistrict:     "district",
	AdminLevelNeighborhood: "neighborhood",
}

func (l AdminLevel) String() string {
	if name, ok := adminLevelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("admin_level(%d)", int(l))
}

// AdminLevelInfo is a catalog entry for an administrative level.
type AdminLevelInfo struct {
	Code AdminLevel `json:"code"`
	Name string     `json:"name"`
}

// AdminLevels lists the documented levels from country down to neighborhood.
func AdminLevels() []AdminLevelInfo {
	out := make([]AdminLevelInfo, 0, len(adminLevelNames))
	for l := AdminLevelCountry; l <= AdminLevelNeighborhood; l++ {
		out = append(out, AdminLevelInfo{Code: l, Name: l.String()})
	}
	return out
}

// IndicatorInfo documents one indicator code.
type IndicatorInfo struct {
	Code        string `json:"code"`
	Unit        string `json:"unit"`
	Description string `json:"description"`
}

var indicatorCatalog = []IndicatorInfo{
	{IndicatorSaleRentPercent, "%", "Properties for sale/rent in the quarter divided by the housing stock of the area"},
	{IndicatorSaleRentUnits, "units", "Properties for sale/rent in the quarter"},
	{IndicatorSaleRentDiffPrevQPercent, "%", "Change in properties for sale/rent versus the previous quarter"},
	{IndicatorSaleRentDiffPrevQPercentile, "percentile", "Percentile of the change in properties for sale/rent versus the previous quarter"},
	{IndicatorSoldRentedDiffPrevQPercent, "%", "Change in properties sold/leased versus the previous quarter"},
	{IndicatorSoldRentedDiffPrevQPercentile, "percentile", "Percentile of the change in properties sold/leased versus the previous quarter"},
	{IndicatorNewStockDiffPrevQPercentile, "percentile", "Percentile of the change in new stock versus the previous quarter"},
	{IndicatorTotalAbsorptionRatioPercent, "%", "Absorption: ratio between stock units and sales/rentals of the period"},
	{IndicatorAvgPrice, "price (€)", "Average price of properties sold/rented in the quarter"},
	{IndicatorAvgPricePerMeter, "unit price (€/m²)", "Average unit price of properties sold/rented in the quarter"},
	{IndicatorAvgPricePerMeterDiffPrevQPercent, "%", "Change in average unit price versus the previous quarter"},
	{IndicatorEstimatedTimeToSellRent, "weeks", "Estimated weeks needed to sell/rent a property"},
	{IndicatorEstimatedTimeToSellRentDiffPrevQ, "%", "Change in estimated weeks to sell/rent versus the previous quarter"},
	{IndicatorGrossRentProfitability, "%", "Share of the home price covered by annual rental income"},
	{IndicatorGrossSaleProfitability, "%", "Price increase of the property 12 months after purchase"},
	{IndicatorInvestmentGrade, "score (0-10)", "Investment grade combining stock, sales, prices, time to sell and profitability"},
	{IndicatorNegotiationFactor, "%", "Distance between offered prices and registered closing prices"},
}

// Catalog returns the documented indicators. It is informational only.
func Catalog() []IndicatorInfo {
	out := make([]IndicatorInfo, len(indicatorCatalog))
	copy(out, indicatorCatalog)
	return out
}

// LookupIndicator finds catalog metadata for a code.
func LookupIndicator(code string) (IndicatorInfo, bool) {
	for _, info := range indicatorCatalog {
		if info.Code == code {
			return info, true
		}
	}
	return IndicatorInfo{}, false
}
