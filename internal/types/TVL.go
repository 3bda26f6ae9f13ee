package types

// TVLCategory is the asset class of a TVL contribution.
type TVLCategory string

const (
	CategoryNone     TVLCategory = "none"
	CategoryVolatile TVLCategory = "volatile"
	CategoryLending  TVLCategory = "lending"
)

// IsValid reports whether c is a known category.
func (c TVLCategory) IsValid() bool {
	switch c {
	case CategoryNone, CategoryVolatile, CategoryLending:
		return true
	}
	return false
}

// TVLType classifies a contribution by how it was sourced.
type TVLType string

const (
	TVLProtocolLocked TVLType = "ProtocolLocked"
	TVLContracted     TVLType = "Contracted"
	TVLOrganic        TVLType = "Organic"
	TVLBoosted        TVLType = "Boosted"
)

// AllTVLTypes lists the types in reporting order.
var AllTVLTypes = []TVLType{TVLProtocolLocked, TVLContracted, TVLOrganic, TVLBoosted}

// TVLContribution is a revenue-bearing deposit for a fixed window.
// Active for StartMonth <= month < EndMonth.
type TVLContribution struct {
	Counterparty     string      `json:"counterparty"`
	AmountUSD        float64     `json:"amount_usd"`
	RevenueRate      float64     `json:"revenue_rate"` // annual
	StartMonth       int         `json:"start_month"`
	EndMonth         int         `json:"end_month"`
	LinearRampMonths int         `json:"linear_ramp_months,omitempty"`
	Type             TVLType     `json:"tvl_type"`
	Category         TVLCategory `json:"category"`
	IRRThreshold     float64     `json:"irr_threshold,omitempty"` // set when the deal also carries bonds
}

// IsActive reports whether the contribution counts in the given month.
func (c TVLContribution) IsActive(month int) bool {
	return c.StartMonth <= month && month < c.EndMonth
}
