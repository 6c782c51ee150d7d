package domain

const bytesPerGB = 1 << 30

// PlanID identifies a subscription tier.
type PlanID string

const (
	PlanFree  PlanID = "free"
	PlanBasic PlanID = "basic"
	PlanPro   PlanID = "pro"
)

// Plan describes the entitlements of a subscription tier. Admission policy is
// expressed through MaxConcurrentSessions rather than comparisons on the plan
// id, so the free/metered split lives in exactly one place.
type Plan struct {
	ID                    PlanID
	MonthlyPriceUSD       float64
	BandwidthLimitMbps    int
	MonthlyTrafficLimitGB int
	// DeviceLimit is 0 for unlimited.
	DeviceLimit int
}

var planCatalog = map[PlanID]Plan{
	PlanFree: {
		ID:                    PlanFree,
		MonthlyPriceUSD:       0,
		BandwidthLimitMbps:    1,
		MonthlyTrafficLimitGB: 50,
		DeviceLimit:           1,
	},
	PlanBasic: {
		ID:                    PlanBasic,
		MonthlyPriceUSD:       18,
		BandwidthLimitMbps:    300,
		MonthlyTrafficLimitGB: 200,
		DeviceLimit:           0,
	},
	PlanPro: {
		ID:                    PlanPro,
		MonthlyPriceUSD:       38,
		BandwidthLimitMbps:    600,
		MonthlyTrafficLimitGB: 500,
		DeviceLimit:           0,
	},
}

// PlanOrder lists plans from cheapest to most expensive, for catalog listings.
var PlanOrder = []PlanID{PlanFree, PlanBasic, PlanPro}

// ResolvePlan maps an arbitrary plan id string onto a known plan. Unknown or
// empty ids resolve to the free tier so a corrupted subscription record can
// never grant paid entitlements.
func ResolvePlan(id string) Plan {
	if p, ok := planCatalog[PlanID(id)]; ok {
		return p
	}
	return planCatalog[PlanFree]
}

// MaxConcurrentSessions returns the per-user concurrent relay session bound.
// Zero means unbounded.
func (p Plan) MaxConcurrentSessions() int {
	if p.ID == PlanFree {
		return 1
	}
	return 0
}

// QuotaBytes returns the monthly traffic quota in bytes.
func (p Plan) QuotaBytes() int64 {
	return int64(p.MonthlyTrafficLimitGB) * bytesPerGB
}

// IsQuotaExceeded reports whether bytes meets or exceeds the plan's monthly
// quota. The boundary itself counts as exceeded.
func (p Plan) IsQuotaExceeded(bytes int64) bool {
	return bytes >= p.QuotaBytes()
}
