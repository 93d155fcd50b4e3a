package core

// MonthlySummary is the consolidated row for one property and month.
// Pointer fields are nullable: dimension fields are nil when the property is
// unknown, MarginPercent is nil when GrossRevenue is zero and AvgRating is nil
// when the property received no rated feedback.
type MonthlySummary struct {
	PropertyID string `json:"property_id"`
	Month      string `json:"month"`

	ReservationsCount int     `json:"reservations_count"`
	GrossRevenue      float64 `json:"gross_revenue"`
	OccupiedDays      int     `json:"occupied_days"`
	OccupancyRate     float64 `json:"occupancy_rate"`

	Condominium *string `json:"condominium"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	Region      *string `json:"region"`
	Status      *string `json:"status"`

	FeePercentage     float64  `json:"fee_percentage"`
	PlatformFeeAmount float64  `json:"platform_fee_amount"`
	ExtraCostTotal    float64  `json:"extra_cost_total"`
	NetRevenue        float64  `json:"net_revenue"`
	MarginValue       float64  `json:"margin_value"`
	MarginPercent     *float64 `json:"margin_percent"`

	AvgRating      *float64 `json:"avg_rating"`
	ComplaintsList string   `json:"complaints_list"`
	OwnerName      *string  `json:"owner_name"`
}

// PropertyDimension is a row of the properties table.
type PropertyDimension struct {
	PropertyID  string  `json:"property_id"`
	Condominium *string `json:"condominium"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	Region      *string `json:"region"`
	Status      *string `json:"status"`
}

// Dimension extracts the dimension columns of s.
func (s MonthlySummary) Dimension() PropertyDimension {
	return PropertyDimension{
		PropertyID:  s.PropertyID,
		Condominium: s.Condominium,
		City:        s.City,
		State:       s.State,
		Region:      s.Region,
		Status:      s.Status,
	}
}

// Dimensions returns the distinct dimension rows of rows, keeping the last
// occurrence of each property and the order of first appearance.
func Dimensions(rows []MonthlySummary) []PropertyDimension {
	index := make(map[string]int, len(rows))
	out := make([]PropertyDimension, 0, len(rows))
	for _, r := range rows {
		if i, ok := index[r.PropertyID]; ok {
			out[i] = r.Dimension()
			continue
		}
		index[r.PropertyID] = len(out)
		out = append(out, r.Dimension())
	}
	return out
}

// SingleMonth returns the month shared by every row.
func SingleMonth(rows []MonthlySummary) (string, error) {
	if len(rows) == 0 {
		return "", ErrEmptySummary
	}
	month := rows[0].Month
	for _, r := range rows[1:] {
		if r.Month != month {
			return "", ErrMixedPeriods
		}
	}
	return month, nil
}

// Stats are the headline numbers of a closing run.
type Stats struct {
	TotalProperties   int      `json:"total_properties"`
	TotalRevenue      float64  `json:"total_revenue"`
	NetRevenue        float64  `json:"net_revenue"`
	AvgOccupancy      float64  `json:"avg_occupancy"`
	AvgRating         *float64 `json:"avg_rating"`
	TotalReservations int      `json:"total_reservations"`
}

// ComputeStats aggregates rows. AvgOccupancy is a percentage and AvgRating
// ignores properties without rating.
func ComputeStats(rows []MonthlySummary) Stats {
	st := Stats{TotalProperties: len(rows)}
	if len(rows) == 0 {
		return st
	}
	var occupancy, ratingSum float64
	var rated int
	for _, r := range rows {
		st.TotalRevenue += r.GrossRevenue
		st.NetRevenue += r.NetRevenue
		st.TotalReservations += r.ReservationsCount
		occupancy += r.OccupancyRate
		if r.AvgRating != nil {
			ratingSum += *r.AvgRating
			rated++
		}
	}
	st.AvgOccupancy = occupancy / float64(len(rows)) * 100
	if rated > 0 {
		avg := ratingSum / float64(rated)
		st.AvgRating = &avg
	}
	return st
}

// StringValue dereferences a nullable string, returning "" for nil.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
