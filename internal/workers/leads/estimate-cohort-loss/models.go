// internal/workers/leads/estimate-cohort-loss/models.go
package estimatecohortloss

type Input struct {
	CohortSize int   `json:"cohortSize"`
	Periods    []int `json:"periods,omitempty"`
	// LostCount is the lost figure reported by the CRM, when it has one.
	LostCount *int `json:"lostCount,omitempty"`
}

type Output struct {
	LostCount     int     `json:"lostCount"`
	Approximate   bool    `json:"approximate"`
	RetentionRate float64 `json:"retentionRate"`
}
