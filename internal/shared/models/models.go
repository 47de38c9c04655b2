package models

import "time"

// APIKey represents a gateway API key. The raw key is never stored; only
// its SHA-256 digest is persisted, and the raw value is returned to the
// caller exactly once at creation time.
type APIKey struct {
	ID              string     `json:"id"`
	KeyHash         string     `json:"-"`
	Name            string     `json:"name"`
	IsActive        bool       `json:"is_active"`
	CreatedBy       *string    `json:"created_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	RateLimit       *int       `json:"rate_limit,omitempty"`
	RateLimitPeriod *int       `json:"rate_limit_period,omitempty"`
}

// IsExpired reports whether the key's expiry, if set, has passed.
func (k *APIKey) IsExpired() bool {
	if k.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*k.ExpiresAt)
}

// Surgeon represents a healthcare provider.
type Surgeon struct {
	ID                   string     `json:"id"`
	NPI                  string     `json:"npi"`
	FirstName            string     `json:"first_name"`
	LastName             string     `json:"last_name"`
	SpecialtyCode        string     `json:"specialty_code"`
	SpecialtyDescription *string    `json:"specialty_description,omitempty"`
	AddressLine1         *string    `json:"address_line1,omitempty"`
	AddressLine2         *string    `json:"address_line2,omitempty"`
	City                 *string    `json:"city,omitempty"`
	State                *string    `json:"state,omitempty"`
	ZipCode              *string    `json:"zip_code,omitempty"`
	Latitude             *float64   `json:"latitude,omitempty"`
	Longitude            *float64   `json:"longitude,omitempty"`
	AcceptsMedicare      bool       `json:"accepts_medicare"`
	IsActive             bool       `json:"is_active"`
	TotalClaims          int        `json:"total_claims"`
	AverageQualityScore  *float64   `json:"average_quality_score,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            *time.Time `json:"updated_at,omitempty"`
}

// FullName returns the surgeon's display name.
func (s *Surgeon) FullName() string {
	return s.FirstName + " " + s.LastName
}

// Claim represents a medical claim tied to a surgeon.
type Claim struct {
	ID                   string     `json:"id"`
	ClaimID              string     `json:"claim_id"`
	SurgeonID            string     `json:"surgeon_id"`
	PatientID            string     `json:"patient_id"`
	ProcedureCode        string     `json:"procedure_code"`
	ProcedureDescription *string    `json:"procedure_description,omitempty"`
	ClaimDate            time.Time  `json:"claim_date"`
	PaidAmount           float64    `json:"paid_amount"`
	AllowedAmount        float64    `json:"allowed_amount"`
	PlaceOfService       *string    `json:"place_of_service,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            *time.Time `json:"updated_at,omitempty"`
}

// QualityMetric is a calculated quality measure for a surgeon over a period.
type QualityMetric struct {
	ID            string    `json:"id"`
	SurgeonID     string    `json:"surgeon_id"`
	MetricName    string    `json:"metric_name"`
	MetricValue   float64   `json:"metric_value"`
	MetricUnit    *string   `json:"metric_unit,omitempty"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	ProcedureCode *string   `json:"procedure_code,omitempty"`
	CalculatedAt  time.Time `json:"calculated_at"`
}

// UsageLog is an append-only record of one gated request.
type UsageLog struct {
	ID         string    `json:"id"`
	APIKeyID   string    `json:"api_key_id"`
	Endpoint   string    `json:"endpoint"`
	Method     string    `json:"method"`
	StatusCode int       `json:"status_code"`
	ClientIP   *string   `json:"client_ip,omitempty"`
	UserAgent  *string   `json:"user_agent,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
