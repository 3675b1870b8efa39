package models

import (
	"time"
)

// Client is the company contesting its FAP.
type Client struct {
	ID           int64  `json:"id"`
	TenantID     int64  `json:"tenant_id"`
	Name         string `json:"name"`
	CNPJ         string `json:"cnpj"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`
}

// Court is the judicial venue ("vara") a case is filed at.
type Court struct {
	ID       int64  `json:"id"`
	TenantID int64  `json:"tenant_id"`
	Name     string `json:"name"`
	City     string `json:"city"`
	State    string `json:"state"`
}

// Case is one FAP contestation matter.
type Case struct {
	ID           int64      `json:"id"`
	TenantID     int64      `json:"tenant_id"`
	ClientID     int64      `json:"client_id"`
	CourtID      *int64     `json:"court_id,omitempty"`
	Title        string     `json:"title"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	Value        *float64   `json:"value,omitempty"`
	FilingDate   *time.Time `json:"filing_date,omitempty"`
	FapStartYear *int       `json:"fap_start_year,omitempty"`
	FapEndYear   *int       `json:"fap_end_year,omitempty"`
	Facts        string     `json:"facts"`
	Thesis       string     `json:"thesis"`
	Prescription string     `json:"prescription"`

	// FapReasonID is the legacy case level reason. Benefit level
	// classification takes precedence when present.
	FapReasonID *int64     `json:"fap_reason_id,omitempty"`
	FapReason   *FapReason `json:"fap_reason,omitempty"`

	Client *Client `json:"client,omitempty"`
	Court  *Court  `json:"court,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FapYears returns the inclusive year range of the case, ok=false when either end is missing.
func (c *Case) FapYears() (start, end int, ok bool) {
	if c.FapStartYear == nil || c.FapEndYear == nil {
		return 0, 0, false
	}
	return *c.FapStartYear, *c.FapEndYear, true
}
