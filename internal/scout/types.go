// Package scout defines core types shared across subsystems.
package scout

import (
	"math"
	"time"
)

// JobStatus represents the lifecycle state of a comparison job.
type JobStatus string

// Job status values held in the job store. Status is monotonic: once a job
// reaches Completed or Failed it never changes again.
const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the status is a final state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job represents one asynchronous (product, location) comparison request
// and its accumulating per-site results.
type Job struct {
	ID          string       `json:"id"`
	Product     string       `json:"product"`
	Location    string       `json:"location"`
	Status      JobStatus    `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
	SiteResults []SiteResult `json:"site_results,omitempty"`
	ErrorText   string       `json:"error,omitempty"`
}

// SiteResult is produced once per site per job and never mutated afterwards.
type SiteResult struct {
	Site         string    `json:"site"`
	Success      bool      `json:"success"`
	DurationMs   int64     `json:"duration_ms"`
	ProductCount int       `json:"product_count"`
	Products     []Product `json:"products"`
	ErrorText    string    `json:"error,omitempty"`
}

// Product is a normalized record extracted from one product card.
// Discount and DiscountAmount are set iff both Price and MRP are present
// and MRP > Price.
type Product struct {
	Name           string   `json:"name"`
	Price          *float64 `json:"price"`
	MRP            *float64 `json:"mrp"`
	Discount       *float64 `json:"discount"`
	DiscountAmount *float64 `json:"discount_amount"`
	IsOutOfStock   bool     `json:"is_out_of_stock"`
	ImageURL       *string  `json:"image_url"`
	ProductURL     *string  `json:"product_url"`
	Quantity       *string  `json:"quantity"`
	DeliveryTime   *string  `json:"delivery_time"`
	Badges         []string `json:"badges"`
}

// ApplyDiscount derives the discount fields from Price and MRP, clearing
// them when the invariant does not hold.
func (p *Product) ApplyDiscount() {
	p.Discount = nil
	p.DiscountAmount = nil
	if p.Price == nil || p.MRP == nil {
		return
	}
	if *p.MRP <= *p.Price {
		return
	}
	amount := *p.MRP - *p.Price
	pct := math.Round(amount / *p.MRP * 100)
	p.Discount = &pct
	p.DiscountAmount = &amount
}

// Artifact is the JSON document persisted per site per job run.
type Artifact struct {
	Website       string    `json:"website"`
	Location      string    `json:"location"`
	Product       string    `json:"product"`
	Timestamp     time.Time `json:"timestamp"`
	TotalProducts int       `json:"totalProducts"`
	Products      []Product `json:"products"`
}

// CompletionEvent is published when a job reaches a terminal state.
type CompletionEvent struct {
	JobID     string         `json:"job_id"`
	Product   string         `json:"product"`
	Location  string         `json:"location"`
	Status    JobStatus      `json:"status"`
	SiteCount map[string]int `json:"site_counts"`
	Timestamp time.Time      `json:"timestamp"`
}

// CardSummary holds the fields parsed from a product card's markup before
// the detail page has been visited for prices.
type CardSummary struct {
	Name         string
	ImageURL     *string
	ProductURL   *string
	Quantity     *string
	DeliveryTime *string
	Badges       []string
	IsOutOfStock bool
}

// Card is an addressable handle to one product tile within the search
// results listing. Index stays valid until the listing is re-queried.
type Card struct {
	Index int
	HTML  string
}
