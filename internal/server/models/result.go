package models

import "time"

// AIResult is one structured extraction produced by the AI worker for a job,
// stored denormalized for dashboard queries.
type AIResult struct {
	ID           int64     `json:"id,omitempty"`
	JobID        string    `json:"jobId"`
	CompanyName  string    `json:"company_name"`
	Price        float64   `json:"price"`
	ReceiptDate  string    `json:"date"`
	UploaderName string    `json:"uploader_name"`
	RawOCR       string    `json:"raw_ocr"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
}
