package models

import "time"

// Branch is a serviced location belonging to a company. Its lifecycle is
// independent of the visits scheduled against it.
type Branch struct {
	ID         string    `db:"id" json:"id"`
	CompanyID  string    `db:"company_id" json:"company_id"`
	Name       string    `db:"name" json:"name"`
	City       string    `db:"city" json:"city"`
	IsArchived bool      `db:"is_archived" json:"is_archived"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
