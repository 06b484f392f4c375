// internal/leadstore/store.go
package leadstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"intake-crm-workers/internal/models"
)

const SourceName = "postgres"

const leadColumns = `id, first_name, last_name, email, phone, status, contact_outcome, follow_up_reason, priority, source, referring_provider, created_at, updated_at`

const (
	activeLeadsQuery  = `SELECT ` + leadColumns + ` FROM leads WHERE deleted_at IS NULL ORDER BY created_at DESC`
	deletedLeadsQuery = `SELECT ` + leadColumns + `, deleted_at FROM leads WHERE deleted_at IS NOT NULL ORDER BY deleted_at DESC`
)

// DeletedLead is a soft-deleted lead shown in the recovery view.
type DeletedLead struct {
	models.Lead
	DeletedAt time.Time `json:"deletedAt"`
}

// Store reads leads from the CRM's Postgres replica.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Name() string { return SourceName }

// FetchLeads returns the non-deleted leads, newest first.
func (s *Store) FetchLeads(ctx context.Context) ([]models.Lead, error) {
	rows, err := s.db.QueryContext(ctx, activeLeadsQuery)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	leads := make([]models.Lead, 0)
	for rows.Next() {
		var r leadRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, r.lead())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return leads, nil
}

// FetchDeletedLeads returns soft-deleted leads, most recently deleted first.
func (s *Store) FetchDeletedLeads(ctx context.Context) ([]DeletedLead, error) {
	rows, err := s.db.QueryContext(ctx, deletedLeadsQuery)
	if err != nil {
		return nil, fmt.Errorf("query deleted leads: %w", err)
	}
	defer rows.Close()

	out := make([]DeletedLead, 0)
	for rows.Next() {
		var r leadRow
		var deletedAt time.Time
		if err := rows.Scan(append(r.dest(), &deletedAt)...); err != nil {
			return nil, fmt.Errorf("scan deleted lead: %w", err)
		}
		out = append(out, DeletedLead{Lead: r.lead(), DeletedAt: deletedAt})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deleted leads: %w", err)
	}
	return out, nil
}

type leadRow struct {
	id                string
	firstName         sql.NullString
	lastName          sql.NullString
	email             sql.NullString
	phone             sql.NullString
	status            string
	contactOutcome    sql.NullString
	followUpReason    sql.NullString
	priority          sql.NullString
	source            sql.NullString
	referringProvider sql.NullString
	createdAt         time.Time
	updatedAt         sql.NullTime
}

func (r *leadRow) dest() []interface{} {
	return []interface{}{
		&r.id, &r.firstName, &r.lastName, &r.email, &r.phone, &r.status,
		&r.contactOutcome, &r.followUpReason, &r.priority, &r.source,
		&r.referringProvider, &r.createdAt, &r.updatedAt,
	}
}

func (r *leadRow) lead() models.Lead {
	l := models.Lead{
		ID:                r.id,
		FirstName:         r.firstName.String,
		LastName:          r.lastName.String,
		Email:             r.email.String,
		Phone:             r.phone.String,
		Status:            models.LeadStatus(r.status),
		ContactOutcome:    models.ContactOutcome(r.contactOutcome.String),
		FollowUpReason:    r.followUpReason.String,
		Priority:          models.Priority(r.priority.String),
		Source:            r.source.String,
		ReferringProvider: r.referringProvider.String,
		CreatedAt:         r.createdAt,
	}
	if r.updatedAt.Valid {
		l.UpdatedAt = r.updatedAt.Time
	}
	return l
}
