package models

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/seuros/raporta/internal/database"
)

// Website is one tracked site.
type Website struct {
	WebsiteID uuid.UUID  `json:"website_id"`
	Name      *string    `json:"name,omitempty"`
	Domain    string     `json:"domain"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// GetWebsiteByID loads one website, excluding soft-deleted rows.
func GetWebsiteByID(ctx context.Context, websiteID uuid.UUID) (*Website, error) {
	query := `
		SELECT website_id, name, domain, created_at, updated_at
		FROM website
		WHERE website_id = $1
		  AND deleted_at IS NULL
	`
	var w Website
	var nameNull sql.NullString
	err := database.DB.QueryRowContext(ctx, query, websiteID).Scan(
		&w.WebsiteID,
		&nameNull,
		&w.Domain,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if nameNull.Valid {
		w.Name = &nameNull.String
	}
	return &w, nil
}

// GetWebsiteByDomain loads one website by its domain.
func GetWebsiteByDomain(ctx context.Context, domain string) (*Website, error) {
	query := `
		SELECT website_id, name, domain, created_at, updated_at
		FROM website
		WHERE domain = $1
		  AND deleted_at IS NULL
	`
	var w Website
	var nameNull sql.NullString
	err := database.DB.QueryRowContext(ctx, query, domain).Scan(
		&w.WebsiteID,
		&nameNull,
		&w.Domain,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if nameNull.Valid {
		w.Name = &nameNull.String
	}
	return &w, nil
}

// ListWebsites returns all live websites, newest first.
func ListWebsites(ctx context.Context) ([]*Website, error) {
	query := `
		SELECT website_id, name, domain, created_at, updated_at
		FROM website
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`
	rows, err := database.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var websites []*Website
	for rows.Next() {
		var w Website
		var nameNull sql.NullString
		if err := rows.Scan(&w.WebsiteID, &nameNull, &w.Domain, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		if nameNull.Valid {
			w.Name = &nameNull.String
		}
		websites = append(websites, &w)
	}
	return websites, rows.Err()
}

// CreateWebsite registers a new website.
func CreateWebsite(ctx context.Context, domain string, name *string) (*Website, error) {
	if domain == "" {
		return nil, fmt.Errorf("domain is required")
	}

	w := &Website{
		WebsiteID: uuid.New(),
		Domain:    domain,
		Name:      name,
	}
	query := `
		INSERT INTO website (website_id, name, domain, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := database.DB.QueryRowContext(ctx, query, w.WebsiteID, name, domain).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// DeleteWebsite soft-deletes a website; its events stay queryable for exports.
func DeleteWebsite(ctx context.Context, websiteID uuid.UUID) error {
	query := `UPDATE website SET deleted_at = NOW() WHERE website_id = $1 AND deleted_at IS NULL`
	result, err := database.DB.ExecContext(ctx, query, websiteID)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
