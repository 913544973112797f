package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/strideteam/competition-engine/models"
)

type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

type postgresAuditLogRepository struct {
	db *sql.DB
}

func NewPostgresAuditLogRepository(db *sql.DB) AuditLogRepository {
	return &postgresAuditLogRepository{db: db}
}

func (r *postgresAuditLogRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	var detailsRaw []byte
	if entry.Details != nil {
		var err error
		detailsRaw, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to encode audit log details: %w", err)
		}
	}

	query := `
		INSERT INTO audit_logs (action, entity_type, entity_id, details)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		entry.Action, entry.EntityType, entry.EntityID, detailsRaw,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create audit log entry: %w", err)
	}
	return nil
}
