package admin

import (
	"context"
	"encoding/json"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/models"
)

// LogAdminAction records an admin action in the audit log
func LogAdminAction(db *sqlx.DB, adminID, ip, route, action string, details map[string]interface{}, success bool) error {
	if details == nil {
		details = map[string]interface{}{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		log.Printf("[ADMIN] Failed to marshal audit details: %v", err)
		detailsJSON = []byte("{}")
	}

	_, err = db.Exec(`
		INSERT INTO admin_audit (admin_id, ip, route, action, details, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, adminID, ip, route, action, detailsJSON, success)

	if err != nil {
		log.Printf("[ADMIN] Failed to log admin action %s: %v", action, err)
	}

	return err
}

// GetAdminAuditLogs returns audit entries newest first, optionally for one admin.
func GetAdminAuditLogs(ctx context.Context, db *sqlx.DB, adminID string, limit, offset int) ([]models.AdminAudit, int, error) {
	type row struct {
		models.AdminAudit
		TotalCount int `db:"total_count"`
	}
	var rows []row
	err := db.SelectContext(ctx, &rows, `
		SELECT id, admin_id, ip, route, action, details, success, created_at, COUNT(*) OVER() AS total_count
		FROM admin_audit
		WHERE ($1 = '' OR admin_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, adminID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	logs := make([]models.AdminAudit, 0, len(rows))
	total := 0
	for _, r := range rows {
		logs = append(logs, r.AdminAudit)
		total = r.TotalCount
	}
	return logs, total, nil
}
