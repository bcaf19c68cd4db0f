package domain

import "time"

// AuditLog represents an audit log entry for tracking important actions
type AuditLog struct {
	ID        int64                  `db:"id" json:"id"`
	Address   string                 `db:"address" json:"address"`
	MatchID   *int64                 `db:"match_id" json:"match_id,omitempty"`
	Action    string                 `db:"action" json:"action"`
	Category  string                 `db:"category" json:"category"`
	Details   map[string]interface{} `db:"details" json:"details"`
	IP        string                 `db:"ip" json:"ip,omitempty"`
	UserAgent string                 `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

// Audit action categories
const (
	AuditCategoryAuth       = "auth"
	AuditCategoryMatch      = "match"
	AuditCategorySettlement = "settlement"
)

// Audit actions
const (
	AuditActionLogin = "login"

	AuditActionMatchCreate = "match_create"
	AuditActionMatchJoin   = "match_join"
	AuditActionMatchMove   = "match_move"
	AuditActionMatchReset  = "match_reset"

	AuditActionSettleDraw   = "settle_draw"
	AuditActionSettlePaid   = "settle_paid"
	AuditActionSettleFailed = "settle_failed"
)
