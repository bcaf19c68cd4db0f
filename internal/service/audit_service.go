package service

import (
	"context"

	"rps_arena/internal/domain"
	"rps_arena/internal/logger"
	"rps_arena/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditService handles audit logging
type AuditService struct {
	repo *repository.AuditRepository
}

// NewAuditService creates a new audit service
func NewAuditService(db *pgxpool.Pool) *AuditService {
	return &AuditService{
		repo: repository.NewAuditRepository(db),
	}
}

// Log stores an entry. Failures are logged, never returned.
func (s *AuditService) Log(ctx context.Context, entry *domain.AuditLog) {
	if err := s.repo.Create(ctx, entry); err != nil {
		logger.Error("failed to create audit log", "error", err, "action", entry.Action, "address", entry.Address)
	}
}

// LogMatch records an action on a match
func (s *AuditService) LogMatch(ctx context.Context, address string, matchID int64, action, category string, details map[string]interface{}) {
	s.Log(ctx, &domain.AuditLog{
		Address:  address,
		MatchID:  &matchID,
		Action:   action,
		Category: category,
		Details:  details,
	})
}

// LogLogin logs a wallet login
func (s *AuditService) LogLogin(ctx context.Context, address, ip, userAgent string) {
	s.Log(ctx, &domain.AuditLog{
		Address:   address,
		Action:    domain.AuditActionLogin,
		Category:  domain.AuditCategoryAuth,
		IP:        ip,
		UserAgent: userAgent,
	})
}

// MatchTrail returns the audit trail of a match
func (s *AuditService) MatchTrail(ctx context.Context, matchID int64, limit int) ([]*domain.AuditLog, error) {
	return s.repo.GetByMatchID(ctx, matchID, limit)
}

// AddressTrail returns the latest events recorded for a wallet
func (s *AuditService) AddressTrail(ctx context.Context, address string, limit int) ([]*domain.AuditLog, error) {
	return s.repo.GetByAddress(ctx, address, limit)
}
