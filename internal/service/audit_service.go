package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hospital-inventory/internal/repository"
	"hospital-inventory/pkg/pagination"
)

type AuditLogResponse struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	Username   string          `json:"username"`
	Action     string          `json:"action"`
	EntityID   string          `json:"entityId"`
	EntityName string          `json:"entityName"`
	Details    json.RawMessage `json:"details"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type AuditLogQuery struct {
	Action   string
	EntityID string
	Page     int
	Limit    int
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, q AuditLogQuery) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

// GetAuditLogs returns newest entries first with the acting user's name resolved.
func (s *auditService) GetAuditLogs(ctx context.Context, q AuditLogQuery) ([]AuditLogResponse, int64, error) {
	p := pagination.New(q.Page, q.Limit)
	logs, total, err := s.repo.List(ctx, repository.AuditFilter{
		Action:   q.Action,
		EntityID: q.EntityID,
		Page:     p.Page,
		Limit:    p.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		username := "System"
		userID := ""
		if l.User != nil {
			username = l.User.Username
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}

		details := json.RawMessage(l.Details)
		if !json.Valid(details) {
			details = json.RawMessage("null")
		}

		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     userID,
			Username:   username,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    details,
			CreatedAt:  l.CreatedAt,
		})
	}

	return res, total, nil
}
