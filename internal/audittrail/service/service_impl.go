package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	audittraildomain "github.com/dealerdesk/taxengine/internal/audittrail/domain"
	"github.com/dealerdesk/taxengine/internal/clock"
	"github.com/dealerdesk/taxengine/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  audittraildomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  audittraildomain.Repository
}

func NewService(p Params) audittraildomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audittrail.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Append writes one immutable audit entry on the caller's transaction
// handle, so the entry commits or rolls back with the calculation it
// records. Returns the calculation id for later lookup.
func (s *Service) Append(ctx context.Context, tx *gorm.DB, entry *audittraildomain.TaxAuditLog) (string, error) {
	if entry == nil || strings.TrimSpace(entry.CalculationID) == "" {
		return "", audittraildomain.ErrInvalidCalculationID
	}
	if strings.TrimSpace(entry.DealershipID) == "" {
		return "", audittraildomain.ErrInvalidDealership
	}

	if entry.ID == 0 {
		entry.ID = s.genID.Generate()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock.Now()
	}

	handle := tx
	if handle == nil {
		handle = s.db
	}
	if err := s.repo.Insert(ctx, handle, entry); err != nil {
		s.log.Error("failed to append tax audit entry",
			zap.String("calculation_id", entry.CalculationID),
			zap.Error(err),
		)
		return "", err
	}
	return entry.CalculationID, nil
}

func (s *Service) GetByCalculationID(ctx context.Context, calculationID string) (*audittraildomain.TaxAuditLog, error) {
	calculationID = strings.TrimSpace(calculationID)
	if calculationID == "" {
		return nil, audittraildomain.ErrInvalidCalculationID
	}

	entry, err := s.repo.FindByCalculationID(ctx, s.db, calculationID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, audittraildomain.ErrEntryNotFound
	}
	return entry, nil
}

// GetByDeal returns a deal's full calculation history in chronological
// order, enabling exact reproduction of any prior total.
func (s *Service) GetByDeal(ctx context.Context, dealID string) ([]audittraildomain.TaxAuditLog, error) {
	dealID = strings.TrimSpace(dealID)
	if dealID == "" {
		return nil, audittraildomain.ErrInvalidDealID
	}
	return s.repo.ListByDeal(ctx, s.db, dealID)
}

func (s *Service) List(ctx context.Context, req audittraildomain.ListRequest) (audittraildomain.ListResponse, error) {
	if strings.TrimSpace(req.DealershipID) == "" {
		return audittraildomain.ListResponse{}, audittraildomain.ErrInvalidDealership
	}
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return audittraildomain.ListResponse{}, audittraildomain.ErrInvalidTimeRange
	}

	var cursor *audittraildomain.AuditCursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return audittraildomain.ListResponse{}, audittraildomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339, decoded.CreatedAt)
		if err != nil {
			return audittraildomain.ListResponse{}, audittraildomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return audittraildomain.ListResponse{}, audittraildomain.ErrInvalidPageToken
		}
		cursor = &audittraildomain.AuditCursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.List(ctx, s.db, audittraildomain.ListFilter{
		DealershipID: req.DealershipID,
		Type:         req.Type,
		StartAt:      req.StartAt,
		EndAt:        req.EndAt,
		Cursor:       cursor,
		Limit:        pageSize,
	})
	if err != nil {
		return audittraildomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(item *audittraildomain.TaxAuditLog) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	logs := make([]audittraildomain.TaxAuditLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}

	resp := audittraildomain.ListResponse{AuditLogs: logs}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}
