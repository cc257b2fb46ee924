package receipts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/tourbook-backend/internal/repo"
	"github.com/angelmondragon/tourbook-backend/pkg/db"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Page is one slice of a session's receipts, newest first.
type Page struct {
	Rows       []models.CheckoutReceipt
	NextCursor string
}

// Repository persists checkout receipts.
type Repository interface {
	Create(ctx context.Context, receipt *models.CheckoutReceipt) error
	ListBySession(ctx context.Context, sessionID string, params pagination.Params) (Page, error)
	FindByOrderID(ctx context.Context, orderID string) (*models.CheckoutReceipt, error)
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository binds the repository to a gorm connection.
func NewRepository(conn *gorm.DB) Repository {
	if conn == nil {
		return nil
	}
	return &repository{Base: repo.NewBase(conn)}
}

func (r *repository) Create(ctx context.Context, receipt *models.CheckoutReceipt) error {
	if receipt == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "receipt is required")
	}
	if strings.TrimSpace(receipt.SessionID) == "" || strings.TrimSpace(receipt.OrderID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id and order id are required")
	}
	if receipt.ID == uuid.Nil {
		receipt.ID = uuid.New()
	}
	if err := r.DB(ctx).Create(receipt).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "receipt already recorded for order")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store checkout receipt")
	}
	return nil
}

// ListBySession returns the newest receipts first, resuming after params.Cursor.
func (r *repository) ListBySession(ctx context.Context, sessionID string, params pagination.Params) (Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return Page{}, err
	}
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.DB(ctx).Where("session_id = ?", sessionID)
	if cursor != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.CheckoutReceipt
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list checkout receipts")
	}

	rows, more := pagination.Split(rows, limit)
	page := Page{Rows: rows}
	if more {
		last := rows[len(rows)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID string) (*models.CheckoutReceipt, error) {
	var row models.CheckoutReceipt
	err := r.DB(ctx).Where("order_id = ?", orderID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "receipt not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find checkout receipt")
	}
	return &row, nil
}

// DeleteOlderThan removes receipts created before cutoff. A nil tx uses the
// repository connection.
func (r *repository) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	result := r.Conn(ctx, tx).
		Where("created_at < ?", cutoff).
		Delete(&models.CheckoutReceipt{})
	if result.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "delete expired receipts")
	}
	return result.RowsAffected, nil
}
