package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/mesafast/mesafast-backend/pkg/db/models"
)

// Repository defines persistence operations for catalog lookups.
type Repository interface {
	FindMenuItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.MenuItem, error)
	FindMerchant(ctx context.Context, merchantID uuid.UUID) (*models.Merchant, error)
}
