package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/mesafast/mesafast-backend/pkg/errors"
)

// ResolvedItem is the catalog snapshot used to price an order. Prices come
// from the store, never from client input.
type ResolvedItem struct {
	ID         uuid.UUID
	MerchantID uuid.UUID
	Name       string
	PriceCents int
	Available  bool
}

// Service exposes the catalog lookups consumed by order creation.
type Service interface {
	ResolveItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ResolvedItem, error)
	DeliveryFeeCents(ctx context.Context, merchantID uuid.UUID, platformDefault int) (int, error)
}

type service struct {
	repo Repository
}

// NewService builds a catalog service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

// ResolveItems loads the requested menu items keyed by id. Ids that do not
// resolve are simply absent from the result; callers decide whether a miss
// is fatal.
func (s *service) ResolveItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ResolvedItem, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]ResolvedItem{}, nil
	}

	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	rows, err := s.repo.FindMenuItemsByIDs(ctx, unique)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve menu items")
	}

	resolved := make(map[uuid.UUID]ResolvedItem, len(rows))
	for _, row := range rows {
		resolved[row.ID] = ResolvedItem{
			ID:         row.ID,
			MerchantID: row.MerchantID,
			Name:       row.Name,
			PriceCents: row.PriceCents,
			Available:  row.Available,
		}
	}
	return resolved, nil
}

// DeliveryFeeCents returns the merchant's fee override when set, otherwise
// the platform default. The fee is fixed here so pricing stays deterministic
// before checkout confirmation.
func (s *service) DeliveryFeeCents(ctx context.Context, merchantID uuid.UUID, platformDefault int) (int, error) {
	merchant, err := s.repo.FindMerchant(ctx, merchantID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, pkgerrors.New(pkgerrors.CodeItemResolution, "merchant not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant")
	}
	if !merchant.Active {
		return 0, pkgerrors.New(pkgerrors.CodeItemResolution, "merchant is not accepting orders")
	}
	if merchant.DeliveryFeeCents != nil && *merchant.DeliveryFeeCents >= 0 {
		return *merchant.DeliveryFeeCents, nil
	}
	return platformDefault, nil
}
