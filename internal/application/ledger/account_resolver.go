package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccountResolver looks accounts up by code and creates missing system
// accounts on demand.
type AccountResolver struct {
	autoCreate bool
	logger     *zap.Logger
}

func NewAccountResolver(autoCreate bool, logger *zap.Logger) *AccountResolver {
	return &AccountResolver{autoCreate: autoCreate, logger: logger}
}

// FindOrCreate returns the account with code, inserting a system account
// built from defaults when none exists. A concurrent writer that inserts
// the same code first wins; the loser re-reads the winner's row.
func (r *AccountResolver) FindOrCreate(ctx context.Context, repo ledger.AccountRepository, tenantID uuid.UUID, code string, defaults ledger.AccountDefaults) (*ledger.Account, error) {
	acc, err := repo.FindByCode(ctx, tenantID, code)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up account %s: %w", code, err)
	}
	if !r.autoCreate {
		return nil, ledger.ErrAccountNotFound.Newf("account %s does not exist and auto-create is disabled", code)
	}

	candidate, err := ledger.NewSystemAccount(tenantID, code, defaults)
	if err != nil {
		return nil, err
	}
	created, err := repo.CreateIfAbsent(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to create account %s: %w", code, err)
	}
	if created {
		r.logger.Info("system account created",
			zap.String("tenant_id", tenantID.String()),
			zap.String("account_code", code),
			zap.String("account_type", string(defaults.Type)),
		)
		return candidate, nil
	}

	r.logger.Debug("account created concurrently, re-reading",
		zap.String("tenant_id", tenantID.String()),
		zap.String("account_code", code),
	)
	acc, err = repo.FindByCode(ctx, tenantID, code)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read account %s: %w", code, err)
	}
	return acc, nil
}

// Resolve looks up the account serving role in catalog.
func (r *AccountResolver) Resolve(ctx context.Context, repo ledger.AccountRepository, catalog *AccountCatalog, tenantID uuid.UUID, role AccountRole) (*ledger.Account, error) {
	entry, err := catalog.Lookup(role)
	if err != nil {
		return nil, err
	}
	return r.FindOrCreate(ctx, repo, tenantID, entry.Code, entry.Defaults)
}
