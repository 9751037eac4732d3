package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aeroframe-io/core/internal/apperr"
	"github.com/aeroframe-io/core/internal/auth"
	"github.com/aeroframe-io/core/internal/domain"
	"github.com/aeroframe-io/core/internal/mlog"
)

// CreateTenant requires PlatformAdminOnly.
func (uc *UseCase) CreateTenant(ctx context.Context, principal *auth.Principal, name string) (tenantID string, err error) {
	defer instrument("CreateTenant", time.Now(), &err)

	logger := mlog.NewLoggerFromContext(ctx)

	if principal == nil || !auth.Authorize(*principal, auth.Requirement{Kind: auth.PlatformAdminOnly}) {
		return "", apperr.Forbidden("only a platform admin may create tenants")
	}

	candidateEvent, err := domain.CreateTenant(name)
	if err != nil {
		return "", apperr.Translate(err)
	}

	tenantID = uuid.NewString()

	_, committed, err := uc.Store.Append(ctx, tenantID, 0, []domain.NewEvent{candidateEvent})
	if err != nil {
		return "", translateStoreErr(err)
	}

	if err := uc.Publisher.Publish(ctx, committed); err != nil {
		logger.Errorf("command: publish failed after create tenant %s: %v", tenantID, err)
	}

	return tenantID, nil
}
