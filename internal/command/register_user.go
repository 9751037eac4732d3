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

// RegisterUserInput is the validated request body for POST /api/users.
type RegisterUserInput struct {
	Username          string
	Email             string
	PasswordPlaintext string
	InitialRole       domain.Role
	TenantID          *string
}

// RegisterUser implements the enforcement matrix row for RegisterUser:
// PlatformAdmin (any tenant) OR TenantAdmin (own tenant, not creating a
// PlatformAdmin) OR the bootstrap exception (zero users exist).
func (uc *UseCase) RegisterUser(ctx context.Context, principal *auth.Principal, in RegisterUserInput) (userID string, err error) {
	defer instrument("RegisterUser", time.Now(), &err)

	logger := mlog.NewLoggerFromContext(ctx)

	if err := uc.authorizeRegisterUser(ctx, principal, in); err != nil {
		return "", err
	}

	taken, err := uc.ReadModel.UsernameOrEmailTaken(ctx, in.Username, in.Email)
	if err != nil {
		return "", apperr.Internal("checking username/email uniqueness", err)
	}

	if taken {
		return "", apperr.Validation("username or email already registered", apperr.ErrUsernameTaken)
	}

	passwordHash, err := auth.HashPassword(in.PasswordPlaintext)
	if err != nil {
		return "", apperr.Internal("hashing password", err)
	}

	userID = uuid.NewString()

	candidateEvent, err := domain.RegisterUser(userID, in.Username, in.Email, passwordHash, in.InitialRole, in.TenantID)
	if err != nil {
		return "", apperr.Translate(err)
	}

	_, committed, err := uc.Store.Append(ctx, userID, 0, []domain.NewEvent{candidateEvent})
	if err != nil {
		return "", translateStoreErr(err)
	}

	if err := uc.Publisher.Publish(ctx, committed); err != nil {
		logger.Errorf("command: publish failed after register user %s: %v", userID, err)
	}

	return userID, nil
}

func (uc *UseCase) authorizeRegisterUser(ctx context.Context, principal *auth.Principal, in RegisterUserInput) error {
	if principal == nil {
		count, err := uc.ReadModel.CountUsers(ctx)
		if err != nil {
			return apperr.Internal("checking bootstrap eligibility", err)
		}

		if count == 0 && in.InitialRole == domain.RolePlatformAdmin && in.TenantID == nil {
			return nil
		}

		return apperr.Forbidden("authentication required")
	}

	if principal.Role == domain.RolePlatformAdmin {
		return nil
	}

	if principal.Role == domain.RoleTenantAdmin {
		if in.InitialRole == domain.RolePlatformAdmin {
			return apperr.Forbidden("tenant admin cannot create a platform admin")
		}

		if in.TenantID == nil || principal.TenantID == nil || *in.TenantID != *principal.TenantID {
			return apperr.Forbidden("tenant admin may only register users within their own tenant")
		}

		return nil
	}

	return apperr.Forbidden("insufficient privileges to register a user")
}

