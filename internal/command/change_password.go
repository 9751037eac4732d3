package command

import (
	"context"
	"time"

	"github.com/aeroframe-io/core/internal/apperr"
	"github.com/aeroframe-io/core/internal/auth"
	"github.com/aeroframe-io/core/internal/domain"
	"github.com/aeroframe-io/core/internal/mlog"
)

// ChangePassword requires SelfOrTenantAdmin and verification of the old
// password against the currently folded hash.
func (uc *UseCase) ChangePassword(ctx context.Context, principal *auth.Principal, targetUserID, oldPassword, newPassword string) (err error) {
	defer instrument("ChangePassword", time.Now(), &err)

	logger := mlog.NewLoggerFromContext(ctx)

	events, err := uc.Store.Load(ctx, targetUserID)
	if err != nil {
		return apperr.Internal("loading user stream", err)
	}

	user, err := domain.FoldUser(targetUserID, events)
	if err != nil {
		return apperr.Internal("folding user stream", err)
	}

	if !user.Exists() {
		return apperr.NotFound("user not found")
	}

	if principal == nil || !auth.Authorize(*principal, auth.Requirement{Kind: auth.SelfOrTenantAdmin, TargetUserID: user.ID, TargetTenantID: user.TenantID}) {
		return apperr.Forbidden("insufficient privileges to change this user's password")
	}

	ok, err := auth.VerifyPassword(oldPassword, user.PasswordHash)
	if err != nil || !ok {
		return apperr.Validation("old password does not match", apperr.ErrInvalidCredentials)
	}

	newHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return apperr.Internal("hashing new password", err)
	}

	candidateEvent, err := user.ChangePassword(newHash)
	if err != nil {
		return apperr.Translate(err)
	}

	_, committed, err := uc.Store.Append(ctx, targetUserID, user.Version, []domain.NewEvent{candidateEvent})
	if err != nil {
		return translateStoreErr(err)
	}

	if err := uc.Publisher.Publish(ctx, committed); err != nil {
		logger.Errorf("command: publish failed after change password for %s: %v", targetUserID, err)
	}

	return nil
}
