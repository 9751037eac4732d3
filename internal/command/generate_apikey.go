package command

import (
	"context"
	"time"

	"github.com/aeroframe-io/core/internal/apperr"
	"github.com/aeroframe-io/core/internal/auth"
	"github.com/aeroframe-io/core/internal/authcache"
	"github.com/aeroframe-io/core/internal/domain"
	"github.com/aeroframe-io/core/internal/mlog"
)

// GenerateApiKey implements SelfOrTenantAdmin{target_user_id, target_tenant}
// OR the bootstrap exception: unauthenticated is permitted only when the
// target user currently has zero active keys (spec.md §4.9).
func (uc *UseCase) GenerateApiKey(ctx context.Context, principal *auth.Principal, targetUserID, keyName string) (keyID, plaintext string, err error) {
	defer instrument("GenerateApiKey", time.Now(), &err)

	logger := mlog.NewLoggerFromContext(ctx)

	events, err := uc.Store.Load(ctx, targetUserID)
	if err != nil {
		return "", "", apperr.Internal("loading user stream", err)
	}

	user, err := domain.FoldUser(targetUserID, events)
	if err != nil {
		return "", "", apperr.Internal("folding user stream", err)
	}

	if !user.Exists() {
		return "", "", apperr.NotFound("user not found")
	}

	if err := uc.authorizeGenerateApiKey(principal, user); err != nil {
		return "", "", err
	}

	plaintext, generatedKeyID, err := auth.GenerateApiKey()
	if err != nil {
		return "", "", apperr.Internal("generating api key", err)
	}

	hash := auth.HashApiKey(uc.ApiKeyPepper, plaintext)

	candidateEvent, err := user.GenerateApiKey(generatedKeyID, keyName, hash, time.Now().UTC())
	if err != nil {
		return "", "", apperr.Translate(err)
	}

	_, committed, err := uc.Store.Append(ctx, targetUserID, user.Version, []domain.NewEvent{candidateEvent})
	if err != nil {
		return "", "", translateStoreErr(err)
	}

	if err := uc.Publisher.Publish(ctx, committed); err != nil {
		logger.Errorf("command: publish failed after generate api key for %s: %v", targetUserID, err)
	}

	principalRecord := authcache.CachedPrincipal{UserID: user.ID, TenantID: user.TenantID, Role: string(user.Role)}

	if err := uc.AuthCache.SetPrincipal(ctx, plaintext, principalRecord, uc.AuthCacheTTL); err != nil {
		logger.Errorf("command: auth cache set failed for new key of %s: %v", targetUserID, err)
	}

	if err := uc.AuthCache.SetKeyIDIndex(ctx, generatedKeyID, plaintext, uc.AuthCacheTTL); err != nil {
		logger.Errorf("command: auth cache key-id index set failed for %s: %v", generatedKeyID, err)
	}

	return generatedKeyID, plaintext, nil
}

func (uc *UseCase) authorizeGenerateApiKey(principal *auth.Principal, user *domain.User) error {
	if principal == nil {
		if user.ApiKeyCount() == 0 {
			return nil
		}

		return apperr.Forbidden("authentication required")
	}

	req := auth.Requirement{Kind: auth.SelfOrTenantAdmin, TargetUserID: user.ID, TargetTenantID: user.TenantID}
	if !auth.Authorize(*principal, req) {
		return apperr.Forbidden("insufficient privileges to generate an api key for this user")
	}

	return nil
}
