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

// RevokeApiKey requires SelfOrTenantAdmin. Cache mutation reads
// keyid:<key_id> to recover the plaintext, deletes both entries, and
// tolerates either being already missing (spec.md §4.6).
func (uc *UseCase) RevokeApiKey(ctx context.Context, principal *auth.Principal, targetUserID, keyID string) (err error) {
	defer instrument("RevokeApiKey", time.Now(), &err)

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
		return apperr.Forbidden("insufficient privileges to revoke this api key")
	}

	candidateEvent, err := user.RevokeApiKey(keyID)
	if err != nil {
		return apperr.Translate(err)
	}

	_, committed, err := uc.Store.Append(ctx, targetUserID, user.Version, []domain.NewEvent{candidateEvent})
	if err != nil {
		return translateStoreErr(err)
	}

	if err := uc.Publisher.Publish(ctx, committed); err != nil {
		logger.Errorf("command: publish failed after revoke api key %s: %v", keyID, err)
	}

	plain, err := uc.AuthCache.GetPlainKeyByKeyID(ctx, keyID)
	if err != nil && err != authcache.ErrMiss {
		logger.Errorf("command: auth cache lookup failed for key id %s: %v", keyID, err)
	}

	if plain != "" {
		if err := uc.AuthCache.DeleteByPlainKey(ctx, plain); err != nil {
			logger.Errorf("command: auth cache delete by plain key failed: %v", err)
		}
	}

	if err := uc.AuthCache.DeleteByKeyID(ctx, keyID); err != nil {
		logger.Errorf("command: auth cache delete by key id failed: %v", err)
	}

	return nil
}
