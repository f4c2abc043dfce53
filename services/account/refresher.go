package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"socialplane/pkg/config"
	"socialplane/pkg/rediskey"
	"socialplane/pkg/tokencrypt"
	"socialplane/services/channels"
)

var ErrNotConnected = errors.New("account: social account is not connected")

// Refresher ensures an account's access token is valid for the next publish
// attempt, rotating it when expiry is inside the configured horizon. An
// irrecoverable refresh failure marks the account disconnected but still
// hands back the stale credential so the attempt fails with the platform's
// own auth error.
type Refresher struct {
	repo   Repository
	rdb    *redis.Client
	sealer *tokencrypt.Sealer
	cfg    *config.Config
	client *resty.Client
	group  singleflight.Group
	now    func() time.Time

	metaTokenURL     string
	linkedinTokenURL string
}

func NewRefresher(repo Repository, rdb *redis.Client, sealer *tokencrypt.Sealer, cfg *config.Config) *Refresher {
	return &Refresher{
		repo:             repo,
		rdb:              rdb,
		sealer:           sealer,
		cfg:              cfg,
		client:           resty.New().SetTimeout(20 * time.Second),
		now:              time.Now,
		metaTokenURL:     cfg.Meta.GraphURL + "/oauth/access_token",
		linkedinTokenURL: "https://www.linkedin.com/oauth/v2/accessToken",
	}
}

// EnsureFresh resolves the live credential for an account, refreshing and
// persisting first when the token is near expiry.
func (r *Refresher) EnsureFresh(ctx context.Context, acct *SocialAccount) (channels.Credential, error) {
	if !acct.IsConnected() {
		return channels.Credential{}, ErrNotConnected
	}

	if acct.ExpiresWithin(r.cfg.Publish.RefreshHorizon, r.now()) {
		// Concurrent publishes for the same brand must not refresh the
		// same credential twice: singleflight collapses in-process
		// callers, the redis lock covers other processes.
		refreshed, err, _ := r.group.Do(acct.ID, func() (any, error) {
			return r.refreshLocked(ctx, acct), nil
		})
		if err == nil {
			if updated, ok := refreshed.(*SocialAccount); ok && updated != nil {
				acct = updated
			}
		}
	}

	token, err := r.sealer.Open(acct.AccessToken)
	if err != nil {
		return channels.Credential{}, fmt.Errorf("account %s: unseal access token: %w", acct.ID, err)
	}

	return channels.Credential{AccountID: acct.ExternalID, AccessToken: token}, nil
}

// refreshLocked performs one refresh under a short-lived redis lock. It
// returns the updated account row, or nil when the refresh was skipped or
// failed (callers fall back to the stale token).
func (r *Refresher) refreshLocked(ctx context.Context, acct *SocialAccount) *SocialAccount {
	zapLog := zap.L().With(
		zap.String("account_id", acct.ID),
		zap.String("provider", acct.Provider),
	)

	if r.rdb != nil {
		lockKey := rediskey.AccountRefreshLock(acct.ID)
		acquired, err := r.rdb.SetNX(ctx, lockKey, "1", r.cfg.Publish.RefreshLockTTL).Result()
		if err != nil {
			zapLog.Warn("refresh lock unavailable, proceeding with current token", zap.Error(err))
			return nil
		}
		if !acquired {
			zapLog.Debug("refresh already in flight elsewhere")
			return nil
		}
		defer r.rdb.Del(context.WithoutCancel(ctx), lockKey)
	}

	plainAccess, err := r.sealer.Open(acct.AccessToken)
	if err != nil {
		zapLog.Error("cannot unseal access token for refresh", zap.Error(err))
		return nil
	}

	var rotated *rotatedToken
	switch acct.Provider {
	case "facebook", "instagram":
		rotated, err = r.exchangeMetaToken(ctx, plainAccess)
	case "linkedin":
		rotated, err = r.exchangeLinkedInToken(ctx, acct)
	default:
		zapLog.Warn("no refresh flow for provider")
		return nil
	}
	if err != nil {
		zapLog.Error("token refresh failed, marking account disconnected", zap.Error(err))
		if markErr := r.repo.MarkDisconnected(ctx, acct.ID, "token refresh failed: "+err.Error()); markErr != nil {
			zapLog.Error("failed to mark account disconnected", zap.Error(markErr))
		}
		return nil
	}

	sealedAccess, err := r.sealer.Seal(rotated.accessToken)
	if err != nil {
		zapLog.Error("cannot seal rotated token", zap.Error(err))
		return nil
	}
	var sealedRefresh *string
	if rotated.refreshToken != "" {
		sealed, err := r.sealer.Seal(rotated.refreshToken)
		if err != nil {
			zapLog.Error("cannot seal rotated refresh token", zap.Error(err))
			return nil
		}
		sealedRefresh = &sealed
	}

	expiresAt := r.now().Add(time.Duration(rotated.expiresIn) * time.Second)
	if err := r.repo.UpdateTokens(ctx, acct.ID, sealedAccess, sealedRefresh, expiresAt); err != nil {
		zapLog.Error("failed to persist rotated token", zap.Error(err))
		return nil
	}

	zapLog.Info("access token rotated", zap.Time("expires_at", expiresAt))

	updated := *acct
	updated.AccessToken = sealedAccess
	if sealedRefresh != nil {
		updated.RefreshToken = sealedRefresh
	}
	updated.TokenExpiresAt = &expiresAt
	updated.Status = Connected
	return &updated
}

type rotatedToken struct {
	accessToken  string
	refreshToken string
	expiresIn    int64
}

type metaTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Error       *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// exchangeMetaToken trades the current long-lived token for a fresh one.
func (r *Refresher) exchangeMetaToken(ctx context.Context, currentToken string) (*rotatedToken, error) {
	var body metaTokenResponse
	_, err := r.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"grant_type":        "fb_exchange_token",
			"client_id":         r.cfg.Meta.AppID,
			"client_secret":     r.cfg.Meta.AppSecret,
			"fb_exchange_token": currentToken,
		}).
		SetResult(&body).
		SetError(&body).
		Get(r.metaTokenURL)
	if err != nil {
		return nil, err
	}
	if body.Error != nil {
		return nil, fmt.Errorf("meta token exchange: %s (code %d)", body.Error.Message, body.Error.Code)
	}
	if body.AccessToken == "" {
		return nil, errors.New("meta token exchange returned no token")
	}

	expiresIn := body.ExpiresIn
	if expiresIn == 0 {
		// Meta omits expires_in for non-expiring page tokens; treat as 60 days.
		expiresIn = int64((60 * 24 * time.Hour).Seconds())
	}
	return &rotatedToken{accessToken: body.AccessToken, expiresIn: expiresIn}, nil
}

type linkedInTokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"`
	ErrorCode        string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (r *Refresher) exchangeLinkedInToken(ctx context.Context, acct *SocialAccount) (*rotatedToken, error) {
	if acct.RefreshToken == nil {
		return nil, errors.New("linkedin account has no refresh token")
	}
	plainRefresh, err := r.sealer.Open(*acct.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("unseal refresh token: %w", err)
	}

	var body linkedInTokenResponse
	_, err = r.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": plainRefresh,
			"client_id":     r.cfg.LinkedIn.ClientID,
			"client_secret": r.cfg.LinkedIn.ClientSecret,
		}).
		SetResult(&body).
		SetError(&body).
		Post(r.linkedinTokenURL)
	if err != nil {
		return nil, err
	}
	if body.ErrorCode != "" {
		return nil, fmt.Errorf("linkedin refresh grant: %s: %s", body.ErrorCode, body.ErrorDescription)
	}
	if body.AccessToken == "" {
		return nil, errors.New("linkedin refresh grant returned no token")
	}

	return &rotatedToken{
		accessToken:  body.AccessToken,
		refreshToken: body.RefreshToken,
		expiresIn:    body.ExpiresIn,
	}, nil
}
