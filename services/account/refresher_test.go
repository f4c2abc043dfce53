package account

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"socialplane/pkg/config"
	"socialplane/pkg/tokencrypt"
	"socialplane/services/testutil"
)

func testSealer(t *testing.T) *tokencrypt.Sealer {
	t.Helper()
	s, err := tokencrypt.NewSealer(&config.Config{SecretKey: strings.Repeat("cd", 32)})
	require.NoError(t, err)
	return s
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Publish.RefreshHorizon = 7 * 24 * time.Hour
	cfg.Publish.RefreshLockTTL = 30 * time.Second
	cfg.Meta.AppID = "app-id"
	cfg.Meta.AppSecret = "app-secret"
	return cfg
}

func seedAccount(t *testing.T, db *gorm.DB, sealer *tokencrypt.Sealer, provider string, expiresIn time.Duration) *SocialAccount {
	t.Helper()

	sealed, err := sealer.Seal("old-token")
	require.NoError(t, err)

	exp := time.Now().Add(expiresIn)
	acct := &SocialAccount{
		ID:             "acct-" + provider,
		BrandID:        "brand-1",
		Provider:       provider,
		ExternalID:     "ext-1",
		AccessToken:    sealed,
		TokenExpiresAt: &exp,
		Status:         Connected,
	}
	require.NoError(t, db.Create(acct).Error)
	return acct
}

func TestEnsureFreshSkipsRefreshOutsideHorizon(t *testing.T) {
	db := testutil.NewTestDB(t, &SocialAccount{})
	sealer := testSealer(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		t.Fatal("no refresh call expected")
	}))
	defer server.Close()

	r := NewRefresher(NewRepository(db), nil, sealer, testConfig())
	r.metaTokenURL = server.URL

	acct := seedAccount(t, db, sealer, "facebook", 30*24*time.Hour)

	cred, err := r.EnsureFresh(context.Background(), acct)
	require.NoError(t, err)
	require.Equal(t, "old-token", cred.AccessToken)
	require.Equal(t, "ext-1", cred.AccountID)
}

func TestEnsureFreshRotatesNearExpiryToken(t *testing.T) {
	db := testutil.NewTestDB(t, &SocialAccount{})
	sealer := testSealer(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.Equal(t, "fb_exchange_token", r.URL.Query().Get("grant_type"))
		require.Equal(t, "old-token", r.URL.Query().Get("fb_exchange_token"))
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "new-token",
			"token_type":   "bearer",
			"expires_in":   5184000,
		})
	}))
	defer server.Close()

	r := NewRefresher(NewRepository(db), nil, sealer, testConfig())
	r.metaTokenURL = server.URL

	acct := seedAccount(t, db, sealer, "facebook", 24*time.Hour)

	cred, err := r.EnsureFresh(context.Background(), acct)
	require.NoError(t, err)
	require.Equal(t, "new-token", cred.AccessToken)

	var stored SocialAccount
	require.NoError(t, db.First(&stored, "id = ?", acct.ID).Error)
	require.Equal(t, Connected, stored.Status)
	require.True(t, stored.TokenExpiresAt.After(time.Now().Add(29*24*time.Hour)))

	plain, err := sealer.Open(stored.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "new-token", plain)
}

func TestEnsureFreshRefreshFailureDisconnectsButProceeds(t *testing.T) {
	db := testutil.NewTestDB(t, &SocialAccount{})
	sealer := testSealer(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "Error validating client secret", "code": 1},
		})
	}))
	defer server.Close()

	r := NewRefresher(NewRepository(db), nil, sealer, testConfig())
	r.metaTokenURL = server.URL

	acct := seedAccount(t, db, sealer, "instagram", time.Hour)

	cred, err := r.EnsureFresh(context.Background(), acct)
	require.NoError(t, err)
	require.Equal(t, "old-token", cred.AccessToken, "stale credential still handed back")

	var stored SocialAccount
	require.NoError(t, db.First(&stored, "id = ?", acct.ID).Error)
	require.Equal(t, Disconnected, stored.Status)
	require.Contains(t, *stored.LastError, "token refresh failed")
}

func TestEnsureFreshRejectsDisconnectedAccount(t *testing.T) {
	db := testutil.NewTestDB(t, &SocialAccount{})
	sealer := testSealer(t)

	r := NewRefresher(NewRepository(db), nil, sealer, testConfig())

	acct := seedAccount(t, db, sealer, "facebook", time.Hour)
	acct.Status = Disconnected

	_, err := r.EnsureFresh(context.Background(), acct)
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestEnsureFreshLinkedInRefreshGrant(t *testing.T) {
	db := testutil.NewTestDB(t, &SocialAccount{})
	sealer := testSealer(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		require.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "li-new",
			"refresh_token": "li-refresh-new",
			"expires_in":    86400,
		})
	}))
	defer server.Close()

	r := NewRefresher(NewRepository(db), nil, sealer, testConfig())
	r.linkedinTokenURL = server.URL

	acct := seedAccount(t, db, sealer, "linkedin", time.Hour)
	sealedRefresh, err := sealer.Seal("old-refresh")
	require.NoError(t, err)
	require.NoError(t, db.Model(acct).Update("refresh_token", sealedRefresh).Error)
	acct.RefreshToken = &sealedRefresh

	cred, err := r.EnsureFresh(context.Background(), acct)
	require.NoError(t, err)
	require.Equal(t, "li-new", cred.AccessToken)

	var stored SocialAccount
	require.NoError(t, db.First(&stored, "id = ?", acct.ID).Error)
	plainRefresh, err := sealer.Open(*stored.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "li-refresh-new", plainRefresh)
}
