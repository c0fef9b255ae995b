// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"context"
	"testing"
	"time"

	"github.com/keithshino/accountUnlock/app/dto"
	"github.com/keithshino/accountUnlock/app/services"
	businessflow "github.com/keithshino/accountUnlock/business_flow"
	"github.com/keithshino/accountUnlock/models"
	"github.com/keithshino/accountUnlock/repository"
	testingutil "github.com/keithshino/accountUnlock/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGoogleVerifier returns a canned identity instead of calling Google
type stubGoogleVerifier struct {
	identity *services.GoogleIdentity
	err      error
}

func (s *stubGoogleVerifier) Verify(ctx context.Context, idToken string) (*services.GoogleIdentity, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.identity, nil
}

// recordingProfileCache tracks which cached profiles the auth flow drops
type recordingProfileCache struct {
	invalidated []uint
}

func (r *recordingProfileCache) GetProfile(ctx context.Context, userID uint) (*dto.GetProfileResponse, error) {
	return nil, nil
}

func (r *recordingProfileCache) InvalidateProfile(ctx context.Context, userID uint) {
	r.invalidated = append(r.invalidated, userID)
}

func newAuthFlow(t *testing.T, testDB *testingutil.TestDB, verifier services.GoogleVerifier) businessflow.AuthFlow {
	return newAuthFlowWithProfile(t, testDB, verifier, nil)
}

func newAuthFlowWithProfile(t *testing.T, testDB *testingutil.TestDB, verifier services.GoogleVerifier, profileFlow businessflow.ProfileFlow) businessflow.AuthFlow {
	t.Helper()
	tokenService, err := services.NewTokenService(
		time.Hour,
		24*time.Hour,
		"account-unlock-desk",
		"account-unlock-desk-api",
		false,
		"", "",
		"test-secret-key-with-at-least-32-characters",
	)
	require.NoError(t, err)

	return businessflow.NewAuthFlow(
		repository.NewUserRepository(testDB.DB),
		repository.NewUserSessionRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		tokenService,
		verifier,
		nil,
		profileFlow,
		businessflow.AuthFlowConfig{
			SupportDomain:          "example.co.jp",
			AllowedDomains:         []string{"example.co.jp", "example.com"},
			BcryptCost:             10,
			SupportCaptchaRequired: false,
		},
		testDB.DB,
	)
}

func TestSignupAndLogin(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newAuthFlow(t, testDB, &stubGoogleVerifier{})
		ctx := testingutil.CreateTestContext()
		metadata := testMetadata()

		signup := &dto.SignupRequest{
			Email:           "Hanako@Example.com",
			DisplayName:     "Hanako Sato",
			Password:        "SecurePass123!",
			ConfirmPassword: "SecurePass123!",
		}

		resp, err := flow.Signup(ctx, signup, metadata)
		require.NoError(t, err)
		assert.Equal(t, "hanako@example.com", resp.User.Email, "emails are normalized")
		assert.Equal(t, models.RoleClient, resp.User.Role)
		assert.Equal(t, models.ProviderPassword, resp.User.Provider)
		assert.NotEmpty(t, resp.Session.AccessToken)
		assert.NotEmpty(t, resp.Session.RefreshToken)

		t.Run("DuplicateEmail", func(t *testing.T) {
			_, err := flow.Signup(ctx, signup, metadata)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrEmailAlreadyExists)
		})

		t.Run("LoginSucceeds", func(t *testing.T) {
			resp, err := flow.Login(ctx, &dto.LoginRequest{
				Email:    "hanako@example.com",
				Password: "SecurePass123!",
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "hanako@example.com", resp.User.Email)
			assert.NotEmpty(t, resp.Session.AccessToken)
		})

		t.Run("LoginWrongPassword", func(t *testing.T) {
			_, err := flow.Login(ctx, &dto.LoginRequest{
				Email:    "hanako@example.com",
				Password: "WrongPass123!",
			}, metadata)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrIncorrectPassword)
		})

		t.Run("LoginUnknownEmail", func(t *testing.T) {
			_, err := flow.Login(ctx, &dto.LoginRequest{
				Email:    "nobody@example.com",
				Password: "SecurePass123!",
			}, metadata)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrUserNotFound)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestGoogleLoginRoles(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		metadata := testMetadata()

		t.Run("CompanyDomainGetsSupportRole", func(t *testing.T) {
			flow := newAuthFlow(t, testDB, &stubGoogleVerifier{identity: &services.GoogleIdentity{
				Subject:       "sub-support-1",
				Email:         "staff@example.co.jp",
				EmailVerified: true,
				Name:          "Support Staff",
				HostedDomain:  "example.co.jp",
			}})

			resp, err := flow.GoogleLogin(ctx, &dto.GoogleLoginRequest{IDToken: "stub-token-0123456789"}, metadata)
			require.NoError(t, err)
			assert.Equal(t, models.RoleSupport, resp.User.Role)
			assert.Equal(t, models.ProviderGoogle, resp.User.Provider)
		})

		t.Run("OtherAllowedDomainGetsClientRole", func(t *testing.T) {
			flow := newAuthFlow(t, testDB, &stubGoogleVerifier{identity: &services.GoogleIdentity{
				Subject:       "sub-client-1",
				Email:         "partner@example.com",
				EmailVerified: true,
				Name:          "Partner User",
			}})

			resp, err := flow.GoogleLogin(ctx, &dto.GoogleLoginRequest{IDToken: "stub-token-0123456789"}, metadata)
			require.NoError(t, err)
			assert.Equal(t, models.RoleClient, resp.User.Role)
		})

		t.Run("ForeignDomainRejected", func(t *testing.T) {
			flow := newAuthFlow(t, testDB, &stubGoogleVerifier{identity: &services.GoogleIdentity{
				Subject:       "sub-foreign-1",
				Email:         "intruder@elsewhere.org",
				EmailVerified: true,
			}})

			_, err := flow.GoogleLogin(ctx, &dto.GoogleLoginRequest{IDToken: "stub-token-0123456789"}, metadata)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrUnauthorizedDomain)

			// Rejection must not leave a session behind
			var count int64
			require.NoError(t, testDB.DB.Table("user_sessions").Count(&count).Error)
			assert.Equal(t, int64(0), count)
		})

		t.Run("UnverifiedEmailRejected", func(t *testing.T) {
			flow := newAuthFlow(t, testDB, &stubGoogleVerifier{identity: &services.GoogleIdentity{
				Subject:       "sub-unverified-1",
				Email:         "staff2@example.co.jp",
				EmailVerified: false,
			}})

			_, err := flow.GoogleLogin(ctx, &dto.GoogleLoginRequest{IDToken: "stub-token-0123456789"}, metadata)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrEmailNotVerified)
		})

		t.Run("ExistingPasswordAccountIsLinked", func(t *testing.T) {
			signupFlow := newAuthFlow(t, testDB, &stubGoogleVerifier{})
			_, err := signupFlow.Signup(ctx, &dto.SignupRequest{
				Email:           "linked@example.com",
				DisplayName:     "Linked User",
				Password:        "SecurePass123!",
				ConfirmPassword: "SecurePass123!",
			}, metadata)
			require.NoError(t, err)

			flow := newAuthFlow(t, testDB, &stubGoogleVerifier{identity: &services.GoogleIdentity{
				Subject:       "sub-linked-1",
				Email:         "linked@example.com",
				EmailVerified: true,
				Name:          "Linked User",
			}})

			resp, err := flow.GoogleLogin(ctx, &dto.GoogleLoginRequest{IDToken: "stub-token-0123456789"}, metadata)
			require.NoError(t, err)
			assert.Equal(t, models.ProviderGoogle, resp.User.Provider)

			userRepo := repository.NewUserRepository(testDB.DB)
			linked, err := userRepo.ByGoogleSubject(ctx, "sub-linked-1")
			require.NoError(t, err)
			require.NotNil(t, linked)
			assert.Equal(t, "linked@example.com", linked.Email)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newAuthFlow(t, testDB, &stubGoogleVerifier{})
		ctx := testingutil.CreateTestContext()
		metadata := testMetadata()

		resp, err := flow.Signup(ctx, &dto.SignupRequest{
			Email:           "session@example.com",
			DisplayName:     "Session User",
			Password:        "SecurePass123!",
			ConfirmPassword: "SecurePass123!",
		}, metadata)
		require.NoError(t, err)

		t.Run("RefreshIssuesNewSession", func(t *testing.T) {
			session, err := flow.RefreshToken(ctx, &dto.RefreshTokenRequest{
				RefreshToken: resp.Session.RefreshToken,
			}, metadata)
			require.NoError(t, err)
			assert.NotEmpty(t, session.AccessToken)
			assert.NotEqual(t, resp.Session.AccessToken, session.AccessToken)

			// The old refresh token is single-use
			_, err = flow.RefreshToken(ctx, &dto.RefreshTokenRequest{
				RefreshToken: resp.Session.RefreshToken,
			}, metadata)
			assert.Error(t, err)
		})

		t.Run("LogoutRevokesSession", func(t *testing.T) {
			login, err := flow.Login(ctx, &dto.LoginRequest{
				Email:    "session@example.com",
				Password: "SecurePass123!",
			}, metadata)
			require.NoError(t, err)

			require.NoError(t, flow.Logout(ctx, login.Session.AccessToken, metadata))

			_, err = flow.RefreshToken(ctx, &dto.RefreshTokenRequest{
				RefreshToken: login.Session.RefreshToken,
			}, metadata)
			assert.Error(t, err)
		})

		t.Run("LogoutUnknownSession", func(t *testing.T) {
			err := flow.Logout(ctx, "no-such-session-token", metadata)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrSessionNotFound)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestSignInDropsCachedProfile(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		metadata := testMetadata()

		t.Run("GoogleLinkInvalidates", func(t *testing.T) {
			cache := &recordingProfileCache{}

			signupFlow := newAuthFlowWithProfile(t, testDB, &stubGoogleVerifier{}, cache)
			_, err := signupFlow.Signup(ctx, &dto.SignupRequest{
				Email:           "promote@example.co.jp",
				DisplayName:     "Promote Me",
				Password:        "SecurePass123!",
				ConfirmPassword: "SecurePass123!",
			}, metadata)
			require.NoError(t, err)

			// Linking flips the account to support, the stale cached
			// profile must not outlive that
			flow := newAuthFlowWithProfile(t, testDB, &stubGoogleVerifier{identity: &services.GoogleIdentity{
				Subject:       "sub-promote-1",
				Email:         "promote@example.co.jp",
				EmailVerified: true,
				Name:          "Promote Me",
				HostedDomain:  "example.co.jp",
			}}, cache)

			resp, err := flow.GoogleLogin(ctx, &dto.GoogleLoginRequest{IDToken: "stub-token-0123456789"}, metadata)
			require.NoError(t, err)
			assert.Equal(t, models.RoleSupport, resp.User.Role)
			assert.Contains(t, cache.invalidated, resp.User.ID)
		})

		t.Run("PasswordLoginInvalidates", func(t *testing.T) {
			cache := &recordingProfileCache{}
			flow := newAuthFlowWithProfile(t, testDB, &stubGoogleVerifier{}, cache)

			_, err := flow.Signup(ctx, &dto.SignupRequest{
				Email:           "fresh@example.com",
				DisplayName:     "Fresh User",
				Password:        "SecurePass123!",
				ConfirmPassword: "SecurePass123!",
			}, metadata)
			require.NoError(t, err)

			resp, err := flow.Login(ctx, &dto.LoginRequest{
				Email:    "fresh@example.com",
				Password: "SecurePass123!",
			}, metadata)
			require.NoError(t, err)
			assert.Contains(t, cache.invalidated, resp.User.ID)
		})

		t.Run("RejectedLoginLeavesCacheAlone", func(t *testing.T) {
			cache := &recordingProfileCache{}
			flow := newAuthFlowWithProfile(t, testDB, &stubGoogleVerifier{identity: &services.GoogleIdentity{
				Subject:       "sub-rejected-1",
				Email:         "rejected@elsewhere.org",
				EmailVerified: true,
			}}, cache)

			_, err := flow.GoogleLogin(ctx, &dto.GoogleLoginRequest{IDToken: "stub-token-0123456789"}, metadata)
			require.Error(t, err)
			assert.Empty(t, cache.invalidated)
		})

		return nil
	})
	require.NoError(t, err)
}
