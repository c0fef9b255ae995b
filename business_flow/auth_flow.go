package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/keithshino/accountUnlock/app/dto"
	"github.com/keithshino/accountUnlock/app/services"
	"github.com/keithshino/accountUnlock/models"
	"github.com/keithshino/accountUnlock/repository"
	"github.com/keithshino/accountUnlock/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthFlow handles account creation and sign-in for both providers
type AuthFlow interface {
	Signup(ctx context.Context, request *dto.SignupRequest, metadata *ClientMetadata) (*dto.AuthResponse, error)
	Login(ctx context.Context, request *dto.LoginRequest, metadata *ClientMetadata) (*dto.AuthResponse, error)
	GoogleLogin(ctx context.Context, request *dto.GoogleLoginRequest, metadata *ClientMetadata) (*dto.AuthResponse, error)
	Logout(ctx context.Context, sessionToken string, metadata *ClientMetadata) error
	RefreshToken(ctx context.Context, request *dto.RefreshTokenRequest, metadata *ClientMetadata) (*dto.SessionDTO, error)
}

// AuthFlowConfig carries the sign-in policy knobs
type AuthFlowConfig struct {
	// SupportDomain gives the support role to Google accounts on this
	// domain, e.g. "example.co.jp".
	SupportDomain string
	// AllowedDomains restricts Google sign-in to the listed domains.
	// Empty means any domain may sign in (as a client).
	AllowedDomains []string
	// BcryptCost for password hashing
	BcryptCost int
	// SupportCaptchaRequired demands a solved rotate captcha on
	// password logins that resolve to a support account.
	SupportCaptchaRequired bool
}

// AuthFlowImpl implements the authentication business flow
type AuthFlowImpl struct {
	userRepo       repository.UserRepository
	sessionRepo    repository.UserSessionRepository
	auditRepo      repository.AuditLogRepository
	tokenService   services.TokenService
	googleVerifier services.GoogleVerifier
	captchaService services.CaptchaService
	profileFlow    ProfileFlow
	cfg            AuthFlowConfig
	db             *gorm.DB
}

// NewAuthFlow creates a new auth flow instance
func NewAuthFlow(
	userRepo repository.UserRepository,
	sessionRepo repository.UserSessionRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
	googleVerifier services.GoogleVerifier,
	captchaService services.CaptchaService,
	profileFlow ProfileFlow,
	cfg AuthFlowConfig,
	db *gorm.DB,
) AuthFlow {
	return &AuthFlowImpl{
		userRepo:       userRepo,
		sessionRepo:    sessionRepo,
		auditRepo:      auditRepo,
		tokenService:   tokenService,
		googleVerifier: googleVerifier,
		captchaService: captchaService,
		profileFlow:    profileFlow,
		cfg:            cfg,
		db:             db,
	}
}

func (af *AuthFlowImpl) invalidateProfile(ctx context.Context, userID uint) {
	if af.profileFlow == nil {
		return
	}
	af.profileFlow.InvalidateProfile(ctx, userID)
}

// Signup creates a password-based client account. Support accounts are
// never self-provisioned; they come from Google sign-in on the company
// domain.
func (af *AuthFlowImpl) Signup(ctx context.Context, request *dto.SignupRequest, metadata *ClientMetadata) (*dto.AuthResponse, error) {
	email := normalizeEmail(request.Email)

	resp, err := af.withAuthTransaction(ctx, func(txCtx context.Context) (*dto.AuthResponse, error) {
		existing, err := af.userRepo.ByEmail(txCtx, email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrEmailAlreadyExists
		}

		cost := af.cfg.BcryptCost
		if cost <= 0 {
			cost = bcrypt.DefaultCost
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(request.Password), cost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}

		user := &models.User{
			UUID:         uuid.New(),
			Email:        email,
			DisplayName:  request.DisplayName,
			PasswordHash: string(hash),
			Role:         models.RoleClient,
			Provider:     models.ProviderPassword,
			IsActive:     utils.ToPtr(true),
		}
		if err := af.userRepo.Save(txCtx, user); err != nil {
			return nil, err
		}

		session, err := af.createSession(txCtx, user, metadata)
		if err != nil {
			return nil, err
		}

		return &dto.AuthResponse{
			User:    ToUserDTO(*user),
			Session: ToSessionDTO(*session),
		}, nil
	})

	if err != nil {
		errMsg := fmt.Sprintf("Signup failed: %s", err.Error())
		_ = af.logAuthAttempt(ctx, nil, models.AuditActionSignupCompleted, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("SIGNUP_FAILED", "Signup failed", err)
	}

	msg := fmt.Sprintf("Account created: %s", email)
	_ = af.logAuthAttempt(ctx, &resp.User.ID, models.AuditActionSignupCompleted, msg, true, nil, metadata)
	return resp, nil
}

// Login authenticates a password account. Support logins additionally
// require a solved rotate captcha when the policy demands one.
func (af *AuthFlowImpl) Login(ctx context.Context, request *dto.LoginRequest, metadata *ClientMetadata) (*dto.AuthResponse, error) {
	email := normalizeEmail(request.Email)

	var user *models.User
	resp, err := af.withAuthTransaction(ctx, func(txCtx context.Context) (*dto.AuthResponse, error) {
		var err error
		user, err = af.userRepo.ByEmail(txCtx, email)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrUserNotFound
		}
		if !utils.IsTrue(user.IsActive) {
			return nil, ErrAccountInactive
		}
		if user.Provider != models.ProviderPassword {
			return nil, ErrWrongProvider
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(request.Password)); err != nil {
			return nil, ErrIncorrectPassword
		}

		if user.IsSupport() && af.cfg.SupportCaptchaRequired {
			if err := af.checkCaptcha(txCtx, request); err != nil {
				return nil, err
			}
		}

		session, err := af.createSession(txCtx, user, metadata)
		if err != nil {
			return nil, err
		}
		if err := af.userRepo.UpdateLastLogin(txCtx, user.ID); err != nil {
			return nil, err
		}

		return &dto.AuthResponse{
			User:    ToUserDTO(*user),
			Session: ToSessionDTO(*session),
		}, nil
	})

	if err != nil {
		errMsg := fmt.Sprintf("Login failed: %s", err.Error())
		_ = af.logAuthAttempt(ctx, userIDPtr(user), models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}

	// The cached profile carries the last-login stamp
	af.invalidateProfile(ctx, resp.User.ID)

	msg := fmt.Sprintf("User logged in successfully: %d", resp.User.ID)
	_ = af.logAuthAttempt(ctx, &resp.User.ID, models.AuditActionLoginSuccess, msg, true, nil, metadata)
	return resp, nil
}

// GoogleLogin verifies a Google ID token, provisions or updates the
// matching account and signs it in. Accounts on the support domain get
// the support role; everyone else is a client. Domains outside the
// allow-list are rejected outright so no session is ever created for
// them.
func (af *AuthFlowImpl) GoogleLogin(ctx context.Context, request *dto.GoogleLoginRequest, metadata *ClientMetadata) (*dto.AuthResponse, error) {
	identity, err := af.googleVerifier.Verify(ctx, request.IDToken)
	if err != nil {
		errMsg := fmt.Sprintf("Google login failed: %s", err.Error())
		_ = af.logAuthAttempt(ctx, nil, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("GOOGLE_LOGIN_FAILED", "Google login failed", ErrGoogleTokenInvalid)
	}
	if !identity.EmailVerified {
		errMsg := fmt.Sprintf("Google login rejected, unverified email: %s", identity.Email)
		_ = af.logAuthAttempt(ctx, nil, models.AuditActionGoogleLoginRejected, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("GOOGLE_LOGIN_FAILED", "Google login failed", ErrEmailNotVerified)
	}

	email := normalizeEmail(identity.Email)
	domain := emailDomain(email)

	if !af.isDomainAllowed(domain) {
		errMsg := fmt.Sprintf("Google login rejected, domain not allowed: %s", domain)
		_ = af.logAuthAttempt(ctx, nil, models.AuditActionGoogleLoginRejected, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("UNAUTHORIZED_DOMAIN", "Email domain is not allowed", ErrUnauthorizedDomain)
	}

	role := models.RoleClient
	if af.cfg.SupportDomain != "" && domain == strings.ToLower(af.cfg.SupportDomain) {
		role = models.RoleSupport
	}

	resp, err := af.withAuthTransaction(ctx, func(txCtx context.Context) (*dto.AuthResponse, error) {
		user, err := af.userRepo.ByGoogleSubject(txCtx, identity.Subject)
		if err != nil {
			return nil, err
		}
		if user == nil {
			// A password account with the same address is linked rather
			// than duplicated.
			user, err = af.userRepo.ByEmail(txCtx, email)
			if err != nil {
				return nil, err
			}
		}

		if user == nil {
			user = &models.User{
				UUID:          uuid.New(),
				Email:         email,
				DisplayName:   identity.Name,
				Role:          role,
				Provider:      models.ProviderGoogle,
				GoogleSubject: &identity.Subject,
				IsActive:      utils.ToPtr(true),
			}
			if err := af.userRepo.Save(txCtx, user); err != nil {
				return nil, err
			}
		} else {
			if !utils.IsTrue(user.IsActive) {
				return nil, ErrAccountInactive
			}
			user.GoogleSubject = &identity.Subject
			user.Provider = models.ProviderGoogle
			user.Role = role
			if identity.Name != "" {
				user.DisplayName = identity.Name
			}
			if err := af.userRepo.LinkGoogleAccount(txCtx, user.ID, identity.Subject, user.DisplayName, role); err != nil {
				return nil, err
			}
		}

		session, err := af.createSession(txCtx, user, metadata)
		if err != nil {
			return nil, err
		}
		if err := af.userRepo.UpdateLastLogin(txCtx, user.ID); err != nil {
			return nil, err
		}

		return &dto.AuthResponse{
			User:    ToUserDTO(*user),
			Session: ToSessionDTO(*session),
		}, nil
	})

	if err != nil {
		errMsg := fmt.Sprintf("Google login failed: %s", err.Error())
		_ = af.logAuthAttempt(ctx, nil, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("GOOGLE_LOGIN_FAILED", "Google login failed", err)
	}

	// Linking may have changed the role or display name
	af.invalidateProfile(ctx, resp.User.ID)

	msg := fmt.Sprintf("Google login: %s as %s", email, role)
	_ = af.logAuthAttempt(ctx, &resp.User.ID, models.AuditActionGoogleLoginSuccess, msg, true, nil, metadata)
	return resp, nil
}

// Logout revokes the session and its tokens
func (af *AuthFlowImpl) Logout(ctx context.Context, sessionToken string, metadata *ClientMetadata) error {
	session, err := af.sessionRepo.BySessionToken(ctx, sessionToken)
	if err != nil {
		return NewBusinessError("LOGOUT_FAILED", "Logout failed", err)
	}
	if session == nil {
		return NewBusinessError("SESSION_NOT_FOUND", "Session not found", ErrSessionNotFound)
	}

	if err := af.sessionRepo.RevokeSession(ctx, session.ID); err != nil {
		return NewBusinessError("LOGOUT_FAILED", "Logout failed", err)
	}
	_ = af.tokenService.RevokeToken(sessionToken)
	if session.RefreshToken != nil {
		_ = af.tokenService.RevokeToken(*session.RefreshToken)
	}

	msg := fmt.Sprintf("User logged out: %d", session.UserID)
	_ = af.logAuthAttempt(ctx, &session.UserID, models.AuditActionLogout, msg, true, nil, metadata)
	return nil
}

// RefreshToken rotates the token pair attached to a session
func (af *AuthFlowImpl) RefreshToken(ctx context.Context, request *dto.RefreshTokenRequest, metadata *ClientMetadata) (*dto.SessionDTO, error) {
	session, err := af.sessionRepo.ByRefreshToken(ctx, request.RefreshToken)
	if err != nil {
		return nil, NewBusinessError("REFRESH_FAILED", "Token refresh failed", err)
	}
	if session == nil {
		return nil, NewBusinessError("SESSION_NOT_FOUND", "Session not found", ErrSessionNotFound)
	}
	if !session.IsValid() {
		return nil, NewBusinessError("SESSION_EXPIRED", "Session has expired", ErrSessionExpired)
	}

	user, err := af.userRepo.ByID(ctx, session.UserID)
	if err != nil {
		return nil, NewBusinessError("REFRESH_FAILED", "Token refresh failed", err)
	}
	if user == nil || !utils.IsTrue(user.IsActive) {
		return nil, NewBusinessError("REFRESH_FAILED", "Token refresh failed", ErrAccountInactive)
	}

	var newSession *models.UserSession
	err = repository.WithTransaction(ctx, af.db, func(txCtx context.Context) error {
		if err := af.sessionRepo.RevokeSession(txCtx, session.ID); err != nil {
			return err
		}
		var err error
		newSession, err = af.createSession(txCtx, user, metadata)
		return err
	})
	if err != nil {
		return nil, NewBusinessError("REFRESH_FAILED", "Token refresh failed", err)
	}

	_ = af.tokenService.RevokeToken(request.RefreshToken)

	msg := fmt.Sprintf("Tokens refreshed for user %d", user.ID)
	_ = af.logAuthAttempt(ctx, &user.ID, models.AuditActionTokenRefreshed, msg, true, nil, metadata)

	result := ToSessionDTO(*newSession)
	return &result, nil
}

func (af *AuthFlowImpl) checkCaptcha(ctx context.Context, request *dto.LoginRequest) error {
	if af.captchaService == nil {
		return nil
	}
	if request.CaptchaID == nil || request.CaptchaAngle == nil {
		return ErrCaptchaRequired
	}
	if !af.captchaService.VerifyRotate(ctx, *request.CaptchaID, *request.CaptchaAngle) {
		return ErrCaptchaInvalid
	}
	return nil
}

func (af *AuthFlowImpl) isDomainAllowed(domain string) bool {
	if len(af.cfg.AllowedDomains) == 0 {
		return true
	}
	for _, allowed := range af.cfg.AllowedDomains {
		if domain == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func (af *AuthFlowImpl) createSession(ctx context.Context, user *models.User, metadata *ClientMetadata) (*models.UserSession, error) {
	accessToken, refreshToken, err := af.tokenService.GenerateTokens(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	expiresAt := utils.UTCNowAdd(utils.SessionTimeout)

	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	session := &models.UserSession{
		UserID:        user.ID,
		CorrelationID: uuid.New(),
		SessionToken:  accessToken,
		RefreshToken:  &refreshToken,
		ExpiresAt:     expiresAt,
		IsActive:      utils.ToPtr(true),
		IPAddress:     &ipAddress,
		UserAgent:     &userAgent,
	}

	if err := af.sessionRepo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (af *AuthFlowImpl) logAuthAttempt(ctx context.Context, userID *uint, action string, description string, success bool, errMsg *string, metadata *ClientMetadata) error {
	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errMsg,
	}

	requestID := ctx.Value(RequestIDKey)
	if requestID != nil {
		requestIDStr, ok := requestID.(string)
		if ok {
			audit.RequestID = &requestIDStr
		}
	}

	return af.auditRepo.Save(ctx, audit)
}

func (af *AuthFlowImpl) withAuthTransaction(ctx context.Context, fn func(context.Context) (*dto.AuthResponse, error)) (*dto.AuthResponse, error) {
	var result *dto.AuthResponse
	var fnErr error

	err := repository.WithTransaction(ctx, af.db, func(txCtx context.Context) error {
		result, fnErr = fn(txCtx)
		return fnErr
	})

	if err != nil {
		return nil, err
	}
	return result, fnErr
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return email[at+1:]
}

func userIDPtr(user *models.User) *uint {
	if user == nil {
		return nil
	}
	return &user.ID
}
