// Package auth はメールアドレス・パスワード認証、Google OAuth、
// セッションとAPIトークンの発行を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/hitoshi/fastrack/internal/model"
	"github.com/hitoshi/fastrack/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int
}

// RegisterInput はメールアドレス登録の入力。
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// IssuedToken はAPIクライアント向けに発行したトークン。
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	tokens      *TokenIssuer
	passwords   *PasswordHasher
	clock       clock.Clock
	config      ServiceConfig
}

// NewService はServiceを生成する。oauth はGoogle OAuthが無効な場合nilでよい。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	tokens *TokenIssuer,
	clk clock.Clock,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		tokens:      tokens,
		passwords:   NewPasswordHasher(config.BcryptCost),
		clock:       clk,
		config:      config,
	}
}

// Register はメールアドレスとパスワードでユーザーを登録し、セッションを発行する。
// 既定プロフィールはユーザーと同一トランザクションで作成される。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*model.Session, error) {
	email, verr := validateCredentials(input.Email, input.Password)
	name := strings.TrimSpace(input.Name)
	if utf8.RuneCountInString(name) > 100 {
		verr.Add("name", "100文字以内で入力してください")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("provider", "password"),
	)

	return s.createSession(ctx, user.ID)
}

// Login はメールアドレスとパスワードを照合し、セッションを発行する。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.createSession(ctx, user.ID)
}

// IssueToken はメールアドレスとパスワードを照合し、Bearerトークンを発行する。
func (s *Service) IssueToken(ctx context.Context, email, password string) (*IssuedToken, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	slog.Info("api token issued", slog.String("user_id", user.ID))
	return &IssuedToken{Token: token, ExpiresAt: expiresAt}, nil
}

// authenticate は資格情報を照合する。存在しないメールアドレスとパスワード不一致は
// 区別せずINVALID_CREDENTIALSを返す。
func (s *Service) authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	ok, err := s.passwords.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.Warn("login failed", slog.String("user_id", user.ID))
		return nil, model.NewInvalidCredentialsError()
	}
	return user, nil
}

// validateCredentials はメールアドレスとパスワードの形式を検証し、正規化したメールアドレスを返す。
func validateCredentials(email, password string) (string, model.ValidationErrors) {
	verr := model.ValidationErrors{}

	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if email == "" || err != nil || addr.Address != email {
		verr.Add("email", "メールアドレスの形式が正しくありません")
	}

	switch {
	case utf8.RuneCountInString(password) < MinPasswordLength:
		verr.Add("password", fmt.Sprintf("%d文字以上で入力してください", MinPasswordLength))
	case len(password) > maxPasswordBytes:
		verr.Add("password", fmt.Sprintf("%dバイト以内で入力してください", maxPasswordBytes))
	}

	return strings.ToLower(email), verr
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	if s.oauth == nil {
		return ""
	}
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 未登録ユーザーの場合はユーザー・identity・既定プロフィールを同時に作成する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	if s.oauth == nil {
		return nil, fmt.Errorf("oauth provider is not configured")
	}

	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	if identity != nil {
		slog.Info("existing user logged in",
			slog.String("user_id", identity.UserID),
			slog.String("provider", userInfo.Provider),
		)
		return s.createSession(ctx, identity.UserID)
	}

	now := s.clock.Now()
	newUser := &model.User{
		ID:        uuid.New().String(),
		Email:     strings.ToLower(userInfo.Email),
		Name:      userInfo.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	newIdentity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         newUser.ID,
		Provider:       userInfo.Provider,
		ProviderUserID: userInfo.ProviderUserID,
		CreatedAt:      now,
	}

	if err := s.userRepo.CreateWithIdentity(ctx, newUser, newIdentity); err != nil {
		return nil, fmt.Errorf("failed to create user and identity: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", newUser.ID),
		slog.String("provider", userInfo.Provider),
	)

	return s.createSession(ctx, newUser.ID)
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
// セッションが無効な場合はUNAUTHORIZEDを返す。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, model.NewUnauthorizedError()
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewUnauthorizedError()
	}

	return s.GetUser(ctx, session.UserID)
}

// VerifyToken はBearerトークンを検証し、ユーザーが存在する場合にユーザーIDを返す。
// 退会済みユーザーのトークンはUNAUTHORIZEDとする。
func (s *Service) VerifyToken(ctx context.Context, token string) (string, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return "", err
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to find token user: %w", err)
	}
	if user == nil {
		return "", model.NewUnauthorizedError()
	}
	return user.ID, nil
}

// GetUser はユーザーIDでユーザーを取得する。Bearer認証のリクエストで使用する。
func (s *Service) GetUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.clock.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
