// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/fastrack/internal/model"
)

const sessionCookieName = "session_id"

// AuthMethod はリクエストの認証方式を表す。
type AuthMethod string

const (
	// AuthMethodSession はsession_id Cookieによる認証。
	AuthMethodSession AuthMethod = "session"
	// AuthMethodBearer はAuthorizationヘッダーのJWTによる認証。
	AuthMethodBearer AuthMethod = "bearer"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userIDContextKey     = contextKey("user_id")
	authMethodContextKey = contextKey("auth_method")
)

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// TokenVerifier はBearerトークンを検証し、ユーザーIDを返すインターフェース。
// 退会済みユーザーのトークンはエラーとする。
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

// NewAuthMiddleware はBearerトークンまたはsession_id Cookieで認証するミドルウェアを返す。
// Authorizationヘッダーがある場合はそれのみで判定し、Cookieにはフォールバックしない。
// 認証済みユーザーIDと認証方式をリクエストコンテキストに注入する。
func NewAuthMiddleware(sessionFinder SessionFinder, tokenVerifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if header := r.Header.Get("Authorization"); header != "" {
				token, ok := bearerToken(header)
				if !ok || tokenVerifier == nil {
					writeUnauthorized(w)
					return
				}
				userID, err := tokenVerifier.VerifyToken(r.Context(), token)
				if err != nil {
					slog.Warn("bearer token rejected", slog.String("error", err.Error()))
					writeUnauthorized(w)
					return
				}
				next.ServeHTTP(w, r.WithContext(withAuth(r.Context(), userID, AuthMethodBearer)))
				return
			}

			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				writeUnauthorized(w)
				return
			}

			session, err := sessionFinder.FindByID(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to find session",
					slog.String("error", err.Error()),
				)
				writeUnauthorized(w)
				return
			}
			if session == nil {
				writeUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(withAuth(r.Context(), session.UserID, AuthMethodSession)))
		})
	}
}

// bearerToken は"Bearer <token>"形式のヘッダーからトークンを取り出す。
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
}

func withAuth(ctx context.Context, userID string, method AuthMethod) context.Context {
	recordUserID(ctx, userID)
	ctx = context.WithValue(ctx, userIDContextKey, userID)
	return context.WithValue(ctx, authMethodContextKey, method)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// AuthMethodFromContext はリクエストの認証方式を返す。未認証の場合は空文字列。
func AuthMethodFromContext(ctx context.Context) AuthMethod {
	method, _ := ctx.Value(authMethodContextKey).(AuthMethod)
	return method
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return withAuth(ctx, userID, AuthMethodSession)
}
