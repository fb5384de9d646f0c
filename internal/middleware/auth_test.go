package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/fastrack/internal/model"
)

// --- モック定義 ---

type mockSessionRepository struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

type mockTokenVerifier struct {
	verifyTokenFn func(token string) (string, error)
}

func (m *mockTokenVerifier) VerifyToken(ctx context.Context, token string) (string, error) {
	if m.verifyTokenFn != nil {
		return m.verifyTokenFn(token)
	}
	return "", errors.New("invalid token")
}

func validSessionRepo(userID string) *mockSessionRepository {
	return &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "valid-session-id" {
				return &model.Session{
					ID:        id,
					UserID:    userID,
					ExpiresAt: time.Now().Add(1 * time.Hour),
				}, nil
			}
			return nil, nil
		},
	}
}

func validTokenVerifier(userID string) *mockTokenVerifier {
	return &mockTokenVerifier{
		verifyTokenFn: func(token string) (string, error) {
			if token == "good-token" {
				return userID, nil
			}
			return "", errors.New("signature is invalid")
		},
	}
}

// --- テスト ---

func TestAuthMiddleware_ValidSession_InjectsUserID(t *testing.T) {
	mw := NewAuthMiddleware(validSessionRepo("user-123"), validTokenVerifier("user-jwt"))

	var capturedUserID string
	var capturedMethod AuthMethod
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		capturedUserID = userID
		capturedMethod = AuthMethodFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/fasts", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session-id"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if capturedUserID != "user-123" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-123")
	}
	if capturedMethod != AuthMethodSession {
		t.Errorf("auth method = %q, want %q", capturedMethod, AuthMethodSession)
	}
}

func TestAuthMiddleware_ValidBearer_InjectsUserID(t *testing.T) {
	mw := NewAuthMiddleware(validSessionRepo("user-123"), validTokenVerifier("user-jwt"))

	var capturedUserID string
	var capturedMethod AuthMethod
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUserID, _ = UserIDFromContext(r.Context())
		capturedMethod = AuthMethodFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/fasts", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if capturedUserID != "user-jwt" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-jwt")
	}
	if capturedMethod != AuthMethodBearer {
		t.Errorf("auth method = %q, want %q", capturedMethod, AuthMethodBearer)
	}
}

// TestAuthMiddleware_Returns401 は認証情報が不正な場合に401とJSONエラーを返すことを検証する。
func TestAuthMiddleware_Returns401(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(r *http.Request)
		repo    *mockSessionRepository
	}{
		{
			name:    "認証情報なし",
			prepare: func(r *http.Request) {},
		},
		{
			name: "空のCookie",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: "session_id", Value: ""})
			},
		},
		{
			name: "期限切れまたは存在しないセッション",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: "session_id", Value: "expired-session"})
			},
		},
		{
			name: "リポジトリエラー",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session-id"})
			},
			repo: &mockSessionRepository{
				findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
					return nil, context.DeadlineExceeded
				},
			},
		},
		{
			name: "署名不正のトークン",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer forged-token")
			},
		},
		{
			name: "Bearer以外のスキーム",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
			},
		},
		{
			name: "トークンが空",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer ")
			},
		},
		{
			name: "不正なトークンはCookieにフォールバックしない",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer forged-token")
				r.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session-id"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := tt.repo
			if repo == nil {
				repo = validSessionRepo("user-123")
			}
			mw := NewAuthMiddleware(repo, validTokenVerifier("user-jwt"))
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/fasts", nil)
			tt.prepare(req)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Code != model.ErrCodeUnauthorized {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
			}
		})
	}
}

func TestAuthMiddleware_NilTokenVerifier_RejectsBearer(t *testing.T) {
	mw := NewAuthMiddleware(validSessionRepo("user-123"), nil)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/fasts", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// TestAuthMiddleware_BearerForDeletedUser_Returns401 は署名が有効でも
// 退会済みユーザーのトークンは通さないことを検証する。
func TestAuthMiddleware_BearerForDeletedUser_Returns401(t *testing.T) {
	existing := map[string]bool{"user-jwt": true}
	verifier := &mockTokenVerifier{
		verifyTokenFn: func(token string) (string, error) {
			if token != "good-token" {
				return "", errors.New("signature is invalid")
			}
			if !existing["user-jwt"] {
				return "", model.NewUnauthorizedError()
			}
			return "user-jwt", nil
		},
	}
	calls := 0
	handler := NewAuthMiddleware(validSessionRepo("user-123"), verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	if code := send(); code != http.StatusOK {
		t.Fatalf("退会前: status = %d, want 200", code)
	}
	delete(existing, "user-jwt")
	if code := send(); code != http.StatusUnauthorized {
		t.Errorf("退会後: status = %d, want 401", code)
	}
	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
}

func TestUserIDFromContext_NoValue_ReturnsError(t *testing.T) {
	_, err := UserIDFromContext(context.Background())
	if err == nil {
		t.Error("expected error for missing user ID in context")
	}
}

func TestContextWithUserID(t *testing.T) {
	ctx := ContextWithUserID(context.Background(), "user-456")
	userID, err := UserIDFromContext(ctx)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if userID != "user-456" {
		t.Errorf("userID = %q, want %q", userID, "user-456")
	}
	if got := AuthMethodFromContext(ctx); got != AuthMethodSession {
		t.Errorf("auth method = %q, want %q", got, AuthMethodSession)
	}
}

func TestAuthMethodFromContext_Unauthenticated(t *testing.T) {
	if got := AuthMethodFromContext(context.Background()); got != "" {
		t.Errorf("auth method = %q, want empty", got)
	}
}
