// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"sort"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string            // エラーコード
	Message  string            // エラーメッセージ
	Category string            // カテゴリ: auth, validation, fasting, nutrition, ai, system
	Action   string            // ユーザー向け対処方法
	Fields   map[string]string // フィールド単位のバリデーションエラー
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("[%s] %s (%s)", e.Code, e.Message, strings.Join(parts, "; "))
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeActiveFastExists   = "ACTIVE_FAST_EXISTS"
	ErrCodeFastNotActive      = "FAST_NOT_ACTIVE"
	ErrCodeFastNotFound       = "FAST_NOT_FOUND"
	ErrCodeWeightNotFound     = "WEIGHT_NOT_FOUND"
	ErrCodeMetricNotFound     = "METRIC_NOT_FOUND"
	ErrCodeMealNotFound       = "MEAL_NOT_FOUND"
	ErrCodeFoodItemNotFound   = "FOOD_ITEM_NOT_FOUND"
	ErrCodeScheduleNotFound   = "SCHEDULE_NOT_FOUND"
	ErrCodeScheduleNotPlanned = "SCHEDULE_NOT_PLANNED"
	ErrCodeReminderNotFound   = "REMINDER_NOT_FOUND"
	ErrCodeAIUnavailable      = "AI_UNAVAILABLE"
	ErrCodeAIFailed           = "AI_FAILED"
	ErrCodeAIInvalidResponse  = "AI_INVALID_RESPONSE"
	ErrCodeSSRFBlocked        = "SSRF_BLOCKED"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// ValidationErrors はフィールド単位のバリデーションエラーを蓄積する。
// 空のままであればErrは nil を返す。
type ValidationErrors map[string]string

// Add はフィールドのエラーを追加する。同じフィールドは最初のエラーを保持する。
func (v ValidationErrors) Add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

// Err は蓄積されたエラーをAPIErrorとして返す。エラーがなければnilを返す。
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return NewValidationError(map[string]string(v))
}

// NewValidationError は入力値のバリデーションエラーを生成する。
func NewValidationError(fields map[string]string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  "入力内容に誤りがあります。",
		Category: "validation",
		Action:   "各項目のエラー内容を確認して再度送信してください。",
		Fields:   fields,
	}
}

// NewFieldError は単一フィールドのバリデーションエラーを生成する。
func NewFieldError(field, msg string) *APIError {
	return NewValidationError(map[string]string{field: msg})
}

// NewInvalidRequestError はリクエスト形式が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエストの形式を確認してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialsError はメールアドレスまたはパスワード不一致のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認してください。",
	}
}

// NewEmailTakenError はメールアドレスが登録済みの場合のエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログインするか、別のメールアドレスを使用してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewActiveFastExistsError は進行中のファスティングが既に存在する場合のエラーを生成する。
func NewActiveFastExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeActiveFastExists,
		Message:  "進行中のファスティングが既にあります。",
		Category: "fasting",
		Action:   "現在のファスティングを終了またはキャンセルしてから開始してください。",
	}
}

// NewFastNotActiveError は進行中でないファスティングを操作しようとした場合のエラーを生成する。
func NewFastNotActiveError() *APIError {
	return &APIError{
		Code:     ErrCodeFastNotActive,
		Message:  "このファスティングは進行中ではありません。",
		Category: "fasting",
		Action:   "履歴の修正は編集から行ってください。",
	}
}

// NewScheduleNotPlannedError は予定状態でないスケジュールを開始・スキップしようとした場合のエラーを生成する。
func NewScheduleNotPlannedError() *APIError {
	return &APIError{
		Code:     ErrCodeScheduleNotPlanned,
		Message:  "このスケジュールは予定状態ではありません。",
		Category: "fasting",
		Action:   "予定状態のスケジュールのみ開始またはスキップできます。",
	}
}

// NewNotFoundError はリソース未検出エラーを生成する。
// 他ユーザーのリソースも存在しないものとして扱う。
func NewNotFoundError(code, resource, id string) *APIError {
	return &APIError{
		Code:     code,
		Message:  fmt.Sprintf("指定された%sが見つかりません: %s", resource, id),
		Category: "validation",
		Action:   "IDを確認してください。",
	}
}

// NewAIUnavailableError はAI解析が構成されていない場合のエラーを生成する。
func NewAIUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeAIUnavailable,
		Message:  "AIによる食事解析は現在利用できません。",
		Category: "ai",
		Action:   "食品名を短く入力するか、手動で食事を登録してください。",
	}
}

// NewAIFailedError はAI呼び出しが失敗した場合のエラーを生成する。
func NewAIFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeAIFailed,
		Message:  fmt.Sprintf("AIによる食事解析に失敗しました: %s", reason),
		Category: "ai",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewAIInvalidResponseError はAIの応答がスキーマに適合しない場合のエラーを生成する。
func NewAIInvalidResponseError(fields map[string]string) *APIError {
	return &APIError{
		Code:     ErrCodeAIInvalidResponse,
		Message:  "AIの応答を解釈できませんでした。",
		Category: "ai",
		Action:   "表現を変えて再度お試しください。",
		Fields:   fields,
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLは使用できません。",
		Category: "validation",
		Action:   "公開されているWebhookのURLを指定してください。ローカルネットワークやプライベートIPは許可されていません。",
	}
}

// NewInternalError は内部エラーの汎用レスポンスを生成する。原因はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
