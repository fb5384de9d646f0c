package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/fastrack/internal/middleware"
	"github.com/hitoshi/fastrack/internal/model"
)

// リクエストボディの上限
const maxBodyBytes = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
// エンコードに失敗した場合はステータスを送る前に500へ切り替える。
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("failed to write response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeActiveFastExists, model.ErrCodeEmailTaken, model.ErrCodeFastNotActive,
		model.ErrCodeScheduleNotPlanned:
		return http.StatusConflict
	case model.ErrCodeAIFailed, model.ErrCodeAIInvalidResponse:
		return http.StatusBadGateway
	case model.ErrCodeAIUnavailable:
		return http.StatusServiceUnavailable
	}
	if strings.HasSuffix(apiErr.Code, "_NOT_FOUND") {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// decodeJSON はリクエストボディをJSONとしてデコードする。
// 不正なJSONはINVALID_REQUESTとして返す。
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return model.NewInvalidRequestError("リクエストボディが空です")
		}
		return model.NewInvalidRequestError("JSONの解析に失敗しました")
	}
	return nil
}

// decodeOptionalJSON はボディが空の場合を許容してJSONをデコードする。
func decodeOptionalJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return model.NewInvalidRequestError("JSONの解析に失敗しました")
	}
	return nil
}

// requireUserID はコンテキストからユーザーIDを取り出す。未認証の場合は401を書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}

// queryTime はクエリパラメータの日時を解析する。RFC3339とYYYY-MM-DD（UTCの0時）を受け付ける。
// 未指定の場合はnilを返す。
func queryTime(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return &t, nil
	}
	return nil, model.NewFieldError(key, "RFC3339形式またはYYYY-MM-DD形式で指定してください")
}

// queryRange はfrom/toクエリパラメータを解析する。
func queryRange(r *http.Request) (*time.Time, *time.Time, error) {
	from, err := queryTime(r, "from")
	if err != nil {
		return nil, nil, err
	}
	to, err := queryTime(r, "to")
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

// queryInt はクエリパラメータの整数を解析する。未指定の場合はdefaultValを返す。
func queryInt(r *http.Request, key string, defaultVal int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		return 0, model.NewFieldError(key, "0以上の整数で指定してください")
	}
	return i, nil
}

// pageResponse はカーソルページングのレスポンス。
type pageResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// toPageResponse はドメインのページをレスポンス型に変換する。
func toPageResponse[S any, T any](p model.Page[S], conv func(S) T) pageResponse[T] {
	items := make([]T, len(p.Items))
	for i, it := range p.Items {
		items[i] = conv(it)
	}
	return pageResponse[T]{Items: items, NextCursor: p.NextCursor, HasMore: p.HasMore}
}

// mapSlice はスライスの各要素を変換する。nilの場合も空スライスを返す。
func mapSlice[S any, T any](src []S, conv func(S) T) []T {
	out := make([]T, len(src))
	for i, s := range src {
		out[i] = conv(s)
	}
	return out
}
