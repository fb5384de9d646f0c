// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はメモ・タイトル・リマインダー文面などのユーザー入力から
// HTMLを除去し、プレーンテキストとして保存できる形に整える。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はユーザー入力テキストの無害化のインターフェースを定義する。
type TextSanitizerService interface {
	// Clean は全てのHTMLタグを除去し、前後の空白を取り除いたプレーンテキストを返す。
	// script・styleの中身も除去される。同一入力に対して常に同一出力を返す。
	Clean(s string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフに処理する。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Clean はHTMLタグを除去したプレーンテキストを返す。
// StrictPolicyがエスケープした実体参照は元の文字に戻す。
func (s *textSanitizer) Clean(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
