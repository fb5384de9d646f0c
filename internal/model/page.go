package model

import (
	"strings"
	"time"
)

// 一覧取得の件数
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// FutureTolerance は記録日時として許容する未来方向のずれ。
// 端末の時計のずれを吸収する。
const FutureTolerance = 5 * time.Minute

// NormalizeLimit は一覧取得の件数を既定値と上限に収める。
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}

// Cursor はキーセットページングの位置を表す。
// 並び順の基準日時とIDの組で、同時刻の記録もページ境界で取りこぼさない。
type Cursor struct {
	At time.Time
	ID string
}

// カーソル文字列で日時とIDを区切る文字。RFC3339には現れない。
const cursorSep = "_"

// ParseCursor は "RFC3339日時_ID" 形式のカーソルを解析する。空文字の場合はnilを返す。
// IDを省略した日時のみのカーソルも受け付ける。
func ParseCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}
	ts, id, _ := strings.Cut(cursor, cursorSep)
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, NewFieldError("cursor", "RFC3339形式の日時で始まる値を指定してください")
	}
	return &Cursor{At: t, ID: id}, nil
}

// String は次ページ取得用のカーソル文字列を返す。
func (c Cursor) String() string {
	s := c.At.UTC().Format(time.RFC3339Nano)
	if c.ID != "" {
		s += cursorSep + c.ID
	}
	return s
}

// Page はカーソルページングの結果を表す。
type Page[T any] struct {
	Items      []T
	NextCursor string
	HasMore    bool
}

// NewPage はlimit+1件取得した結果からページを組み立てる。
// keyは各要素の並び順の基準日時とIDを返す。
func NewPage[T any](items []T, limit int, key func(T) Cursor) Page[T] {
	p := Page[T]{Items: items}
	if len(items) > limit {
		p.Items = items[:limit]
		p.HasMore = true
		p.NextCursor = key(p.Items[limit-1]).String()
	}
	if p.Items == nil {
		p.Items = []T{}
	}
	return p
}
