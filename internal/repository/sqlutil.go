package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/fastrack/internal/model"
)

// PostgreSQLの一意制約違反エラーコード
const pqUniqueViolation = "23505"

// isUniqueViolation は一意制約違反かどうかを判定する。
// constraint が空でなければ制約名も一致する場合のみtrueを返す。
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// queryArgs はプレースホルダ番号を採番しながら引数を蓄積する。
type queryArgs struct {
	values []interface{}
}

// add は引数を追加し、対応するプレースホルダ（$n）を返す。
func (a *queryArgs) add(v interface{}) string {
	a.values = append(a.values, v)
	return fmt.Sprintf("$%d", len(a.values))
}

// before はカーソルより後ろ（降順で次ページ）の行に絞る条件を返す。
// IDのないカーソルは日時のみで比較する。
func (a *queryArgs) before(column string, c *model.Cursor) string {
	if c.ID == "" {
		return column + " < " + a.add(c.At)
	}
	return "(" + column + ", id) < (" + a.add(c.At) + ", " + a.add(c.ID) + "::uuid)"
}

func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullFloatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// rowsAffected はDELETE/UPDATEで1件以上影響したかを返す。
func rowsAffected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// pageLimit は一覧取得の件数を既定値と上限に収める。
func pageLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 101 {
		return 101
	}
	return limit
}
