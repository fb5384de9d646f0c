package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/fastrack/internal/model"
)

// PostgresMealRepo はPostgreSQLを使用した食事記録リポジトリ。
// 食事と品目はmeals/meal_itemsの2テーブルに保存する。
type PostgresMealRepo struct {
	db *sql.DB
}

// NewPostgresMealRepo はPostgresMealRepoを生成する。
func NewPostgresMealRepo(db *sql.DB) *PostgresMealRepo {
	return &PostgresMealRepo{db: db}
}

const mealColumns = `id, user_id, meal_type, name, eaten_at, notes, source, created_at, updated_at`

const mealItemColumns = `id, meal_id, food_item_id, name, quantity, unit,
	calories, protein_g, carbs_g, fat_g, fiber_g, position`

func scanMeal(row rowScanner) (*model.Meal, error) {
	m := &model.Meal{}
	if err := row.Scan(&m.ID, &m.UserID, &m.MealType, &m.Name, &m.EatenAt, &m.Notes, &m.Source,
		&m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

// Create は食事と品目を同一トランザクションで作成する。
func (r *PostgresMealRepo) Create(ctx context.Context, m *model.Meal) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO meals (`+mealColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.UserID, m.MealType, m.Name, m.EatenAt, m.Notes, m.Source, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert meal: %w", err)
	}

	if err := insertMealItems(ctx, tx, m); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Update は食事を更新し、品目を全て置き換える。
func (r *PostgresMealRepo) Update(ctx context.Context, m *model.Meal) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE meals
		 SET meal_type = $3, name = $4, eaten_at = $5, notes = $6, source = $7, updated_at = $8
		 WHERE id = $1 AND user_id = $2`,
		m.ID, m.UserID, m.MealType, m.Name, m.EatenAt, m.Notes, m.Source, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update meal: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM meal_items WHERE meal_id = $1`, m.ID); err != nil {
		return fmt.Errorf("failed to delete meal items: %w", err)
	}

	if err := insertMealItems(ctx, tx, m); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertMealItems(ctx context.Context, tx *sql.Tx, m *model.Meal) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO meal_items (`+mealItemColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`)
	if err != nil {
		return fmt.Errorf("failed to prepare meal item insert: %w", err)
	}
	defer stmt.Close()

	for i := range m.Items {
		it := &m.Items[i]
		it.MealID = m.ID
		it.Position = i
		if _, err := stmt.ExecContext(ctx,
			it.ID, it.MealID, it.FoodItemID, it.Name, it.Quantity, it.Unit,
			it.Calories, it.ProteinG, it.CarbsG, it.FatG, it.FiberG, it.Position,
		); err != nil {
			return fmt.Errorf("failed to insert meal item: %w", err)
		}
	}
	return nil
}

// FindByID は品目を含めて食事を取得する。見つからない場合はnilを返す。
func (r *PostgresMealRepo) FindByID(ctx context.Context, userID, id string) (*model.Meal, error) {
	m, err := scanMeal(r.db.QueryRowContext(ctx,
		`SELECT `+mealColumns+` FROM meals WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find meal: %w", err)
	}
	if err := r.attachItems(ctx, []*model.Meal{m}); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete は食事を削除する。品目はCASCADE削除される。
func (r *PostgresMealRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM meals WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete meal: %w", err)
	}
	return rowsAffected(result)
}

// List は品目を含めて食事をeaten_at降順で取得する。
func (r *PostgresMealRepo) List(ctx context.Context, userID string, filter model.RangeFilter) ([]*model.Meal, error) {
	var args queryArgs
	query := `SELECT ` + mealColumns + ` FROM meals WHERE user_id = ` + args.add(userID)
	if filter.Type != "" {
		query += " AND meal_type = " + args.add(filter.Type)
	}
	if filter.Before != nil {
		query += " AND " + args.before("eaten_at", filter.Before)
	}
	if filter.From != nil {
		query += " AND eaten_at >= " + args.add(*filter.From)
	}
	if filter.To != nil {
		query += " AND eaten_at <= " + args.add(*filter.To)
	}
	query += " ORDER BY eaten_at DESC, id DESC LIMIT " + args.add(pageLimit(filter.Limit))
	return r.query(ctx, query, args.values...)
}

// ListRange は期間内の食事を品目を含めてeaten_at昇順で全件取得する。
func (r *PostgresMealRepo) ListRange(ctx context.Context, userID string, from, to time.Time) ([]*model.Meal, error) {
	return r.query(ctx,
		`SELECT `+mealColumns+` FROM meals
		 WHERE user_id = $1 AND eaten_at >= $2 AND eaten_at <= $3
		 ORDER BY eaten_at ASC`,
		userID, from, to,
	)
}

func (r *PostgresMealRepo) query(ctx context.Context, query string, args ...interface{}) ([]*model.Meal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	defer rows.Close()

	var meals []*model.Meal
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		meals = append(meals, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meals: %w", err)
	}
	if err := r.attachItems(ctx, meals); err != nil {
		return nil, err
	}
	return meals, nil
}

// attachItems は食事一覧の品目を1クエリでまとめて取得して割り当てる。
func (r *PostgresMealRepo) attachItems(ctx context.Context, meals []*model.Meal) error {
	if len(meals) == 0 {
		return nil
	}
	ids := make([]string, len(meals))
	byID := make(map[string]*model.Meal, len(meals))
	for i, m := range meals {
		ids[i] = m.ID
		byID[m.ID] = m
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+mealItemColumns+` FROM meal_items
		 WHERE meal_id = ANY($1::uuid[])
		 ORDER BY meal_id, position`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to list meal items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it model.MealItem
		var foodID sql.NullString
		if err := rows.Scan(&it.ID, &it.MealID, &foodID, &it.Name, &it.Quantity, &it.Unit,
			&it.Calories, &it.ProteinG, &it.CarbsG, &it.FatG, &it.FiberG, &it.Position); err != nil {
			return fmt.Errorf("failed to scan meal item: %w", err)
		}
		it.FoodItemID = nullStringPtr(foodID)
		if m, ok := byID[it.MealID]; ok {
			m.Items = append(m.Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate meal items: %w", err)
	}
	return nil
}

// compile-time interface check
var _ MealRepository = (*PostgresMealRepo)(nil)
