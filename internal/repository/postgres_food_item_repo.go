package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/fastrack/internal/model"
)

// PostgresFoodItemRepo はPostgreSQLを使用した食品ライブラリリポジトリ。
type PostgresFoodItemRepo struct {
	db *sql.DB
}

// NewPostgresFoodItemRepo はPostgresFoodItemRepoを生成する。
func NewPostgresFoodItemRepo(db *sql.DB) *PostgresFoodItemRepo {
	return &PostgresFoodItemRepo{db: db}
}

const foodItemColumns = `id, user_id, name, brand, serving_size, serving_unit,
	calories, protein_g, carbs_g, fat_g, fiber_g, created_at, updated_at`

func scanFoodItem(row rowScanner) (*model.FoodItem, error) {
	f := &model.FoodItem{}
	if err := row.Scan(&f.ID, &f.UserID, &f.Name, &f.Brand, &f.ServingSize, &f.ServingUnit,
		&f.Calories, &f.ProteinG, &f.CarbsG, &f.FatG, &f.FiberG, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return f, nil
}

// Create は食品を作成する。
func (r *PostgresFoodItemRepo) Create(ctx context.Context, f *model.FoodItem) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO food_items (`+foodItemColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		f.ID, f.UserID, f.Name, f.Brand, f.ServingSize, f.ServingUnit,
		f.Calories, f.ProteinG, f.CarbsG, f.FatG, f.FiberG, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create food item: %w", err)
	}
	return nil
}

// FindByID は指定IDの食品を取得する。見つからない場合はnilを返す。
func (r *PostgresFoodItemRepo) FindByID(ctx context.Context, userID, id string) (*model.FoodItem, error) {
	f, err := scanFoodItem(r.db.QueryRowContext(ctx,
		`SELECT `+foodItemColumns+` FROM food_items WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find food item: %w", err)
	}
	return f, nil
}

// Update は食品を更新する。
func (r *PostgresFoodItemRepo) Update(ctx context.Context, f *model.FoodItem) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE food_items
		 SET name = $3, brand = $4, serving_size = $5, serving_unit = $6,
		     calories = $7, protein_g = $8, carbs_g = $9, fat_g = $10, fiber_g = $11, updated_at = $12
		 WHERE id = $1 AND user_id = $2`,
		f.ID, f.UserID, f.Name, f.Brand, f.ServingSize, f.ServingUnit,
		f.Calories, f.ProteinG, f.CarbsG, f.FatG, f.FiberG, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update food item: %w", err)
	}
	return nil
}

// Delete は食品を削除する。参照している食事品目のfood_item_idはNULLになる。
func (r *PostgresFoodItemRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM food_items WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete food item: %w", err)
	}
	return rowsAffected(result)
}

// Search は名前の部分一致で食品を検索する。
func (r *PostgresFoodItemRepo) Search(ctx context.Context, userID, query string, limit, offset int) ([]*model.FoodItem, error) {
	var args queryArgs
	q := `SELECT ` + foodItemColumns + ` FROM food_items WHERE user_id = ` + args.add(userID)
	if query = strings.TrimSpace(query); query != "" {
		q += ` AND lower(name) LIKE ` + args.add("%"+escapeLike(strings.ToLower(query))+"%") + ` ESCAPE '\'`
	}
	q += " ORDER BY lower(name) ASC, created_at ASC LIMIT " + args.add(pageLimit(limit)) + " OFFSET " + args.add(offset)

	rows, err := r.db.QueryContext(ctx, q, args.values...)
	if err != nil {
		return nil, fmt.Errorf("failed to search food items: %w", err)
	}
	defer rows.Close()

	var foods []*model.FoodItem
	for rows.Next() {
		f, err := scanFoodItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan food item: %w", err)
		}
		foods = append(foods, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate food items: %w", err)
	}
	return foods, nil
}

// escapeLike はLIKEパターンの特殊文字をエスケープする。
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// compile-time interface check
var _ FoodItemRepository = (*PostgresFoodItemRepo)(nil)
