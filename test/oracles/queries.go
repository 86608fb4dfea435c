// Package oracles holds SQL invariants over the schema. Each query returns
// rows only when its invariant is violated.
package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_one_rating_per_pair",
			SQL: `SELECT user_id, store_id, COUNT(*) FROM ratings
			      GROUP BY user_id, store_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_rating_bounds",
			SQL:  `SELECT user_id, store_id, rating FROM ratings WHERE rating NOT BETWEEN 1 AND 5`,
		},
		{
			Name: "O3_one_store_per_owner",
			SQL: `SELECT owner_id, COUNT(*) FROM stores
			      GROUP BY owner_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O4_store_owner_role",
			SQL: `SELECT s.id, r.role_name FROM stores s
			      JOIN users u ON u.id = s.owner_id
			      JOIN roles r ON r.id = u.role_id
			      WHERE r.role_name <> 'Store Owner'`,
		},
		{
			Name: "O5_unique_email",
			SQL: `SELECT lower(email), COUNT(*) FROM users
			      GROUP BY lower(email) HAVING COUNT(*) > 1`,
		},
		{
			Name: "O6_updated_after_created",
			SQL:  `SELECT user_id, store_id FROM ratings WHERE updated_at < created_at`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
	}
	return "", "", nil
}
