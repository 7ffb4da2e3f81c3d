package postgres

import (
	"context"
	"fmt"
	"time"
)

const defaultDeleteBatchSize = 5000

// deleteInBatches deletes rows created before the cutoff in chunks so a large
// backlog never holds one long lock. table and filter are package constants;
// filter, when set, is an extra predicate rows must match to be deleted.
func deleteInBatches(ctx context.Context, db DBTX, table, filter string, before time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = defaultDeleteBatchSize
	}

	where := "created_at < $1"
	if filter != "" {
		where += " AND " + filter
	}

	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE id IN (
			SELECT id FROM %s WHERE %s ORDER BY created_at LIMIT $2
		)
	`, table, table, where)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		tag, err := db.Exec(ctx, query, before, batchSize)
		if err != nil {
			return total, fmt.Errorf("delete from %s: %w", table, err)
		}

		n := tag.RowsAffected()
		total += n
		if n < int64(batchSize) {
			return total, nil
		}
	}
}
