package database

import (
	"context"
	"fmt"
)

// CustomerExists performs the read-only existence check the order
// service is allowed against the customer collaborator's table.
func (db *DB) CustomerExists(ctx context.Context, customerID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM customers WHERE id=$1)`
	if err := db.SQL.GetContext(ctx, &exists, query, customerID); err != nil {
		return false, fmt.Errorf("failed to check customer %d: %w", customerID, err)
	}
	return exists, nil
}
