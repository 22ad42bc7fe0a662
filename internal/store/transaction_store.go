package store

import "context"

type TransactionStore struct {
	db DB
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

type TransactionInput struct {
	ID       string
	UserID   *string
	GroupID  *string
	Type     string
	Status   string
	Amount   int64
	Cycle    int
	Metadata string
}

type transactionRow struct {
	ID        string  `db:"id"`
	UserID    *string `db:"user_id"`
	Username  *string `db:"username"`
	GroupID   *string `db:"group_id"`
	GroupName *string `db:"group_name"`
	Type      string  `db:"type"`
	Status    string  `db:"status"`
	Amount    int64   `db:"amount"`
	Cycle     int     `db:"cycle"`
	Metadata  string  `db:"metadata"`
	CreatedAt any     `db:"created_at"`
}

func (s *TransactionStore) Create(ctx context.Context, tx Execer, input TransactionInput) error {
	query := `
		INSERT INTO transactions (id, user_id, group_id, type, status, amount, cycle, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.UserID, input.GroupID, input.Type, input.Status, input.Amount, input.Cycle, input.Metadata,
	)
	return err
}

// SumByType totals transactions of one type for a group and cycle. The
// shortfall detector uses this to count reserve coverage already granted so a
// covered cycle is never covered twice.
func (s *TransactionStore) SumByType(ctx context.Context, groupID string, cycle int, txType string) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE group_id = $1 AND cycle = $2 AND type = $3 AND status = 'completed'
	`, groupID, cycle, txType)
	return sum, err
}

func (s *TransactionStore) SumAllByType(ctx context.Context, txType string) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE type = $1 AND status = 'completed'
	`, txType)
	return sum, err
}

func (s *TransactionStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]map[string]any, error) {
	var rows []transactionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT t.id, t.user_id, u.username, t.group_id, g.name AS group_name,
		       t.type, t.status, t.amount, t.cycle, t.metadata, t.created_at
		FROM transactions t
		LEFT JOIN users u ON u.id = t.user_id
		LEFT JOIN rosca_groups g ON g.id = t.group_id
		WHERE t.user_id = $1
		ORDER BY t.created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return transactionRowsToMaps(rows), nil
}

func (s *TransactionStore) ListByGroup(ctx context.Context, groupID string, limit, offset int) ([]map[string]any, error) {
	var rows []transactionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT t.id, t.user_id, u.username, t.group_id, g.name AS group_name,
		       t.type, t.status, t.amount, t.cycle, t.metadata, t.created_at
		FROM transactions t
		LEFT JOIN users u ON u.id = t.user_id
		LEFT JOIN rosca_groups g ON g.id = t.group_id
		WHERE t.group_id = $1
		ORDER BY t.created_at DESC
		LIMIT $2 OFFSET $3
	`, groupID, limit, offset)
	if err != nil {
		return nil, err
	}
	return transactionRowsToMaps(rows), nil
}

func transactionRowsToMaps(rows []transactionRow) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, map[string]any{
			"id":         row.ID,
			"user_id":    derefStringPtr(row.UserID),
			"username":   derefStringPtr(row.Username),
			"group_id":   derefStringPtr(row.GroupID),
			"group_name": derefStringPtr(row.GroupName),
			"type":       row.Type,
			"status":     row.Status,
			"amount":     row.Amount,
			"cycle":      row.Cycle,
			"metadata":   row.Metadata,
			"created_at": row.CreatedAt,
		})
	}
	return out
}

func derefStringPtr(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
