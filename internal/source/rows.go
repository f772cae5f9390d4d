package source

import (
	"database/sql"

	"github.com/shopspring/decimal"

	"admin-reports/internal/models"
)

// TransactionRow is one row of a transactions-left-join-line-items query.
// SQL backends scan into it and fold with FoldTransactionRows.
type TransactionRow struct {
	Transaction models.TransactionRecord
	ProductID   sql.NullString
	Quantity    sql.NullInt64
	UnitPrice   decimal.NullDecimal
}

// FoldTransactionRows merges consecutive rows of the same transaction,
// collecting their line items. Row order is preserved.
func FoldTransactionRows(rows []TransactionRow) []models.TransactionRecord {
	out := make([]models.TransactionRecord, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, row := range rows {
		i, ok := index[row.Transaction.ID]
		if !ok {
			i = len(out)
			index[row.Transaction.ID] = i
			tx := row.Transaction
			tx.LineItems = nil
			out = append(out, tx)
		}
		if !row.ProductID.Valid {
			continue
		}
		item := models.LineItem{ProductID: row.ProductID.String, UnitPrice: decimal.Zero}
		if row.Quantity.Valid {
			item.Quantity = int(row.Quantity.Int64)
		}
		if row.UnitPrice.Valid {
			item.UnitPrice = row.UnitPrice.Decimal
		}
		out[i].LineItems = append(out[i].LineItems, item)
	}
	return out
}

func StatusStrings(statuses []models.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
