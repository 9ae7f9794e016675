package repositories

import (
	"context"

	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
)

// TransactionRepository reads raw transaction history from a store
type TransactionRepository interface {
	List(ctx context.Context, filter entities.TransactionFilter) ([]entities.TransactionRow, error)
}
