package database

import (
	"fmt"
	"io"

	"github.com/zatekoja/retailsegmentation/internal/domain/repositories"
	"github.com/zatekoja/retailsegmentation/internal/infrastructure/clients/mysql"
	"github.com/zatekoja/retailsegmentation/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/retailsegmentation/pkg/config"
)

// OpenTransactionSource connects to the database named by DB_DRIVER and
// returns a transaction repository over cfg.Segmentation.TransactionsTable.
// A postgres client passed in pg is reused instead of opening a second pool.
// The returned closer releases only connections opened here.
func OpenTransactionSource(cfg *config.Config, pg *postgres.Client) (repositories.TransactionRepository, io.Closer, error) {
	table := cfg.Segmentation.TransactionsTable

	switch cfg.Database.Driver {
	case "mysql":
		client, err := mysql.NewClient(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		repo, err := NewTransactionAdapter(client.DB(), "mysql", table)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return repo, client, nil

	case "postgres":
		closer := io.Closer(nopCloser{})
		if pg == nil {
			client, err := postgres.NewClient(&cfg.Database)
			if err != nil {
				return nil, nil, err
			}
			pg, closer = client, client
		}
		repo, err := NewTransactionAdapter(pg.DB(), "postgres", table)
		if err != nil {
			closer.Close()
			return nil, nil, err
		}
		return repo, closer, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
