// Seed writes synthetic retail transactions, either into the configured
// transactions table (DB_DRIVER=postgres|mysql) or to a CSV file with the
// same columns as the upload format.
//
//	go run ./scripts -customers 500 -csv sample.csv
//	go run ./scripts -customers 5000
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"

	"github.com/zatekoja/retailsegmentation/internal/adapters/tabular"
	"github.com/zatekoja/retailsegmentation/internal/infrastructure/clients/mysql"
	"github.com/zatekoja/retailsegmentation/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/retailsegmentation/internal/infrastructure/observability"
	"github.com/zatekoja/retailsegmentation/pkg/config"
)

const insertBatch = 500

// persona shapes one customer's purchase history.
type persona struct {
	name       string
	weight     int
	invoices   [2]int // min, max invoices
	lines      [2]int // lines per invoice
	quantity   [2]int
	lastActive [2]int // days before the end of the window
	cancelRate float64
}

var personas = []persona{
	{name: "loyal", weight: 15, invoices: [2]int{8, 30}, lines: [2]int{3, 12}, quantity: [2]int{2, 24}, lastActive: [2]int{0, 20}, cancelRate: 0.02},
	{name: "churning", weight: 30, invoices: [2]int{1, 4}, lines: [2]int{1, 6}, quantity: [2]int{1, 12}, lastActive: [2]int{150, 360}, cancelRate: 0.05},
	{name: "recent_low", weight: 40, invoices: [2]int{1, 3}, lines: [2]int{1, 3}, quantity: [2]int{1, 4}, lastActive: [2]int{0, 45}, cancelRate: 0.01},
	{name: "bulk", weight: 15, invoices: [2]int{3, 10}, lines: [2]int{1, 4}, quantity: [2]int{48, 480}, lastActive: [2]int{20, 120}, cancelRate: 0.03},
}

type product struct {
	code        string
	description string
	price       decimal.Decimal
}

var catalogue = []product{
	{"85123A", "WHITE HANGING HEART T-LIGHT HOLDER", decimal.RequireFromString("2.55")},
	{"71053", "WHITE METAL LANTERN", decimal.RequireFromString("3.39")},
	{"84406B", "CREAM CUPID HEARTS COAT HANGER", decimal.RequireFromString("2.75")},
	{"22752", "SET 7 BABUSHKA NESTING BOXES", decimal.RequireFromString("7.65")},
	{"21730", "GLASS STAR FROSTED T-LIGHT HOLDER", decimal.RequireFromString("4.25")},
	{"22633", "HAND WARMER UNION JACK", decimal.RequireFromString("1.85")},
	{"84879", "ASSORTED COLOUR BIRD ORNAMENT", decimal.RequireFromString("1.69")},
	{"22745", "POPPY'S PLAYHOUSE BEDROOM", decimal.RequireFromString("2.10")},
	{"21754", "HOME BUILDING BLOCK WORD", decimal.RequireFromString("5.95")},
	{"22310", "IVORY KNITTED MUG COSY", decimal.RequireFromString("1.65")},
	{"48187", "DOORMAT NEW ENGLAND", decimal.RequireFromString("7.95")},
	{"22960", "JAM MAKING SET WITH JARS", decimal.RequireFromString("4.25")},
}

type transaction struct {
	invoiceNo   string
	stockCode   string
	description string
	quantity    int64
	invoiceDate time.Time
	unitPrice   decimal.Decimal
	customerID  string
}

func main() {
	customers := flag.Int("customers", 1000, "number of synthetic customers")
	anonymous := flag.Float64("anonymous", 0.2, "share of extra invoices with no customer id")
	end := flag.String("end", "2011-12-09", "last invoice date (YYYY-MM-DD)")
	seed := flag.Uint64("seed", 42, "random seed")
	csvPath := flag.String("csv", "", "write a CSV file instead of inserting into the database")
	reset := flag.Bool("reset", false, "delete existing rows from the transactions table first")
	flag.Parse()

	observability.InitLogger("seed", "development")

	endDate, err := time.ParseInLocation(time.DateOnly, *end, time.UTC)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -end date")
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	txns := generate(rng, *customers, *anonymous, endDate)
	log.Info().Int("customers", *customers).Int("transactions", len(txns)).Msg("generated transactions")

	if *csvPath != "" {
		if err := writeCSV(*csvPath, txns); err != nil {
			log.Fatal().Err(err).Str("path", *csvPath).Msg("failed to write CSV")
		}
		log.Info().Str("path", *csvPath).Msg("CSV written")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, closeDB, err := open(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to connect")
	}
	defer closeDB()

	if err := insert(context.Background(), db, cfg.Database.Driver, cfg.Segmentation.TransactionsTable, txns, *reset); err != nil {
		log.Fatal().Err(err).Msg("seeding failed")
	}
	log.Info().Str("table", cfg.Segmentation.TransactionsTable).Msg("seeding completed")
}

func generate(rng *rand.Rand, customers int, anonymousShare float64, end time.Time) []transaction {
	totalWeight := 0
	for _, p := range personas {
		totalWeight += p.weight
	}

	invoice := 536365
	var txns []transaction
	addInvoice := func(customerID string, day time.Time, p persona) {
		invoice++
		invoiceNo := strconv.Itoa(invoice)
		if rng.Float64() < p.cancelRate {
			invoiceNo = "C" + invoiceNo
		}
		at := day.Add(time.Duration(8+rng.IntN(10))*time.Hour + time.Duration(rng.IntN(60))*time.Minute)
		for range between(rng, p.lines) {
			item := catalogue[rng.IntN(len(catalogue))]
			txns = append(txns, transaction{
				invoiceNo:   invoiceNo,
				stockCode:   item.code,
				description: item.description,
				quantity:    int64(between(rng, p.quantity)),
				invoiceDate: at,
				unitPrice:   item.price,
				customerID:  customerID,
			})
		}
	}

	for c := range customers {
		p := pick(rng, totalWeight)
		customerID := strconv.Itoa(12346 + c)
		last := end.AddDate(0, 0, -between(rng, p.lastActive))
		n := between(rng, p.invoices)
		for i := range n {
			// Earlier invoices spread back over up to a year before the last one.
			day := last
			if i > 0 {
				day = last.AddDate(0, 0, -rng.IntN(365))
			}
			addInvoice(customerID, day, p)
		}
	}

	for range int(float64(customers) * anonymousShare) {
		addInvoice("", end.AddDate(0, 0, -rng.IntN(365)), personas[2])
	}

	slices.SortStableFunc(txns, func(a, b transaction) int {
		return a.invoiceDate.Compare(b.invoiceDate)
	})
	return txns
}

func pick(rng *rand.Rand, totalWeight int) persona {
	n := rng.IntN(totalWeight)
	for _, p := range personas {
		if n < p.weight {
			return p
		}
		n -= p.weight
	}
	return personas[len(personas)-1]
}

func between(rng *rand.Rand, r [2]int) int {
	return r[0] + rng.IntN(r[1]-r[0]+1)
}

func writeCSV(path string, txns []transaction) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	_ = w.Write([]string{
		tabular.ColInvoiceNo, tabular.ColStockCode, tabular.ColDescription, tabular.ColQuantity,
		tabular.ColInvoiceDate, tabular.ColUnitPrice, tabular.ColCustomerID,
	})
	for _, t := range txns {
		_ = w.Write([]string{
			t.invoiceNo, t.stockCode, t.description, strconv.FormatInt(t.quantity, 10),
			t.invoiceDate.Format(time.DateTime), t.unitPrice.String(), t.customerID,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func open(cfg *config.Config) (*sql.DB, func(), error) {
	if cfg.Database.Driver == "mysql" {
		client, err := mysql.NewClient(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return client.DB(), func() { client.Close() }, nil
	}
	client, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return client.DB(), func() { client.Close() }, nil
}

func insert(ctx context.Context, conn *sql.DB, dialect, table string, txns []transaction, reset bool) error {
	db := goqu.New(dialect, conn)

	if reset {
		if _, err := db.Delete(table).Executor().ExecContext(ctx); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
		log.Info().Str("table", table).Msg("existing rows deleted")
	}

	bar := progressbar.Default(int64(len(txns)), "inserting")
	for batch := range slices.Chunk(txns, insertBatch) {
		records := make([]interface{}, len(batch))
		for i, t := range batch {
			records[i] = goqu.Record{
				"invoice_no":   t.invoiceNo,
				"stock_code":   t.stockCode,
				"description":  t.description,
				"quantity":     t.quantity,
				"invoice_date": t.invoiceDate,
				"unit_price":   t.unitPrice.String(),
				"customer_id":  sql.NullString{String: t.customerID, Valid: t.customerID != ""},
			}
		}
		if _, err := db.Insert(table).Rows(records...).Executor().ExecContext(ctx); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		_ = bar.Add(len(batch))
	}
	return bar.Finish()
}
