package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
	"github.com/vladislavdragonenkov/ledger/internal/service/ledger"
	"github.com/vladislavdragonenkov/ledger/internal/service/orders"
	"github.com/vladislavdragonenkov/ledger/internal/service/seed"
	"github.com/vladislavdragonenkov/ledger/internal/storage/memory"
	"github.com/vladislavdragonenkov/ledger/internal/storage/postgres"
)

const exitCodeDrift = 2

type seedStore interface {
	Customers() domain.CustomerRepository
	Orders() domain.OrderLifecycleStore
	Totals() domain.TotalStore
	Items() domain.ItemRepository
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "seed",
		Usage:  "наполняет леджер клиентами, заказами и позициями",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "driver",
				Usage:   "storage driver: memory|postgres",
				Value:   "postgres",
				EnvVars: []string{"LEDGER_STORAGE_DRIVER"},
			},
			&cli.StringFlag{
				Name:    "dsn",
				Usage:   "PostgreSQL DSN",
				EnvVars: []string{"LEDGER_POSTGRES_DSN"},
			},
			&cli.IntFlag{Name: "customers", Value: 10, Usage: "number of customers to create"},
			&cli.IntFlag{Name: "orders-per-customer", Value: 3},
			&cli.IntFlag{Name: "items-per-order", Value: 3},
			&cli.Int64Flag{Name: "rand-seed", Usage: "random seed (0 = time based)"},
			&cli.BoolFlag{Name: "verify", Usage: "audit order totals after seeding"},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	store, closeStore, err := openStore(c.Context, c.String("driver"), c.String("dsn"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer func() { _ = closeStore() }()

	logger := log.WithField("component", "seed")
	recalc := ledger.NewRecalculator(store.Totals(), store.Orders(), ledger.WithLogger(logger))
	items := ledger.NewItemService(store.Items(), recalc, logger)
	lifecycle := orders.NewLifecycle(store.Orders(), orders.WithLogger(logger))

	var rnd *rand.Rand
	if s := c.Int64("rand-seed"); s != 0 {
		rnd = rand.New(rand.NewSource(s))
	}
	seeder := seed.NewSeeder(store.Customers(), lifecycle, items, rnd, logger)

	res, err := seeder.Run(c.Context, seed.Plan{
		Customers:         c.Int("customers"),
		OrdersPerCustomer: c.Int("orders-per-customer"),
		ItemsPerOrder:     c.Int("items-per-order"),
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("seed failed after customers=%d orders=%d items=%d: %v", res.Customers, res.Orders, res.Items, err), 1)
	}
	_, _ = fmt.Fprintf(c.App.Writer, "seeded customers=%d orders=%d items=%d\n", res.Customers, res.Orders, res.Items)

	if !c.Bool("verify") {
		return nil
	}
	return verifyTotals(c.Context, c.App.Writer, recalc)
}

// verifyTotals сверяет суммы всех заказов хранилища, включая архивные
// и созданные до этого запуска.
func verifyTotals(ctx context.Context, out io.Writer, recalc *ledger.Recalculator) error {
	checked, drifts, err := recalc.VerifyAll(ctx)
	if err != nil {
		return cli.Exit(fmt.Sprintf("verify failed: %v", err), 1)
	}
	for _, drift := range drifts {
		_, _ = fmt.Fprintln(out, drift.Error())
	}
	if len(drifts) > 0 {
		return cli.Exit(fmt.Sprintf("total drift in %d of %d orders", len(drifts), checked), exitCodeDrift)
	}
	_, _ = fmt.Fprintf(out, "verified %d orders: totals consistent\n", checked)
	return nil
}

func openStore(ctx context.Context, driver, dsn string) (seedStore, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "memory":
		return memory.NewLedger(), func() error { return nil }, nil
	case "postgres":
		if strings.TrimSpace(dsn) == "" {
			return nil, nil, fmt.Errorf("postgres driver requires --dsn or LEDGER_POSTGRES_DSN")
		}
		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		log.WithError(err).Fatal("seed завершился с ошибкой")
	}
}
