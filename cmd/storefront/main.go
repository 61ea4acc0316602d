package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	flag "github.com/spf13/pflag"

	"github.com/goliatone/go-storefront/config"
	"github.com/goliatone/go-storefront/model"
	"github.com/goliatone/go-storefront/pkg/di"
)

const usage = `Usage: storefront [--config file] <command>

Commands:
  migrate    create the database schema
  seed       add the demo catalog
  products   list products with their image URLs
`

func main() {
	flags := flag.NewFlagSet("storefront", flag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to a YAML config file")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, flags.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, "storefront:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, command string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	switch command {
	case "migrate":
		return container.Migrate(ctx)
	case "seed":
		if err := container.Migrate(ctx); err != nil {
			return err
		}
		return seed(ctx, container)
	case "products":
		return listProducts(ctx, container)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func seed(ctx context.Context, c *di.Container) error {
	log := c.Logger()

	categories, err := c.Categories().All(ctx)
	if err != nil {
		return err
	}
	if len(categories) > 0 {
		log.Info("catalog already seeded", "categories", len(categories))
		return nil
	}

	books := &model.Category{Name: "Books"}
	res, err := c.Categories().TryCreate(ctx, books)
	if err != nil {
		return err
	}
	if !res.Succeeded {
		return fmt.Errorf("seed category: %s", res)
	}

	atlas := &model.Product{
		Name:        "Atlas",
		Description: "A world atlas",
		Price:       decimal.RequireFromString("24.90"),
		CategoryID:  books.ID,
	}
	res, err = c.Products().TryCreate(ctx, atlas, nil)
	if err != nil {
		return err
	}
	if !res.Succeeded {
		return fmt.Errorf("seed product: %s", res)
	}

	log.Info("catalog seeded", "category_id", books.ID, "product_id", atlas.ID)
	return nil
}

func listProducts(ctx context.Context, c *di.Container) error {
	products, err := c.Products().All(ctx)
	if err != nil {
		return err
	}
	for _, p := range products {
		url, err := c.Products().ImageURL(p.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%d\t%s\t%s\t%s\n", p.ID, p.Name, p.Price.StringFixed(2), url)
	}
	return nil
}
