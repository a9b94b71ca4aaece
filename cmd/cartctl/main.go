// Command cartctl drives the cart API as a storefront client would: it keeps
// a guest identifier on disk, tags cart calls with it and merges the guest
// cart after sign-in.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/klawrenceboxx/postergenius2025-sub000/pkg/guestid"
	"github.com/klawrenceboxx/postergenius2025-sub000/pkg/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "cartctl:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "cartctl",
		Usage:  "PosterGenius cart client",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Value:   "http://localhost:8080",
				Usage:   "cart service base URL",
				EnvVars: []string{"CARTCTL_SERVER"},
			},
			&cli.StringFlag{
				Name:    "state-dir",
				Value:   defaultStateDir(),
				Usage:   "directory holding the guest identifier",
				EnvVars: []string{"CARTCTL_STATE_DIR"},
			},
			&cli.StringFlag{
				Name:    "state-db",
				Usage:   "SQLite file holding the guest identifier instead of state-dir",
				EnvVars: []string{"CARTCTL_STATE_DB"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "bearer token of the signed-in user",
				EnvVars: []string{"CARTCTL_TOKEN"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
			},
		},
		Before: func(c *cli.Context) error {
			logger.NewWithWriter(c.App.ErrWriter, c.String("log-level"), "text")
			return nil
		},
		Commands: []*cli.Command{
			guestCommand(),
			cartCommand(),
			addCommand(),
			mergeCommand(),
		},
	}
}

func defaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".cartctl"
	}
	return filepath.Join(dir, "cartctl")
}

// guestManager opens the configured slot store. The returned func releases it.
func guestManager(c *cli.Context) (*guestid.Manager, func(), error) {
	path := c.String("state-db")
	if path == "" {
		return guestid.NewManager(guestid.NewFileStorage(c.String("state-dir"))), func() {}, nil
	}
	store, err := openSQLiteStorage(path)
	if err != nil {
		return nil, nil, err
	}
	return guestid.NewManager(store), func() { store.Close() }, nil
}

// client builds an API client tagged with the current guest identifier. A
// missing identifier is not fatal; signed-in calls do not need one.
func client(c *cli.Context) (*apiClient, error) {
	m, release, err := guestManager(c)
	if err != nil {
		return nil, err
	}
	defer release()

	id, ok := m.GetOrCreate()
	if !ok {
		slog.Warn("guest identifier unavailable, continuing without one")
	}
	return newAPIClient(c.String("server"), id, c.String("token"))
}

func guestCommand() *cli.Command {
	return &cli.Command{
		Name:  "guest",
		Usage: "print the guest identifier, creating one if needed",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "reset", Usage: "forget the stored identifier first"},
		},
		Action: func(c *cli.Context) error {
			m, release, err := guestManager(c)
			if err != nil {
				return err
			}
			defer release()

			if c.Bool("reset") {
				if err := m.Clear(); err != nil {
					return fmt.Errorf("failed to reset guest identifier: %w", err)
				}
			}
			id, ok := m.GetOrCreate()
			if !ok {
				return errors.New("guest identifier could not be stored")
			}
			fmt.Fprintln(c.App.Writer, id)
			return nil
		},
	}
}

func cartCommand() *cli.Command {
	return &cli.Command{
		Name:  "cart",
		Usage: "show the current cart",
		Action: func(c *cli.Context) error {
			api, err := client(c)
			if err != nil {
				return err
			}
			cart, err := api.GetCart(c.Context)
			if err != nil {
				return err
			}
			printCart(c.App.Writer, cart)
			return nil
		},
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "add a poster to the cart",
		ArgsUsage: "PRODUCT_ID",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "quantity", Aliases: []string{"q"}, Value: 1},
			&cli.StringFlag{Name: "format"},
			&cli.StringFlag{Name: "dimensions"},
			&cli.Float64Flag{Name: "price"},
		},
		Action: func(c *cli.Context) error {
			productID := c.Args().First()
			if productID == "" {
				return errors.New("PRODUCT_ID is required")
			}
			item := addItem{
				ProductID:  productID,
				Quantity:   c.Int("quantity"),
				Format:     c.String("format"),
				Dimensions: c.String("dimensions"),
			}
			if c.IsSet("price") {
				price := c.Float64("price")
				item.Price = &price
			}

			api, err := client(c)
			if err != nil {
				return err
			}
			cart, err := api.AddItem(c.Context, item)
			if err != nil {
				return err
			}
			printCart(c.App.Writer, cart)
			return nil
		},
	}
}

func mergeCommand() *cli.Command {
	return &cli.Command{
		Name:  "merge",
		Usage: "merge the guest cart and guest orders into the signed-in user's account",
		Action: func(c *cli.Context) error {
			if c.String("token") == "" {
				return errors.New("--token is required to merge")
			}
			m, release, err := guestManager(c)
			if err != nil {
				return err
			}
			defer release()

			id, ok := m.Peek()
			if !ok {
				fmt.Fprintln(c.App.Writer, "no guest cart to merge")
				return nil
			}

			api, err := newAPIClient(c.String("server"), id, c.String("token"))
			if err != nil {
				return err
			}
			return runMerge(c.Context, c.App.Writer, api, m)
		},
	}
}

// runMerge binds the guest session, claims guest orders and merges the cart.
// The local identifier is dropped only once the merge is acknowledged.
func runMerge(ctx context.Context, out io.Writer, api *apiClient, m *guestid.Manager) error {
	if err := api.StartGuestSession(ctx); err != nil {
		return fmt.Errorf("failed to start guest session: %w", err)
	}

	claimed, err := api.ClaimOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to claim guest orders: %w", err)
	}
	merged, err := api.Merge(ctx)
	if err != nil {
		return fmt.Errorf("failed to merge guest cart: %w", err)
	}

	if err := m.Clear(); err != nil {
		slog.Warn("failed to clear guest identifier", "error", err)
	}
	fmt.Fprintf(out, "merged: %t, orders claimed: %d\n", merged, claimed)
	return nil
}

func printCart(w io.Writer, cart *cartView) {
	keys := make([]string, 0, len(cart.CartItems))
	for k := range cart.CartItems {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-40s x%d\n", k, cart.CartItems[k].Quantity)
	}
	fmt.Fprintf(w, "items: %d  subtotal: %s\n", cart.TotalQuantity, cart.Subtotal)
}
