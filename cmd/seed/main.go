package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/kiwari-pos/orderledger/internal/apperr"
	"github.com/kiwari-pos/orderledger/internal/config"
	"github.com/kiwari-pos/orderledger/internal/enum"
	"github.com/kiwari-pos/orderledger/internal/ledger"
	"github.com/kiwari-pos/orderledger/internal/menu"
	"github.com/kiwari-pos/orderledger/internal/users"
	"github.com/shopspring/decimal"
)

// demoMenu is the starter menu written to an empty data directory.
var demoMenu = []menu.Item{
	{Category: "Pizza", Name: "Margherita", Price: decimal.NewFromInt(150), Description: "Tomato, mozzarella, basil", Type: enum.DietaryVegetarian},
	{Category: "Pizza", Name: "Pepperoni", Price: decimal.NewFromInt(180), Description: "Spicy pepperoni, mozzarella", Type: enum.DietaryNonVegetarian},
	{Category: "Sides", Name: "Garlic Bread", Price: decimal.NewFromInt(60), Description: "Toasted with garlic butter", Type: enum.DietaryVegetarian},
	{Category: "Sides", Name: "Chicken Wings", Price: decimal.NewFromInt(120), Description: "Six pieces, barbecue glaze", Type: enum.DietaryNonVegetarian},
	{Category: "Drinks", Name: "Soda", Price: decimal.NewFromInt(40), Description: "Chilled can", Type: enum.DietaryVegetarian},
	{Category: "Drinks", Name: "Lemon Tea", Price: decimal.RequireFromString("35.50"), Description: "Iced, lightly sweetened", Type: enum.DietaryVegetarian},
}

// demoOrders are placed for the demo customer when -orders is set.
var demoOrders = []ledger.Contents{
	{"Margherita": 2, "Soda": 1},
	{"Pepperoni": 1, "Garlic Bread": 1},
	{"Chicken Wings": 2, "Lemon Tea": 2},
}

func main() {
	_ = godotenv.Load()

	// CLI flags
	username := flag.String("admin", "", "Admin username")
	password := flag.String("password", "", "Admin password")
	withOrders := flag.Bool("orders", false, "Also place demo orders for customer 'demo'")
	flag.Parse()

	// Fall back to environment variables
	if *username == "" {
		*username = os.Getenv("SEED_ADMIN")
	}
	if *password == "" {
		*password = os.Getenv("SEED_PASSWORD")
	}

	// Fall back to defaults
	if *username == "" {
		*username = "admin"
	}
	if *password == "" {
		*password = "password123"
		log.Println("WARNING: Using default password 'password123'. Change immediately in production!")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	l, err := ledger.New(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}
	log.Printf("Seeding data directory %s", l.Dir())

	directory := users.NewDirectory(cfg.DataDir)
	accounts := []struct{ name, password, role string }{
		{*username, *password, enum.UserRoleAdmin},
		{"kitchen", *password, enum.UserRoleStaff},
		{"demo", *password, enum.UserRoleCustomer},
	}
	for _, a := range accounts {
		if err := seedUser(ctx, directory, a.name, a.password, a.role); err != nil {
			log.Fatalf("Failed to seed user %s: %v", a.name, err)
		}
	}

	catalog := menu.NewCatalog(cfg.DataDir, log.Default())
	if err := seedMenu(ctx, catalog); err != nil {
		log.Fatalf("Failed to seed menu: %v", err)
	}

	if *withOrders {
		if err := seedOrders(ctx, l, catalog, "demo"); err != nil {
			log.Fatalf("Failed to seed orders: %v", err)
		}
	}

	log.Println("Seed completed successfully")
}

// seedUser creates the account if it doesn't exist.
func seedUser(ctx context.Context, d *users.Directory, username, password, role string) error {
	_, err := d.Create(ctx, username, password, role)
	if errors.Is(err, apperr.ErrConflict) {
		log.Printf("User '%s' already exists, skipping", username)
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("Created %s user '%s'", role, username)
	return nil
}

// seedMenu adds every demo item that is not on the menu yet.
func seedMenu(ctx context.Context, c *menu.Catalog) error {
	added := 0
	for _, it := range demoMenu {
		err := c.Add(ctx, it)
		if errors.Is(err, apperr.ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("add %s: %w", it.Name, err)
		}
		added++
	}
	log.Printf("Menu: added %d of %d items (%s)", added, len(demoMenu), c.Path())
	return nil
}

// seedOrders places the demo orders priced from the current menu.
func seedOrders(ctx context.Context, l *ledger.Ledger, c *menu.Catalog, customerID string) error {
	prices, err := c.Prices(ctx)
	if err != nil {
		return err
	}
	for _, contents := range demoOrders {
		total := decimal.Zero
		for name, qty := range contents {
			price, ok := prices[name]
			if !ok {
				return fmt.Errorf("%w: %q is not on the menu", apperr.ErrInvalidInput, name)
			}
			total = total.Add(price.Mul(decimal.NewFromInt(int64(qty))))
		}
		o, err := l.Checkout(ctx, customerID, contents, total)
		if err != nil {
			return err
		}
		log.Printf("Placed order %s for %s (%s)", o.ID, customerID, o.Total.StringFixed(2))
	}
	return nil
}
