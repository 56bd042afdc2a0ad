// Package menu keeps the restaurant menu in menu_items.csv.
package menu

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kiwari-pos/orderledger/internal/apperr"
	"github.com/kiwari-pos/orderledger/internal/csvstore"
	"github.com/kiwari-pos/orderledger/internal/enum"
	"github.com/shopspring/decimal"
)

// FileName is the menu file inside the data directory.
const FileName = "menu_items.csv"

// Header is the column layout of the menu file.
var Header = []string{"Category", "Name", "Price", "Description", "Type"}

// Item is one dish on the menu.
type Item struct {
	Category    string
	Name        string
	Price       decimal.Decimal
	Description string
	Type        string
}

// Category groups items under their heading, in file order.
type Category struct {
	Name  string
	Items []Item
}

// Catalog reads and edits the menu file.
type Catalog struct {
	path   string
	logger *log.Logger
	mu     sync.Mutex
}

// NewCatalog creates a Catalog over the menu file in dir.
func NewCatalog(dir string, logger *log.Logger) *Catalog {
	if logger == nil {
		logger = log.Default()
	}
	return &Catalog{path: filepath.Join(dir, FileName), logger: logger}
}

// Path returns the menu file path.
func (c *Catalog) Path() string { return c.path }

// Items returns every well-formed menu item in file order.
func (c *Catalog) Items(ctx context.Context) ([]Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(t.Rows))
	for _, r := range t.Rows {
		it, err := decodeItem(t, r)
		if err != nil {
			c.logger.Printf("WARN: menu line %d skipped: %v", r.Line, err)
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

// Categories returns the menu grouped by category.
func (c *Catalog) Categories(ctx context.Context) ([]Category, error) {
	items, err := c.Items(ctx)
	if err != nil {
		return nil, err
	}
	var cats []Category
	index := make(map[string]int)
	for _, it := range items {
		i, ok := index[it.Category]
		if !ok {
			i = len(cats)
			index[it.Category] = i
			cats = append(cats, Category{Name: it.Category})
		}
		cats[i].Items = append(cats[i].Items, it)
	}
	return cats, nil
}

// Lookup returns the first item called name.
func (c *Catalog) Lookup(ctx context.Context, name string) (Item, error) {
	items, err := c.Items(ctx)
	if err != nil {
		return Item{}, err
	}
	for _, it := range items {
		if it.Name == name {
			return it, nil
		}
	}
	return Item{}, fmt.Errorf("%w: menu item %q", apperr.ErrNotFound, name)
}

// Prices returns the price of every item by name. The first item wins when
// two categories use the same name.
func (c *Catalog) Prices(ctx context.Context) (map[string]decimal.Decimal, error) {
	items, err := c.Items(ctx)
	if err != nil {
		return nil, err
	}
	prices := make(map[string]decimal.Decimal, len(items))
	for _, it := range items {
		if _, ok := prices[it.Name]; !ok {
			prices[it.Name] = it.Price
		}
	}
	return prices, nil
}

// Add appends item to the menu.
func (c *Catalog) Add(ctx context.Context, item Item) error {
	item, err := normalize(item)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.load(ctx)
	if err != nil {
		return err
	}
	if find(t, item.Category, item.Name) >= 0 {
		return fmt.Errorf("%w: %s / %s already on the menu", apperr.ErrConflict, item.Category, item.Name)
	}
	if err := csvstore.Append(c.path, t.Header, t.Record(encodeItem(item))); err != nil {
		return fmt.Errorf("%w: append menu item: %w", apperr.ErrStoreUnavailable, err)
	}
	return nil
}

// Update replaces the item filed under category and name.
func (c *Catalog) Update(ctx context.Context, category, name string, item Item) error {
	item, err := normalize(item)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.load(ctx)
	if err != nil {
		return err
	}
	i := find(t, category, name)
	if i < 0 {
		return fmt.Errorf("%w: menu item %s / %s", apperr.ErrNotFound, category, name)
	}
	if j := find(t, item.Category, item.Name); j >= 0 && j != i {
		return fmt.Errorf("%w: %s / %s already on the menu", apperr.ErrConflict, item.Category, item.Name)
	}
	t.Rows[i].Fields = t.Record(encodeItem(item))
	return c.save(t)
}

// Delete removes the item filed under category and name.
func (c *Catalog) Delete(ctx context.Context, category, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.load(ctx)
	if err != nil {
		return err
	}
	i := find(t, category, name)
	if i < 0 {
		return fmt.Errorf("%w: menu item %s / %s", apperr.ErrNotFound, category, name)
	}
	t.Rows = append(t.Rows[:i], t.Rows[i+1:]...)
	return c.save(t)
}

func (c *Catalog) load(ctx context.Context) (*csvstore.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := csvstore.Read(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return csvstore.New(Header), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read menu: %w", apperr.ErrStoreUnavailable, err)
	}
	if len(t.Header) == 0 {
		return csvstore.New(Header), nil
	}
	if err := csvstore.CheckHeader(t.Header, Header); err != nil {
		return nil, fmt.Errorf("%w: menu: %w", apperr.ErrStoreUnavailable, err)
	}
	return t, nil
}

func (c *Catalog) save(t *csvstore.Table) error {
	if len(t.Unparsed) > 0 {
		return fmt.Errorf("%w: menu lines %v are not valid CSV", apperr.ErrMalformedRecord, t.Unparsed)
	}
	if err := csvstore.WriteAtomic(c.path, t); err != nil {
		return fmt.Errorf("%w: write menu: %w", apperr.ErrStoreUnavailable, err)
	}
	return nil
}

func find(t *csvstore.Table, category, name string) int {
	for i, r := range t.Rows {
		if t.Get(r, "Category") == category && t.Get(r, "Name") == name {
			return i
		}
	}
	return -1
}

func normalize(it Item) (Item, error) {
	it.Category = strings.TrimSpace(it.Category)
	it.Name = strings.TrimSpace(it.Name)
	it.Description = strings.TrimSpace(it.Description)
	switch {
	case it.Category == "":
		return Item{}, fmt.Errorf("%w: category is required", apperr.ErrInvalidInput)
	case it.Name == "":
		return Item{}, fmt.Errorf("%w: name is required", apperr.ErrInvalidInput)
	case it.Price.IsNegative():
		return Item{}, fmt.Errorf("%w: price must not be negative", apperr.ErrInvalidInput)
	}
	typ, err := ParseType(it.Type)
	if err != nil {
		return Item{}, err
	}
	it.Type = typ
	return it, nil
}

// ParseType accepts a dietary label in any letter case.
func ParseType(s string) (string, error) {
	for _, t := range []string{enum.DietaryVegetarian, enum.DietaryNonVegetarian} {
		if strings.EqualFold(strings.TrimSpace(s), t) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: type must be %s or %s", apperr.ErrInvalidInput, enum.DietaryVegetarian, enum.DietaryNonVegetarian)
}

func encodeItem(it Item) map[string]string {
	return map[string]string{
		"Category":    it.Category,
		"Name":        it.Name,
		"Price":       it.Price.StringFixed(2),
		"Description": it.Description,
		"Type":        it.Type,
	}
}

func decodeItem(t *csvstore.Table, r csvstore.Row) (Item, error) {
	if !t.Complete(r) {
		return Item{}, fmt.Errorf("%w: got %d fields, want %d", apperr.ErrMalformedRecord, len(r.Fields), len(t.Header))
	}
	price, err := decimal.NewFromString(strings.TrimSpace(t.Get(r, "Price")))
	if err != nil {
		return Item{}, fmt.Errorf("%w: price %q", apperr.ErrMalformedRecord, t.Get(r, "Price"))
	}
	it, err := normalize(Item{
		Category:    t.Get(r, "Category"),
		Name:        t.Get(r, "Name"),
		Price:       price,
		Description: t.Get(r, "Description"),
		Type:        t.Get(r, "Type"),
	})
	if err != nil {
		return Item{}, fmt.Errorf("%w: %w", apperr.ErrMalformedRecord, err)
	}
	return it, nil
}
