package dashboard

import (
	"strings"

	"github.com/kiwari-pos/orderledger/internal/ledger"
)

// DefaultPerPage is the number of order cards on one page.
const DefaultPerPage = 6

// Search keeps the orders whose id, customer id or any item name contains
// term, ignoring case. An empty term keeps everything.
func Search(orders []ledger.Order, term string) []ledger.Order {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return orders
	}
	var out []ledger.Order
	for _, o := range orders {
		if matches(o, term) {
			out = append(out, o)
		}
	}
	return out
}

func matches(o ledger.Order, term string) bool {
	if strings.Contains(strings.ToLower(o.ID), term) || strings.Contains(strings.ToLower(o.CustomerID), term) {
		return true
	}
	for name := range o.Contents {
		if strings.Contains(strings.ToLower(name), term) {
			return true
		}
	}
	return false
}

// FilterStatus keeps the orders in status st.
func FilterStatus(orders []ledger.Order, st ledger.Status) []ledger.Order {
	var out []ledger.Order
	for _, o := range orders {
		if o.Status == st {
			out = append(out, o)
		}
	}
	return out
}

// MostRecentFirst returns a reversed copy of orders, which are stored oldest
// first.
func MostRecentFirst(orders []ledger.Order) []ledger.Order {
	out := make([]ledger.Order, len(orders))
	for i, o := range orders {
		out[len(orders)-1-i] = o
	}
	return out
}

// Page is one page of orders.
type Page struct {
	Orders  []ledger.Order
	Page    int
	PerPage int
	Total   int
	Pages   int
}

// Paginate returns page (1-based) of orders. Out-of-range pages are clamped and
// perPage <= 0 means DefaultPerPage.
func Paginate(orders []ledger.Order, page, perPage int) Page {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	pages := (len(orders) + perPage - 1) / perPage
	if pages == 0 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	start := (page - 1) * perPage
	end := start + perPage
	if end > len(orders) {
		end = len(orders)
	}
	return Page{
		Orders:  orders[start:end],
		Page:    page,
		PerPage: perPage,
		Total:   len(orders),
		Pages:   pages,
	}
}
