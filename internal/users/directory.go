// Package users keeps the login accounts in users.csv.
package users

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kiwari-pos/orderledger/internal/apperr"
	"github.com/kiwari-pos/orderledger/internal/csvstore"
	"github.com/kiwari-pos/orderledger/internal/enum"
	"github.com/kiwari-pos/orderledger/internal/ledger"
	"golang.org/x/crypto/bcrypt"
)

// FileName is the accounts file inside the data directory.
const FileName = "users.csv"

const (
	colUsername = "username"
	colPassword = "password"
	colRole     = "role"
)

// Header is the column layout of the accounts file.
var Header = []string{colUsername, colPassword, colRole}

// User is one account. A customer's username is also their customer id.
type User struct {
	Username     string
	PasswordHash string
	Role         string
}

// Directory reads and writes the accounts file.
type Directory struct {
	path string
	cost int
	mu   sync.Mutex
}

// NewDirectory creates a Directory over the accounts file in dir.
func NewDirectory(dir string) *Directory {
	return &Directory{path: filepath.Join(dir, FileName), cost: bcrypt.DefaultCost}
}

// Path returns the accounts file path.
func (d *Directory) Path() string { return d.path }

// Get returns the account called username.
func (d *Directory) Get(ctx context.Context, username string) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, err := d.load(ctx)
	if err != nil {
		return User{}, err
	}
	for _, r := range t.Rows {
		if t.Get(r, colUsername) == username {
			return decodeUser(t, r), nil
		}
	}
	return User{}, fmt.Errorf("%w: user %q", apperr.ErrNotFound, username)
}

// List returns every account in file order.
func (d *Directory) List(ctx context.Context) ([]User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(t.Rows))
	for _, r := range t.Rows {
		if t.Get(r, colUsername) == "" {
			continue
		}
		out = append(out, decodeUser(t, r))
	}
	return out, nil
}

// Authenticate checks password against the stored hash. Unknown users and
// wrong passwords both return ErrInvalidCredentials.
func (d *Directory) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, err := d.Get(ctx, username)
	if errors.Is(err, apperr.ErrNotFound) {
		return User{}, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if !checkPassword(u.PasswordHash, password) {
		return User{}, apperr.ErrInvalidCredentials
	}
	return u, nil
}

// Create adds an account with a bcrypt hash of password.
func (d *Directory) Create(ctx context.Context, username, password, role string) (User, error) {
	if err := ledger.ValidateCustomerID(username); err != nil {
		return User{}, err
	}
	if password == "" {
		return User{}, fmt.Errorf("%w: password is required", apperr.ErrInvalidInput)
	}
	role, err := ParseRole(role)
	if err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u := User{Username: username, PasswordHash: string(hash), Role: role}

	d.mu.Lock()
	defer d.mu.Unlock()

	t, err := d.load(ctx)
	if err != nil {
		return User{}, err
	}
	for _, r := range t.Rows {
		if t.Get(r, colUsername) == username {
			return User{}, fmt.Errorf("%w: user %q already exists", apperr.ErrConflict, username)
		}
	}

	values := map[string]string{colUsername: u.Username, colPassword: u.PasswordHash, colRole: u.Role}
	if t.Index(colRole) < 0 {
		// Older files have no role column; add it before writing the new account.
		upgraded := csvstore.New(Header)
		for _, r := range t.Rows {
			old := decodeUser(t, r)
			upgraded.Add(map[string]string{colUsername: old.Username, colPassword: old.PasswordHash, colRole: old.Role})
		}
		upgraded.Add(values)
		upgraded.Unparsed = t.Unparsed
		if err := csvstore.WriteAtomic(d.path, upgraded); err != nil {
			return User{}, fmt.Errorf("%w: write users: %w", apperr.ErrStoreUnavailable, err)
		}
		return u, nil
	}
	if err := csvstore.Append(d.path, t.Header, t.Record(values)); err != nil {
		return User{}, fmt.Errorf("%w: append user: %w", apperr.ErrStoreUnavailable, err)
	}
	return u, nil
}

// ParseRole accepts a role name in any letter case.
func ParseRole(s string) (string, error) {
	for _, r := range []string{enum.UserRoleCustomer, enum.UserRoleStaff, enum.UserRoleAdmin} {
		if strings.EqualFold(strings.TrimSpace(s), r) {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: unknown role %q", apperr.ErrInvalidInput, s)
}

func (d *Directory) load(ctx context.Context) (*csvstore.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := csvstore.Read(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return csvstore.New(Header), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read users: %w", apperr.ErrStoreUnavailable, err)
	}
	if len(t.Header) == 0 {
		return csvstore.New(Header), nil
	}
	if t.Index(colUsername) < 0 || t.Index(colPassword) < 0 {
		return nil, fmt.Errorf("%w: users: %w: got %v", apperr.ErrStoreUnavailable, csvstore.ErrHeaderMismatch, t.Header)
	}
	return t, nil
}

func decodeUser(t *csvstore.Table, r csvstore.Row) User {
	role, err := ParseRole(t.Get(r, colRole))
	if err != nil {
		role = enum.UserRoleCustomer
	}
	return User{
		Username:     t.Get(r, colUsername),
		PasswordHash: t.Get(r, colPassword),
		Role:         role,
	}
}

// checkPassword compares against a bcrypt hash, or against the plain text
// older account files stored.
func checkPassword(stored, password string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	return stored != "" && subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}
