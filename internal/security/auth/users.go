package auth

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// User represents a gateway user
type User struct {
	ID       string
	Email    string
	Password string // bcrypt hash
	TenantID string
	Active   bool
}

// UserStore manages gateway user authentication for the manual login path
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*User // email -> user
}

// NewUserStore creates an empty user store
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*User)}
}

// AddUser adds a new user with a bcrypt-hashed password
func (us *UserStore) AddUser(email, password, tenantID, userID string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	us.mu.Lock()
	defer us.mu.Unlock()
	us.users[email] = &User{
		ID:       userID,
		Email:    email,
		Password: string(hash),
		TenantID: tenantID,
		Active:   true,
	}
	return nil
}

// Authenticate verifies credentials and returns the user
func (us *UserStore) Authenticate(email, password string) (*User, error) {
	us.mu.RLock()
	user, exists := us.users[email]
	us.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("user not found")
	}
	if !user.Active {
		return nil, fmt.Errorf("user inactive")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid password")
	}
	return user, nil
}

// GetUser retrieves a user by email
func (us *UserStore) GetUser(email string) (*User, error) {
	us.mu.RLock()
	defer us.mu.RUnlock()

	user, exists := us.users[email]
	if !exists {
		return nil, fmt.Errorf("user not found")
	}
	return user, nil
}
