package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"bfast/internal/model"
)

var (
	ErrUserExists         = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

type AuthService struct {
	db *sql.DB
}

func NewAuthService(db *sql.DB) *AuthService {
	return &AuthService{db: db}
}

func (s *AuthService) Register(ctx context.Context, username, password, role, clientID string) (*model.User, error) {
	if role == "" {
		role = model.RoleClientAdmin
	}
	if !model.CrossTenant(role) && clientID == "" {
		return nil, errors.New("tenant-scoped role requires a client_id")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	query := `INSERT INTO users (id, username, password_hash, role, client_id)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, username, role, client_id, created_at`
	row := s.db.QueryRowContext(ctx, query, uuid.NewString(), username, hash, role, clientID)

	var user model.User
	if err := row.Scan(&user.ID, &user.Username, &user.Role, &user.ClientID, &user.CreatedAt); err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	user.PasswordHash = hash

	return &user, nil
}

func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	query := `SELECT id, username, password_hash, role, client_id, created_at FROM users WHERE username = $1`
	row := s.db.QueryRowContext(ctx, query, username)

	var user model.User
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.ClientID, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}
