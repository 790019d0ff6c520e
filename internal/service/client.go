package service

import (
	"context"
	"database/sql"
	"errors"

	"bfast/internal/apperr"
	"bfast/internal/model"
)

// ClientService reads tenant records. Tenant creation is an admin/DBA
// operation outside this service.
type ClientService struct {
	db *sql.DB
}

func NewClientService(db *sql.DB) *ClientService {
	return &ClientService{db: db}
}

const clientColumns = `id, client_id, name, shopify_store, shopify_api_key, shopify_api_password,
	shiprocket_email, shiprocket_password, created_at`

func scanClient(row interface{ Scan(...any) error }) (*model.Client, error) {
	var c model.Client
	err := row.Scan(&c.ID, &c.ClientID, &c.Name, &c.ShopifyStore, &c.ShopifyAPIKey,
		&c.ShopifyAPIPassword, &c.ShiprocketEmail, &c.ShiprocketPassword, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *ClientService) GetByClientID(ctx context.Context, clientID string) (*model.Client, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE client_id = $1`, clientID)

	c, err := scanClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &apperr.NotFoundError{Resource: "client", ID: clientID}
		}
		return nil, &apperr.StorageError{Op: "get client", Err: err}
	}
	return c, nil
}

func (s *ClientService) List(ctx context.Context) ([]model.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients ORDER BY created_at ASC`)
	if err != nil {
		return nil, &apperr.StorageError{Op: "query clients", Err: err}
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, &apperr.StorageError{Op: "scan client", Err: err}
		}
		clients = append(clients, *c)
	}

	if err = rows.Err(); err != nil {
		return nil, &apperr.StorageError{Op: "iterate clients", Err: err}
	}

	return clients, nil
}
