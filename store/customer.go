package store

import (
	"context"
)

// Customer represents a booking customer. Customers are identified by their
// email address; upserts merge on it.
type Customer struct {
	ID        int32
	Name      string
	Email     string
	Phone     string
	CreatedTs int64
}

type FindCustomer struct {
	ID    *int32
	Email *string
}

// UpsertCustomer inserts a customer or updates name/phone of the existing
// record with the same email.
func (s *Store) UpsertCustomer(ctx context.Context, upsert *Customer) (*Customer, error) {
	return s.driver.UpsertCustomer(ctx, upsert)
}

func (s *Store) GetCustomer(ctx context.Context, find *FindCustomer) (*Customer, error) {
	return s.driver.GetCustomer(ctx, find)
}
