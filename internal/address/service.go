// Package address reads and creates customer delivery addresses on the backend.
package address

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
)

// ErrNotFound is returned when an address does not belong to the customer.
var ErrNotFound = errors.New("address: not found")

// Locality is a delivery zone known to the backend.
type Locality struct {
	ID     int64  `json:"id" validate:"gt=0"`
	Nombre string `json:"nombre,omitempty"`
}

// Address mirrors the backend domicilio resource.
type Address struct {
	ID        int64    `json:"id,omitempty"`
	Calle     string   `json:"calle"`
	Numero    int      `json:"numero"`
	CP        int      `json:"cp"`
	Localidad Locality `json:"localidad"`
}

// Input is the payload accepted when creating an address.
type Input struct {
	Calle     string   `json:"calle" validate:"required,max=120"`
	Numero    int      `json:"numero" validate:"gt=0"`
	CP        int      `json:"cp" validate:"gt=0"`
	Localidad Locality `json:"localidad" validate:"required"`
}

// Service is the backend client for addresses.
type Service struct {
	Backend *backend.Client
	Logger  zerolog.Logger
}

// List returns the addresses registered for the customer.
func (s *Service) List(ctx context.Context, customerID int64) ([]Address, error) {
	var out []Address
	if err := s.Backend.Do(ctx, http.MethodGet, fmt.Sprintf("/clientes/%d/domicilios", customerID), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Address{}
	}
	return out, nil
}

// Create validates in and registers it for the customer.
func (s *Service) Create(ctx context.Context, customerID int64, in Input) (Address, error) {
	in.Calle = strings.TrimSpace(in.Calle)
	if err := common.Validator().Struct(in); err != nil {
		return Address{}, common.NewAppError("VALIDATION_FAILED", "invalid address", http.StatusUnprocessableEntity, err).
			WithDetails(common.FieldErrors(err))
	}
	body := Address{Calle: in.Calle, Numero: in.Numero, CP: in.CP, Localidad: in.Localidad}
	var created Address
	if err := s.Backend.Do(ctx, http.MethodPost, fmt.Sprintf("/clientes/%d/domicilios", customerID), body, &created); err != nil {
		return Address{}, err
	}
	s.Logger.Info().Int64("customer_id", customerID).Int64("address_id", created.ID).Msg("address_created")
	return created, nil
}

// Find returns the customer's address with the given id or ErrNotFound.
func (s *Service) Find(ctx context.Context, customerID, addressID int64) (Address, error) {
	list, err := s.List(ctx, customerID)
	if err != nil {
		return Address{}, err
	}
	for _, a := range list {
		if a.ID == addressID {
			return a, nil
		}
	}
	return Address{}, ErrNotFound
}

// Localities lists the zones addresses can be created in.
func (s *Service) Localities(ctx context.Context) ([]Locality, error) {
	var out []Locality
	if err := s.Backend.Do(ctx, http.MethodGet, "/localidades", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Locality{}
	}
	return out, nil
}
