package bot

import (
	"context"

	"github.com/KirillYabl/TgPizzaBot/internal/geo"
	"github.com/KirillYabl/TgPizzaBot/internal/moltin"
)

// Commerce is the slice of the commerce platform the state machine consumes.
// *moltin.Client satisfies it.
type Commerce interface {
	Products(ctx context.Context, categoryID string) ([]moltin.Product, error)
	Product(ctx context.Context, productID string) (moltin.Product, error)
	Categories(ctx context.Context) ([]moltin.Category, error)
	FileURL(ctx context.Context, fileID string) (string, error)

	AddCartItem(ctx context.Context, ref, productID string, quantity int) error
	Cart(ctx context.Context, ref string) (moltin.Cart, error)
	DeleteCartItem(ctx context.Context, ref, itemID string) error

	FindCustomer(ctx context.Context, name, email string) (moltin.Customer, error)
	CreateCustomer(ctx context.Context, name, email string) (moltin.CustomerResult, error)

	CreateEntry(ctx context.Context, flowSlug string, fields map[string]any) (string, error)
	Entries(ctx context.Context, flowSlug string) ([]moltin.Entry, error)
}

// Geocoder resolves typed addresses. *geo.Geocoder satisfies it.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (geo.Point, bool, error)
}
