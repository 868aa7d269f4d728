package moltin

// formattedPrice mirrors the display_price envelope the API attaches to
// products, cart items and cart totals.
type formattedPrice struct {
	Amount    int    `json:"amount"`
	Formatted string `json:"formatted"`
}

// Product is a catalog entity. Read-only from the bot's perspective.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Meta        struct {
		DisplayPrice struct {
			WithTax formattedPrice `json:"with_tax"`
		} `json:"display_price"`
	} `json:"meta"`
	Relationships struct {
		MainImage struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"main_image"`
	} `json:"relationships"`
}

// Price returns the tax-inclusive formatted price.
func (p Product) Price() string {
	return p.Meta.DisplayPrice.WithTax.Formatted
}

// MainImageID returns the id of the linked main image, empty when absent.
func (p Product) MainImageID() string {
	return p.Relationships.MainImage.Data.ID
}

// Category groups products in the catalog.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CartItem is a line in a cart, owned by the commerce platform.
type CartItem struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Meta        struct {
		DisplayPrice struct {
			WithTax struct {
				Unit  formattedPrice `json:"unit"`
				Value formattedPrice `json:"value"`
			} `json:"with_tax"`
		} `json:"display_price"`
	} `json:"meta"`
}

// UnitPrice returns the formatted per-unit price.
func (i CartItem) UnitPrice() string {
	return i.Meta.DisplayPrice.WithTax.Unit.Formatted
}

// LineTotal returns the formatted line total.
func (i CartItem) LineTotal() string {
	return i.Meta.DisplayPrice.WithTax.Value.Formatted
}

// Cart is the read model of a cart keyed by conversation id.
type Cart struct {
	Items []CartItem
	// TotalFormatted is the display total, e.g. "650 RUB".
	TotalFormatted string
	// TotalAmount is the raw total in minor currency units.
	TotalAmount int
}

// Customer is a commerce platform customer record.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CustomerOutcome enumerates the expected results of CreateCustomer.
type CustomerOutcome int

const (
	// CustomerCreated means a new customer record was created.
	CustomerCreated CustomerOutcome = iota
	// CustomerDuplicate means a customer with this email already exists.
	CustomerDuplicate
	// CustomerInvalidEmail means the platform rejected the email as invalid.
	CustomerInvalidEmail
)

// CustomerResult carries the outcome of CreateCustomer. Customer is populated
// only when Outcome is CustomerCreated.
type CustomerResult struct {
	Outcome  CustomerOutcome
	Customer Customer
}

// Entry is a schema-less flow entry record.
type Entry map[string]any

// String returns the entry field as a string, empty when absent or mistyped.
func (e Entry) String(field string) string {
	if v, ok := e[field].(string); ok {
		return v
	}
	return ""
}

// Float returns the entry field as a float64.
func (e Entry) Float(field string) (float64, bool) {
	switch v := e[field].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
