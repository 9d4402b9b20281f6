package model

// CartItem is one line of a user's cart as rendered to the client.  Name,
// UnitPriceCents, Currency and Image come from the snapshot taken at the last
// write of the line; the live product only fills fields the snapshot lacks.
type CartItem struct {
	ProductID      uint64 `json:"product_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Currency       string `json:"currency"`
	Name           string `json:"name"`
	Image          string `json:"image"`
}

// CartLine is one requested change in a batch cart write.  A Quantity of
// zero or less removes the line.
type CartLine struct {
	ProductID uint64
	Quantity  int
}

// ProductSnapshot is the catalogue state copied onto a cart line when it is
// written.
type ProductSnapshot struct {
	ProductID  uint64
	Name       string
	PriceCents int64
	Currency   string
	Image      string // empty when the product has no images
}

// MaxCartBatch bounds the number of lines honoured by one cart write.
const MaxCartBatch = 100
