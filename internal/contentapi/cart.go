package contentapi

import (
	"context"
	"net/http"

	"github.com/Skotchmaster/storefront/internal/models"
)

// CartChange is the body of the add and remove endpoints. Quantity may be
// negative on add: that is how decrements reach the server.
type CartChange struct {
	Product  int `json:"product"`
	Quantity int `json:"quantity"`
}

func (c *Client) GetCart(ctx context.Context, token string) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := c.do(ctx, http.MethodGet, cartPath, "", token, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) AddToCart(ctx context.Context, token string, change CartChange) error {
	return c.do(ctx, http.MethodPost, cartAddPath, "", token, change, nil)
}

func (c *Client) RemoveFromCart(ctx context.Context, token string, change CartChange) error {
	return c.do(ctx, http.MethodPost, cartRemovePath, "", token, change, nil)
}
