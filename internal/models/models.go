package models

// Entities carry two identifiers: the numeric ID used by the cart endpoints
// and the opaque DocumentID used by catalog lookups and filters. Both are
// kept as received.

type Image struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

type Category struct {
	ID         int    `json:"id"`
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
}

type Product struct {
	ID              int       `json:"id"`
	DocumentID      string    `json:"documentId"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Price           float64   `json:"price"`
	DiscountPercent float64   `json:"discountPercent"`
	Rating          float64   `json:"rating"`
	Images          []Image   `json:"images"`
	ProductCategory *Category `json:"productCategory,omitempty"`
}

// CartItem is one line of the server-side cart.
type CartItem struct {
	ID       int     `json:"id"`
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

type User struct {
	ID         int    `json:"id"`
	DocumentID string `json:"documentId"`
	Username   string `json:"username"`
	Email      string `json:"email"`
}

type Pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

// List is the envelope of every collection endpoint.
type List[T any] struct {
	Data []T `json:"data"`
	Meta struct {
		Pagination Pagination `json:"pagination"`
	} `json:"meta"`
}

type Single[T any] struct {
	Data T `json:"data"`
}

// AuthResponse is returned by login, register and change-password.
type AuthResponse struct {
	JWT  string `json:"jwt"`
	User User   `json:"user"`
}
