package contentapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/qs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductQuery_Encode(t *testing.T) {
	q := ProductQuery{
		Search:      "lamp",
		CategoryIDs: []string{"cat-a", "cat-b"},
		Price:       &Bounds{Min: 20, Max: 80},
		InStock:     true,
		Page:        3,
		PageSize:    10,
	}

	n := qs.Parse(q.Encode())

	v, _ := n.Lookup("filters", "title", "$containsi")
	assert.Equal(t, "lamp", v)
	v, _ = n.Lookup("filters", "productCategory", "documentId", "$in", "1")
	assert.Equal(t, "cat-b", v)
	v, _ = n.Lookup("filters", "price", "$gte")
	assert.Equal(t, "20", v)
	v, _ = n.Lookup("filters", "price", "$lte")
	assert.Equal(t, "80", v)
	v, _ = n.Lookup("filters", "stock", "$gt")
	assert.Equal(t, "0", v)
	v, _ = n.Lookup("pagination", "page")
	assert.Equal(t, "3", v)
	v, _ = n.Lookup("populate", "0")
	assert.Equal(t, "images", v)
	assert.False(t, n.Has("filters", "rating"))
}

func TestClient_ListProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/products", r.URL.Path)
		n := qs.Parse(r.URL.RawQuery)
		page, _ := n.Lookup("pagination", "page")
		assert.Equal(t, "2", page)

		_, _ = w.Write([]byte(`{"data":[{"id":7,"documentId":"doc7","title":"Lamp","price":12.5}],
			"meta":{"pagination":{"page":2,"pageSize":1,"pageCount":4,"total":4}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	res, err := c.ListProducts(context.Background(), ProductQuery{Page: 2, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, 7, res.Data[0].ID)
	assert.Equal(t, "doc7", res.Data[0].DocumentID)
	assert.Equal(t, 4, res.Meta.Pagination.PageCount)
}

func TestClient_CartSendsBearerAndBody(t *testing.T) {
	var got CartChange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/cart/add", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	require.NoError(t, c.AddToCart(context.Background(), "tok", CartChange{Product: 5, Quantity: -2}))
	assert.Equal(t, CartChange{Product: 5, Quantity: -2}, got)
}

func TestClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"data":null,"error":{"status":400,"name":"ValidationError","message":"Invalid identifier or password"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.Login(context.Background(), LoginRequest{Identifier: "a", Password: "b"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Invalid identifier or password", apiErr.Message)
	assert.ErrorIs(t, err, apperr.ErrNetwork)
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.GetCart(context.Background(), "tok")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNetwork)
}
