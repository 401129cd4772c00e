// Package httpcatalog talks to the catalog service over its REST API.
package httpcatalog

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/logger"
)

// TokenSource supplies the bearer token of the signed-in seller, or "" when anonymous.
type TokenSource interface {
	Token() string
}

type listResponse struct {
	Listings []domain.Listing `json:"listings"`
}

type uploadResponse struct {
	URL string `json:"url"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// Client implements domain.RemoteCatalog and domain.MediaStorage.
type Client struct {
	http   *resty.Client
	tokens TokenSource
	logger *logger.Logger
}

func New(baseURL string, timeout time.Duration, tokens TokenSource, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "catalog-engine/1.0")

	return &Client{http: client, tokens: tokens, logger: log}
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx).SetError(&errorResponse{})
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.SetAuthToken(token)
		}
	}
	return req
}

func (c *Client) List(ctx context.Context, query domain.ListQuery) ([]domain.Listing, error) {
	var res listResponse
	req := c.request(ctx).SetResult(&res)
	if query.Category != "" {
		req.SetQueryParam("category", query.Category)
	}
	if query.SellerID != "" {
		req.SetQueryParam("sellerId", query.SellerID)
	}

	resp, err := req.Get("/api/listings")
	if err := c.check(resp, err, "list listings"); err != nil {
		return nil, err
	}
	if res.Listings == nil {
		res.Listings = []domain.Listing{}
	}
	return res.Listings, nil
}

func (c *Client) Create(ctx context.Context, listing domain.Listing) (domain.Listing, error) {
	var created domain.Listing
	resp, err := c.request(ctx).
		SetBody(listing).
		SetResult(&created).
		Post("/api/listing")
	if err := c.check(resp, err, "create listing"); err != nil {
		return domain.Listing{}, err
	}
	return created, nil
}

func (c *Client) Update(ctx context.Context, listing domain.Listing) (domain.Listing, error) {
	var updated domain.Listing
	resp, err := c.request(ctx).
		SetBody(listing).
		SetResult(&updated).
		SetPathParam("id", strconv.FormatInt(listing.ID, 10)).
		Put("/api/listing/{id}")
	if err := c.check(resp, err, "update listing"); err != nil {
		return domain.Listing{}, err
	}
	return updated, nil
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	resp, err := c.request(ctx).
		SetPathParam("id", strconv.FormatInt(id, 10)).
		Delete("/api/listing/{id}")
	return c.check(resp, err, "delete listing")
}

// Upload sends an image to the catalog service and returns its URL.
func (c *Client) Upload(ctx context.Context, fileName string, data []byte) (string, error) {
	var res uploadResponse
	resp, err := c.request(ctx).
		SetFileReader("file", fileName, bytes.NewReader(data)).
		SetResult(&res).
		Post("/api/upload")
	if err := c.check(resp, err, "upload image"); err != nil {
		return "", err
	}
	if res.URL == "" {
		return "", fmt.Errorf("upload image: empty url in response")
	}
	return res.URL, nil
}

// check turns transport failures and error statuses into errors the engine
// understands.
func (c *Client) check(resp *resty.Response, err error, op string) error {
	if err != nil {
		c.logger.Warn("httpcatalog.Client: request failed", "op", op, "error", err.Error())
		return fmt.Errorf("%s: %w", op, err)
	}
	if !resp.IsError() {
		return nil
	}

	msg := resp.Status()
	field := ""
	if e, ok := resp.Error().(*errorResponse); ok && e.Error != "" {
		msg = e.Error
		field = e.Field
	}
	c.logger.Warn("httpcatalog.Client: catalog service returned an error",
		"op", op, "status", resp.StatusCode(), "message", msg)

	switch resp.StatusCode() {
	case http.StatusBadRequest:
		return &domain.ValidationError{Field: field, Reason: msg}
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", op, domain.ErrUnauthenticated)
	case http.StatusForbidden:
		return fmt.Errorf("%s: %w", op, domain.ErrForbidden)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, domain.ErrListingNotFound)
	}
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode(), msg)
}
