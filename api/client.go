package api

import (
	"context"
	"net/url"

	"github.com/adeilh/gallery/gallery"
	"github.com/adeilh/gallery/httpx"
)

// Client calls the gallery routes. Errors from the server are *httpx.APIError.
type Client struct {
	http  *httpx.Client
	token string
}

// NewClient targets baseURL. token, when set, is sent as a bearer token.
func NewClient(baseURL, token string, opts ...httpx.ClientOption) *Client {
	opts = append([]httpx.ClientOption{httpx.WithBaseURL(baseURL)}, opts...)
	return &Client{http: httpx.NewClient(opts...), token: token}
}

func (c *Client) Images(ctx context.Context) ([]gallery.Image, error) {
	var out []gallery.Image
	if _, err := c.http.Get(ctx, "/api/images", &out, httpx.WithBearer(c.token)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Comments(ctx context.Context, imageID string) ([]gallery.Comment, error) {
	var out []gallery.Comment
	if _, err := c.http.Get(ctx, commentsPath(imageID), &out, httpx.WithBearer(c.token)); err != nil {
		return nil, err
	}
	return out, nil
}

// Upload posts a photo with its title and caption.
func (c *Client) Upload(ctx context.Context, filename string, data []byte, title, caption string) (gallery.Image, error) {
	var out gallery.Image
	_, err := c.http.Post(ctx, "/api/images", nil, &out,
		httpx.WithBearer(c.token),
		httpx.WithMultipart(map[string]string{"title": title, "caption": caption}, "photo", filename, data))
	return out, err
}

func (c *Client) PostComment(ctx context.Context, imageID, text string, rating int) (gallery.Comment, error) {
	var out gallery.Comment
	_, err := c.http.Post(ctx, commentsPath(imageID), commentRequest{Text: text, Rating: rating}, &out, httpx.WithBearer(c.token))
	return out, err
}

func commentsPath(imageID string) string {
	return "/api/images/" + url.PathEscape(imageID) + "/comments"
}
