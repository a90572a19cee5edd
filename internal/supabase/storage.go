package supabase

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const uploadCacheControl = "max-age=3600"

type Object struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type listRequest struct {
	Prefix string   `json:"prefix"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
	SortBy sortSpec `json:"sortBy"`
}

type sortSpec struct {
	Column string `json:"column"`
	Order  string `json:"order"`
}

func objectPath(bucket, name string) string {
	parts := strings.Split(strings.Trim(name, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return url.PathEscape(bucket) + "/" + strings.Join(parts, "/")
}

// Upload stores body under bucket/name. Existing objects are not replaced.
func (c *Client) Upload(ctx context.Context, bucket, name, contentType string, body io.Reader) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/storage/v1/object/"+objectPath(bucket, name), "", body)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", uploadCacheControl)
	req.Header.Set("x-upsert", "false")

	if err := c.send(req, nil); err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, name, err)
	}
	return nil
}

// List returns up to limit objects under prefix, newest first.
func (c *Client) List(ctx context.Context, bucket, prefix string, limit int) ([]Object, error) {
	if limit <= 0 {
		limit = 100
	}

	objects := []Object{}
	body := listRequest{
		Prefix: prefix,
		Limit:  limit,
		SortBy: sortSpec{Column: "created_at", Order: "desc"},
	}
	if err := c.get(ctx, http.MethodPost, "/storage/v1/object/list/"+url.PathEscape(bucket), "", body, &objects); err != nil {
		return nil, fmt.Errorf("list %s: %w", bucket, err)
	}
	return objects, nil
}

// PublicURL is where a public bucket serves name.
func (c *Client) PublicURL(bucket, name string) string {
	return c.baseURL + "/storage/v1/object/public/" + objectPath(bucket, name)
}
