// Package assets manages the image objects referenced by arbitro records:
// key generation, public URLs and the upload rules enforced before any
// network call.
package assets

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"arbitros/internal/blob"
)

// keyEntropyBytes is the amount of randomness behind every generated key.
const keyEntropyBytes = 16

// Object describes an image stored in the bucket.
type Object struct {
	Key          string    `json:"key"`
	URL          string    `json:"url"`
	Size         int64     `json:"size"`
	SizeKB       string    `json:"sizeKB"`
	LastModified time.Time `json:"lastModified"`
}

// Images is the object store client used by the coordinator and the gateway.
type Images struct {
	store   blob.Store
	baseURL string
	random  io.Reader
}

// Option customises an Images client.
type Option func(*Images)

// WithPublicBaseURL overrides the public URL prefix (e.g. a MinIO or CDN host).
func WithPublicBaseURL(base string) Option {
	return func(i *Images) {
		if base != "" {
			i.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithRandom replaces the entropy source used for key generation.
func WithRandom(r io.Reader) Option {
	return func(i *Images) {
		if r != nil {
			i.random = r
		}
	}
}

// New builds an Images client on store. Public URLs default to the
// virtual-hosted S3 form https://{bucket}.s3.{region}.amazonaws.com/{key}.
func New(store blob.Store, region string, opts ...Option) *Images {
	if region == "" {
		region = "us-east-1"
	}
	i := &Images{
		store:   store,
		baseURL: fmt.Sprintf("https://%s.s3.%s.amazonaws.com", store.Bucket(), region),
		random:  rand.Reader,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Bucket returns the bucket name behind the client.
func (i *Images) Bucket() string { return i.store.Bucket() }

// Put stores data under a freshly generated key and returns its public URL.
func (i *Images) Put(ctx context.Context, data []byte, originalName, mimeType string) (string, error) {
	key, err := i.NewKey(originalName)
	if err != nil {
		return "", &StoreError{Op: OpWrite, Err: err}
	}
	info, err := i.store.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{ContentType: mimeType})
	if err != nil {
		return "", &StoreError{Op: OpWrite, Key: key, Err: err}
	}
	return i.URLFor(info.Key), nil
}

// Delete removes the object addressed by rawURL. Deleting an absent object succeeds.
func (i *Images) Delete(ctx context.Context, rawURL string) error {
	key := KeyFromURL(rawURL)
	if key == "" {
		return &StoreError{Op: OpDelete, Err: fmt.Errorf("no object key in %q", rawURL)}
	}
	if _, err := i.store.Delete(ctx, key); err != nil {
		return &StoreError{Op: OpDelete, Key: key, Err: err}
	}
	return nil
}

// List enumerates every object in the bucket. An empty bucket yields an empty slice.
func (i *Images) List(ctx context.Context) ([]Object, error) {
	infos, err := i.store.List(ctx, "")
	if err != nil {
		return nil, &StoreError{Op: OpList, Err: err}
	}
	out := make([]Object, 0, len(infos))
	for _, info := range infos {
		out = append(out, Object{
			Key:          info.Key,
			URL:          i.URLFor(info.Key),
			Size:         info.Size,
			SizeKB:       fmt.Sprintf("%.2f", float64(info.Size)/1024),
			LastModified: info.LastModified,
		})
	}
	return out, nil
}

// Presign returns a time-limited GET URL for key. A non-positive expiry means one hour.
func (i *Images) Presign(ctx context.Context, key string, expires time.Duration) (string, error) {
	u, err := i.store.PresignURL(ctx, key, blob.SignedURLOptions{Expiry: expires})
	if err != nil {
		return "", &StoreError{Op: OpPresign, Key: key, Err: err}
	}
	return u, nil
}

// NewKey returns hex(random) + the lowercased extension of originalName.
// The rest of the original name never reaches the key.
func (i *Images) NewKey(originalName string) (string, error) {
	buf := make([]byte, keyEntropyBytes)
	if _, err := io.ReadFull(i.random, buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(buf) + Extension(originalName), nil
}

// URLFor builds the public URL of key.
func (i *Images) URLFor(key string) string {
	return i.baseURL + "/" + key
}

// KeyFromURL returns the final path segment of rawURL.
func KeyFromURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	key := path.Base(p)
	if key == "." || key == "/" {
		return ""
	}
	return key
}

// Extension returns the lowercased extension of name, keeping only
// alphanumerics so a crafted name cannot smuggle separators into a key.
func Extension(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if ext == "" {
		return ""
	}
	var b strings.Builder
	b.WriteByte('.')
	for _, r := range ext[1:] {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 1 {
		return ""
	}
	return b.String()
}
