package s3

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	Scheme        = "s3"
	defaultRegion = "us-east-1"
)

var (
	ErrNotS3URL  = errors.New("s3: url scheme must be s3")
	ErrNoBucket  = errors.New("s3: bucket missing")
	ErrNoKeyPair = errors.New("s3: access key and secret key required")
)

// Config addresses a bucket and an optional key prefix that acts as the
// remote root. It is usually parsed from
//
//	s3://bucket/prefix?region=eu-west-1&endpoint=http://localhost:9000
type Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// IsS3URL reports whether raw should be served by this package.
func IsS3URL(raw string) bool {
	return strings.HasPrefix(strings.ToLower(raw), Scheme+"://")
}

// ParseURL builds a Config from an s3:// url. Credentials are set separately.
func ParseURL(raw string) (*Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("s3: parse url: %w", err)
	}
	if !strings.EqualFold(u.Scheme, Scheme) {
		return nil, ErrNotS3URL
	}
	if u.Host == "" {
		return nil, ErrNoBucket
	}

	q := u.Query()
	cfg := &Config{
		Bucket:   u.Host,
		Prefix:   strings.Trim(u.Path, "/"),
		Region:   q.Get("region"),
		Endpoint: q.Get("endpoint"),
	}
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Bucket == "" {
		return ErrNoBucket
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return ErrNoKeyPair
	}
	if c.Endpoint != "" {
		if _, err := url.ParseRequestURI(c.Endpoint); err != nil {
			return fmt.Errorf("s3: invalid endpoint %q: %w", c.Endpoint, err)
		}
	}
	return nil
}

// key maps a remote path onto an object key under the prefix.
func (c *Config) key(p string) string {
	p = strings.TrimPrefix(p, "/")
	if c.Prefix == "" {
		return p
	}
	if p == "" {
		return c.Prefix
	}
	return c.Prefix + "/" + p
}
