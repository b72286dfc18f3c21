package gedi

import (
	"reflect"

	"github.com/xcube-dev/xcube-gedidb/datastore"
	"github.com/xcube-dev/xcube-gedidb/errors"
	"github.com/xcube-dev/xcube-gedidb/gedidb"
	"github.com/xcube-dev/xcube-gedidb/pkg/retry"
)

// Retry policies selectable through the store parameters.
const (
	RetryPolicyDefault    = "default"
	RetryPolicyQuick      = "quick"
	RetryPolicyPersistent = "persistent"
)

// Config holds the store parameters. Every parameter has a default, so
// the store can be created with no parameters at all; the endpoints stay
// overridable for tests and alternative deployments.
type Config struct {
	StorageType string `json:"storage_type,omitempty" schema:"type:enum,description:Storage backend type,enum:s3|local,default:s3"`
	Bucket      string `json:"bucket,omitempty" schema:"type:string,description:Bucket holding the GEDI TileDB arrays,default:dog.gedidb.org"`
	URL         string `json:"url,omitempty" schema:"type:string,description:Base URL of the gedidb service,default:https://s3.gfz-potsdam.de"`
	CMRURL      string `json:"cmr_url,omitempty" schema:"type:string,description:NASA CMR collection search endpoint,default:https://cmr.earthdata.nasa.gov/search/collections.json"`
	RetryPolicy string `json:"retry_policy,omitempty" schema:"type:enum,description:Backoff policy for provider and CMR requests,enum:default|quick|persistent,default:default"`
}

// configSchema is generated once at package initialization.
var configSchema = datastore.GenerateParamsSchema(reflect.TypeOf(Config{}))

// applyDefaults fills unset fields from the schema defaults.
func (c *Config) applyDefaults() {
	if c.StorageType == "" {
		c.StorageType = gedidb.DefaultStorageType
	}
	if c.Bucket == "" {
		c.Bucket = gedidb.DefaultBucket
	}
	if c.URL == "" {
		c.URL = gedidb.DefaultBaseURL
	}
	if c.CMRURL == "" {
		c.CMRURL = DefaultCMRURL
	}
	if c.RetryPolicy == "" {
		c.RetryPolicy = RetryPolicyDefault
	}
}

// Validate implements datastore.Validatable.
func (c *Config) Validate() error {
	if c.StorageType != "" && c.StorageType != "s3" && c.StorageType != "local" {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"Config", "Validate", "storage type check")
	}
	switch c.RetryPolicy {
	case "", RetryPolicyDefault, RetryPolicyQuick, RetryPolicyPersistent:
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"Config", "Validate", "retry policy check")
	}
	return nil
}

// retryConfig maps the configured policy onto a backoff preset. Quick
// suits fixture-backed tests and local services, persistent suits
// deployments where the provider flaps.
func (c *Config) retryConfig() retry.Config {
	switch c.RetryPolicy {
	case RetryPolicyQuick:
		return retry.Quick()
	case RetryPolicyPersistent:
		return retry.Persistent()
	default:
		return retry.DefaultConfig()
	}
}
