// Package archive provides upload archive options.
package archive

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/medreport/pkg/options"
	"github.com/kart-io/medreport/pkg/validator"
)

var _ options.IOptions = (*Options)(nil)

const (
	// BackendLocal stores archived uploads in a directory.
	BackendLocal = "local"
	// BackendS3 stores archived uploads in an S3 compatible bucket.
	BackendS3 = "s3"
)

// Options configures retention of accepted uploads.
type Options struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Backend string `json:"backend" mapstructure:"backend" validate:"oneof=local s3"`

	// Dir is the local backend root.
	Dir string `json:"dir" mapstructure:"dir"`

	S3Bucket   string `json:"s3-bucket" mapstructure:"s3-bucket"`
	S3Region   string `json:"s3-region" mapstructure:"s3-region"`
	S3Endpoint string `json:"s3-endpoint" mapstructure:"s3-endpoint" validate:"omitempty,url"`
	// S3AccessKey and S3SecretKey are optional; the default AWS credential chain is used otherwise.
	S3AccessKey string `json:"-" mapstructure:"s3-access-key"`
	S3SecretKey string `json:"-" mapstructure:"s3-secret-key"`
	// S3PathStyle forces path-style addressing, needed by MinIO and most emulators.
	S3PathStyle bool `json:"s3-path-style" mapstructure:"s3-path-style"`
}

// NewOptions creates default archive options. The archive is disabled by default.
func NewOptions() *Options {
	return &Options{
		Backend:  BackendLocal,
		Dir:      "./data/uploads",
		S3Region: "us-east-1",
	}
}

// AddFlags adds flags for archive options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "archive."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Archive accepted uploads under their content hash.")
	fs.StringVar(&o.Backend, p+"backend", o.Backend, "Archive backend (local|s3).")
	fs.StringVar(&o.Dir, p+"dir", o.Dir, "Directory of the local archive backend.")
	fs.StringVar(&o.S3Bucket, p+"s3-bucket", o.S3Bucket, "S3 bucket name.")
	fs.StringVar(&o.S3Region, p+"s3-region", o.S3Region, "S3 region.")
	fs.StringVar(&o.S3Endpoint, p+"s3-endpoint", o.S3Endpoint, "Custom S3 endpoint URL (MinIO, R2).")
	fs.StringVar(&o.S3AccessKey, p+"s3-access-key", o.S3AccessKey, "S3 access key id (optional).")
	fs.StringVar(&o.S3SecretKey, p+"s3-secret-key", o.S3SecretKey, "S3 secret access key (optional).")
	fs.BoolVar(&o.S3PathStyle, p+"s3-path-style", o.S3PathStyle, "Use path-style S3 addressing.")
}

// Validate validates the archive options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	errs := validator.Struct(o, "archive.")
	switch o.Backend {
	case BackendLocal:
		if o.Dir == "" {
			errs = append(errs, fmt.Errorf("archive.dir is required for the local backend"))
		}
	case BackendS3:
		if o.S3Bucket == "" {
			errs = append(errs, fmt.Errorf("archive.s3-bucket is required for the s3 backend"))
		}
		if (o.S3AccessKey == "") != (o.S3SecretKey == "") {
			errs = append(errs, fmt.Errorf("archive.s3-access-key and archive.s3-secret-key must be set together"))
		}
	}
	return errs
}

// Complete completes the archive options.
func (o *Options) Complete() error {
	return nil
}
