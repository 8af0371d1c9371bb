package auth

// AuthType selects how requests to the object store are authenticated.
type AuthType string

const (
	// Anonymous sends unsigned requests; sufficient for the public dataset buckets.
	Anonymous AuthType = "anonymous"

	// AccessKeyFile reads a static key pair from a two-column CSV file as
	// exported by the AWS console.
	AccessKeyFile AuthType = "access_key_file"

	// Default uses the AWS SDK default credential chain (env, shared config, IMDS).
	Default AuthType = "default"
)

// Config represents the authentication configuration for the object store.
//
// The credentials file location is always explicit; there is no fallback to
// a well-known file name in the working directory.
type Config struct {
	Type            AuthType `mapstructure:"type" json:"type"`
	CredentialsFile string   `mapstructure:"credentials_file" json:"credentials_file,omitempty"`
	Region          string   `mapstructure:"region" json:"region,omitempty"`
}

// EffectiveType returns Type, defaulting to Anonymous.
func (c Config) EffectiveType() AuthType {
	if c.Type == "" {
		return Anonymous
	}
	return c.Type
}
