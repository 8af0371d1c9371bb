package auth

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
)

const (
	accessKeyIDHeader     = "Access key ID"
	secretAccessKeyHeader = "Secret access key"
)

// AccessKeyConfig represents AWS access key configuration
type AccessKeyConfig struct {
	AccessKeyID     string `mapstructure:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" json:"secret_access_key"`
}

// Validate validates the access key configuration
func (c *AccessKeyConfig) Validate() error {
	if c.AccessKeyID == "" {
		return fmt.Errorf("%q is required", accessKeyIDHeader)
	}
	if c.SecretAccessKey == "" {
		return fmt.Errorf("%q is required", secretAccessKeyHeader)
	}
	return nil
}

// ReadAccessKeyFile loads the key pair from the CSV at path. The file has a
// header row naming the "Access key ID" and "Secret access key" columns
// (in any order) followed by one row of values.
func ReadAccessKeyFile(fs afero.Fs, path string) (*AccessKeyConfig, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", path, err)
	}
	cfg, err := parseAccessKeyCSV(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid credentials file %s: %w", path, err)
	}
	return cfg, nil
}

func parseAccessKeyCSV(r io.Reader) (*AccessKeyConfig, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, err
	}

	idCol, secretCol := -1, -1
	for i, name := range header {
		// console exports start with a UTF-8 BOM
		name = strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))
		switch name {
		case accessKeyIDHeader:
			idCol = i
		case secretAccessKeyHeader:
			secretCol = i
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("missing %q column", accessKeyIDHeader)
	}
	if secretCol < 0 {
		return nil, fmt.Errorf("missing %q column", secretAccessKeyHeader)
	}

	row, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("no credentials row")
	}
	if err != nil {
		return nil, err
	}
	if len(row) <= idCol || len(row) <= secretCol {
		return nil, fmt.Errorf("credentials row has %d fields, expected at least %d", len(row), max(idCol, secretCol)+1)
	}

	cfg := &AccessKeyConfig{
		AccessKeyID:     strings.TrimSpace(row[idCol]),
		SecretAccessKey: strings.TrimSpace(row[secretCol]),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
