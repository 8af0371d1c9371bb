package configutils

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// ImportKey is the config value listing files to merge underneath the file
// that names them.
var ImportKey = "imports"

// ResolveAndMergeFile reads the configuration file at filePath from fs,
// resolves its imports depth first, and merges the result into v. Imported
// files are merged before the file that imports them so the importer wins.
func ResolveAndMergeFile(fs afero.Fs, v *viper.Viper, filePath string) error {
	if _, err := fs.Stat(filePath); err != nil {
		return err
	}

	configType, err := configTypeOf(filePath)
	if err != nil {
		return err
	}

	r := &importResolver{fs: fs, visited: map[string]struct{}{filePath: {}}}
	if err := r.resolve(filePath, configType); err != nil {
		return fmt.Errorf("could not resolve configuration imports: %w", err)
	}

	for _, path := range append(r.order, filePath) {
		pathType, _ := configTypeOf(path)
		v.SetConfigType(pathType)
		if err := mergeConfigFile(fs, v, path); err != nil {
			return fmt.Errorf("merging config %s: %w", path, err)
		}
	}
	return nil
}

func configTypeOf(filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == "" {
		return "", errors.New("configuration file has no extension")
	}
	if !slices.Contains(viper.SupportedExts, ext[1:]) {
		return "", fmt.Errorf("unsupported configuration file extension: %s", ext)
	}
	return ext[1:], nil
}

// importResolver walks the import graph. visited is filled in pre-order to
// break cycles, order in post-order so children merge first.
type importResolver struct {
	fs      afero.Fs
	visited map[string]struct{}
	order   []string
}

func (r *importResolver) resolve(filePath, configType string) error {
	child := viper.New()
	child.SetFs(r.fs)
	child.SetConfigFile(filePath)
	child.SetConfigType(configType)
	if err := child.ReadInConfig(); err != nil {
		return err
	}

	for _, imp := range child.GetStringSlice(ImportKey) {
		if imp == "" {
			continue
		}

		path := filepath.Clean(imp)
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(filePath), imp)
		}
		if _, err := r.fs.Stat(path); err != nil {
			return err
		}
		if _, seen := r.visited[path]; seen {
			continue
		}
		r.visited[path] = struct{}{}

		importType, err := configTypeOf(path)
		if err != nil {
			return err
		}
		if err := r.resolve(path, importType); err != nil {
			return err
		}
		r.order = append(r.order, path)
	}
	return nil
}

func mergeConfigFile(fs afero.Fs, v *viper.Viper, filePath string) error {
	f, err := fs.Open(filePath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return v.MergeConfig(f)
}

// BindEnvsRecursive binds every mapstructure-tagged field of the struct
// pointed to by iface, descending into nested structs, so that AutomaticEnv
// lookups also reach keys absent from the config file.
func BindEnvsRecursive(v *viper.Viper, iface interface{}, path string) error {
	val := reflect.ValueOf(iface).Elem()
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		tag := typ.Field(i).Tag.Get("mapstructure")
		if tag == "" || tag == ",squash" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")

		fullPath := name
		if path != "" {
			fullPath = path + "." + name
		}

		field := val.Field(i)
		if field.Kind() == reflect.Ptr {
			if field.IsNil() && field.Type().Elem().Kind() == reflect.Struct {
				field.Set(reflect.New(field.Type().Elem()))
			}
			field = field.Elem()
		}

		if field.Kind() == reflect.Struct {
			if err := BindEnvsRecursive(v, field.Addr().Interface(), fullPath); err != nil {
				return err
			}
			continue
		}

		if err := v.BindEnv(fullPath); err != nil {
			return fmt.Errorf("failed to bind environment variable: %w", err)
		}
	}

	return nil
}
