package config

import (
	"fmt"
	"os"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// LoadSettingsFile reads a YAML document of configuration setting keys and
// values, e.g.
//
//	skipAuthorization: false
//	defaultTimezone: UTC
//
// Scalar values of any type are kept in their string form.
func LoadSettingsFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "reading settings file %q", path)
	}
	return ParseSettings(data)
}

func ParseSettings(data []byte) (map[string]string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Annotate(err, "parsing settings")
	}

	settings := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
			settings[key] = ""
		case map[string]any, []any:
			return nil, errors.NotValidf("non-scalar value for setting %q", key)
		default:
			settings[key] = fmt.Sprint(v)
		}
	}
	return settings, nil
}
