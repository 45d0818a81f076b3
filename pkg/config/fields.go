package config

import (
	"fmt"
	"strings"

	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
)

// FieldMapping maps a struct field to its output column.
type FieldMapping struct {
	Field string `yaml:"field" json:"field"`
	Alias string `yaml:"alias" json:"alias"`
}

// FieldsConfig is the parsed form of the fields setting: either every field
// or an explicit ordered list, with optional aliases in both cases.
type FieldsConfig struct {
	IncludeAll bool           `yaml:"include_all" json:"include_all"`
	Mappings   []FieldMapping `yaml:"mappings" json:"mappings"`

	aliases map[string]string
}

// ParseFields parses the field mapping DSL. Entries are comma separated;
// each is a field name, optionally followed by "=alias". A "*" entry
// includes every field. An empty string also includes every field.
//
//	"*"                             every field
//	"field1,field2=alias2,field3"   three fields, field2 renamed
//	"*,field2=alias2"               every field, field2 renamed
func ParseFields(dsl string) (FieldsConfig, error) {
	fc := FieldsConfig{aliases: map[string]string{}}
	if strings.TrimSpace(dsl) == "" {
		fc.IncludeAll = true
		return fc, nil
	}

	for i, entry := range strings.Split(dsl, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			return FieldsConfig{}, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("fields: empty entry at position %d", i))
		}
		if entry == "*" {
			fc.IncludeAll = true
			continue
		}

		field, alias := entry, entry
		if eq := strings.IndexByte(entry, '='); eq >= 0 {
			field = strings.TrimSpace(entry[:eq])
			alias = strings.TrimSpace(entry[eq+1:])
		}
		if field == "" || alias == "" || strings.ContainsRune(alias, '=') {
			return FieldsConfig{}, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("fields: invalid entry %q", entry))
		}
		if _, dup := fc.aliases[field]; dup {
			return FieldsConfig{}, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("fields: %q is mapped twice", field))
		}
		fc.aliases[field] = alias
		fc.Mappings = append(fc.Mappings, FieldMapping{Field: field, Alias: alias})
	}
	return fc, nil
}

// IncludeAllFields returns a FieldsConfig selecting every field unaliased.
func IncludeAllFields() FieldsConfig {
	return FieldsConfig{IncludeAll: true}
}

// Column reports whether field is selected and, when it is, the column it
// maps to.
func (fc FieldsConfig) Column(field string) (string, bool) {
	if alias, ok := fc.alias(field); ok {
		return alias, true
	}
	if fc.IncludeAll {
		return field, true
	}
	return "", false
}

func (fc FieldsConfig) alias(field string) (string, bool) {
	if fc.aliases != nil {
		a, ok := fc.aliases[field]
		return a, ok
	}
	for _, m := range fc.Mappings {
		if m.Field == field {
			return m.Alias, true
		}
	}
	return "", false
}

// String renders the config back into the DSL.
func (fc FieldsConfig) String() string {
	parts := make([]string, 0, len(fc.Mappings)+1)
	if fc.IncludeAll {
		parts = append(parts, "*")
	}
	for _, m := range fc.Mappings {
		if m.Alias == m.Field {
			parts = append(parts, m.Field)
			continue
		}
		parts = append(parts, m.Field+"="+m.Alias)
	}
	return strings.Join(parts, ",")
}
