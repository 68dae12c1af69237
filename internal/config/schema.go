package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/callsheet/internal/model"
	"github.com/alfredjeanlab/callsheet/internal/sheet"
)

// LoadSchema reads a column map from a .toml, .yaml or .yml file. Keys are
// ticket field names; values are column letters ("Q") or 0-based indices.
// Fields the file leaves out are unmapped, and the result must pass
// ColumnMap.Validate.
//
//	account = "A"
//	processed = "B"
//	assignee = 16
func LoadSchema(path string) (model.ColumnMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.ColumnMap{}, fmt.Errorf("read schema: %w", err)
	}

	raw := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		return model.ColumnMap{}, fmt.Errorf("schema %s: unsupported extension (want .toml, .yaml or .yml)", path)
	}
	if err != nil {
		return model.ColumnMap{}, fmt.Errorf("parse schema %s: %w", path, err)
	}

	cols, err := columnsFrom(raw)
	if err != nil {
		return model.ColumnMap{}, fmt.Errorf("schema %s: %w", path, err)
	}
	return cols, nil
}

func columnsFrom(raw map[string]any) (model.ColumnMap, error) {
	cols := model.ColumnMap{
		Account: model.NoColumn, Processed: model.NoColumn, Selected: model.NoColumn,
		Exclude: model.NoColumn, ContactID: model.NoColumn, PassID: model.NoColumn,
		Name: model.NoColumn, Pinyin: model.NoColumn, Phone: model.NoColumn,
		Location: model.NoColumn, Device: model.NoColumn, Assignee: model.NoColumn,
		Note: model.NoColumn,
	}
	fields := map[string]*int{
		"account":    &cols.Account,
		"processed":  &cols.Processed,
		"selected":   &cols.Selected,
		"exclude":    &cols.Exclude,
		"contact_id": &cols.ContactID,
		"pass_id":    &cols.PassID,
		"name":       &cols.Name,
		"pinyin":     &cols.Pinyin,
		"phone":      &cols.Phone,
		"location":   &cols.Location,
		"device":     &cols.Device,
		"assignee":   &cols.Assignee,
		"note":       &cols.Note,
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		dst, ok := fields[strings.ToLower(key)]
		if !ok {
			return model.ColumnMap{}, fmt.Errorf("unknown field %q", key)
		}
		idx, err := columnIndex(raw[key])
		if err != nil {
			return model.ColumnMap{}, fmt.Errorf("field %q: %w", key, err)
		}
		*dst = idx
	}

	if err := cols.Validate(); err != nil {
		return model.ColumnMap{}, err
	}
	return cols, nil
}

// columnIndex accepts a letter, an integer, or "" / "-" for unmapped.
func columnIndex(v any) (int, error) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if s == "" || s == "-" {
			return model.NoColumn, nil
		}
		idx, err := sheet.ParseColumn(strings.ToUpper(s))
		if err != nil {
			return 0, fmt.Errorf("bad column %q: %w", x, err)
		}
		return idx, nil
	case int:
		return checkIndex(int64(x))
	case int64:
		return checkIndex(x)
	case float64:
		if x != float64(int64(x)) {
			return 0, fmt.Errorf("column index %v is not an integer", x)
		}
		return checkIndex(int64(x))
	}
	return 0, fmt.Errorf("unsupported value %v (%T)", v, v)
}

func checkIndex(n int64) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("column index %d is negative", n)
	}
	return int(n), nil
}
