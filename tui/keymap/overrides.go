// Package keymap applies user keybinding overrides to bubbletea key maps.
package keymap

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/key"
	"github.com/grovetools/appshelf/config"
)

// Overrides maps a snake_case binding name to its replacement keys.
type Overrides map[string][]string

// Load reads the `keys` table of the `tui` config extension.
// A missing or malformed table yields no overrides.
func Load(cfg *config.Config) Overrides {
	if cfg == nil {
		return nil
	}
	var tuiCfg struct {
		Keys Overrides `yaml:"keys"`
	}
	if err := cfg.UnmarshalExtension("tui", &tuiCfg); err != nil {
		return nil
	}
	return tuiCfg.Keys
}

// ApplyOverrides rebinds the key.Binding fields of the struct km points to.
// Field names are matched in snake_case (Search -> search, PageUp -> page_up).
// The help description is kept and the first key becomes the help key.
// Embedded structs are walked as well.
func ApplyOverrides(km interface{}, overrides Overrides) {
	if len(overrides) == 0 {
		return
	}

	v := reflect.ValueOf(km)
	if v.Kind() != reflect.Ptr {
		return
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return
	}

	applyOverridesRecursive(v, overrides)
}

func applyOverridesRecursive(v reflect.Value, overrides Overrides) {
	t := v.Type()
	bindingType := reflect.TypeOf(key.Binding{})

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if fieldType.Anonymous && field.Kind() == reflect.Struct {
			applyOverridesRecursive(field, overrides)
			continue
		}

		if fieldType.Type != bindingType {
			continue
		}

		keys, ok := overrides[camelToSnake(fieldType.Name)]
		if !ok || len(keys) == 0 {
			continue
		}
		current := field.Interface().(key.Binding)
		rebound := key.NewBinding(
			key.WithKeys(keys...),
			key.WithHelp(keys[0], current.Help().Desc),
		)
		if !current.Enabled() {
			rebound.SetEnabled(false)
		}
		field.Set(reflect.ValueOf(rebound))
	}
}

// camelToSnake converts ViewLogs to view_logs.
func camelToSnake(s string) string {
	var result strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				result.WriteRune('_')
			}
			result.WriteRune(unicode.ToLower(r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
