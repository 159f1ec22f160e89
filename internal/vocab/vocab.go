// Package vocab loads the point type and delivery state vocabulary from a
// TOML or YAML file into the store.
//
// The import path never creates vocabulary; this is the only writer.
//
// Example file (TOML):
//
//	[[point_types]]
//	name = "exercise"
//	icon = "pencil"
//
//	  [[point_types.states]]
//	  name = "todo"
//	  display_name = "To do"
//
//	  [[point_types.states]]
//	  name = "done"
package vocab

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/syllabooster/syllabooster/internal/model"
	"github.com/syllabooster/syllabooster/internal/store"
)

// File is the on-disk vocabulary.
type File struct {
	PointTypes []PointType `toml:"point_types" yaml:"point_types"`
}

// PointType is one type with its ordered states.
type PointType struct {
	Name   string  `toml:"name" yaml:"name"`
	Icon   string  `toml:"icon" yaml:"icon"`
	States []State `toml:"states" yaml:"states"`
}

// State is one delivery state. Its position is its index in the list.
type State struct {
	Name        string `toml:"name" yaml:"name"`
	DisplayName string `toml:"display_name" yaml:"display_name"`
	Description string `toml:"description" yaml:"description"`
	CSSClass    string `toml:"css_class" yaml:"css_class"`
}

// Summary counts what Load wrote.
type Summary struct {
	PointTypes int
	States     int
}

// Read parses the file at path. The format follows the extension: .toml,
// or .yaml / .yml.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}

	var f File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&f)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown keys in %s: %v", path, undecoded)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported vocabulary format %q (want .toml, .yaml or .yml)", ext)
	}

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid vocabulary %s: %w", path, err)
	}
	return &f, nil
}

// Validate checks names are present and unique where the store requires it.
func (f *File) Validate() error {
	types := make(map[string]bool)
	for i, pt := range f.PointTypes {
		if strings.TrimSpace(pt.Name) == "" {
			return fmt.Errorf("point type %d: name is required", i+1)
		}
		if types[pt.Name] {
			return fmt.Errorf("point type %q is defined twice", pt.Name)
		}
		types[pt.Name] = true

		states := make(map[string]bool)
		for j, st := range pt.States {
			if strings.TrimSpace(st.Name) == "" {
				return fmt.Errorf("point type %q state %d: name is required", pt.Name, j+1)
			}
			if states[st.Name] {
				return fmt.Errorf("point type %q: state %q is defined twice", pt.Name, st.Name)
			}
			states[st.Name] = true
		}
	}
	return nil
}

// Load upserts the vocabulary in one transaction. Existing types and states
// are updated by name; nothing is deleted.
func Load(ctx context.Context, db *store.DB, f *File) (Summary, error) {
	var sum Summary
	err := db.WithTx(ctx, func(tx *store.Tx) error {
		for _, pt := range f.PointTypes {
			row := &model.PointType{Name: pt.Name, Icon: pt.Icon}
			if err := tx.UpsertPointType(ctx, row); err != nil {
				return err
			}
			sum.PointTypes++

			for i, st := range pt.States {
				state := &model.DeliveryState{
					PointTypeID: row.ID,
					Position:    i + 1,
					Name:        st.Name,
					DisplayName: st.DisplayName,
					Description: st.Description,
					CSSClass:    st.CSSClass,
				}
				if err := tx.UpsertDeliveryState(ctx, state); err != nil {
					return err
				}
				sum.States++
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load vocabulary: %w", err)
	}
	return sum, nil
}
