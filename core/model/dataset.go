package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDataset wraps structural problems with a dataset.
var ErrInvalidDataset = errors.New("invalid dataset")

var validate = validator.New()

// Dataset is the full input of one scheduling run.
type Dataset struct {
	Clients   []Client   `json:"clients" yaml:"clients" validate:"dive"`
	Providers []Provider `json:"providers" yaml:"providers" validate:"dive"`
	Timeslots []Timeslot `json:"timeslots" yaml:"timeslots" validate:"dive"`
}

// Validate checks required fields and identifier uniqueness. Availability
// entries are not checked here: malformed ones are dropped when indexed.
func (d Dataset) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}
	if err := unique("client", d.Clients, func(c Client) string { return c.ID }); err != nil {
		return err
	}
	if err := unique("provider", d.Providers, func(p Provider) string { return p.ID }); err != nil {
		return err
	}
	if err := unique("timeslot", d.Timeslots, func(t Timeslot) string { return t.ID }); err != nil {
		return err
	}
	for _, t := range d.Timeslots {
		if !t.Day.Valid() {
			return fmt.Errorf("%w: timeslot %s has no weekday", ErrInvalidDataset, t.ID)
		}
	}
	return nil
}

func unique[T any](kind string, items []T, id func(T) string) error {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		k := id(it)
		if _, ok := seen[k]; ok {
			return fmt.Errorf("%w: duplicate %s id %q", ErrInvalidDataset, kind, k)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// Categories lists the distinct provider categories.
func (d Dataset) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range d.Providers {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out
}

// TimeslotByID indexes timeslots by identifier.
func (d Dataset) TimeslotByID() map[string]Timeslot {
	out := make(map[string]Timeslot, len(d.Timeslots))
	for _, t := range d.Timeslots {
		out[t.ID] = t
	}
	return out
}

// LoadDataset reads a YAML or JSON dataset selected by file extension.
func LoadDataset(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, err
	}
	defer func() { _ = f.Close() }()
	return DecodeDataset(f, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// DecodeDataset decodes a dataset in the given format ("yaml", "yml" or "json").
func DecodeDataset(r io.Reader, format string) (Dataset, error) {
	var d Dataset
	switch format {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&d); err != nil && !errors.Is(err, io.EOF) {
			return Dataset{}, fmt.Errorf("decode yaml: %w", err)
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&d); err != nil {
			return Dataset{}, fmt.Errorf("decode json: %w", err)
		}
	default:
		return Dataset{}, fmt.Errorf("unsupported dataset format: %s", format)
	}
	return d, nil
}

// WriteDataset encodes d as YAML.
func WriteDataset(w io.Writer, d Dataset) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return err
	}
	return enc.Close()
}
