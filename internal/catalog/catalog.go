// Package catalog holds the services, providers, time slots and payment
// options offered by the concierge.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type Catalog struct {
	Currency       string          `yaml:"currency"`
	Services       []Service       `yaml:"services"`
	Slots          []Slot          `yaml:"slots"`
	PaymentOptions []PaymentOption `yaml:"payment_options"`
}

type Service struct {
	ID    string `yaml:"id"`
	Key   string `yaml:"key"`
	Title string `yaml:"title"`

	// ProviderTemplate is the content template listing this service's
	// providers. Empty means the provider list is sent as free text.
	ProviderTemplate string `yaml:"provider_template"`

	SubCategories []SubCategory `yaml:"sub_categories"`
	Providers     []Provider    `yaml:"providers"`
}

type SubCategory struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
}

type Provider struct {
	Key    string  `yaml:"key"`
	Name   string  `yaml:"name"`
	Price  float64 `yaml:"price"`
	Rating float64 `yaml:"rating"`
}

type Slot struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

type PaymentOption struct {
	ID     string `yaml:"id"`
	Label  string `yaml:"label"`
	Status string `yaml:"status"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads the catalog at path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references, decodes the YAML and validates the result.
func Parse(data []byte) (*Catalog, error) {
	expanded := os.ExpandEnv(string(data))

	var c Catalog
	if err := yaml.Unmarshal([]byte(expanded), &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks identifiers are unique and every list is usable.
func (c *Catalog) Validate() error {
	var errs []error
	if len(c.Services) == 0 {
		errs = append(errs, errors.New("catalog has no services"))
	}

	seen := map[string]string{}
	unique := func(kind, id string) {
		if id == "" {
			errs = append(errs, fmt.Errorf("%s with empty id", kind))
			return
		}
		if prev, ok := seen[id]; ok {
			errs = append(errs, fmt.Errorf("duplicate id %q (%s and %s)", id, prev, kind))
			return
		}
		seen[id] = kind
	}

	for _, s := range c.Services {
		unique("service", s.ID)
		for _, sc := range s.SubCategories {
			unique("sub-category", sc.ID)
		}
		if len(s.Providers) == 0 {
			errs = append(errs, fmt.Errorf("service %q has no providers", s.ID))
		}
		for _, p := range s.Providers {
			unique("provider", p.Key)
		}
	}

	if len(c.Slots) == 0 {
		errs = append(errs, errors.New("catalog has no time slots"))
	}
	for _, sl := range c.Slots {
		unique("slot", sl.ID)
	}

	if len(c.PaymentOptions) == 0 {
		errs = append(errs, errors.New("catalog has no payment options"))
	}
	for _, p := range c.PaymentOptions {
		unique("payment option", p.ID)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	return nil
}

func (c *Catalog) Service(id string) (Service, bool) {
	for _, s := range c.Services {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}

func (s Service) SubCategory(id string) (SubCategory, bool) {
	for _, sc := range s.SubCategories {
		if sc.ID == id {
			return sc, true
		}
	}
	return SubCategory{}, false
}

func (s Service) Provider(key string) (Provider, bool) {
	for _, p := range s.Providers {
		if p.Key == key {
			return p, true
		}
	}
	return Provider{}, false
}

func (c *Catalog) Slot(id string) (Slot, bool) {
	for _, s := range c.Slots {
		if s.ID == id {
			return s, true
		}
	}
	return Slot{}, false
}

func (c *Catalog) PaymentOption(id string) (PaymentOption, bool) {
	for _, p := range c.PaymentOptions {
		if p.ID == id {
			return p, true
		}
	}
	return PaymentOption{}, false
}

// FormatPrice renders a price with the catalog currency ("$100", "$12.5").
func (c *Catalog) FormatPrice(p Provider) string {
	return c.Currency + strconv.FormatFloat(p.Price, 'f', -1, 64)
}

// FormatRating renders a rating the way the provider list shows it ("4.2⭐").
func FormatRating(p Provider) string {
	return strconv.FormatFloat(p.Rating, 'f', 1, 64) + "⭐"
}
