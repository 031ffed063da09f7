package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Family selects how a network exposes governance.
type Family string

const (
	// FamilyStandard is a Cosmos-SDK chain with the x/gov REST API.
	FamilyStandard Family = "standard"
	// FamilyNamada is Namada, queried through indexers.
	FamilyNamada Family = "namada"

	DefaultGovPrefix = "cosmos"
)

// NetworkDescriptor describes one monitored network.
type NetworkDescriptor struct {
	Name      string
	Family    Family
	GovPrefix string
	// Endpoints are LCD base URLs for standard networks and indexer URLs for Namada,
	// tried in order.
	Endpoints []string
	// Validator is the operator address (standard) or validator address (Namada).
	Validator    string
	Bech32Prefix string
	Explorer     string
}

func (d NetworkDescriptor) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("network name is required")
	}
	if len(d.Endpoints) == 0 {
		return fmt.Errorf("network %s: at least one endpoint is required", d.Name)
	}
	for _, e := range d.Endpoints {
		if strings.TrimSpace(e) == "" {
			return fmt.Errorf("network %s: empty endpoint", d.Name)
		}
	}
	switch d.Family {
	case FamilyStandard:
		if d.Bech32Prefix == "" {
			return fmt.Errorf("network %s: bech32 prefix is required", d.Name)
		}
		if d.Validator == "" {
			return fmt.Errorf("network %s: validator operator address is required", d.Name)
		}
	case FamilyNamada:
		if d.Validator == "" {
			return fmt.Errorf("network %s: validator address is required", d.Name)
		}
	default:
		return fmt.Errorf("network %s: unknown family %q", d.Name, d.Family)
	}
	return nil
}

// Catalog is the immutable set of monitored networks.
type Catalog struct {
	networks []NetworkDescriptor
	byName   map[string]int
}

// NewCatalog validates and copies the descriptors.
func NewCatalog(descriptors []NetworkDescriptor) (*Catalog, error) {
	c := &Catalog{
		networks: make([]NetworkDescriptor, 0, len(descriptors)),
		byName:   make(map[string]int, len(descriptors)),
	}
	for _, d := range descriptors {
		if d.Family == FamilyStandard && d.GovPrefix == "" {
			d.GovPrefix = DefaultGovPrefix
		}
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byName[d.Name]; dup {
			return nil, fmt.Errorf("network %s: defined twice", d.Name)
		}
		d.Endpoints = append([]string(nil), d.Endpoints...)
		c.byName[d.Name] = len(c.networks)
		c.networks = append(c.networks, d)
	}
	return c, nil
}

// Networks returns a copy of the descriptors in catalog order.
func (c *Catalog) Networks() []NetworkDescriptor {
	out := make([]NetworkDescriptor, len(c.networks))
	for i, d := range c.networks {
		d.Endpoints = append([]string(nil), d.Endpoints...)
		out[i] = d
	}
	return out
}

func (c *Catalog) Lookup(name string) (NetworkDescriptor, bool) {
	i, ok := c.byName[name]
	if !ok {
		return NetworkDescriptor{}, false
	}
	d := c.networks[i]
	d.Endpoints = append([]string(nil), d.Endpoints...)
	return d, true
}

func (c *Catalog) Len() int { return len(c.networks) }

// catalogFile mirrors the networks file. Keys follow the historical config layout.
type catalogFile struct {
	Networks []networkEntry `yaml:"networks"`
}

type networkEntry struct {
	Name             string   `yaml:"name"`
	Provider         string   `yaml:"provider"`
	GovPrefix        string   `yaml:"gov_prefix"`
	LCDAPI           string   `yaml:"lcd_api"`
	LCDEndpoints     []string `yaml:"lcd_endpoints"`
	Validator        string   `yaml:"validator"`
	Prefix           string   `yaml:"prefix"`
	ValidatorAddress string   `yaml:"validator_address"`
	Indexers         []string `yaml:"indexers"`
	Explorer         string   `yaml:"explorer"`
}

func (e networkEntry) descriptor() NetworkDescriptor {
	d := NetworkDescriptor{
		Name:     strings.TrimSpace(e.Name),
		Explorer: e.Explorer,
	}
	if strings.EqualFold(e.Provider, string(FamilyNamada)) {
		d.Family = FamilyNamada
		d.Endpoints = trimAll(e.Indexers)
		d.Validator = strings.TrimSpace(e.ValidatorAddress)
		if d.Validator == "" {
			d.Validator = strings.TrimSpace(e.Validator)
		}
		return d
	}
	if e.Provider != "" && !strings.EqualFold(e.Provider, string(FamilyStandard)) {
		d.Family = Family(e.Provider)
	} else {
		d.Family = FamilyStandard
	}
	d.GovPrefix = strings.Trim(strings.TrimSpace(e.GovPrefix), "/")
	// lcd_api comes first when both are set
	if e.LCDAPI != "" {
		d.Endpoints = append(d.Endpoints, strings.TrimSpace(e.LCDAPI))
	}
	for _, ep := range trimAll(e.LCDEndpoints) {
		if ep != strings.TrimSpace(e.LCDAPI) {
			d.Endpoints = append(d.Endpoints, ep)
		}
	}
	d.Validator = strings.TrimSpace(e.Validator)
	d.Bech32Prefix = strings.TrimSpace(e.Prefix)
	return d
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ParseCatalog decodes a YAML networks document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse networks: %w", err)
	}
	if len(f.Networks) == 0 {
		return nil, errors.New("parse networks: no networks defined")
	}
	ds := make([]NetworkDescriptor, 0, len(f.Networks))
	for _, e := range f.Networks {
		ds = append(ds, e.descriptor())
	}
	return NewCatalog(ds)
}

// LoadCatalog reads the networks file at path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read networks file: %w", err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
