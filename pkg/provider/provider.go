// Package provider defines the childcare provider record shared by the search
// index, the remote search API and the result post-processor.
package provider

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Provider is one directory entry.
type Provider struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Region  string `json:"region" yaml:"region"`
	Ward    string `json:"ward,omitempty" yaml:"ward"`
	Address string `json:"address,omitempty" yaml:"address"`
	Phone   string `json:"phone,omitempty" yaml:"phone"`
	Email   string `json:"email,omitempty" yaml:"email"`
	Website string `json:"website,omitempty" yaml:"website"`

	// Price is the fee as published, e.g. "$1,450/month". PriceValue parses it.
	Price string `json:"price,omitempty" yaml:"price"`

	Rating   float64 `json:"rating,omitempty" yaml:"rating"`
	Distance float64 `json:"distance,omitempty" yaml:"distance"`

	AgeRanges   []string `json:"ageRanges,omitempty" yaml:"age_ranges"`
	Vacancies   []string `json:"vacancies,omitempty" yaml:"vacancies"`
	ProgramAges []string `json:"programAges,omitempty" yaml:"program_ages"`

	CWELCC  bool `json:"cwelcc,omitempty" yaml:"cwelcc"`
	Subsidy bool `json:"subsidy,omitempty" yaml:"subsidy"`

	Latitude  float64 `json:"latitude,omitempty" yaml:"latitude"`
	Longitude float64 `json:"longitude,omitempty" yaml:"longitude"`

	Description string `json:"description,omitempty" yaml:"description"`
}

// PriceValue returns the leading number of the published price, 0 when there
// is none.
func (p Provider) PriceValue() int {
	return ParsePrice(p.Price)
}

// HasCoordinates reports whether the provider can be placed on a map. The
// (0,0) pair is the "no coordinates" sentinel of the source data.
func (p Provider) HasCoordinates() bool {
	return p.Latitude != 0 || p.Longitude != 0
}

// HasVacancyIn reports whether any of ranges has an opening.
func (p Provider) HasVacancyIn(ranges []string) bool {
	for _, r := range ranges {
		for _, v := range p.Vacancies {
			if strings.EqualFold(r, v) {
				return true
			}
		}
	}
	return false
}

// EnsureID assigns a random id to providers imported without one.
func (p *Provider) EnsureID() {
	if strings.TrimSpace(p.ID) == "" {
		p.ID = uuid.NewString()
	}
}

// ParsePrice reads the first number in s, skipping a currency prefix and
// thousands separators: "$1,450/month" is 1450, "From 950" is 950, "call" is 0.
func ParsePrice(s string) int {
	start := strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' })
	if start < 0 {
		return 0
	}

	var digits strings.Builder
scan:
	for _, r := range s[start:] {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ',':
		default:
			break scan
		}
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return n
}

// Format of a provider list file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath guesses the format from a file extension, JSON by default.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Load decodes a provider list. JSON input is an array of providers; YAML input
// is a sequence, optionally under a top level "providers" key.
func Load(r io.Reader, format Format) ([]Provider, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading providers: %w", err)
	}

	var providers []Provider
	switch format {
	case FormatYAML:
		var wrapped struct {
			Providers []Provider `yaml:"providers"`
		}
		if err := yaml.Unmarshal(data, &wrapped); err == nil && len(wrapped.Providers) > 0 {
			providers = wrapped.Providers
		} else if err := yaml.Unmarshal(data, &providers); err != nil {
			return nil, fmt.Errorf("decoding yaml providers: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &providers); err != nil {
			return nil, fmt.Errorf("decoding json providers: %w", err)
		}
	}

	for i := range providers {
		providers[i].Name = strings.TrimSpace(providers[i].Name)
		providers[i].Region = strings.TrimSpace(providers[i].Region)
		providers[i].Ward = strings.TrimSpace(providers[i].Ward)
	}
	return providers, nil
}
