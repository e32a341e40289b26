// Package provider manages the registry of built-in streaming service providers.
package provider

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/songdl-cli/songdl/key"
	"github.com/songdl-cli/songdl/source"
	"github.com/songdl-cli/songdl/tidal"
	"github.com/spf13/viper"
)

// Provider represents a streaming service a source can be created from.
type Provider struct {
	ID           string
	Name         string
	CreateSource func() (source.Source, error)
}

func (p *Provider) String() string {
	return p.Name
}

// Builtins returns the compiled-in providers.
func Builtins() []*Provider {
	return []*Provider{
		{
			ID:   "tidal",
			Name: "TIDAL",
			CreateSource: func() (source.Source, error) {
				session := &tidal.Session{}
				if !session.Load() {
					return nil, tidal.ErrNotAuthorized
				}
				if !session.Valid() {
					if err := session.Refresh(); err != nil {
						return nil, err
					}
				}
				return tidal.New(session), nil
			},
		},
	}
}

// Get finds a provider by its identifier or display name.
func Get(name string) (*Provider, bool) {
	for _, p := range Builtins() {
		if strings.EqualFold(p.ID, name) || strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return nil, false
}

// Defaults resolves the configured default sources into providers.
// Unknown names produce an error rather than being silently dropped.
func Defaults() ([]*Provider, error) {
	names := viper.GetStringSlice(key.DefaultSources)
	if len(names) == 0 {
		return Builtins(), nil
	}

	providers := make([]*Provider, 0, len(names))
	for _, name := range names {
		p, ok := Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown source %q, available: %s", name, strings.Join(Names(), ", "))
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// Names lists the identifiers of every available provider.
func Names() []string {
	return lo.Map(Builtins(), func(p *Provider, _ int) string {
		return p.ID
	})
}
