package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-yaml"

	"github.com/openpermissions/authd/internal/fs"
)

// StaticFixture is the on-disk shape of a StaticDirectory's data file.
type StaticFixture struct {
	Organisations []Organisation `yaml:"organisations"`
	Services      []Service      `yaml:"services"`
	Repositories  []Repository   `yaml:"repositories"`
}

// StaticDirectory is an in-memory Directory loaded once from a YAML
// fixture. It stands in for the real directory service in local
// development, integration tests and the bundled scenarios.
type StaticDirectory struct {
	mu            sync.RWMutex
	organisations map[string]Organisation
	services      map[string]*Service
	servicesByURL map[string]*Service
	repositories  map[string]*Repository
}

// NewStaticDirectory builds a StaticDirectory from fixture.
func NewStaticDirectory(fixture StaticFixture) *StaticDirectory {
	d := &StaticDirectory{
		organisations: make(map[string]Organisation),
		services:      make(map[string]*Service),
		servicesByURL: make(map[string]*Service),
		repositories:  make(map[string]*Repository),
	}
	for _, o := range fixture.Organisations {
		d.organisations[o.ID] = o
	}
	for i := range fixture.Services {
		s := fixture.Services[i]
		d.services[s.ID] = &s
		if s.URL != "" {
			d.servicesByURL[s.URL] = &s
		}
	}
	for i := range fixture.Repositories {
		r := fixture.Repositories[i]
		d.repositories[r.ID] = &r
	}
	return d
}

// LoadStaticDirectory reads and parses a fixture file from disk.
func LoadStaticDirectory(filesystem fs.FileSystem, path string) (*StaticDirectory, error) {
	data, err := filesystem.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory fixture %s: %w", path, err)
	}

	var fixture StaticFixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("failed to parse directory fixture %s: %w", path, err)
	}

	return NewStaticDirectory(fixture), nil
}

func (d *StaticDirectory) Authenticate(_ context.Context, clientID, clientSecret string) (*Client, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	svc, ok := d.services[clientID]
	if !ok || svc.SecretHash != clientSecret {
		return nil, ErrNotFound
	}
	return &Client{ID: clientID, Service: svc}, nil
}

func (d *StaticDirectory) GetService(_ context.Context, id string) (*Service, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	svc, ok := d.services[id]
	if !ok {
		return nil, ErrNotFound
	}
	return svc, nil
}

func (d *StaticDirectory) GetServiceByLocation(_ context.Context, url string) (*Service, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	svc, ok := d.servicesByURL[url]
	if !ok {
		return nil, ErrNotFound
	}
	return svc, nil
}

func (d *StaticDirectory) GetRepository(_ context.Context, id string) (*Repository, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	repo, ok := d.repositories[id]
	if !ok {
		return nil, ErrNotFound
	}
	return repo, nil
}

func (d *StaticDirectory) FindByKey(_ context.Context, key string) (Resource, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if svc, ok := d.services[key]; ok {
		return svc, nil
	}
	if repo, ok := d.repositories[key]; ok {
		return repo, nil
	}
	return nil, ErrNotFound
}

func (d *StaticDirectory) GetParent(_ context.Context, r Resource) (Organisation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	org, ok := d.organisations[r.OrganisationID()]
	if !ok {
		return Organisation{}, ErrNotFound
	}
	return org, nil
}
