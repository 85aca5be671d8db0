package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	apperrors "github.com/anime-shed/image-quality-engine/internal/errors"
	"github.com/anime-shed/image-quality-engine/internal/logger"
)

// Registry holds the validated profiles of the process. It is built once
// and only read afterwards.
type Registry struct {
	profiles  map[string]*Profile
	fallback  string
	preferred string
}

// NewRegistry validates every profile and indexes it by name. A profile
// named "default" must be present; it is the fallback for unknown names.
func NewRegistry(profiles ...Profile) (*Registry, error) {
	r := &Registry{
		profiles:  make(map[string]*Profile, len(profiles)),
		fallback:  ProfileDefault,
		preferred: ProfileDefault,
	}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		key := strings.ToLower(p.Name)
		if _, dup := r.profiles[key]; dup {
			return nil, apperrors.NewConfigurationError(fmt.Sprintf("duplicate profile %s", p.Name), nil)
		}
		clone := p.Clone()
		r.profiles[key] = &clone
	}
	if _, ok := r.profiles[r.fallback]; !ok {
		return nil, apperrors.NewConfigurationError("a profile named default is required", nil)
	}
	return r, nil
}

// BuiltinProfiles returns the default, premium and bulk profiles.
func BuiltinProfiles() []Profile {
	return []Profile{DefaultProfile(), PremiumProfile(), BulkProfile()}
}

// DefaultRegistry returns a registry of the built-in profiles.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinProfiles()...)
	if err != nil {
		panic(fmt.Sprintf("built-in profiles are invalid: %v", err))
	}
	return r
}

// Get returns the profile registered under name.
func (r *Registry) Get(name string) (*Profile, bool) {
	p, ok := r.profiles[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// WithPreferred returns a registry sharing r's profiles that answers empty
// names with the named profile. An unknown name falls back to default, the
// same way Select treats it.
func (r *Registry) WithPreferred(name string) *Registry {
	return &Registry{profiles: r.profiles, fallback: r.fallback, preferred: strings.ToLower(r.Select(name).Name)}
}

// Select returns the named profile, falling back to default for unknown names.
func (r *Registry) Select(name string) *Profile {
	if strings.TrimSpace(name) == "" {
		return r.profiles[r.preferred]
	}
	if p, ok := r.Get(name); ok {
		return p
	}
	logger.WithFields(logrus.Fields{
		"requested": name,
		"fallback":  r.fallback,
	}).Warn("Unknown profile requested, using fallback")
	return r.profiles[r.fallback]
}

// Names lists the registered profile names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for _, p := range r.profiles {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// profileFile is the YAML layout of a profile overrides file:
//
//	profiles:
//	  premium:
//	    max_concurrent_analyses: 4
//	  studio:
//	    base: premium
//	    thresholds:
//	      sharpness: {excellent: 900, good: 450, fair: 220, poor: 110}
type profileFile struct {
	Profiles map[string]yaml.Node `yaml:"profiles"`
}

// LoadRegistry builds a registry from the built-in profiles plus the
// overrides in path. An empty path yields the built-ins.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(BuiltinProfiles()...)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("failed to read profiles file %s", path), err)
	}
	return ParseRegistry(data)
}

// ParseRegistry applies YAML overrides on top of the built-in profiles.
// Each entry starts from the profile of the same name, from its base, or
// from default, and only the fields present in YAML are replaced.
func ParseRegistry(data []byte) (*Registry, error) {
	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, apperrors.NewConfigurationError("failed to parse profiles file", err)
	}

	byName := make(map[string]Profile)
	for _, p := range BuiltinProfiles() {
		byName[p.Name] = p
	}

	names := make([]string, 0, len(file.Profiles))
	for name := range file.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		node := file.Profiles[name]
		key := strings.ToLower(name)

		var header struct {
			Base string `yaml:"base"`
		}
		if err := node.Decode(&header); err != nil {
			return nil, apperrors.NewConfigurationError(fmt.Sprintf("profile %s", name), err)
		}

		base, ok := byName[key]
		if !ok {
			baseName := strings.ToLower(header.Base)
			if baseName == "" {
				baseName = ProfileDefault
			}
			if base, ok = byName[baseName]; !ok {
				return nil, apperrors.NewConfigurationError(fmt.Sprintf("profile %s: unknown base %s", name, header.Base), nil)
			}
		}

		profile := base.Clone()
		if err := node.Decode(&profile); err != nil {
			return nil, apperrors.NewConfigurationError(fmt.Sprintf("profile %s", name), err)
		}
		profile.Name = key
		byName[key] = profile
	}

	profiles := make([]Profile, 0, len(byName))
	for _, p := range byName {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return NewRegistry(profiles...)
}
