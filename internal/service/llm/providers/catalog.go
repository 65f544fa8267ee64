package providers

import (
	"embed"
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config/providers.yaml
var configFiles embed.FS

// Kind selects which adapter speaks a provider's wire format
type Kind string

const (
	KindChatCompletions Kind = "chat_completions"
	KindGemini          Kind = "gemini"
	KindHuggingFace     Kind = "huggingface"
	KindLibrary         Kind = "library"
)

// Spec is the static description of one provider
type Spec struct {
	Name             string        `yaml:"-"`
	Kind             Kind          `yaml:"kind"`
	URL              string        `yaml:"url"`
	Model            string        `yaml:"model"`
	Temperature      *float64      `yaml:"temperature"`
	TopP             *float64      `yaml:"top_p"`
	MaxTokens        int           `yaml:"max_tokens"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// Catalog is the parsed provider catalogue
type Catalog struct {
	Fallback  []string         `yaml:"fallback"`
	Providers map[string]*Spec `yaml:"providers"`
}

// LoadCatalog parses the embedded provider catalogue
func LoadCatalog() (*Catalog, error) {
	data, err := configFiles.ReadFile("config/providers.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read provider catalogue: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses and validates a catalogue document
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provider catalogue: %w", err)
	}

	for name, spec := range c.Providers {
		if spec == nil {
			return nil, fmt.Errorf("provider %s has no settings", name)
		}
		spec.Name = name
		switch spec.Kind {
		case KindChatCompletions, KindGemini, KindHuggingFace:
			if spec.URL == "" {
				return nil, fmt.Errorf("provider %s: url is required", name)
			}
		case KindLibrary:
		default:
			return nil, fmt.Errorf("provider %s: unknown kind %q", name, spec.Kind)
		}
		if spec.FailureThreshold <= 0 {
			spec.FailureThreshold = 3
		}
		if spec.Timeout <= 0 {
			spec.Timeout = 30 * time.Second
		}
	}

	for _, name := range c.Fallback {
		if _, ok := c.Providers[name]; !ok {
			return nil, fmt.Errorf("fallback names unknown provider %s", name)
		}
	}

	return &c, nil
}

// Spec returns the named provider's settings
func (c *Catalog) Spec(name string) (*Spec, bool) {
	spec, ok := c.Providers[name]
	return spec, ok
}

// Names returns every provider name in sorted order
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
