// Package catalog holds the design templates a session can start from.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"github.com/iamvkosarev/easymatter-bot/internal/model"
	"gopkg.in/yaml.v3"
)

const DefaultTemplateID = "general"

var ErrTemplateNotFound = errors.New("design template not found")

//go:embed templates.yaml
var embeddedTemplates []byte

type propertyInternal struct {
	Key         string `yaml:"key"`
	DisplayName string `yaml:"display_name"`
	Value       string `yaml:"value"`
	Unit        string `yaml:"unit"`
	Editable    bool   `yaml:"editable"`
}

type exampleInternal struct {
	Name       string            `yaml:"name"`
	Properties map[string]string `yaml:"properties"`
	Materials  []string          `yaml:"materials"`
}

type templateInternal struct {
	ID                string             `yaml:"id"`
	DisplayName       string             `yaml:"display_name"`
	Description       string             `yaml:"description"`
	Category          string             `yaml:"category"`
	Seed              string             `yaml:"seed"`
	Properties        []propertyInternal `yaml:"properties"`
	SuggestedElements []string           `yaml:"suggested_elements"`
	Explanations      map[string]string  `yaml:"explanations"`
	Prompts           map[string]string  `yaml:"prompts"`
	Examples          []exampleInternal  `yaml:"examples"`
}

type document struct {
	Templates []templateInternal `yaml:"templates"`
}

type DesignTemplate struct {
	ID                string
	DisplayName       string
	Description       string
	Category          string
	Seed              string
	Properties        []model.PropertyEntry
	SuggestedElements []string
	Explanations      map[string]string
	Prompts           map[string]string
	Examples          []Example
}

// Example is a worked design a template can lead to.
type Example struct {
	Name       string
	Properties map[string]string
	Materials  []string
}

type Catalog struct {
	templates []DesignTemplate
	byID      map[string]int
}

// Load parses the templates shipped with the binary.
func Load() (*Catalog, error) {
	return Parse(embeddedTemplates)
}

func Parse(raw []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal templates: %w", err)
	}
	c := &Catalog{
		templates: make([]DesignTemplate, 0, len(doc.Templates)),
		byID:      make(map[string]int, len(doc.Templates)),
	}
	for _, tInt := range doc.Templates {
		if tInt.ID == "" {
			return nil, fmt.Errorf("template %q has no id", tInt.DisplayName)
		}
		if _, ok := c.byID[tInt.ID]; ok {
			return nil, fmt.Errorf("duplicate template id %q", tInt.ID)
		}
		properties := make([]model.PropertyEntry, 0, len(tInt.Properties))
		for _, p := range tInt.Properties {
			properties = append(
				properties, model.PropertyEntry{
					Key:         p.Key,
					DisplayName: p.DisplayName,
					Value:       p.Value,
					Unit:        p.Unit,
					Editable:    p.Editable,
				},
			)
		}
		examples := make([]Example, 0, len(tInt.Examples))
		for _, e := range tInt.Examples {
			examples = append(
				examples, Example{
					Name:       e.Name,
					Properties: e.Properties,
					Materials:  e.Materials,
				},
			)
		}
		c.byID[tInt.ID] = len(c.templates)
		c.templates = append(
			c.templates, DesignTemplate{
				ID:                tInt.ID,
				DisplayName:       tInt.DisplayName,
				Description:       tInt.Description,
				Category:          tInt.Category,
				Seed:              tInt.Seed,
				Properties:        properties,
				SuggestedElements: tInt.SuggestedElements,
				Explanations:      tInt.Explanations,
				Prompts:           tInt.Prompts,
				Examples:          examples,
			},
		)
	}
	return c, nil
}

func (c *Catalog) Get(id string) (DesignTemplate, error) {
	i, ok := c.byID[id]
	if !ok {
		return DesignTemplate{}, fmt.Errorf("template %q: %w", id, ErrTemplateNotFound)
	}
	return c.templates[i], nil
}

// List returns templates in file order. An empty category matches all of them.
func (c *Catalog) List(category string) []DesignTemplate {
	out := make([]DesignTemplate, 0, len(c.templates))
	for _, t := range c.templates {
		if category == "" || t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// Popular returns the first limit templates in file order.
func (c *Catalog) Popular(limit int) []DesignTemplate {
	if limit <= 0 || limit > len(c.templates) {
		limit = len(c.templates)
	}
	out := make([]DesignTemplate, limit)
	copy(out, c.templates[:limit])
	return out
}

func (c *Catalog) Examples(id string) ([]Example, error) {
	template, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	return template.Examples, nil
}

func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	categories := make([]string, 0)
	for _, t := range c.templates {
		if _, ok := seen[t.Category]; ok {
			continue
		}
		seen[t.Category] = struct{}{}
		categories = append(categories, t.Category)
	}
	sort.Strings(categories)
	return categories
}
