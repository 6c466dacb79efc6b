package repository

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

// Reply categories every language must define.
var RequiredCategories = []string{
	"greeting_new", "greeting_return", "prices", "hours", "products",
	"order_inquiry", "product_question", "urgent_support", "complaint", "thanks", "general",
	"handoff", "natural_fallback", "short_fallback",
}

// Structured templates the default language must define.
var RequiredStructured = []string{"morning_briefing", "urgent_alert", "business_update"}

type BodyLine struct {
	Slot   string `yaml:"slot"`
	Format string `yaml:"format"`
}

type BodySpec struct {
	Lines []BodyLine `yaml:"lines"`
	Empty string     `yaml:"empty"`
}

// Section is one independently randomized part of a structured template.
type Section struct {
	Pick   []string  `yaml:"pick"`
	Body   *BodySpec `yaml:"body"`
	When   string    `yaml:"when"`
	Unless string    `yaml:"unless"`
}

// Template is either a flat candidate list or an ordered set of sections.
type Template struct {
	Candidates []string
	Sections   []Section
	Defaults   map[string]string
}

func (t *Template) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		return node.Decode(&t.Candidates)
	case yaml.MappingNode:
		var raw struct {
			Sections []Section        `yaml:"sections"`
			Defaults map[string]string `yaml:"defaults"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		t.Sections, t.Defaults = raw.Sections, raw.Defaults
		return nil
	default:
		return fmt.Errorf("line %d: template must be a list or a mapping", node.Line)
	}
}

func (t Template) structured() bool { return len(t.Sections) > 0 }

func (t Template) empty() bool {
	return len(t.Candidates) == 0 && len(t.Sections) == 0
}

type languageSet struct {
	Signature string              `yaml:"signature"`
	Templates map[string]Template `yaml:"templates"`
}

type catalogFile struct {
	DefaultLanguage string                 `yaml:"default_language"`
	RoboticPrefixes []string               `yaml:"robotic_prefixes"`
	Languages       map[string]languageSet `yaml:"languages"`
}

// Rand is the random source used to pick candidates.
type Rand interface {
	IntN(n int) int
}

type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.IntN(n)
}

// NewSeededRand returns a goroutine-safe source. A zero seed draws from the clock.
func NewSeededRand(seed uint64) Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &lockedRand{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// TemplateCatalog renders localized reply templates. Read-only after load.
type TemplateCatalog struct {
	file catalogFile
	rnd  Rand
}

// LoadTemplateCatalog reads path, or the built-in catalog when path is empty.
func LoadTemplateCatalog(path string, rnd Rand) (*TemplateCatalog, error) {
	data := defaultTemplates
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read templates %s: %w", path, err)
		}
		data = b
	}
	return NewTemplateCatalog(data, rnd)
}

func NewTemplateCatalog(data []byte, rnd Rand) (*TemplateCatalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if f.DefaultLanguage == "" {
		f.DefaultLanguage = "fr"
	}
	for i, p := range f.RoboticPrefixes {
		f.RoboticPrefixes[i] = strings.ToLower(p)
	}
	if rnd == nil {
		rnd = NewSeededRand(0)
	}
	return &TemplateCatalog{file: f, rnd: rnd}, nil
}

// Validate checks that every given language defines every reply category.
// Call it at startup so a missing template fails fast.
func (c *TemplateCatalog) Validate(languages ...string) error {
	if len(languages) == 0 {
		languages = c.Languages()
	}
	var errs []error
	for _, lang := range languages {
		set, ok := c.file.Languages[lang]
		if !ok {
			errs = append(errs, fmt.Errorf("language %q: not defined", lang))
			continue
		}
		if strings.TrimSpace(set.Signature) == "" {
			errs = append(errs, fmt.Errorf("language %q: missing signature", lang))
		}
		for _, cat := range RequiredCategories {
			if t, ok := set.Templates[cat]; !ok || t.empty() {
				errs = append(errs, fmt.Errorf("language %q: missing category %q", lang, cat))
			}
		}
	}
	def := c.file.Languages[c.file.DefaultLanguage]
	for _, name := range RequiredStructured {
		if t, ok := def.Templates[name]; !ok || !t.structured() {
			errs = append(errs, fmt.Errorf("default language %q: missing structured template %q", c.file.DefaultLanguage, name))
		}
	}
	return errors.Join(errs...)
}

// Render fills a template with slots. Unknown (language, category) pairs
// return ErrTemplateNotFound.
func (c *TemplateCatalog) Render(lang, category string, slots map[string]string) (string, error) {
	t, ok := c.lookup(lang, category)
	if !ok {
		return "", fmt.Errorf("%s/%s: %w", lang, category, ErrTemplateNotFound)
	}
	values := make(map[string]string, len(t.Defaults)+len(slots))
	for k, v := range t.Defaults {
		values[k] = v
	}
	for k, v := range slots {
		if v != "" {
			values[k] = v
		}
	}

	if !t.structured() {
		return fill(c.pick(t.Candidates), values), nil
	}

	parts := make([]string, 0, len(t.Sections))
	for _, s := range t.Sections {
		if s.When != "" && !truthy(slots[s.When]) {
			continue
		}
		if s.Unless != "" && truthy(slots[s.Unless]) {
			continue
		}
		switch {
		case s.Body != nil:
			parts = append(parts, renderBody(s.Body, values)...)
		case len(s.Pick) > 0:
			parts = append(parts, fill(c.pick(s.Pick), values))
		}
	}
	return strings.Join(parts, "\n"), nil
}

func (c *TemplateCatalog) lookup(lang, category string) (Template, bool) {
	set, ok := c.file.Languages[lang]
	if !ok {
		return Template{}, false
	}
	t, ok := set.Templates[category]
	if !ok || t.empty() {
		return Template{}, false
	}
	return t, true
}

func (c *TemplateCatalog) pick(candidates []string) string {
	if len(candidates) == 1 {
		return candidates[0]
	}
	return candidates[c.rnd.IntN(len(candidates))]
}

func renderBody(b *BodySpec, values map[string]string) []string {
	var lines []string
	for _, l := range b.Lines {
		if v := values[l.Slot]; v != "" && v != "0" {
			lines = append(lines, fill(l.Format, values))
		}
	}
	if len(lines) == 0 && b.Empty != "" {
		lines = append(lines, b.Empty)
	}
	return lines
}

func fill(s string, values map[string]string) string {
	if len(values) == 0 || !strings.Contains(s, "{") {
		return s
	}
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "no":
		return false
	}
	return true
}

// Signature returns the sign-off for lang, or the default language's one.
func (c *TemplateCatalog) Signature(lang string) string {
	if set, ok := c.file.Languages[lang]; ok && set.Signature != "" {
		return set.Signature
	}
	return c.file.Languages[c.file.DefaultLanguage].Signature
}

func (c *TemplateCatalog) RoboticPrefixes() []string {
	return c.file.RoboticPrefixes
}

func (c *TemplateCatalog) DefaultLanguage() string {
	return c.file.DefaultLanguage
}

func (c *TemplateCatalog) Has(lang, category string) bool {
	_, ok := c.lookup(lang, category)
	return ok
}

func (c *TemplateCatalog) Languages() []string {
	out := make([]string, 0, len(c.file.Languages))
	for lang := range c.file.Languages {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}
