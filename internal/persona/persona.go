// Package persona holds the assistant's voice: the chat system prompt, the
// quotes shown while a session loads and the text shown when a turn fails.
package persona

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

const fallbackErrorMessage = "Something went wrong. Please try again."

// Persona is the YAML document behind PERSONA_FILE
type Persona struct {
	SystemPrompt  string   `yaml:"system_prompt"`
	LoadingQuotes []string `yaml:"loading_quotes"`
	ErrorMessage  string   `yaml:"error_message"`
}

// Default returns the built-in persona
func Default() *Persona {
	p, err := Parse(defaultYAML)
	if err != nil {
		// The embedded file is part of the build
		panic(fmt.Sprintf("persona: embedded default is invalid: %v", err))
	}
	return p
}

// Load reads a persona file; an empty path returns the built-in persona.
// Fields missing from the file fall back to the built-in values.
func Load(path string) (*Persona, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading persona file: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.fillFrom(Default())
	return p, nil
}

// Parse decodes a persona document
func Parse(data []byte) (*Persona, error) {
	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing persona: %w", err)
	}

	p.SystemPrompt = strings.TrimSpace(p.SystemPrompt)
	p.ErrorMessage = strings.TrimSpace(p.ErrorMessage)

	quotes := p.LoadingQuotes[:0]
	for _, q := range p.LoadingQuotes {
		if q = strings.TrimSpace(q); q != "" {
			quotes = append(quotes, q)
		}
	}
	p.LoadingQuotes = quotes

	return &p, nil
}

func (p *Persona) fillFrom(base *Persona) {
	if p.SystemPrompt == "" {
		p.SystemPrompt = base.SystemPrompt
	}
	if len(p.LoadingQuotes) == 0 {
		p.LoadingQuotes = base.LoadingQuotes
	}
	if p.ErrorMessage == "" {
		p.ErrorMessage = base.ErrorMessage
	}
}

// Validate rejects a document that sets no persona field, which is what a
// misspelled key or an empty file decodes to
func (p *Persona) Validate() error {
	if p.SystemPrompt == "" && len(p.LoadingQuotes) == 0 && p.ErrorMessage == "" {
		return errors.New("persona: document sets no system_prompt, loading_quotes or error_message")
	}
	return nil
}

// RandomQuote picks one loading quote, or "" when there are none
func (p *Persona) RandomQuote() string {
	if len(p.LoadingQuotes) == 0 {
		return ""
	}
	return p.LoadingQuotes[rand.Intn(len(p.LoadingQuotes))]
}

// FailureText is the user-visible text for a failed turn; never empty
func (p *Persona) FailureText() string {
	if p.ErrorMessage == "" {
		return fallbackErrorMessage
	}
	return p.ErrorMessage
}
