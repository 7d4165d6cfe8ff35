package secret

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source lazily resolves a token signing secret from an environment variable
// or by prompting the operator. The value is cached after the first
// successful retrieval.
type Source struct {
	envVar string
	prompt string

	once  sync.Once
	value []byte
	err   error
}

// NewSource constructs a source that checks envVar before prompting on the
// terminal.
func NewSource(envVar, prompt string) *Source {
	if strings.TrimSpace(prompt) == "" {
		prompt = "Enter signing secret: "
	}
	return &Source{envVar: strings.TrimSpace(envVar), prompt: prompt}
}

// Get returns the cached secret or resolves it on first use. Whitespace-only
// secrets are rejected.
func (s *Source) Get() ([]byte, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := os.LookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = []byte(strings.TrimSpace(value))
				return
			}
		}

		if !term.IsTerminal(int(os.Stdin.Fd())) {
			if s.envVar != "" {
				s.err = fmt.Errorf("signing secret required; set %s or run interactively", s.envVar)
			} else {
				s.err = errors.New("signing secret required and no terminal available")
			}
			return
		}

		fmt.Fprint(os.Stderr, s.prompt)
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			s.err = fmt.Errorf("read secret: %w", err)
			return
		}
		if strings.TrimSpace(string(raw)) == "" {
			s.err = errors.New("signing secret cannot be empty")
			return
		}
		s.value = []byte(strings.TrimSpace(string(raw)))
	})
	return s.value, s.err
}
