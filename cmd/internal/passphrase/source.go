package passphrase

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source resolves the operator keystore passphrase once and caches it.
type Source struct {
	envVar   string
	isTTY    func() bool
	readPass func() ([]byte, error)

	once  sync.Once
	value string
	err   error
}

// NewSource checks envVar first and prompts on the terminal otherwise.
func NewSource(envVar string) *Source {
	fd := int(os.Stdin.Fd())
	return &Source{
		envVar:   strings.TrimSpace(envVar),
		isTTY:    func() bool { return term.IsTerminal(fd) },
		readPass: func() ([]byte, error) { return term.ReadPassword(fd) },
	}
}

// Get returns the passphrase. Keystores written by the config loader are
// unencrypted, so without the variable and without a terminal the empty
// passphrase is used.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := os.LookupEnv(s.envVar); ok {
				s.value = value
				return
			}
		}
		if s.isTTY == nil || !s.isTTY() {
			return
		}
		fmt.Fprint(os.Stderr, "Enter operator keystore passphrase (empty for none): ")
		raw, err := s.readPass()
		fmt.Fprintln(os.Stderr)
		if err != nil {
			s.err = fmt.Errorf("read passphrase: %w", err)
			return
		}
		s.value = string(raw)
	})
	return s.value, s.err
}
