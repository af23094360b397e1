// Package classifier decides whether a command invocation needs elevated
// rights by parsing it at both ends of the permission range.
package classifier

import (
	"strings"

	"lattice-agent/internal/command"
	"lattice-agent/internal/host"
)

// Parser reports how many command nodes a source can resolve for input.
type Parser interface {
	ResolvedNodes(input string, src host.CommandSource) int
}

// Classifier flags permission-sensitive commands.
type Classifier struct {
	parser    Parser
	minLevel  int
	maxLevel  int
	bootstrap [][]string
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLevels overrides the permission levels compared.
func WithLevels(min, max int) Option {
	return func(c *Classifier) {
		c.minLevel = min
		c.maxLevel = max
	}
}

// WithBootstrap exempts commands starting with any of prefixes.
func WithBootstrap(prefixes ...string) Option {
	return func(c *Classifier) {
		for _, p := range prefixes {
			if words := command.Words(strings.ToLower(p)); len(words) > 0 {
				c.bootstrap = append(c.bootstrap, words)
			}
		}
	}
}

// New creates a classifier over parser.
func New(parser Parser, opts ...Option) *Classifier {
	c := &Classifier{
		parser:   parser,
		minLevel: command.LevelAll,
		maxLevel: command.LevelOwner,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsBootstrap reports whether input is one of the always-allowed token
// commands.
func (c *Classifier) IsBootstrap(input string) bool {
	words := command.Words(strings.ToLower(input))
	for _, prefix := range c.bootstrap {
		if hasPrefix(words, prefix) {
			return true
		}
	}
	return false
}

// IsSensitive reports whether src's permission level changes how much of
// input resolves. Bootstrap commands are never sensitive.
func (c *Classifier) IsSensitive(input string, src host.CommandSource) bool {
	if c.IsBootstrap(input) {
		return false
	}
	high := c.parser.ResolvedNodes(input, src.WithPermissionLevel(c.maxLevel))
	low := c.parser.ResolvedNodes(input, src.WithPermissionLevel(c.minLevel))
	return low < high
}

func hasPrefix(words, prefix []string) bool {
	if len(words) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if words[i] != p {
			return false
		}
	}
	return true
}
