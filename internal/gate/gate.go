// Package gate decides whether a command invocation may run.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lattice-agent/internal/classifier"
	"lattice-agent/internal/command"
	"lattice-agent/internal/host"
	"lattice-agent/internal/model"
	"lattice-agent/internal/token"
)

// DefaultPrefix is the root of the bootstrap commands.
const DefaultPrefix = "lattice token"

// Tokens is the part of the token manager the gate uses.
type Tokens interface {
	Enabled() bool
	CheckAccess(actorID string) error
	Apply(ctx context.Context, raw, actorID string) (model.Grant, error)
	Status(actorID string) (model.Grant, bool)
}

// Decision is the outcome of a gate check.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Sensitive bool   `json:"sensitive"`
	Code      string `json:"code,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Gate combines the classifier with token enforcement.
type Gate struct {
	tokens     Tokens
	classifier *classifier.Classifier
	prefix     string
	logger     *slog.Logger
}

// BootstrapCommands returns the always-allowed commands under prefix.
func BootstrapCommands(prefix string) []string {
	return []string{prefix + " apply", prefix + " status"}
}

// New creates a gate. A prefix with no words falls back to DefaultPrefix.
// When gating is disabled a warning is logged once and
// every command is allowed.
func New(tokens Tokens, parser classifier.Parser, prefix string, logger *slog.Logger) *Gate {
	prefix = strings.Join(command.Words(prefix), " ")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		tokens:     tokens,
		classifier: classifier.New(parser, classifier.WithBootstrap(BootstrapCommands(prefix)...)),
		prefix:     prefix,
		logger:     logger.With("component", "CommandGate"),
	}
	if !tokens.Enabled() {
		g.logger.Warn("token gating disabled, privileged commands are not protected")
	}
	return g
}

// Check decides whether src may run input.
func (g *Gate) Check(src host.CommandSource, input string) Decision {
	if !g.tokens.Enabled() {
		return Decision{Allowed: true}
	}
	actorID := src.ActorID()
	if actorID == "" {
		return Decision{Allowed: true}
	}
	if g.classifier.IsBootstrap(input) {
		return Decision{Allowed: true}
	}
	if !g.classifier.IsSensitive(input, src) {
		return Decision{Allowed: true}
	}

	if err := g.tokens.CheckAccess(actorID); err != nil {
		d := Decision{Sensitive: true, Code: token.Code(err), Reason: err.Error()}
		g.logger.Info("command denied", "actor_id", actorID, "command", firstWord(input), "code", d.Code)
		return d
	}
	return Decision{Allowed: true, Sensitive: true}
}

// Register adds the bootstrap commands to d.
func (g *Gate) Register(d *command.Dispatcher) {
	d.Register(chain(g.prefix,
		command.Literal("apply").Then(command.Argument("token").Executes(g.apply)),
		command.Literal("status").Executes(g.status),
	))
}

func (g *Gate) apply(src host.CommandSource, args command.Args) (string, error) {
	actorID := src.ActorID()
	if actorID == "" {
		return "", errors.New("only players can apply command tokens")
	}
	grant, err := g.tokens.Apply(context.Background(), args["token"], actorID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Command token applied. Valid until %s.", grant.ExpiresAt.Format(time.Kitchen)), nil
}

func (g *Gate) status(src host.CommandSource, args command.Args) (string, error) {
	if !g.tokens.Enabled() {
		return "Token gating is disabled.", nil
	}
	grant, ok := g.tokens.Status(src.ActorID())
	if !ok {
		return token.ErrNoGrant.Reason, nil
	}
	return fmt.Sprintf("Command token active until %s.", grant.ExpiresAt.Format(time.Kitchen)), nil
}

// chain nests literals for each word of prefix and attaches children to the
// last one.
func chain(prefix string, children ...*command.Node) *command.Node {
	words := command.Words(prefix)
	leaf := command.Literal(words[len(words)-1]).Then(children...)
	for i := len(words) - 2; i >= 0; i-- {
		leaf = command.Literal(words[i]).Then(leaf)
	}
	return leaf
}

func firstWord(input string) string {
	if words := command.Words(input); len(words) > 0 {
		return strings.ToLower(words[0])
	}
	return ""
}
