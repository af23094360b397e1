// Package command is a permission-aware command tree.
//
// Each node carries the permission level a source needs to traverse it.
// Parsing walks the tree one word at a time and stops at the first word no
// permitted child accepts, so the number of resolved nodes depends on who is
// asking.
package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"lattice-agent/internal/host"
)

// Permission levels, lowest to highest.
const (
	LevelAll = iota
	LevelModerator
	LevelGamemaster
	LevelAdmin
	LevelOwner
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrIncomplete     = errors.New("incomplete command")
)

// Args holds argument values by node name.
type Args map[string]string

// Handler runs a fully resolved command and returns feedback for the source.
type Handler func(src host.CommandSource, args Args) (string, error)

// Node is one word of a command.
type Node struct {
	name     string
	literal  bool
	greedy   bool
	level    int
	children []*Node
	handler  Handler
}

// Literal creates a node matching name exactly (case-insensitive).
func Literal(name string) *Node {
	return &Node{name: strings.ToLower(name), literal: true}
}

// Argument creates a node matching any single word, stored under name.
func Argument(name string) *Node {
	return &Node{name: name}
}

// Rest creates an argument node that consumes all remaining words.
func Rest(name string) *Node {
	return &Node{name: name, greedy: true}
}

// Requires sets the permission level needed to traverse n.
func (n *Node) Requires(level int) *Node {
	n.level = level
	return n
}

// Then adds children to n.
func (n *Node) Then(children ...*Node) *Node {
	n.children = append(n.children, children...)
	return n
}

// Executes sets the handler run when input ends at n.
func (n *Node) Executes(h Handler) *Node {
	n.handler = h
	return n
}

// Name returns the node name.
func (n *Node) Name() string { return n.name }

func (n *Node) canUse(src host.CommandSource) bool {
	return src.PermissionLevel() >= n.level
}

// match finds the child accepting word. Literals win over arguments.
func (n *Node) match(word string, src host.CommandSource) *Node {
	var arg *Node
	for _, c := range n.children {
		if !c.canUse(src) {
			continue
		}
		if c.literal {
			if c.name == strings.ToLower(word) {
				return c
			}
			continue
		}
		if arg == nil {
			arg = c
		}
	}
	return arg
}

// ParseResult describes how far a parse got.
type ParseResult struct {
	Input    string
	Nodes    []*Node
	Args     Args
	Complete bool
}

// Dispatcher holds the registered command roots.
type Dispatcher struct {
	mu   sync.RWMutex
	root *Node
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{root: &Node{literal: true}}
}

// Register adds a root command, merging it into an existing literal of the
// same name. The existing node keeps its permission level.
func (d *Dispatcher) Register(n *Node) {
	d.mu.Lock()
	defer d.mu.Unlock()

	merge(d.root, n)
}

func merge(parent, n *Node) {
	for _, c := range parent.children {
		if c.literal && n.literal && c.name == n.name {
			if n.handler != nil {
				c.handler = n.handler
			}
			for _, gc := range n.children {
				merge(c, gc)
			}
			return
		}
	}
	parent.children = append(parent.children, n)
}

// Parse resolves as much of input as src may traverse.
func (d *Dispatcher) Parse(input string, src host.CommandSource) ParseResult {
	d.mu.RLock()
	defer d.mu.RUnlock()

	words := Words(input)
	res := ParseResult{Input: input, Args: Args{}}

	cur := d.root
	for i, w := range words {
		next := cur.match(w, src)
		if next == nil {
			return res
		}
		res.Nodes = append(res.Nodes, next)
		cur = next
		if next.literal {
			continue
		}
		if next.greedy {
			res.Args[next.name] = strings.Join(words[i:], " ")
			break
		}
		res.Args[next.name] = w
	}
	res.Complete = len(res.Nodes) > 0 && cur.handler != nil
	return res
}

// ResolvedNodes returns how many nodes of input src can resolve.
func (d *Dispatcher) ResolvedNodes(input string, src host.CommandSource) int {
	return len(d.Parse(input, src).Nodes)
}

// Execute parses input and runs its handler.
func (d *Dispatcher) Execute(input string, src host.CommandSource) (string, error) {
	res := d.Parse(input, src)
	if len(res.Nodes) == 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, strings.TrimSpace(input))
	}
	if !res.Complete {
		return "", fmt.Errorf("%w: %s", ErrIncomplete, strings.TrimSpace(input))
	}
	return res.Nodes[len(res.Nodes)-1].handler(src, res.Args)
}

// Roots returns the registered root command names, sorted.
func (d *Dispatcher) Roots() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.root.children))
	for _, c := range d.root.children {
		names = append(names, c.name)
	}
	sort.Strings(names)
	return names
}

// Words splits command input, dropping a leading slash.
func Words(input string) []string {
	return strings.Fields(strings.TrimPrefix(strings.TrimSpace(input), "/"))
}
