package action

import (
	"log/slog"
	"sort"
	"strings"

	xerrors "ActionKit-Chain/internal/errors"
	"ActionKit-Chain/internal/network"
	"ActionKit-Chain/pkg/logger"
)

// Entry is a descriptor together with the provider that owns it.
type Entry struct {
	Descriptor
	Provider string
}

type node struct {
	provider Provider
	actions  []Descriptor
	children []*node
}

// Registry holds an immutable tree of providers.
type Registry struct {
	roots     []*node
	owners    map[string]string
	providers []string
	log       *slog.Logger
}

// NewRegistry walks providers depth first in order. Duplicate provider
// names, duplicate action names anywhere in the tree and incomplete
// descriptors are configuration errors.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{
		owners: make(map[string]string),
		log:    logger.Named("action.registry"),
	}
	seenProviders := make(map[string]struct{})

	var build func(p Provider, path []string) (*node, error)
	build = func(p Provider, path []string) (*node, error) {
		if p == nil {
			return nil, xerrors.Configuration("nil provider under %q", strings.Join(path, "/"))
		}
		name := strings.TrimSpace(p.Name())
		if name == "" {
			return nil, xerrors.Configuration("provider without a name under %q", strings.Join(path, "/"))
		}
		if _, dup := seenProviders[name]; dup {
			return nil, xerrors.Configuration("provider %q registered twice", name)
		}
		seenProviders[name] = struct{}{}
		r.providers = append(r.providers, name)

		n := &node{provider: p}
		for _, d := range p.Actions() {
			if err := checkDescriptor(name, d); err != nil {
				return nil, err
			}
			if owner, dup := r.owners[d.Name]; dup {
				return nil, xerrors.Configuration("action %q of provider %q collides with provider %q", d.Name, name, owner)
			}
			r.owners[d.Name] = name
			n.actions = append(n.actions, d)
		}
		for _, child := range p.Children() {
			c, err := build(child, append(path, name))
			if err != nil {
				return nil, err
			}
			n.children = append(n.children, c)
		}
		return n, nil
	}

	for _, p := range providers {
		root, err := build(p, nil)
		if err != nil {
			return nil, err
		}
		r.roots = append(r.roots, root)
	}
	sort.Strings(r.providers)
	return r, nil
}

func checkDescriptor(provider string, d Descriptor) error {
	switch {
	case strings.TrimSpace(d.Name) == "":
		return xerrors.Configuration("provider %q declares an action without a name", provider)
	case d.Schema == nil:
		return xerrors.Configuration("action %q of provider %q has no schema", d.Name, provider)
	case d.Invoke == nil:
		return xerrors.Configuration("action %q of provider %q has no handler", d.Name, provider)
	}
	return nil
}

// Providers returns the sorted names of every registered provider.
func (r *Registry) Providers() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.providers...)
}

// Actions returns the actions available on n in declaration order. An
// unsupported provider contributes nothing, including its children.
func (r *Registry) Actions(n network.Network) []Entry {
	if r == nil {
		return nil
	}
	var out []Entry
	var walk func(*node)
	walk = func(nd *node) {
		if !r.supports(nd.provider, n) {
			return
		}
		name := nd.provider.Name()
		for _, d := range nd.actions {
			out = append(out, Entry{Descriptor: d, Provider: name})
		}
		for _, c := range nd.children {
			walk(c)
		}
	}
	for _, root := range r.roots {
		walk(root)
	}
	return out
}

// Lookup finds an action on n. registered reports whether the name exists
// at all, so callers can tell unknown names from filtered ones.
func (r *Registry) Lookup(name string, n network.Network) (entry Entry, found bool, registered bool) {
	if r == nil {
		return Entry{}, false, false
	}
	if _, registered = r.owners[name]; !registered {
		return Entry{}, false, false
	}
	for _, e := range r.Actions(n) {
		if e.Name == name {
			return e, true, true
		}
	}
	return Entry{}, false, true
}

// supports evaluates the provider predicate. A panicking predicate counts
// as unsupported.
func (r *Registry) supports(p Provider, n network.Network) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("network predicate panicked",
				slog.String("provider", p.Name()),
				slog.String("network", n.String()),
				slog.Any("panic", rec))
			ok = false
		}
	}()
	return p.SupportsNetwork(n)
}
