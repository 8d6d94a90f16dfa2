// Package action defines action descriptors and providers, and the
// registry that flattens them into one addressable, network filtered set.
package action

import (
	"context"

	"ActionKit-Chain/internal/network"
	"ActionKit-Chain/internal/schema"
	"ActionKit-Chain/internal/wallet"
)

// Handler runs a validated action. A returned error is rendered into the
// result string by the dispatcher; handlers never need to throw.
type Handler func(ctx context.Context, w wallet.Wallet, args map[string]any) (string, error)

// Descriptor is the unit of registration.
type Descriptor struct {
	Name        string
	Description string
	Schema      *schema.Schema
	Invoke      Handler
}

// Provider bundles related actions behind one name. SupportsNetwork must
// be total: it is called with arbitrary, possibly empty, descriptors.
type Provider interface {
	Name() string
	Actions() []Descriptor
	Children() []Provider
	SupportsNetwork(n network.Network) bool
}

// Base supplies Name and Children for providers that embed it.
type Base struct {
	name     string
	children []Provider
}

// NewBase returns a Base for name with optional children.
func NewBase(name string, children ...Provider) Base {
	return Base{name: name, children: children}
}

func (b Base) Name() string { return b.name }

func (b Base) Children() []Provider {
	if len(b.children) == 0 {
		return nil
	}
	return append([]Provider(nil), b.children...)
}

// Predicate decides network support.
type Predicate func(network.Network) bool

// AnyNetwork supports every descriptor.
func AnyNetwork(network.Network) bool { return true }

// FamilyIs supports descriptors of one protocol family.
func FamilyIs(family string) Predicate {
	return func(n network.Network) bool {
		return n.ProtocolFamily == family
	}
}

// NetworkIn supports the given network ids within one family.
func NetworkIn(family string, ids ...string) Predicate {
	return func(n network.Network) bool {
		if n.ProtocolFamily != family {
			return false
		}
		for _, id := range ids {
			if n.NetworkID == id {
				return true
			}
		}
		return false
	}
}

type composite struct {
	Base
	supports Predicate
}

// Compose groups children under name. The group owns no actions of its own.
func Compose(name string, supports Predicate, children ...Provider) Provider {
	if supports == nil {
		supports = AnyNetwork
	}
	return &composite{Base: NewBase(name, children...), supports: supports}
}

func (c *composite) Actions() []Descriptor { return nil }

func (c *composite) SupportsNetwork(n network.Network) bool { return c.supports(n) }
