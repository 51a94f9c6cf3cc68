// Package resource implements the conserved-quantity Resource objects that
// agents hold and trade: Material (isotopic mass) and Product (countable
// quality), per spec.md §4.2 / C4.
package resource

import (
	"github.com/cyclus/fuelsim/internal/engid"
	"github.com/cyclus/fuelsim/internal/engineerr"
)

const qtyTolerance = 1e-10

// Type distinguishes the two concrete Resource kinds so DRE commodities and
// recorder rows can tag a resource without a type switch everywhere.
type Type int

const (
	TypeMaterial Type = iota
	TypeProduct
)

func (t Type) String() string {
	if t == TypeProduct {
		return "product"
	}
	return "material"
}

// Resource is the common contract every tradable object satisfies (spec.md
// §4.2's "Resource (abstract)").
type Resource interface {
	// ID is this resource's own process-unique id.
	ID() engid.ID
	// ObjID groups a resource with everything split or absorbed from the
	// same original creation.
	ObjID() engid.ID
	// StateID changes whenever the resource's content changes.
	StateID() engid.ID
	// Kind reports whether this is a Material or Product.
	Kind() Type
	// Units reports the resource's unit string ("kg", "count", ...).
	Units() string
	// Quantity reports the current non-negative quantity.
	Quantity() float64
}

// ids is embedded by Material and Product to provide the common identity
// bookkeeping (id/objID/stateID) without duplicating it.
type ids struct {
	id      engid.ID
	objID   engid.ID
	stateID engid.ID
}

func (i *ids) ID() engid.ID      { return i.id }
func (i *ids) ObjID() engid.ID   { return i.objID }
func (i *ids) StateID() engid.ID { return i.stateID }

// Registry mints the process-unique ids shared by every resource created in
// a simulation (spec.md §5's "Resource ids... are monotonically increasing
// and unique per process").
type Registry struct {
	ids    engid.Counter
	states engid.Counter
}

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) nextID() engid.ID    { return r.ids.Next() }
func (r *Registry) nextState() engid.ID { return r.states.Next() }

func checkQuantity(q float64) error {
	if q < -qtyTolerance {
		return engineerr.Value("resource: negative quantity %.6g", q)
	}
	return nil
}
