package resource

import (
	"github.com/cyclus/fuelsim/internal/engid"
	"github.com/cyclus/fuelsim/internal/engineerr"
	"github.com/cyclus/fuelsim/internal/record"
)

// Product is a Resource whose quantity is a count (or real-valued count)
// and which carries a free-form quality string instead of a composition
// (spec.md §4.2).
type Product struct {
	ids
	qty     float64
	quality string
	reg     *Registry
}

// CreateUntrackedProduct returns a Product with no assigned id, for
// exemplars and tests.
func CreateUntrackedProduct(qty float64, quality string) (*Product, error) {
	if err := checkQuantity(qty); err != nil {
		return nil, err
	}
	return &Product{qty: qty, quality: quality}, nil
}

// ProductFactory builds recorded Products wired to a Registry and recorder.
type ProductFactory struct {
	Reg *Registry
	Rec *record.Recorder
}

// Create records the product's creation, analogous to
// MaterialFactory.Create.
func (f *ProductFactory) Create(creatorAgent engid.ID, qty float64, quality string, simTime int64) (*Product, error) {
	if err := checkQuantity(qty); err != nil {
		return nil, err
	}
	id := f.Reg.nextID()
	p := &Product{
		ids:     ids{id: id, objID: id, stateID: f.Reg.nextState()},
		qty:     qty,
		quality: quality,
		reg:     f.Reg,
	}
	if f.Rec != nil {
		f.Rec.NewDatum("Resources").
			AddVal("ResourceId", int64(p.id)).
			AddVal("ObjId", int64(p.objID)).
			AddVal("Type", TypeProduct.String()).
			AddVal("TimeCreated", simTime).
			AddVal("Quantity", p.qty).
			AddVal("Units", p.Units()).
			AddVal("Quality", p.quality).
			AddVal("CreatorAgentId", int64(creatorAgent)).
			Record()
	}
	return p, nil
}

func (p *Product) Kind() Type        { return TypeProduct }
func (p *Product) Units() string     { return "count" }
func (p *Product) Quantity() float64 { return p.qty }
func (p *Product) Quality() string   { return p.quality }

// ExtractQty removes q from p, returning a new Product sharing p's ObjID
// and quality.
func (p *Product) ExtractQty(q float64) (*Product, error) {
	if q < -qtyTolerance || q > p.qty+qtyTolerance {
		return nil, engineerr.Value("product: cannot extract %.6g from %.6g", q, p.qty)
	}
	q = clampNonNegative(q, p.qty)
	p.qty -= q
	p.advanceState()
	return &Product{
		ids:     ids{id: p.reg.nextID(), objID: p.objID, stateID: p.reg.nextState()},
		qty:     q,
		quality: p.quality,
		reg:     p.reg,
	}, nil
}

// Absorb merges other into p: p's quantity increases by other's, and
// other's quantity becomes zero.
func (p *Product) Absorb(other *Product) error {
	if other.quality != p.quality && other.qty != 0 {
		return engineerr.Value("product: cannot absorb mismatched quality %q into %q", other.quality, p.quality)
	}
	p.qty += other.qty
	other.qty = 0
	p.advanceState()
	other.advanceState()
	return nil
}

func (p *Product) advanceState() {
	if p.reg != nil {
		p.stateID = p.reg.nextState()
	}
}
