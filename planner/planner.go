// Package planner turns a pair of file references into a transfer task bound
// to the backends that serve them.
//
// A Planner holds a registry of adapters keyed by scheme. It performs no I/O:
// planning validates references, resolves adapters and checks that the
// direction matches the side that lives in local scratch space.
package planner

import (
	"sort"

	"github.com/input-output-hk/catalyst-forge-libs/staging/backend"
	"github.com/input-output-hk/catalyst-forge-libs/staging/errors"
	"github.com/input-output-hk/catalyst-forge-libs/staging/reference"
	"github.com/input-output-hk/catalyst-forge-libs/staging/transfer"
)

// Planner resolves references to adapters and builds transfer tasks.
// It is immutable after construction and safe for concurrent use.
type Planner struct {
	adapters map[reference.Scheme]backend.Adapter
}

// New builds a planner serving the schemes of the given adapters. Two
// adapters claiming the same scheme is a configuration error.
func New(adapters ...backend.Adapter) (*Planner, error) {
	p := &Planner{adapters: make(map[reference.Scheme]backend.Adapter, len(adapters))}
	for _, a := range adapters {
		if a == nil {
			return nil, errors.New(errors.CodeInvalidConfig, "adapter cannot be nil")
		}
		scheme := a.Scheme()
		if _, dup := p.adapters[scheme]; dup {
			return nil, errors.NewWithContext(errors.CodeInvalidConfig, "scheme registered twice",
				map[string]interface{}{"scheme": string(scheme)})
		}
		p.adapters[scheme] = a
	}
	return p, nil
}

// Schemes returns the registered schemes in sorted order.
func (p *Planner) Schemes() []reference.Scheme {
	out := make([]reference.Scheme, 0, len(p.adapters))
	for s := range p.adapters {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve validates ref and returns the adapter registered for its scheme.
func (p *Planner) Resolve(ref reference.FileReference) (backend.Adapter, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	a, ok := p.adapters[ref.Scheme()]
	if !ok {
		return nil, errors.WrapWithContext(errors.ErrUnsupportedScheme, errors.CodeUnsupportedScheme,
			"no backend registered for scheme", map[string]interface{}{
				"scheme":    string(ref.Scheme()),
				"reference": ref.String(),
			})
	}
	return a, nil
}

// Plan builds a pending task moving src to dst. Imports must land in local
// scratch space and exports must start from it.
func (p *Planner) Plan(direction transfer.Direction, src, dst reference.FileReference) (*transfer.Task, error) {
	srcAdapter, err := p.Resolve(src)
	if err != nil {
		return nil, err
	}
	dstAdapter, err := p.Resolve(dst)
	if err != nil {
		return nil, err
	}

	switch direction {
	case transfer.Import:
		if dst.Scheme() != reference.SchemeLocal {
			return nil, directionError(direction, "destination", dst)
		}
	case transfer.Export:
		if src.Scheme() != reference.SchemeLocal {
			return nil, directionError(direction, "source", src)
		}
	default:
		return nil, errors.NewWithContext(errors.CodeInvalidInput, "unknown transfer direction",
			map[string]interface{}{"direction": direction.String()})
	}

	return transfer.NewTask(direction, src, srcAdapter, dst, dstAdapter), nil
}

func directionError(d transfer.Direction, side string, ref reference.FileReference) error {
	return errors.NewWithContext(errors.CodeInvalidInput, d.String()+" "+side+" must be a local reference",
		map[string]interface{}{"reference": ref.String()})
}
