package reference

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ResolveAll resolves the best reference for every module in parallel.
// Modules without metadata are skipped; the result keeps input order.
func ResolveAll(ctx context.Context, modules []*Module) ([]*Reference, error) {
	refs := make([]*Reference, len(modules))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, m := range modules {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ref, err := BestReference(m)
			if errors.Is(err, ErrNoMetadata) {
				log.Debugf("skipping %s: %v", m.Path, err)
				return nil
			}
			if err != nil {
				return err
			}
			refs[i] = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := refs[:0]
	for _, ref := range refs {
		if ref != nil {
			out = append(out, ref)
		}
	}
	return out, nil
}
