package evaluator

import (
	"github.com/chazu/replkit/goscript"
	"github.com/chazu/replkit/script"
)

// Basic evaluates fragments without a program model.
type Basic struct {
	*engine
}

func NewBasic(opts Options) (*Basic, error) {
	sess, err := opts.session()
	if err != nil {
		return nil, err
	}
	chain := script.NewChain(sess, goscript.ScanImports, opts.Imports...)
	return &Basic{engine: newEngine(chain)}, nil
}

// Close releases the interpreter session.
func (b *Basic) Close() error {
	return b.close(nil)
}
