// Package caiman is the CaImAn loader slot.
//
// No CaImAn output layout is implemented. Keys selecting this method
// stay pending with domain.ErrUnsupportedMethod until a real loader
// lands here.
package caiman

import (
	"github.com/fieldline/imagingdb/pkg/domain"
	xe "github.com/fieldline/imagingdb/pkg/errors"
	"github.com/fieldline/imagingdb/pkg/loader"
)

type caimanLoader struct{}

func New() *caimanLoader {
	return &caimanLoader{}
}

var _ loader.Loader = &caimanLoader{}

func (l *caimanLoader) Open(dir string) (loader.Handle, error) {
	return nil, xe.WrapWithNote("caiman", domain.ErrUnsupportedMethod)
}
