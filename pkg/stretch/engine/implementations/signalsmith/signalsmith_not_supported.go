//go:build !signalsmith
// +build !signalsmith

package signalsmith

import (
	"errors"

	"github.com/xaionaro-go/stretch/pkg/stretch/engine"
)

const Name = "signalsmith"

var ErrNotCompiled = errors.New("built without tag 'signalsmith'")

type Factory struct{}

var _ engine.Factory = Factory{}

func (Factory) Name() string {
	return Name
}

func (Factory) Create(int, int, int) (engine.Engine, error) {
	return nil, ErrNotCompiled
}

func (Factory) CreatePresetDefault(int, float32) (engine.Engine, error) {
	return nil, ErrNotCompiled
}

func (Factory) CreatePresetCheaper(int, float32) (engine.Engine, error) {
	return nil, ErrNotCompiled
}
