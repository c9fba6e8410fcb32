package registry

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/xaionaro-go/stretch/pkg/stretch/engine"
)

type factoryWithPriority struct {
	Priority int
	engine.Factory
}

var factoryRegistry = map[reflect.Type]factoryWithPriority{}

func RegisterFactory(
	priority int,
	factory engine.Factory,
) {
	t := reflect.ValueOf(factory).Type()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if _, ok := factoryRegistry[t]; ok {
		panic(fmt.Errorf("there is already registered an engine factory of type %v", t))
	}
	factoryRegistry[t] = factoryWithPriority{
		Priority: priority,
		Factory:  factory,
	}
}

// Factories returns the registered factories, the most preferred first.
func Factories() []engine.Factory {
	var factoriesWithPriorities []factoryWithPriority
	for _, factory := range factoryRegistry {
		factoriesWithPriorities = append(factoriesWithPriorities, factory)
	}
	sort.SliceStable(factoriesWithPriorities, func(i, j int) bool {
		a, b := factoriesWithPriorities[i], factoriesWithPriorities[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Name() < b.Name()
	})

	var factories []engine.Factory
	for _, factory := range factoriesWithPriorities {
		factories = append(factories, factory.Factory)
	}

	return factories
}

// FactoryByName returns the registered factory with the given name.
func FactoryByName(name string) (engine.Factory, error) {
	for _, factory := range factoryRegistry {
		if factory.Name() == name {
			return factory.Factory, nil
		}
	}
	return nil, fmt.Errorf("engine '%s' is not registered", name)
}
