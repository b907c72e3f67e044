package populate

import (
	"fmt"

	"github.com/fieldline/imagingdb/pkg/domain"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

type PopulateConfigMarshall struct {
	Database string                           `yaml:"database"`
	FileRoot string                           `yaml:"fileRoot"`
	Methods  map[string]*MethodConfigMarshall `yaml:"methods"`
}

var _ Marshalled[*PopulateConfig] = &PopulateConfigMarshall{}

func (p *PopulateConfigMarshall) trySeal(path string) *PopulateConfig {
	methods := map[domain.Method]*MethodConfig{}
	for name, mm := range p.Methods {
		method, err := domain.AsMethod(name)
		if err != nil {
			panic(fmt.Sprintf("%s.methods.%s is not a known method", path, name))
		}
		methods[method] = nonnil(mm, path+".methods."+name).
			trySeal(path + ".methods." + name)
	}
	return &PopulateConfig{
		database: required(p.Database, path+".database"),
		fileRoot: required(p.FileRoot, path+".fileRoot"),
		methods:  methods,
	}
}

type MethodConfigMarshall struct {
	OutputRoot string   `yaml:"outputRoot"`
	Pattern    string   `yaml:"pattern,omitempty"`
	Trigger    []string `yaml:"trigger,omitempty"`
}

func (m *MethodConfigMarshall) trySeal(path string) *MethodConfig {
	pattern := m.Pattern
	if pattern == "" {
		pattern = "{scan}/{instance}"
	}
	return &MethodConfig{
		outputRoot: required(m.OutputRoot, path+".outputRoot"),
		pattern:    pattern,
		trigger:    m.Trigger,
	}
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}
