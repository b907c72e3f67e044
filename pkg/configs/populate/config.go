package populate

import (
	"github.com/fieldline/imagingdb/pkg/domain"
)

type PopulateConfig struct {
	database string
	fileRoot string
	methods  map[domain.Method]*MethodConfig
}

// Connection string for the record store database.
func (c *PopulateConfig) Database() string {
	return c.database
}

// Directory all stored file paths are relative to.
func (c *PopulateConfig) FileRoot() string {
	return c.fileRoot
}

// Per-method output locations. Methods absent here have no known
// output location on this deployment.
func (c *PopulateConfig) Methods() map[domain.Method]*MethodConfig {
	return c.methods
}

// Configuration for output locations of one processing method.
type MethodConfig struct {
	outputRoot string
	pattern    string
	trigger    []string
}

// Directory under which the external tool writes its outputs.
func (m *MethodConfig) OutputRoot() string {
	return m.outputRoot
}

// Relative path template of a task's output directory under OutputRoot.
// "{scan}" and "{instance}" are replaced with the task key values.
// default = "{scan}/{instance}"
func (m *MethodConfig) Pattern() string {
	return m.pattern
}

// Command line launching the external tool for a task, or empty when
// this deployment never launches the tool itself. "{scan}" and
// "{instance}" in arguments are replaced with the task key values.
func (m *MethodConfig) Trigger() []string {
	return m.trigger
}
