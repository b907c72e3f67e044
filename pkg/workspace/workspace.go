// Package workspace binds the engine's filesystem collaborators to a
// deployment's configured layout.
package workspace

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	configs "github.com/fieldline/imagingdb/pkg/configs/populate"
	"github.com/fieldline/imagingdb/pkg/domain"
	"github.com/fieldline/imagingdb/pkg/engine"
	xe "github.com/fieldline/imagingdb/pkg/errors"
)

// expand fills "{scan}" and "{instance}" in a template with task key values.
func expand(template string, key domain.TaskKey) string {
	expanded := strings.ReplaceAll(template, "{scan}", key.ScanID)
	return strings.ReplaceAll(expanded, "{instance}", key.Instance.String())
}

type locator struct {
	methods map[domain.Method]*configs.MethodConfig
}

// NewLocator resolves task output directories from per-method config.
func NewLocator(conf *configs.PopulateConfig) engine.Locator {
	return &locator{methods: conf.Methods()}
}

func (l *locator) PathFor(method domain.Method, key domain.TaskKey) (string, error) {
	mc, ok := l.methods[method]
	if !ok {
		return "", xe.WrapWithNote(string(method), domain.ErrSourceLocationUnavailable)
	}
	return filepath.Join(mc.OutputRoot(), filepath.FromSlash(expand(mc.Pattern(), key))), nil
}

type fileRoot struct {
	root string
}

// NewFileRoot anchors stored file paths at the configured data root.
func NewFileRoot(conf *configs.PopulateConfig) engine.FileRoot {
	return &fileRoot{root: conf.FileRoot()}
}

func (f *fileRoot) Root() string {
	return f.root
}

func (f *fileRoot) Relativize(abs string) (string, error) {
	rel, err := filepath.Rel(f.root, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", xe.WrapWithNote(abs, domain.ErrMalformedSource)
	}
	return rel, nil
}

type trigger struct {
	methods map[domain.Method]*configs.MethodConfig
}

// NewTrigger launches configured external tools. Returns nil when no
// method carries a trigger command, so callers fall back to waiting
// for output directories to appear.
func NewTrigger(conf *configs.PopulateConfig) engine.Trigger {
	any := false
	for _, mc := range conf.Methods() {
		if len(mc.Trigger()) != 0 {
			any = true
			break
		}
	}
	if !any {
		return nil
	}
	return &trigger{methods: conf.Methods()}
}

func (t *trigger) Launch(ctx context.Context, method domain.Method, key domain.TaskKey) error {
	mc, ok := t.methods[method]
	if !ok || len(mc.Trigger()) == 0 {
		return nil
	}

	argv := mc.Trigger()
	args := make([]string, 0, len(argv)-1)
	for _, a := range argv[1:] {
		args = append(args, expand(a, key))
	}

	cmd := exec.Command(argv[0], args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// fire and forget. reap the child off to the side.
	go func() { _ = cmd.Wait() }()
	return nil
}
