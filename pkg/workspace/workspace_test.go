package workspace_test

import (
	"errors"
	"testing"

	configs "github.com/fieldline/imagingdb/pkg/configs/populate"
	"github.com/fieldline/imagingdb/pkg/domain"
	"github.com/fieldline/imagingdb/pkg/workspace"
)

func loadConfig(t *testing.T, yml string) *configs.PopulateConfig {
	t.Helper()
	conf, err := configs.Unmarshal([]byte(yml))
	if err != nil {
		t.Fatal(err)
	}
	return conf
}

func TestLocator(t *testing.T) {
	conf := loadConfig(t, `
database: postgres://localhost/imagingdb
fileRoot: /mnt/imaging
methods:
  suite2p:
    outputRoot: /mnt/imaging/suite2p
    pattern: "{scan}/{instance}"
`)
	testee := workspace.NewLocator(conf)
	task := domain.NewTaskKey("scan-20240301", domain.MethodSuite2p, 0)

	t.Run("it expands the configured pattern", func(t *testing.T) {
		actual, err := testee.PathFor(domain.MethodSuite2p, task)
		if err != nil {
			t.Fatal(err)
		}
		expected := "/mnt/imaging/suite2p/scan-20240301/" + task.Instance.String()
		if actual != expected {
			t.Errorf("mismatch. (expected, actual) = (%s, %s)", expected, actual)
		}
	})

	t.Run("a method without config has no location", func(t *testing.T) {
		_, err := testee.PathFor(domain.MethodCaiman, task)
		if !errors.Is(err, domain.ErrSourceLocationUnavailable) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestFileRoot(t *testing.T) {
	conf := loadConfig(t, `
database: postgres://localhost/imagingdb
fileRoot: /mnt/imaging
`)
	testee := workspace.NewFileRoot(conf)

	t.Run("Root", func(t *testing.T) {
		if testee.Root() != "/mnt/imaging" {
			t.Errorf("unexpected root: %s", testee.Root())
		}
	})

	t.Run("paths under the root relativize", func(t *testing.T) {
		actual, err := testee.Relativize("/mnt/imaging/suite2p/scanA/F.npy")
		if err != nil {
			t.Fatal(err)
		}
		if actual != "suite2p/scanA/F.npy" {
			t.Errorf("unexpected relative path: %s", actual)
		}
	})

	t.Run("paths escaping the root are rejected", func(t *testing.T) {
		if _, err := testee.Relativize("/etc/passwd"); err == nil {
			t.Error("a path outside the root is accepted")
		}
	})
}

func TestTrigger(t *testing.T) {
	t.Run("no trigger commands means no trigger", func(t *testing.T) {
		conf := loadConfig(t, `
database: postgres://localhost/imagingdb
fileRoot: /mnt/imaging
methods:
  suite2p:
    outputRoot: /mnt/imaging/suite2p
`)
		if tr := workspace.NewTrigger(conf); tr != nil {
			t.Errorf("unexpected trigger: %v", tr)
		}
	})

	t.Run("configured commands yield a trigger", func(t *testing.T) {
		conf := loadConfig(t, `
database: postgres://localhost/imagingdb
fileRoot: /mnt/imaging
methods:
  suite2p:
    outputRoot: /mnt/imaging/suite2p
    trigger: ["true", "{scan}"]
`)
		if tr := workspace.NewTrigger(conf); tr == nil {
			t.Error("trigger is missing")
		}
	})
}
