package recurring_test

import (
	"errors"
	"testing"
	"time"

	"github.com/fieldline/imagingdb/cmd/populate/recurring"
	"github.com/fieldline/imagingdb/pkg/loop"
)

func TestParsePolicy(t *testing.T) {
	for input, expected := range map[string]string{
		"once":        "once",
		"forever":     "forever:0s",
		"forever:30s": "forever:30s",
	} {
		t.Run(input, func(t *testing.T) {
			p, err := recurring.ParsePolicy(input)
			if err != nil {
				t.Fatal(err)
			}
			if p.String() != expected {
				t.Errorf("mismatch. (expected, actual) = (%s, %s)", expected, p.String())
			}
		})
	}

	for _, input := range []string{"", "backlog", "once:1s", "forever:xxx"} {
		t.Run("invalid: "+input, func(t *testing.T) {
			if _, err := recurring.ParsePolicy(input); err == nil {
				t.Error("invalid policy is accepted")
			}
		})
	}
}

func TestPolicy(t *testing.T) {
	t.Run("once breaks after any pass", func(t *testing.T) {
		p := recurring.Once()
		if next := p.Next(true, nil); next != loop.Break(nil) {
			t.Errorf("unexpected next: %s", next)
		}
		if next := p.Next(false, nil); next != loop.Break(nil) {
			t.Errorf("unexpected next: %s", next)
		}
	})

	t.Run("forever continues, waiting only on empty backlog", func(t *testing.T) {
		p := recurring.Forever(30 * time.Second)
		if next := p.Next(true, nil); next != loop.Continue(0) {
			t.Errorf("unexpected next: %s", next)
		}
		if next := p.Next(false, nil); next != loop.Continue(30*time.Second) {
			t.Errorf("unexpected next: %s", next)
		}
	})

	t.Run("until error breaks on error", func(t *testing.T) {
		expected := errors.New("fake error")
		p := recurring.UntilError(recurring.Forever(0))
		if next := p.Next(true, expected); next != loop.Break(expected) {
			t.Errorf("unexpected next: %s", next)
		}
		if next := p.Next(true, nil); next != loop.Continue(0) {
			t.Errorf("unexpected next: %s", next)
		}
	})
}
