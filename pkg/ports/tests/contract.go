package tests

import (
	"errors"
	"testing"

	"github.com/aretw0/sight/pkg/ports"
)

// ConfigLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.ConfigLoader.
func ConfigLoaderContractTest(t *testing.T, loader ports.ConfigLoader, setupData map[string][]byte) {
	t.Helper()

	t.Run("GetConfig_Success", func(t *testing.T) {
		for id, expectedContent := range setupData {
			content, err := loader.GetConfig(id)
			if err != nil {
				t.Fatalf("unexpected error getting config %s: %v", id, err)
			}
			if string(content) != string(expectedContent) {
				t.Errorf("content mismatch for %s. got %q, want %q", id, content, expectedContent)
			}
		}
	})

	t.Run("GetConfig_NotFound", func(t *testing.T) {
		_, err := loader.GetConfig("non-existent-config")
		if !errors.Is(err, ports.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("ListConfigs", func(t *testing.T) {
		ids, err := loader.ListConfigs()
		if err != nil {
			t.Fatalf("unexpected error listing configs: %v", err)
		}
		if len(ids) != len(setupData) {
			t.Errorf("expected %d configs, got %d", len(setupData), len(ids))
		}
		for i := 1; i < len(ids); i++ {
			if ids[i-1] > ids[i] {
				t.Errorf("ids not sorted: %v", ids)
				break
			}
		}
		lookup := make(map[string]bool)
		for _, id := range ids {
			lookup[id] = true
		}
		for id := range setupData {
			if !lookup[id] {
				t.Errorf("config %s missing from list", id)
			}
		}
	})
}
