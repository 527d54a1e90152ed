package core

import (
	"context"
	"errors"
	"testing"
)

func TestRegistryRegisterAndCall(t *testing.T) {
	registry := NewRegistry()

	err := registry.Register("echo", func(ctx context.Context, args map[string][]string) (any, error) {
		return args["q"], nil
	})
	if err != nil {
		t.Fatalf("Failed to register operation: %v", err)
	}

	result, err := registry.Call(context.Background(), "echo", map[string][]string{"q": {"hello"}})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	values, ok := result.([]string)
	if !ok || len(values) != 1 || values[0] != "hello" {
		t.Errorf("Expected [hello], got %v", result)
	}
}

func TestRegistryIndependentInstances(t *testing.T) {
	registry1 := NewRegistry()
	registry2 := NewRegistry()

	noop := func(ctx context.Context, args map[string][]string) (any, error) { return nil, nil }
	if err := registry1.Register("noop", noop); err != nil {
		t.Fatalf("Failed to register operation: %v", err)
	}

	if len(registry2.Names()) != 0 {
		t.Error("Operation should not exist in registry2 - registries should be independent")
	}
}

func TestRegistryDuplicateName(t *testing.T) {
	registry := NewRegistry()
	noop := func(ctx context.Context, args map[string][]string) (any, error) { return nil, nil }

	if err := registry.Register("noop", noop); err != nil {
		t.Fatalf("Failed to register operation: %v", err)
	}
	if err := registry.Register("noop", noop); err == nil {
		t.Error("Expected error registering a duplicate name")
	}
	if err := registry.Register("", noop); err == nil {
		t.Error("Expected error registering an empty name")
	}
	if err := registry.Register("nil", nil); err == nil {
		t.Error("Expected error registering a nil operation")
	}
}

func TestRegistryUnknownOperation(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Call(context.Background(), "missing", nil)
	if !errors.Is(err, ErrUnknownOperation) {
		t.Errorf("Expected ErrUnknownOperation, got %v", err)
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	registry := NewRegistry()
	noop := func(ctx context.Context, args map[string][]string) (any, error) { return nil, nil }

	for _, name := range []string{"listAnnotsByPage", "searchAnnots", "listAnnotsByDay"} {
		if err := registry.Register(name, noop); err != nil {
			t.Fatalf("Failed to register %s: %v", name, err)
		}
	}

	names := registry.Names()
	expected := []string{"listAnnotsByDay", "listAnnotsByPage", "searchAnnots"}
	if len(names) != len(expected) {
		t.Fatalf("Expected %d names, got %d", len(expected), len(names))
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Errorf("names[%d]: expected %q, got %q", i, expected[i], names[i])
		}
	}
}
