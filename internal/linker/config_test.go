package linker

import "testing"

func TestConfigValidateNoInputsErrors(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() on a Config with no inputs must return an error")
	}
}

func TestConfigValidateDefaultsEntryForExecute(t *testing.T) {
	cfg := &Config{Kind: OutputExecute, Inputs: []string{"a.o"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Entry != "_main" {
		t.Errorf("Entry = %q, want default _main for an executable", cfg.Entry)
	}
}

func TestConfigValidateDoesNotForceEntryForDylib(t *testing.T) {
	cfg := &Config{Kind: OutputDylib, Inputs: []string{"a.o"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Entry != "" {
		t.Errorf("Entry = %q, want empty for a -dylib output with none requested", cfg.Entry)
	}
}

func TestConfigValidateDefaultsOutputAndSizes(t *testing.T) {
	cfg := &Config{Kind: OutputExecute, Inputs: []string{"a.o"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Output != "a.out" {
		t.Errorf("Output = %q, want default a.out", cfg.Output)
	}
	if cfg.Headerpad != 256 {
		t.Errorf("Headerpad = %d, want default 256", cfg.Headerpad)
	}
	if cfg.StackSize != 8<<20 {
		t.Errorf("StackSize = %d, want default 8MiB", cfg.StackSize)
	}
}

func TestConfigValidatePreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Kind:      OutputExecute,
		Inputs:    []string{"a.o"},
		Entry:     "_custom_start",
		Output:    "myapp",
		Headerpad: 4096,
		StackSize: 1 << 24,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Entry != "_custom_start" || cfg.Output != "myapp" || cfg.Headerpad != 4096 || cfg.StackSize != 1<<24 {
		t.Errorf("Validate overwrote explicitly set fields: %+v", cfg)
	}
}
