package image

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/trapmon-dev/trapmon/internal/machine"
)

const sampleManifest = `{
	"name": "blink",
	"version": "0.3.1",
	"monitor": ">=1.0.0, <2.0.0",
	"base": 4096,
	"entry": 4096,
	"program": "1300000073001000",
	"symbols": [{"name": "start", "addr": 4096, "size": 8}]
}`

func TestParseManifest(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Name != "blink" || m.Base != 0x1000 || m.Entry != 0x1000 {
		t.Fatalf("manifest fields: %+v", m)
	}

	s, _, ok := m.Table().Lookup(0x1004)
	if !ok || s.Name != "start" {
		t.Fatalf("symbol lookup: got %q ok=%v", s.Name, ok)
	}
}

func TestParseRejectsBadManifests(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", "{"},
		{"missing name", `{"program": "00"}`},
		{"bad program hex", `{"name": "x", "program": "xyz"}`},
	}
	for _, c := range cases {
		if _, err := Parse([]byte(c.data)); err == nil {
			t.Fatalf("%s: Parse accepted %q", c.name, c.data)
		}
	}
}

func TestCheckMonitorConstraint(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if err := m.Check("1.2.0"); err != nil {
		t.Fatalf("Check(1.2.0): %v", err)
	}
	if err := m.Check("2.1.0"); !errors.Is(err, ErrIncompatible) {
		t.Fatalf("Check(2.1.0): got %v, want ErrIncompatible", err)
	}

	m.Monitor = ""
	if err := m.Check("9.9.9"); err != nil {
		t.Fatalf("empty constraint must accept any monitor: %v", err)
	}

	m.Monitor = "not a range"
	if err := m.Check("1.2.0"); err == nil || errors.Is(err, ErrIncompatible) {
		t.Fatalf("bad constraint: got %v, want a parse error", err)
	}
}

func TestLoadReadsManifestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blink.json")
	if err := os.WriteFile(path, []byte(sampleManifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Name != "blink" {
		t.Fatalf("loaded name: %q", m.Name)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("Load accepted a missing file")
	}
}

func TestBootAppliesProgram(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	mach, err := m.Boot()
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if pc := mach.Regs().PC(); pc != 0x1000 {
		t.Fatalf("entry pc: got %#x, want 0x1000", pc)
	}
	if w := mach.Memory().ReadWord(0x1000); w != 0x00000013 {
		t.Fatalf("first word: got %#08x", w)
	}
	if w := mach.Memory().ReadWord(0x1004); w != machine.OpcodeBreak {
		t.Fatalf("second word: got %#08x, want the break opcode", w)
	}
}
