// Package image loads target images: JSON manifests naming the program
// bytes, where they live, the entry point, and the monitor versions the
// image was built for.
package image

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"

	"github.com/trapmon-dev/trapmon/internal/machine"
	"github.com/trapmon-dev/trapmon/internal/symbols"
)

// ErrIncompatible marks an image whose monitor constraint rejects the
// serving protocol version.
var ErrIncompatible = errors.New("image requires an incompatible monitor")

// Manifest describes one loadable target image.
type Manifest struct {
	Name    string           `json:"name"`
	Version string           `json:"version,omitempty"`
	Monitor string           `json:"monitor,omitempty"` // semver constraint on the serving monitor
	Base    uint64           `json:"base"`
	Entry   uint64           `json:"entry"`
	Program string           `json:"program"` // hex-encoded bytes, loaded at Base
	Symbols []symbols.Symbol `json:"symbols,omitempty"`
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates a JSON manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse image manifest: %w", err)
	}
	if m.Name == "" {
		return nil, errors.New("image manifest: missing name")
	}
	if _, err := hex.DecodeString(m.Program); err != nil {
		return nil, fmt.Errorf("image %s: bad program encoding: %w", m.Name, err)
	}
	return &m, nil
}

// Check verifies the manifest's monitor constraint against the serving
// protocol version. An empty constraint accepts any monitor.
func (m *Manifest) Check(protocolVersion string) error {
	if m.Monitor == "" {
		return nil
	}
	c, err := semver.NewConstraint(m.Monitor)
	if err != nil {
		return fmt.Errorf("image %s: bad monitor constraint %q: %w", m.Name, m.Monitor, err)
	}
	v, err := semver.NewVersion(protocolVersion)
	if err != nil {
		return fmt.Errorf("bad protocol version %q: %w", protocolVersion, err)
	}
	if !c.Check(v) {
		return fmt.Errorf("%w: image %s wants monitor %q, serving %s",
			ErrIncompatible, m.Name, m.Monitor, protocolVersion)
	}
	return nil
}

// Apply loads the program bytes at the base address and points the
// register file at the entry.
func (m *Manifest) Apply(mem *machine.Memory, regs *machine.RegisterFile) error {
	data, err := hex.DecodeString(m.Program)
	if err != nil {
		return fmt.Errorf("image %s: bad program encoding: %w", m.Name, err)
	}
	mem.Write(m.Base, data)
	regs.SetPC(m.Entry)
	return nil
}

// Boot builds a fresh machine with the image applied.
func (m *Manifest) Boot() (*machine.Machine, error) {
	mach := machine.NewMachine()
	if err := m.Apply(mach.Memory(), mach.Regs()); err != nil {
		return nil, err
	}
	return mach, nil
}

// Table builds the symbol table declared by the manifest.
func (m *Manifest) Table() *symbols.Table {
	return symbols.Build(m.Symbols)
}
