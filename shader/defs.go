// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Def is one module-scope constant injected ahead of a shader source.
type Def struct {
	Name  string
	Type  string // "u32", "i32" or "f32"
	Value float64
}

// U32 returns an unsigned integer definition.
func U32(name string, v uint32) Def { return Def{Name: name, Type: "u32", Value: float64(v)} }

// I32 returns a signed integer definition.
func I32(name string, v int32) Def { return Def{Name: name, Type: "i32", Value: float64(v)} }

// F32 returns a floating point definition.
func F32(name string, v float32) Def { return Def{Name: name, Type: "f32", Value: float64(v)} }

// literal renders the value as a WGSL literal of the definition's type.
func (d Def) literal() (string, error) {
	switch d.Type {
	case "u32":
		if d.Value < 0 {
			return "", fmt.Errorf("negative u32 %s", d.Name)
		}
		return strconv.FormatUint(uint64(d.Value), 10) + "u", nil
	case "i32":
		return strconv.FormatInt(int64(d.Value), 10) + "i", nil
	case "f32":
		s := strconv.FormatFloat(d.Value, 'f', -1, 32)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s, nil
	default:
		return "", fmt.Errorf("unsupported type %q for %s", d.Type, d.Name)
	}
}

// Defs is a set of definitions.
type Defs []Def

// Header renders the definitions as WGSL const declarations, sorted by
// name so the generated source is deterministic.
func (ds Defs) Header() (string, error) {
	sorted := slices.Clone(ds)
	slices.SortFunc(sorted, func(a, b Def) int { return strings.Compare(a.Name, b.Name) })

	var sb strings.Builder
	for i, d := range sorted {
		if i > 0 && sorted[i-1].Name == d.Name {
			return "", fmt.Errorf("duplicate definition %s", d.Name)
		}
		lit, err := d.literal()
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "const %s: %s = %s;\n", d.Name, d.Type, lit)
	}
	return sb.String(), nil
}

// Constants returns the definitions as a name to value map.
func (ds Defs) Constants() map[string]float64 {
	m := make(map[string]float64, len(ds))
	for _, d := range ds {
		m[d.Name] = d.Value
	}
	return m
}
