// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package isp

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/isp/bufplan"
)

// DumpBuffers writes the named buffers to dir as <name>.bin files of raw
// little-endian float32 values, plus a load.py that reads them into numpy
// arrays shaped to the image where the size allows. With no names, every
// buffer that can be copied out is written.
func (pl *Pipeline) DumpBuffers(dir string, names ...string) error {
	if pl.released {
		return ErrReleased
	}
	layout := pl.plan.Layout()
	if len(names) == 0 {
		for _, n := range layout.Names() {
			if d, ok := layout.Descriptor(n); ok && d.Usage&bufplan.UsageCopySrc != 0 {
				names = append(names, n)
			}
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("isp: dump: %w", err)
	}

	for _, n := range names {
		values, err := pl.ReadBuffer(n)
		if err != nil {
			return err
		}
		buf := make([]byte, 0, 4*len(values))
		for _, v := range values {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
		if err := os.WriteFile(filepath.Join(dir, n+".bin"), buf, 0o644); err != nil {
			return fmt.Errorf("isp: dump %s: %w", n, err)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "load.py"), []byte(pl.loaderScript(names)), 0o644); err != nil {
		return fmt.Errorf("isp: dump loader: %w", err)
	}
	Logger().Info("isp: buffers dumped", "dir", dir, "count", len(names))
	return nil
}

// loaderScript returns a python script that loads every dumped buffer.
func (pl *Pipeline) loaderScript(names []string) string {
	w, h := pl.params.Width, pl.params.Height
	pixels := uint64(w) * uint64(h)

	var sb strings.Builder
	sb.WriteString("import os\nimport numpy as np\n\n")
	sb.WriteString("HERE = os.path.dirname(os.path.abspath(__file__))\n\n")
	sb.WriteString("def load(name, shape):\n")
	sb.WriteString("    data = np.fromfile(os.path.join(HERE, name + '.bin'), dtype='<f4')\n")
	sb.WriteString("    return data.reshape(shape) if shape else data\n\n")
	sb.WriteString("buffers = {\n")
	for _, n := range names {
		shape := "None"
		if b, err := pl.plan.Lookup(n); err == nil {
			switch b.Size / 4 {
			case pixels:
				shape = fmt.Sprintf("(%d, %d)", h, w)
			case 4 * pixels:
				shape = fmt.Sprintf("(%d, %d, 4)", h, w)
			}
		}
		fmt.Fprintf(&sb, "    %q: load(%q, %s),\n", n, n, shape)
	}
	sb.WriteString("}\n")
	return sb.String()
}
