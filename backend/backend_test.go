// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/isp/gpucore"
)

// stubDevice is a gpucore.Device that only reports its name.
type stubDevice struct {
	gpucore.Device
	name string
}

func (d *stubDevice) Name() string { return d.name }

func withRegistry(t *testing.T, reg map[string]Factory) {
	t.Helper()
	registryMu.Lock()
	saved := factories
	factories = reg
	registryMu.Unlock()
	t.Cleanup(func() {
		registryMu.Lock()
		factories = saved
		registryMu.Unlock()
	})
}

func TestRegisterAndGet(t *testing.T) {
	withRegistry(t, map[string]Factory{})

	Register("stub", func() (gpucore.Device, error) { return &stubDevice{name: "stub"}, nil })
	assert.True(t, IsRegistered("stub"))
	assert.Equal(t, []string{"stub"}, Available())

	dev, err := Get("stub")
	require.NoError(t, err)
	assert.Equal(t, "stub", dev.Name())

	Unregister("stub")
	assert.False(t, IsRegistered("stub"))

	_, err = Get("stub")
	assert.ErrorIs(t, err, ErrBackendNotFound)
}

func TestDefaultPriority(t *testing.T) {
	errNoGPU := errors.New("no adapter")

	tests := []struct {
		name    string
		reg     map[string]Factory
		want    string
		wantErr error
	}{
		{
			name: "native preferred",
			reg: map[string]Factory{
				BackendSoftware: func() (gpucore.Device, error) { return &stubDevice{name: BackendSoftware}, nil },
				BackendNative:   func() (gpucore.Device, error) { return &stubDevice{name: BackendNative}, nil },
			},
			want: BackendNative,
		},
		{
			name: "fallback to software",
			reg: map[string]Factory{
				BackendSoftware: func() (gpucore.Device, error) { return &stubDevice{name: BackendSoftware}, nil },
				BackendNative:   func() (gpucore.Device, error) { return nil, errNoGPU },
			},
			want: BackendSoftware,
		},
		{
			name: "other backend last",
			reg: map[string]Factory{
				"custom": func() (gpucore.Device, error) { return &stubDevice{name: "custom"}, nil },
			},
			want: "custom",
		},
		{
			name: "none available",
			reg: map[string]Factory{
				BackendNative: func() (gpucore.Device, error) { return nil, errNoGPU },
			},
			wantErr: errNoGPU,
		},
		{
			name:    "empty registry",
			reg:     map[string]Factory{},
			wantErr: ErrNoBackend,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withRegistry(t, tt.reg)
			dev, err := Default()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrNoBackend)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, dev.Name())
		})
	}
}
