// Package gpu provides an optional WebGPU forward path for gate networks.
// The CPU implementation in package nn stays authoritative; this package
// accelerates batched evaluation and inference of a frozen network, where
// the per-layer slot products dominate. Training stays on the CPU: each step
// depends on the previous step's parameter update, so there is nothing to
// pipeline.
package gpu

import (
	"fmt"
	"sync"

	"github.com/openfluke/webgpu/wgpu"
)

// Context holds the single WebGPU context for the process.
type Context struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
}

var (
	ctx     *Context
	ctxErr  error
	ctxOnce sync.Once
)

// GetContext returns the singleton GPU context, initializing it on first
// use. Adapter selection prefers high performance, then low power, then
// whatever the platform offers.
func GetContext() (*Context, error) {
	ctxOnce.Do(func() {
		instance := wgpu.CreateInstance(nil)
		if instance == nil {
			ctxErr = fmt.Errorf("failed to create WebGPU instance")
			return
		}

		var adapter *wgpu.Adapter
		for _, opts := range []*wgpu.RequestAdapterOptions{
			{PowerPreference: wgpu.PowerPreferenceHighPerformance},
			{PowerPreference: wgpu.PowerPreferenceLowPower},
			nil,
		} {
			var err error
			adapter, err = instance.RequestAdapter(opts)
			if err == nil && adapter != nil {
				break
			}
			ctxErr = err
		}
		if adapter == nil {
			ctxErr = fmt.Errorf("no usable GPU adapter: %v", ctxErr)
			return
		}

		device, err := adapter.RequestDevice(nil)
		if err != nil {
			ctxErr = fmt.Errorf("failed to request device: %w", err)
			return
		}

		ctx = &Context{
			Instance: instance,
			Adapter:  adapter,
			Device:   device,
			Queue:    device.GetQueue(),
		}
		ctxErr = nil
	})
	return ctx, ctxErr
}
