package gpu

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Device errors.
var (
	// ErrNoAdapter is returned when a backend exposes no adapters.
	ErrNoAdapter = errors.New("gpu: no GPU adapters found")

	// ErrUnknownBackend is returned when a backend name is not registered.
	ErrUnknownBackend = errors.New("gpu: unknown backend")
)

// Device is an opened logical device together with the instance and
// adapter it came from. Close releases all three.
type Device struct {
	Instance hal.Instance
	Adapter  hal.Adapter
	Info     gputypes.AdapterInfo
	Limits   gputypes.Limits
	Device   hal.Device
	Queue    hal.Queue
}

// Close destroys the device, then the instance.
func (d *Device) Close() {
	if d == nil {
		return
	}
	if d.Device != nil {
		d.Device.Destroy()
		d.Device = nil
	}
	if d.Instance != nil {
		d.Instance.Destroy()
		d.Instance = nil
	}
	d.Queue = nil
	d.Adapter = nil
}

// OpenBackend creates an instance on backend and opens its preferred
// adapter. Discrete and integrated GPUs win over anything else.
func OpenBackend(backend hal.Backend) (*Device, error) {
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	limits := gputypes.DefaultLimits()
	openDev, err := selected.Adapter.Open(gputypes.Features(0), limits)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}
	slogger().Info("gpu: device opened",
		"adapter", selected.Info.Name,
		"type", selected.Info.DeviceType)
	return &Device{
		Instance: instance,
		Adapter:  selected.Adapter,
		Info:     selected.Info,
		Limits:   limits,
		Device:   openDev.Device,
		Queue:    openDev.Queue,
	}, nil
}

// Backends is a prioritized set of named HAL backends.
type Backends struct {
	reg *gpucontext.Registry[hal.Backend]
}

// DefaultPriority is the order in which Best picks a backend.
var DefaultPriority = []string{"vulkan", "metal", "dx12", "gles", "software", "noop"}

// NewBackends creates an empty backend set with DefaultPriority.
func NewBackends() *Backends {
	return &Backends{
		reg: gpucontext.NewRegistry[hal.Backend](gpucontext.WithPriority(DefaultPriority...)),
	}
}

// Register adds backend under name, replacing any earlier entry.
func (b *Backends) Register(name string, backend hal.Backend) {
	b.reg.Register(name, func() hal.Backend { return backend })
}

// Names returns the registered backend names, sorted.
func (b *Backends) Names() []string {
	names := b.reg.Available()
	sort.Strings(names)
	return names
}

// Open opens the named backend. An empty name or "auto" picks the
// highest-priority registered backend.
func (b *Backends) Open(name string) (*Device, error) {
	if name == "" || name == "auto" {
		name = b.reg.BestName()
	}
	if name == "" || !b.reg.Has(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	dev, err := OpenBackend(b.reg.Get(name))
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", name, err)
	}
	return dev, nil
}

// SupportsRenderAttachment reports whether adapter can render into format.
// A nil adapter is assumed to support every format.
func SupportsRenderAttachment(adapter hal.Adapter, format gputypes.TextureFormat) bool {
	if adapter == nil {
		return true
	}
	caps := adapter.TextureFormatCapabilities(format)
	return caps.Flags&hal.TextureFormatCapabilityRenderAttachment != 0
}
