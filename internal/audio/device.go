package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/alkime/podbook/pkg/channels"
	"github.com/alkime/podbook/pkg/collections"
	"github.com/gen2brain/malgo"
)

var ErrDeviceNotAllocated = errors.New("device not allocated")

// DataPacket is one callback's worth of S16LE bytes.
type DataPacket = []byte

// Device is one malgo device, opened either for capture or for playback.
// Callbacks run on the audio thread and never block.
type Device interface {
	// CaptureInto opens the microphone. Once started, every callback's
	// samples are copied into dataC; packets are dropped when dataC is full.
	CaptureInto(ctx context.Context, dataC chan DataPacket) error

	// Playback opens the output and pulls frames from src once started.
	// Short reads are padded with silence.
	Playback(ctx context.Context, src io.Reader) error

	Start(ctx context.Context) error
	// Stop is a no-op on a device that is not running.
	Stop(ctx context.Context) error
	IsStarted() bool
	Dealloc(ctx context.Context)
}

type device struct {
	conf   *DeviceConfig
	logger *slog.Logger

	mgCtx    *malgo.AllocatedContext
	mgDevice *malgo.Device
	dropped  atomic.Int64
}

func NewDevice(conf *DeviceConfig) Device {
	logger := conf.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &device{conf: conf, logger: logger.With("component", "audio")}
}

func (d *device) CaptureInto(_ context.Context, dataC chan DataPacket) error {
	if dataC == nil {
		return errors.New("data channel is nil. unable to allocate device")
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = d.conf.Format
	cfg.Capture.Channels = uint32(d.conf.CaptureChannels)

	return d.open("capture", cfg, func(_, in []byte, _ uint32) {
		d.tap(in)
		// malgo reuses the buffer between callbacks
		if err := channels.SendNonBlock(dataC, bytes.Clone(in)); err != nil {
			d.dropped.Add(1)
		}
	})
}

func (d *device) Playback(_ context.Context, src io.Reader) error {
	if src == nil {
		return errors.New("playback source is nil. unable to allocate device")
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = d.conf.Format
	cfg.Playback.Channels = uint32(d.conf.PlaybackChannels)

	return d.open("playback", cfg, func(out, _ []byte, _ uint32) {
		n, err := io.ReadFull(src, out)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			d.logger.Debug("playback read failed", "error", err)
		}
		clear(out[n:])
		d.tap(out[:n])
	})
}

func (d *device) open(kind string, cfg malgo.DeviceConfig, onData malgo.DataProc) error {
	if d.mgDevice != nil {
		return errors.New("device already allocated")
	}
	cfg.SampleRate = uint32(d.conf.SampleRate)

	mgCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	mgDevice, err := malgo.InitDevice(mgCtx.Context, cfg, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		d.freeContext(mgCtx)
		return fmt.Errorf("failed to create malgo %s device: %w", kind, err)
	}

	d.mgCtx, d.mgDevice = mgCtx, mgDevice
	d.logger.Debug("device allocated", "kind", kind, "sample_rate", d.conf.SampleRate)

	return nil
}

func (d *device) tap(samples []byte) {
	if d.conf.Levels != nil {
		d.conf.Levels.Write(BytesToInt16(samples))
	}
}

func (d *device) Start(context.Context) error {
	if d.mgDevice == nil {
		return fmt.Errorf("start: %w", ErrDeviceNotAllocated)
	}
	if d.mgDevice.IsStarted() {
		return nil
	}

	if err := d.mgDevice.Start(); err != nil {
		return fmt.Errorf("failed to start malgo device: %w", err)
	}

	return nil
}

func (d *device) Stop(context.Context) error {
	if !d.IsStarted() {
		return nil
	}

	if err := d.mgDevice.Stop(); err != nil {
		return fmt.Errorf("failed to stop malgo device: %w", err)
	}

	return nil
}

func (d *device) IsStarted() bool {
	return d.mgDevice != nil && d.mgDevice.IsStarted()
}

func (d *device) Dealloc(context.Context) {
	if d.mgDevice == nil {
		return
	}

	d.mgDevice.Uninit()
	d.freeContext(d.mgCtx)
	d.mgDevice, d.mgCtx = nil, nil

	if n := d.dropped.Swap(0); n > 0 {
		d.logger.Warn("capture packets dropped", "count", n)
	}
}

func (d *device) freeContext(mgCtx *malgo.AllocatedContext) {
	if err := mgCtx.Uninit(); err != nil {
		d.logger.Error("failed to uninitialize malgo context", "error", err)
	}
	mgCtx.Free()
}

// Info describes one system audio device.
type Info struct {
	Name      string
	Kind      string
	IsDefault bool
	Formats   []string
}

// EnumerateDevices lists capture devices followed by playback devices.
func EnumerateDevices(context.Context) ([]Info, error) {
	mgCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		_ = mgCtx.Uninit()
		mgCtx.Free()
	}()

	var infos []Info
	for _, kind := range []malgo.DeviceType{malgo.Capture, malgo.Playback} {
		found, err := mgCtx.Devices(kind)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s devices: %w", kindName(kind), err)
		}
		infos = append(infos, collections.Apply(found, func(mdi malgo.DeviceInfo) Info {
			return newInfo(mdi, kindName(kind))
		})...)
	}

	return infos, nil
}

func kindName(kind malgo.DeviceType) string {
	if kind == malgo.Capture {
		return "capture"
	}

	return "playback"
}

func newInfo(mdi malgo.DeviceInfo, kind string) Info {
	formats := make([]string, 0, mdi.FormatCount)
	for _, f := range mdi.Formats[:mdi.FormatCount] {
		formats = append(formats, fmt.Sprintf("%d-bit %dch %dHz",
			malgo.SampleSizeInBytes(f.Format)*8, f.Channels, f.SampleRate))
	}

	return Info{
		Name:      mdi.Name(),
		Kind:      kind,
		IsDefault: mdi.IsDefault != 0,
		Formats:   formats,
	}
}
