package ringbuffer

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/rustyguts/audiosink/internal/ringspec"
)

// framesPerCallback is the device I/O granularity: the blocking portaudio
// stream is asked to move this many sample frames per Write (960 samples
// = 20ms @ 48kHz).
const framesPerCallback = 960

// InitPortAudio and TerminatePortAudio wrap the library's global
// init/shutdown and must bracket the lifetime of every PortAudio ring
// buffer in a process.
func InitPortAudio() error { return portaudio.Initialize() }
func TerminatePortAudio() error { return portaudio.Terminate() }

// PortAudio is a RingBuffer backed by a real output device via
// github.com/gordonklaus/portaudio: a dedicated goroutine blocks on
// stream.Write(), exits at its next iteration once stopCh is closed on
// teardown, and is joined via a WaitGroup before the stream itself is
// stopped and closed — stopping
// the stream out from under an in-flight Write would otherwise race the
// portaudio C binding.
type PortAudio struct {
	mu          sync.Mutex
	deviceIndex int
	spec        ringspec.Spec
	stream      *portaudio.Stream
	out         []float32

	ring     []byte // backing sample storage, spec.SegTotal*spec.SegSize bytes
	writePos int64  // next ring byte offset deviceLoop reads from

	playedSamples atomic.Uint64
	delaySamples  atomic.Uint32

	acquired atomic.Bool
	flushing atomic.Bool
	started  atomic.Bool
	mayStart atomic.Bool

	segDone atomic.Uint64
	segBase atomic.Uint64

	callback PullFunc
	userData any

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewPortAudio returns a PortAudio ring buffer that will open deviceIndex
// (or the system default output device when deviceIndex < 0) on Acquire.
func NewPortAudio(deviceIndex int) *PortAudio {
	return &PortAudio{deviceIndex: deviceIndex}
}

func (p *PortAudio) Acquire(spec ringspec.Spec) error {
	if !spec.Valid() {
		return errors.New("ringbuffer: invalid spec")
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return err
	}
	dev, err := resolveOutputDevice(devices, p.deviceIndex)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.spec = spec
	p.ring = make([]byte, spec.SegTotal*spec.SegSize)
	p.out = make([]float32, framesPerCallback)

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowOutputLatency,
		},
		SampleRate:      float64(spec.Rate),
		FramesPerBuffer: framesPerCallback,
	}
	stream, err := portaudio.OpenStream(params, p.out)
	if err != nil {
		return err
	}
	p.stream = stream
	p.acquired.Store(true)
	p.flushing.Store(false)
	return nil
}

func resolveOutputDevice(devices []*portaudio.DeviceInfo, idx int) (*portaudio.DeviceInfo, error) {
	if idx >= 0 && idx < len(devices) {
		return devices[idx], nil
	}
	return portaudio.DefaultOutputDevice()
}

func (p *PortAudio) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.acquired.Load() || p.stream == nil {
		return ErrWrongState
	}
	if p.started.Load() {
		return nil
	}
	if err := p.stream.Start(); err != nil {
		return err
	}
	p.started.Store(true)
	p.stopCh = make(chan struct{})
	p.wg.Add(1)
	go p.deviceLoop(p.stopCh)
	return nil
}

func (p *PortAudio) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return ErrWrongState
	}
	return p.stream.Stop()
}

// deviceLoop repeatedly drains framesPerCallback sample frames from the ring
// (or the pull callback, if installed) and writes them to the device:
// start from silence, fill in real data, write, repeat until stopCh closes.
func (p *PortAudio) deviceLoop(stop <-chan struct{}) {
	defer p.wg.Done()
	bps := p.spec.BytesPerSample
	segBytes := framesPerCallback * bps
	scratch := make([]byte, segBytes)

	for {
		select {
		case <-stop:
			return
		default:
		}

		for i := range scratch {
			scratch[i] = 0
		}

		p.mu.Lock()
		cb := p.callback
		ud := p.userData
		p.mu.Unlock()
		if cb != nil {
			cb(ud, scratch)
		} else {
			p.readFromRing(scratch)
		}

		for i := range p.out {
			p.out[i] = pcm16ToFloat32(scratch, i, bps)
		}

		if err := p.stream.Write(); err != nil {
			log.Printf("[ringbuffer] portaudio write: %v", err)
			return
		}

		p.playedSamples.Add(uint64(framesPerCallback))
		p.segDone.Add(1)
	}
}

func pcm16ToFloat32(buf []byte, frame int, bytesPerSample int) float32 {
	off := frame * bytesPerSample
	if off+2 > len(buf) {
		return 0
	}
	v := int16(buf[off]) | int16(buf[off+1])<<8
	return float32(v) / 32768.0
}

func (p *PortAudio) readFromRing(dst []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.ring) == 0 {
		return
	}
	capacity := int64(len(p.ring))
	for i := range dst {
		pos := p.writePos % capacity
		if pos < 0 {
			pos += capacity
		}
		dst[i] = p.ring[pos]
		p.writePos++
	}
}

func (p *PortAudio) SetFlushing(flushing bool) { p.flushing.Store(flushing) }
func (p *PortAudio) MayStart(may bool)         { p.mayStart.Store(may) }
func (p *PortAudio) IsAcquired() bool          { return p.acquired.Load() }

func (p *PortAudio) SamplesDone() uint64 { return p.playedSamples.Load() }
func (p *PortAudio) Delay() uint32       { return p.delaySamples.Load() }

func (p *PortAudio) Rate() int64 {
	if !p.acquired.Load() {
		return 0
	}
	return p.spec.Rate
}

func (p *PortAudio) SegDone() uint64 { return p.segDone.Load() }
func (p *PortAudio) SegBase() uint64 { return p.segBase.Load() }

func (p *PortAudio) CommitFull(sampleOffset *int64, data []byte, inSamples, outSamples int, accum *float64) (int, error) {
	if p.flushing.Load() || !p.acquired.Load() {
		return 0, ErrWrongState
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	bps := p.spec.BytesPerSample
	capacitySamples := int64(len(p.ring)) / int64(bps)
	if capacitySamples <= 0 {
		return 0, ErrWrongState
	}

	for i := 0; i < inSamples; i++ {
		pos := (*sampleOffset + int64(i)) % capacitySamples
		if pos < 0 {
			pos += capacitySamples
		}
		copy(p.ring[pos*int64(bps):pos*int64(bps)+int64(bps)], data[i*bps:(i+1)*bps])
	}
	*sampleOffset += int64(outSamples)
	return inSamples, nil
}

func (p *PortAudio) SetCallback(fn PullFunc, userData any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callback = fn
	p.userData = userData
}

// Release stops and closes the stream; the next Acquire opens a new one on
// the same device.
func (p *PortAudio) Release() error {
	p.mu.Lock()
	stream := p.stream
	stop := p.stopCh
	p.stream = nil
	p.stopCh = nil
	p.acquired.Store(false)
	p.started.Store(false)
	p.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	p.wg.Wait()

	if stream != nil {
		stream.Stop()
		return stream.Close()
	}
	return nil
}

// Close is idempotent and releases the device handle.
func (p *PortAudio) Close() error {
	if !p.acquired.Load() && p.stream == nil {
		return nil
	}
	return p.Release()
}
