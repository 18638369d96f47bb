// Command sinkdemo drives audiosink.Sink end-to-end against a real output
// device: it synthesizes a tone, round-trips it through an Opus
// encoder/decoder (so the render path is exercised with genuinely decoded
// audio rather than raw PCM), and renders the decoded PCM through the
// sink onto a PortAudio-backed ring buffer.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"gopkg.in/hraban/opus.v2"

	"github.com/rustyguts/audiosink"
	"github.com/rustyguts/audiosink/internal/ringbuffer"
	"github.com/rustyguts/audiosink/internal/slave"
)

const (
	sampleRate = 48000
	channels   = 2
	frameSize  = 960 // 20ms @ 48kHz
)

func main() {
	device := flag.Int("device", -1, "output device index (-1 = system default)")
	freq := flag.Float64("freq", 440, "test tone frequency in Hz")
	seconds := flag.Int("seconds", 3, "duration of the demo tone in seconds")
	slaveMethodFlag := flag.String("slave-method", "skew", "clock slaving method: resample|skew|none")
	pull := flag.Bool("pull", false, "drive the ring buffer in pull mode instead of push")
	flag.Parse()

	method, err := parseSlaveMethod(*slaveMethodFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := ringbuffer.InitPortAudio(); err != nil {
		log.Fatalf("portaudio init: %v", err)
	}
	defer ringbuffer.TerminatePortAudio()

	ring := ringbuffer.NewPortAudio(*device)
	sink := audiosink.New(
		audiosink.WithCreateRingBuffer(func() (audiosink.RingBuffer, error) { return ring, nil }),
		audiosink.WithSlaveMethod(method),
		audiosink.WithPullEnabled(*pull),
	)
	base := newDemoBaseSink()
	sink.SetBaseSink(base)

	if err := sink.SetState(audiosink.StateReady); err != nil {
		log.Fatalf("NULL->READY: %v", err)
	}
	if err := sink.SetFormat(audiosink.Format{
		Rate: sampleRate, Channels: channels, Width: 16, Depth: 16, Signed: true,
	}); err != nil {
		log.Fatalf("SetFormat: %v", err)
	}
	if err := sink.SetState(audiosink.StatePaused); err != nil {
		log.Fatalf("READY->PAUSED: %v", err)
	}
	if err := sink.SetState(audiosink.StatePlaying); err != nil {
		log.Fatalf("PAUSED->PLAYING: %v", err)
	}

	peer, err := newOpusPeer(*freq)
	if err != nil {
		log.Fatalf("opus peer: %v", err)
	}

	if *pull {
		sink.SetPullFunc(peer.fill)
		if err := sink.EnablePull(); err != nil {
			log.Fatalf("EnablePull: %v", err)
		}
		time.Sleep(time.Duration(*seconds) * time.Second)
	} else {
		start := time.Now()
		var ts time.Duration
		frameDuration := time.Duration(frameSize) * time.Second / time.Duration(sampleRate)
		for time.Since(start) < time.Duration(*seconds)*time.Second {
			pcm := peer.nextFrame()
			if fr := sink.Render(&audiosink.Buffer{Data: pcm, Timestamp: ts}); fr != audiosink.FlowOK {
				log.Printf("render: %v", fr)
			}
			ts += frameDuration
		}
	}

	if fr := sink.Eos(); fr != audiosink.FlowOK {
		log.Printf("eos: %v", fr)
	}
	if err := sink.SetState(audiosink.StatePaused); err != nil {
		log.Printf("PLAYING->PAUSED: %v", err)
	}
	if err := sink.SetState(audiosink.StateReady); err != nil {
		log.Printf("PAUSED->READY: %v", err)
	}
	if err := sink.SetState(audiosink.StateNull); err != nil {
		log.Printf("READY->NULL: %v", err)
	}
}

func parseSlaveMethod(s string) (slave.Method, error) {
	switch s {
	case "resample":
		return slave.Resample, nil
	case "skew":
		return slave.Skew, nil
	case "none":
		return slave.None, nil
	default:
		return 0, fmt.Errorf("unknown slave method %q (want resample|skew|none)", s)
	}
}

// opusPeer is the demo's upstream "peer": it synthesizes a sine tone,
// round-trips each frame through an Opus encoder/decoder, and hands back
// PCM16 ready for Sink.Render or the pull callback.
type opusPeer struct {
	enc   *opus.Encoder
	dec   *opus.Decoder
	phase float64
	freq  float64
}

func newOpusPeer(freq float64) (*opusPeer, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("new encoder: %w", err)
	}
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	return &opusPeer{enc: enc, dec: dec, freq: freq}, nil
}

// nextFrame synthesizes, encodes, and decodes one frameSize-sample PCM16
// interleaved-stereo frame.
func (p *opusPeer) nextFrame() []byte {
	pcmIn := make([]int16, frameSize*channels)
	for i := 0; i < frameSize; i++ {
		sample := int16(math.Sin(p.phase) * 0.25 * math.MaxInt16)
		pcmIn[i*channels] = sample
		pcmIn[i*channels+1] = sample
		p.phase += 2 * math.Pi * p.freq / sampleRate
		if p.phase > 2*math.Pi {
			p.phase -= 2 * math.Pi
		}
	}

	encoded := make([]byte, 1275)
	n, err := p.enc.Encode(pcmIn, encoded)
	if err != nil {
		log.Printf("opus encode: %v", err)
		return make([]byte, frameSize*channels*2)
	}

	pcmOut := make([]int16, frameSize*channels)
	if _, err := p.dec.Decode(encoded[:n], pcmOut); err != nil {
		log.Printf("opus decode: %v", err)
	}

	out := make([]byte, frameSize*channels*2)
	for i, s := range pcmOut {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// fill is a ring-buffer PullFunc: it fills dst with whole frameSize
// frames, looping nextFrame as needed.
func (p *opusPeer) fill(dst []byte) int {
	filled := 0
	for filled < len(dst) {
		frame := p.nextFrame()
		n := copy(dst[filled:], frame)
		filled += n
	}
	return filled
}

// demoBaseSink is a minimal audiosink.BaseSink for the CLI demo: not live,
// no peer latency, no pipeline-wide master clock (so the sink free-runs
// its own provided clock, matching a standalone playback demo rather than
// a full pipeline).
type demoBaseSink struct{}

func newDemoBaseSink() *demoBaseSink { return &demoBaseSink{} }

func (d *demoBaseSink) QueryLatency() (bool, bool, time.Duration, time.Duration) {
	return false, false, 0, 0
}
func (d *demoBaseSink) WaitPreroll() audiosink.FlowResult { return audiosink.FlowOK }
func (d *demoBaseSink) WaitEos(time.Duration, <-chan struct{}) audiosink.FlowResult {
	return audiosink.FlowOK
}
func (d *demoBaseSink) GetLatency() time.Duration             { return 0 }
func (d *demoBaseSink) GetBaseTime() time.Duration            { return 0 }
func (d *demoBaseSink) PipelineClock() audiosink.PipelineClock { return nil }
func (d *demoBaseSink) PostMessage(m audiosink.ElementMessage) {
	log.Printf("[sinkdemo] %s: %s", m.Kind, m.Text)
}
