package voicepod

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/haivivi/voicepod/pkg/audio/opusio"
	"github.com/haivivi/voicepod/pkg/audio/resampler"
	"github.com/haivivi/voicepod/pkg/board"
	"github.com/haivivi/voicepod/pkg/iot"
	"github.com/haivivi/voicepod/pkg/ota"
	"github.com/haivivi/voicepod/pkg/protocol"
	"github.com/haivivi/voicepod/pkg/worker"
)

// Event bits the main loop waits on. Producers latch them with an
// atomic OR; the loop reads and clears them with a swap.
const (
	eventSchedule uint32 = 1 << iota
	eventAudioInput
	eventAudioOutput
)

// encodeSampleRate is the rate the cloud expects uplink audio at.
const encodeSampleRate = 16000

// maxIdleSilence is how long the codec output stays powered with
// nothing to play in Idle.
const maxIdleSilence = 10 * time.Second

// Options configures an Application. Board and Protocol are required.
type Options struct {
	Board    board.Board
	Protocol protocol.Protocol

	// Things is the IoT registry. Defaults to an empty manager.
	Things *iot.Manager

	// OTA enables the firmware version check loop when set.
	OTA *ota.Client

	// WakeWord and Processor are the optional capture capabilities.
	// When neither is fitted the input pipeline encodes directly.
	WakeWord  WakeWordDetector
	Processor AudioProcessor

	// FrameDuration is the opus frame duration. Defaults to 60 ms.
	FrameDuration time.Duration

	// Prompts maps alert messages to local prompt blobs.
	Prompts map[string][]byte

	// Logger defaults to the slog-backed logger.
	Logger Logger
}

// Application is the device control core. Create with New, then Start.
type Application struct {
	log   Logger
	board board.Board
	codec board.AudioCodec
	proto protocol.Protocol

	bg     *worker.Background
	things *iot.Manager
	ota    *ota.Client

	wakeWord  WakeWordDetector
	processor AudioProcessor

	frameDuration time.Duration
	prompts       map[string][]byte

	// Event plumbing. bits is latched lock-free from any context; wake
	// has capacity one so signalling never blocks.
	bits atomic.Uint32
	wake chan struct{}
	done chan struct{}

	// mu guards the main task queue, the decode queue, the last output
	// timestamp, and the output-enabled flag.
	mu             sync.Mutex
	mainTasks      []func()
	decodeQueue    [][]byte
	lastOutputTime time.Time
	outputEnabled  bool

	// state is written only on the main loop; atomic so transport
	// callbacks can read it.
	state atomic.Int32

	// aborted is the cooperative cancellation flag for a Speaking turn.
	aborted atomic.Bool

	// voiceDetected mirrors VAD for LED feedback.
	voiceDetected atomic.Bool

	// Main-loop-only session fields.
	keepListening    bool
	decoder          *opusio.Decoder
	encoder          *opusio.Encoder
	decodeSampleRate int

	inputResampler     resampler.Rate
	referenceResampler resampler.Rate
	outputResampler    resampler.Rate

	lastIotStates string

	// now is replaceable in tests.
	now func() time.Time
}

// New creates an Application. Start must be called before use.
func New(opts Options) (*Application, error) {
	if opts.Logger == nil {
		opts.Logger = DefaultLogger()
	}
	if opts.Board == nil {
		return nil, opts.Logger.Errorf("Options.Board is required")
	}
	if opts.Protocol == nil {
		return nil, opts.Logger.Errorf("Options.Protocol is required")
	}
	if opts.Things == nil {
		opts.Things = iot.NewManager()
	}
	if opts.FrameDuration == 0 {
		opts.FrameDuration = 60 * time.Millisecond
	}

	a := &Application{
		log:           opts.Logger,
		board:         opts.Board,
		codec:         opts.Board.AudioCodec(),
		proto:         opts.Protocol,
		bg:            worker.NewBackground(),
		things:        opts.Things,
		ota:           opts.OTA,
		wakeWord:      opts.WakeWord,
		processor:     opts.Processor,
		frameDuration: opts.FrameDuration,
		prompts:       opts.Prompts,
		wake:          make(chan struct{}, 1),
		done:          make(chan struct{}),
		now:           time.Now,
	}
	a.state.Store(int32(StateUnknown))
	return a, nil
}

// DeviceState returns the current state. Safe from any goroutine.
func (a *Application) DeviceState() DeviceState {
	return DeviceState(a.state.Load())
}

// VoiceDetected reports whether VAD currently detects speech; LED
// implementations read it for feedback.
func (a *Application) VoiceDetected() bool {
	return a.voiceDetected.Load()
}

// Schedule enqueues fn to run on the main loop. Safe from any context,
// including codec driver callbacks.
func (a *Application) Schedule(fn func()) {
	a.mu.Lock()
	a.mainTasks = append(a.mainTasks, fn)
	a.mu.Unlock()
	a.signal(eventSchedule)
}

// signal latches an event bit and nudges the main loop. Lock-free; the
// only thing driver callbacks are permitted to do.
func (a *Application) signal(bit uint32) {
	a.bits.Or(bit)
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Start runs the startup sequence: codec and codec callbacks, the main
// loop, network bring-up, the version check, capture capabilities, and
// the transport. It leaves the device in Idle.
func (a *Application) Start() error {
	a.setDeviceState(StateStarting)

	display := a.board.Display()

	// Decode at the codec's native output rate until a channel
	// handshake reconciles it with the server rate.
	a.decodeSampleRate = a.codec.OutputSampleRate()
	decoder, err := opusio.NewDecoder(a.decodeSampleRate, 1)
	if err != nil {
		return a.log.Errorf("start: %w", err)
	}
	a.decoder = decoder

	encoder, err := opusio.NewEncoder(encodeSampleRate, 1, a.frameDuration)
	if err != nil {
		return a.log.Errorf("start: %w", err)
	}
	a.encoder = encoder

	if rate := a.codec.InputSampleRate(); rate != encodeSampleRate {
		if err := a.inputResampler.Configure(rate, encodeSampleRate); err != nil {
			return a.log.Errorf("start: %w", err)
		}
		if err := a.referenceResampler.Configure(rate, encodeSampleRate); err != nil {
			return a.log.Errorf("start: %w", err)
		}
	}

	a.codec.OnInputReady(func() { a.signal(eventAudioInput) })
	a.codec.OnOutputReady(func() { a.signal(eventAudioOutput) })
	if err := a.codec.Start(); err != nil {
		return a.log.Errorf("start codec: %w", err)
	}
	a.mu.Lock()
	a.outputEnabled = true
	a.lastOutputTime = a.now()
	a.mu.Unlock()

	go a.mainLoop()

	if err := a.board.StartNetwork(); err != nil {
		return a.log.Errorf("start network: %w", err)
	}

	if a.ota != nil {
		go a.checkNewVersion()
	}

	if a.processor != nil {
		a.processor.OnOutput(func(pcm []int16) {
			a.submitEncode(pcm)
		})
	}
	if a.wakeWord != nil {
		a.wakeWord.OnVadStateChange(func(speaking bool) {
			a.Schedule(func() {
				if a.DeviceState() != StateListening {
					return
				}
				a.voiceDetected.Store(speaking)
				a.board.Led().OnStateChanged()
			})
		})
		a.wakeWord.OnWakeWordDetected(func(word string) {
			a.Schedule(func() { a.onWakeWordDetected(word) })
		})
		a.wakeWord.StartDetection()
	}

	display.SetStatus(statusInitProtocol)
	a.proto.SetHandler(a.protocolHandler())

	a.Schedule(func() { a.setDeviceState(StateIdle) })
	return nil
}

// Close stops the main loop and the background worker and releases the
// codec.
func (a *Application) Close() error {
	close(a.done)
	a.bg.Close()
	a.bg.WaitForCompletion()
	return a.codec.Close()
}

// mainLoop is the single consumer of event bits. Tasks run serially
// here; everything that touches device state runs here.
func (a *Application) mainLoop() {
	for {
		select {
		case <-a.done:
			return
		case <-a.wake:
		}

		bits := a.bits.Swap(0)
		if bits&eventAudioInput != 0 {
			a.inputAudio()
		}
		if bits&eventAudioOutput != 0 {
			a.outputAudio()
		}
		if bits&eventSchedule != 0 {
			a.mu.Lock()
			tasks := a.mainTasks
			a.mainTasks = nil
			a.mu.Unlock()
			for _, task := range tasks {
				task()
			}
		}
	}
}

// protocolHandler wires transport callbacks into the core. Anything
// touching device state re-enters through Schedule.
func (a *Application) protocolHandler() *protocol.Handler {
	return &protocol.Handler{
		OnNetworkError: func(message string) {
			a.Schedule(func() { a.alert("Error", message) })
		},
		OnIncomingAudio: func(frame []byte) {
			if a.DeviceState() != StateSpeaking {
				// Late packets from a previous turn; drop.
				return
			}
			a.mu.Lock()
			a.decodeQueue = append(a.decodeQueue, frame)
			a.mu.Unlock()
		},
		// Both transports fire this from inside OpenAudioChannel, which
		// the core only calls from scheduled tasks, so the body already
		// runs on the main loop and must complete before the caller
		// transitions to Listening.
		OnAudioChannelOpened: func() {
			a.board.SetPowerSaveMode(false)
			serverRate := a.proto.ServerSampleRate()
			if serverRate != a.codec.OutputSampleRate() {
				a.log.WarnPrintf("server sample rate %d != codec output rate %d; resampling may degrade quality",
					serverRate, a.codec.OutputSampleRate())
			}
			a.setDecodeSampleRate(serverRate)
			a.lastIotStates = ""
			if err := a.proto.SendIotDescriptors(a.things.DescriptorsJSON()); err != nil {
				a.log.WarnPrintf("send iot descriptors: %v", err)
			}
		},
		OnAudioChannelClosed: func() {
			a.board.SetPowerSaveMode(true)
			a.Schedule(func() {
				a.board.Display().SetChatMessage("", "")
				a.setDeviceState(StateIdle)
			})
		},
		OnIncomingMessage: func(msg *protocol.ServerMessage) {
			a.handleServerMessage(msg)
		},
	}
}

// setDeviceState performs a state transition with its side effects.
// Main loop only. Illegal transitions are ignored with a warning; a
// same-state call is a no-op.
func (a *Application) setDeviceState(next DeviceState) {
	cur := a.DeviceState()
	if cur == next {
		return
	}
	if !legalTransition(cur, next) {
		a.log.WarnPrintf("ignoring illegal transition %s -> %s", cur, next)
		return
	}

	a.state.Store(int32(next))
	a.log.InfoPrintf("STATE: %s", next)

	// Nothing encoded or decoded for the previous state may bleed into
	// the new one.
	a.bg.WaitForCompletion()

	display := a.board.Display()
	a.board.Led().OnStateChanged()
	switch next {
	case StateUnknown, StateIdle:
		display.SetStatus(statusIdle)
		display.SetEmotion("neutral")
		if a.processor != nil {
			a.processor.Stop()
		}
	case StateConnecting:
		display.SetStatus(statusConnecting)
	case StateListening:
		display.SetStatus(statusListening)
		display.SetEmotion("neutral")
		a.resetDecoder()
		if err := a.encoder.Reset(); err != nil {
			a.log.ErrorPrintf("reset encoder: %v", err)
		}
		if a.processor != nil {
			a.processor.Start()
		}
		a.updateIotStates()
	case StateSpeaking:
		display.SetStatus(statusSpeaking)
		a.resetDecoder()
		if a.processor != nil {
			a.processor.Stop()
		}
	}
}

// updateIotStates publishes thing states, suppressing a payload
// identical to the last one sent.
func (a *Application) updateIotStates() {
	states := a.things.StatesJSON()
	if states == a.lastIotStates {
		return
	}
	a.lastIotStates = states
	if err := a.proto.SendIotStates(states); err != nil {
		a.log.WarnPrintf("send iot states: %v", err)
	}
}

// Display status strings, matching the device's shipped UI language.
const (
	statusIdle         = "待命"
	statusConnecting   = "连接中..."
	statusListening    = "聆听中..."
	statusSpeaking     = "说话中..."
	statusInitProtocol = "初始化协议"
	statusUpgradeFail  = "更新失败"
)
