package eeg

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// State is the streaming lifecycle state of the device.
type State int

const (
	StateDisconnected State = iota
	StateAwaitingCapacity
	StateReady
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAwaitingCapacity:
		return "awaiting_capacity"
	case StateReady:
		return "ready"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// EventKind identifies a transport or command event fed to the engine.
type EventKind int

const (
	EventPeerConnected EventKind = iota
	EventPeerDisconnected
	EventCapacityNegotiated
	EventCommand
	EventSubscriptionChanged
)

// Event is the explicit transport event enumeration consumed by the engine's
// transition function, so the state machine is testable without any
// transport behind it.
type Event struct {
	Kind    EventKind
	MTU     uint16
	Command Command
}

// Gateway is the narrow delivery boundary to the transport: whether the peer
// has enabled push delivery, and a single packet send.
type Gateway interface {
	Subscribed() bool
	Deliver(packet []byte) error
}

// Publisher receives engine lifecycle events for monitoring surfaces. May be
// nil.
type Publisher interface {
	Publish(eventType string, payload map[string]interface{})
}

// Engine owns the streaming state machine and runs the cooperative main
// loop: service a pending device-config obligation, consume a pending tick
// into one sample, emit a chunk when the buffer fills. All of that happens
// strictly sequentially on one goroutine; the only state shared with other
// goroutines is the clock's tick slot and the stimulus controller.
type Engine struct {
	gateway   Gateway
	publisher Publisher
	clock     *SampleClock
	stim      *StimulusController
	synth     *WaveformSynthesizer

	events   chan Event
	stopChan chan struct{}

	mu            sync.RWMutex
	state         State
	negotiatedMTU uint16
	startLatched  bool
	configPending bool
	sampleCounter uint16
	assembler     ChunkAssembler
	sessionID     string
	chunksSent    uint64
	chunksDropped uint64
}

// NewEngine creates an engine around the given collaborators. publisher may
// be nil.
func NewEngine(gateway Gateway, clock *SampleClock, synth *WaveformSynthesizer, stim *StimulusController, publisher Publisher) *Engine {
	return &Engine{
		gateway:       gateway,
		publisher:     publisher,
		clock:         clock,
		stim:          stim,
		synth:         synth,
		events:        make(chan Event, 16),
		stopChan:      make(chan struct{}),
		state:         StateDisconnected,
		negotiatedMTU: DefaultMTU,
	}
}

// Clock returns the engine's sample clock, for the tick source to drive.
func (e *Engine) Clock() *SampleClock {
	return e.clock
}

// Start runs the engine loop.
func (e *Engine) Start() {
	log.Println("ENGINE: starting acquisition loop")
	go e.run()
}

// Stop stops the engine loop.
func (e *Engine) Stop() {
	log.Println("ENGINE: stopping acquisition loop")
	close(e.stopChan)
}

// PostEvent feeds a transport event to the engine loop.
func (e *Engine) PostEvent(ev Event) {
	select {
	case e.events <- ev:
	case <-e.stopChan:
	}
}

// HandleCommand decodes and dispatches a control write from the peer.
// Malformed or unknown writes are ignored without error. Trigger commands
// take effect immediately from this goroutine through the stimulus
// controller's own lock; start/stop are applied on the engine loop.
func (e *Engine) HandleCommand(data []byte) {
	cmd, ok := ParseCommand(data)
	if !ok {
		return
	}
	if cmd.Opcode == CmdTriggerPulse {
		log.Printf("CMD: trigger pulse requested, class=%d", cmd.TriggerClass)
		e.stim.Trigger(cmd.TriggerClass, TriggerPulseWidthSamples)
		e.publish("stimulus/triggered", map[string]interface{}{
			"class": cmd.TriggerClass,
		})
		return
	}
	e.PostEvent(Event{Kind: EventCommand, Command: cmd})
}

func (e *Engine) run() {
	for {
		select {
		case <-e.stopChan:
			return
		case ev := <-e.events:
			e.apply(ev)
			e.serviceConfigPacket()
		case <-e.clock.Pending():
			e.serviceConfigPacket()
			e.onTick()
		}
	}
}

// apply is the state machine transition function.
func (e *Engine) apply(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev.Kind {
	case EventPeerConnected:
		e.state = StateAwaitingCapacity
		e.negotiatedMTU = DefaultMTU
		e.startLatched = false
		log.Println("ENGINE: peer connected, awaiting capacity negotiation")
		e.publish("peer/connected", nil)

	case EventPeerDisconnected:
		e.resetAllLocked()
		log.Println("ENGINE: peer disconnected, full reset")
		e.publish("peer/disconnected", nil)

	case EventCapacityNegotiated:
		if e.state == StateDisconnected {
			return
		}
		e.negotiatedMTU = ev.MTU
		if ev.MTU < RequiredMTU {
			log.Printf("ENGINE: MTU %d below required %d, streaming withheld", ev.MTU, RequiredMTU)
			return
		}
		log.Printf("ENGINE: MTU negotiated: %d (required >= %d)", ev.MTU, RequiredMTU)
		e.publish("capacity/negotiated", map[string]interface{}{"mtu": ev.MTU})
		if e.state == StateAwaitingCapacity {
			e.state = StateReady
			if e.startLatched {
				e.startStreamingLocked()
			}
		}

	case EventCommand:
		switch ev.Command.Opcode {
		case CmdStartStreaming:
			e.requestStartLocked()
		case CmdStopStreaming:
			e.requestStopLocked()
		}

	case EventSubscriptionChanged:
		// No state transition. Subscription status is read from the gateway;
		// the event only wakes the loop so a pending config packet goes out
		// promptly.
	}
}

func (e *Engine) requestStartLocked() {
	e.startLatched = true
	switch e.state {
	case StateReady:
		e.startStreamingLocked()
	case StateStreaming:
		// already running
	default:
		log.Printf("CMD: start streaming requested, waiting for MTU >= %d (current=%d)", RequiredMTU, e.negotiatedMTU)
	}
}

func (e *Engine) startStreamingLocked() {
	e.state = StateStreaming
	e.startLatched = false
	e.sampleCounter = 0
	e.assembler.Reset()
	e.stim.Reset()
	e.configPending = true
	e.sessionID = uuid.NewString()
	log.Printf("CMD: streaming started (MTU=%d, session=%s)", e.negotiatedMTU, e.sessionID)
	e.publish("stream/started", map[string]interface{}{
		"session_id": e.sessionID,
		"mtu":        e.negotiatedMTU,
	})
}

func (e *Engine) requestStopLocked() {
	e.startLatched = false
	if e.state == StateStreaming {
		e.state = StateReady
	}
	e.assembler.Reset()
	e.stim.Reset()
	log.Println("CMD: stop streaming")
	e.publish("stream/stopped", nil)
}

// resetAllLocked is the disconnect reset: every piece of owned state goes
// back to its power-on value.
func (e *Engine) resetAllLocked() {
	e.state = StateDisconnected
	e.negotiatedMTU = DefaultMTU
	e.startLatched = false
	e.configPending = false
	e.sampleCounter = 0
	e.assembler.Reset()
	e.stim.Reset()
}

// serviceConfigPacket delivers the device config packet once streaming has
// begun and the peer has subscribed. Until both hold, the obligation stays
// pending and is retried on every scheduling opportunity.
func (e *Engine) serviceConfigPacket() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.configPending || e.state != StateStreaming {
		return
	}
	if !e.gateway.Subscribed() {
		return
	}
	packet := EncodeDeviceConfigPacket(DefaultElectrodes)
	if err := e.gateway.Deliver(packet); err != nil {
		log.Printf("ENGINE: device config delivery failed, will retry: %v", err)
		return
	}
	e.configPending = false
	log.Println("ENGINE: sent device config packet")
	e.publish("stream/config_sent", map[string]interface{}{
		"channels": ChannelCount,
	})
}

// onTick produces one sample from a consumed clock tick and emits a chunk
// when the buffer fills. Ticks arriving outside Streaming are dropped.
func (e *Engine) onTick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateStreaming {
		return
	}

	frame := e.stim.Step()
	sample := e.synth.Synthesize(e.sampleCounter, frame)
	e.assembler.Append(sample)
	e.sampleCounter++

	if !e.assembler.Full() {
		return
	}
	chunk := e.assembler.Emit(e.sampleCounter)
	if !e.gateway.Subscribed() {
		// No queueing and no retry while unsubscribed.
		e.chunksDropped++
		log.Println("ENGINE: peer not subscribed, dropping chunk")
		return
	}
	packet := EncodeChunkPacket(chunk.StartIndex, &chunk.Samples)
	if err := e.gateway.Deliver(packet); err != nil {
		e.chunksDropped++
		log.Printf("ENGINE: chunk delivery failed: %v", err)
		return
	}
	e.chunksSent++
}

func (e *Engine) publish(eventType string, payload map[string]interface{}) {
	if e.publisher == nil {
		return
	}
	e.publisher.Publish(eventType, payload)
}

// Status returns a snapshot of the engine state for the monitoring surface.
func (e *Engine) Status() map[string]interface{} {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return map[string]interface{}{
		"state":           e.state.String(),
		"negotiated_mtu":  e.negotiatedMTU,
		"required_mtu":    RequiredMTU,
		"start_latched":   e.startLatched,
		"config_pending":  e.configPending,
		"sample_counter":  e.sampleCounter,
		"session_id":      e.sessionID,
		"subscribed":      e.gateway.Subscribed(),
		"stimulus_active": e.stim.Active(),
		"chunks": map[string]interface{}{
			"sent":    e.chunksSent,
			"dropped": e.chunksDropped,
		},
	}
}
