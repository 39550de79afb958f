package eeg

import (
	"sync"
	"testing"
)

type fakeGateway struct {
	mu         sync.Mutex
	subscribed bool
	packets    [][]byte
	failNext   bool
}

func (g *fakeGateway) Subscribed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.subscribed
}

func (g *fakeGateway) Deliver(packet []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failNext {
		g.failNext = false
		return errDeliver
	}
	buf := make([]byte, len(packet))
	copy(buf, packet)
	g.packets = append(g.packets, buf)
	return nil
}

var errDeliver = &deliverError{}

type deliverError struct{}

func (*deliverError) Error() string { return "delivery failed" }

func newTestEngine(g *fakeGateway) *Engine {
	synth := NewWaveformSynthesizer(DefaultChannelProfiles(), 0, flatNoise{})
	return NewEngine(g, NewSampleClock(), synth, NewStimulusController(), nil)
}

// tick mirrors one iteration of the cooperative loop: descriptor obligation
// first, then sample production.
func (e *Engine) tick() {
	e.serviceConfigPacket()
	e.onTick()
}

func startStreamingFor(e *Engine) {
	e.apply(Event{Kind: EventPeerConnected})
	e.apply(Event{Kind: EventCapacityNegotiated, MTU: RequiredMTU})
	e.apply(Event{Kind: EventCommand, Command: Command{Opcode: CmdStartStreaming}})
}

func TestStartRequestLatchesUntilCapacitySufficient(t *testing.T) {
	g := &fakeGateway{subscribed: true}
	e := newTestEngine(g)

	e.apply(Event{Kind: EventPeerConnected})
	e.apply(Event{Kind: EventCommand, Command: Command{Opcode: CmdStartStreaming}})

	if e.state == StateStreaming {
		t.Fatal("Streaming must not start before capacity is negotiated")
	}
	if !e.startLatched {
		t.Fatal("Expected start request to be latched")
	}

	// Insufficient capacity keeps the latch armed.
	e.apply(Event{Kind: EventCapacityNegotiated, MTU: RequiredMTU - 1})
	if e.state == StateStreaming {
		t.Fatal("Streaming must not start below the required MTU")
	}

	// Sufficient capacity auto-resumes with no further command.
	e.apply(Event{Kind: EventCapacityNegotiated, MTU: RequiredMTU})
	if e.state != StateStreaming {
		t.Fatalf("Expected auto-resume into streaming, got %v", e.state)
	}
	if e.startLatched {
		t.Error("Expected latch cleared after start")
	}
}

func TestStartWhileReadyStartsImmediately(t *testing.T) {
	g := &fakeGateway{subscribed: true}
	e := newTestEngine(g)

	e.apply(Event{Kind: EventPeerConnected})
	e.apply(Event{Kind: EventCapacityNegotiated, MTU: 512})
	if e.state != StateReady {
		t.Fatalf("Expected ready state, got %v", e.state)
	}

	e.apply(Event{Kind: EventCommand, Command: Command{Opcode: CmdStartStreaming}})
	if e.state != StateStreaming {
		t.Fatalf("Expected streaming state, got %v", e.state)
	}
	if !e.configPending {
		t.Error("Expected device config obligation marked on stream start")
	}
	if e.sessionID == "" {
		t.Error("Expected a session ID on stream start")
	}
}

func TestStopReturnsToReady(t *testing.T) {
	g := &fakeGateway{subscribed: true}
	e := newTestEngine(g)
	startStreamingFor(e)

	for i := 0; i < 10; i++ {
		e.tick()
	}
	e.stim.Trigger(1, TriggerPulseWidthSamples)

	e.apply(Event{Kind: EventCommand, Command: Command{Opcode: CmdStopStreaming}})
	if e.state != StateReady {
		t.Fatalf("Expected ready state after stop, got %v", e.state)
	}
	if e.assembler.Fill() != 0 {
		t.Error("Expected partial chunk discarded on stop")
	}
	if e.stim.Active() {
		t.Error("Expected stimulus reset on stop")
	}
}

func TestDisconnectResetsEverything(t *testing.T) {
	g := &fakeGateway{subscribed: true}
	e := newTestEngine(g)
	startStreamingFor(e)

	for i := 0; i < 10; i++ {
		e.tick()
	}
	e.stim.Trigger(1, TriggerPulseWidthSamples)

	e.apply(Event{Kind: EventPeerDisconnected})

	if e.state != StateDisconnected {
		t.Fatalf("Expected disconnected state, got %v", e.state)
	}
	if e.negotiatedMTU != DefaultMTU {
		t.Errorf("Expected MTU reset to %d, got %d", DefaultMTU, e.negotiatedMTU)
	}
	if e.startLatched || e.configPending {
		t.Error("Expected latched request and config obligation cleared")
	}
	if e.assembler.Fill() != 0 {
		t.Error("Expected assembler position reset")
	}
	if e.stim.Active() {
		t.Error("Expected stimulus reset to idle")
	}
}

func TestConnectClearsStaleLatch(t *testing.T) {
	g := &fakeGateway{subscribed: true}
	e := newTestEngine(g)

	e.apply(Event{Kind: EventCommand, Command: Command{Opcode: CmdStartStreaming}})
	e.apply(Event{Kind: EventPeerConnected})
	if e.startLatched {
		t.Error("Expected peer connect to clear a stale latched start")
	}
	e.apply(Event{Kind: EventCapacityNegotiated, MTU: RequiredMTU})
	if e.state != StateReady {
		t.Errorf("Expected ready state without auto-start, got %v", e.state)
	}
}

func TestDescriptorPrecedesChunksWithIncreasingIndices(t *testing.T) {
	g := &fakeGateway{subscribed: true}
	e := newTestEngine(g)
	startStreamingFor(e)

	for i := 0; i < 3*SamplesPerChunk; i++ {
		e.tick()
	}

	if len(g.packets) != 4 {
		t.Fatalf("Expected 4 packets (config + 3 chunks), got %d", len(g.packets))
	}
	if g.packets[0][0] != PacketTypeDeviceConfig {
		t.Fatalf("Expected first packet tag 0xDD, got 0x%02x", g.packets[0][0])
	}
	channels, _, err := DecodeDeviceConfigPacket(g.packets[0])
	if err != nil || channels != ChannelCount {
		t.Fatalf("Bad device config packet: channels=%d err=%v", channels, err)
	}
	for i, want := range []uint16{0, 25, 50} {
		startIndex, _, err := DecodeChunkPacket(g.packets[i+1])
		if err != nil {
			t.Fatalf("Chunk %d failed to decode: %v", i, err)
		}
		if startIndex != want {
			t.Errorf("Chunk %d: expected start index %d, got %d", i, want, startIndex)
		}
	}
}

func TestConfigObligationWaitsForSubscription(t *testing.T) {
	g := &fakeGateway{subscribed: false}
	e := newTestEngine(g)
	startStreamingFor(e)

	for i := 0; i < SamplesPerChunk; i++ {
		e.tick()
	}
	if len(g.packets) != 0 {
		t.Fatalf("Expected no packets while unsubscribed, got %d", len(g.packets))
	}
	if !e.configPending {
		t.Fatal("Expected config obligation to stay pending")
	}
	if e.chunksDropped != 1 {
		t.Errorf("Expected 1 dropped chunk, got %d", e.chunksDropped)
	}

	// Subscription enables delivery; obligation is satisfied exactly once.
	g.mu.Lock()
	g.subscribed = true
	g.mu.Unlock()
	for i := 0; i < SamplesPerChunk; i++ {
		e.tick()
	}
	if len(g.packets) != 2 {
		t.Fatalf("Expected config + 1 chunk after subscribing, got %d packets", len(g.packets))
	}
	if g.packets[0][0] != PacketTypeDeviceConfig {
		t.Errorf("Expected config packet first, got tag 0x%02x", g.packets[0][0])
	}
	if e.configPending {
		t.Error("Expected config obligation cleared after delivery")
	}
}

func TestConfigDeliveryFailureRetries(t *testing.T) {
	g := &fakeGateway{subscribed: true, failNext: true}
	e := newTestEngine(g)
	startStreamingFor(e)

	e.serviceConfigPacket()
	if !e.configPending {
		t.Fatal("Expected config obligation retained after failed delivery")
	}
	e.serviceConfigPacket()
	if e.configPending {
		t.Fatal("Expected config obligation cleared after retry")
	}
	if len(g.packets) != 1 || g.packets[0][0] != PacketTypeDeviceConfig {
		t.Fatalf("Expected exactly one config packet, got %d", len(g.packets))
	}
}

func TestTriggerMidStreamMarksSamplesAndOverlaysSignal(t *testing.T) {
	g := &fakeGateway{subscribed: true}
	triggered := newTestEngine(g)
	startStreamingFor(triggered)

	gb := &fakeGateway{subscribed: true}
	baseline := newTestEngine(gb)
	startStreamingFor(baseline)

	// Flush the first chunk on both engines.
	for i := 0; i < SamplesPerChunk; i++ {
		triggered.tick()
		baseline.tick()
	}

	// Trigger arrives through the command surface, as the peer would send it.
	triggered.HandleCommand([]byte{CmdTriggerPulse, 1})

	for i := 0; i < 5*SamplesPerChunk; i++ {
		triggered.tick()
		baseline.tick()
	}

	// Second chunk carries the pulse flag on exactly the first 6 samples.
	_, samples, err := DecodeChunkPacket(g.packets[2])
	if err != nil {
		t.Fatalf("Failed to decode chunk: %v", err)
	}
	for i := 0; i < TriggerPulseWidthSamples; i++ {
		if samples[i].TriggerState != 1 {
			t.Errorf("Sample %d: expected trigger state 1, got %d", i, samples[i].TriggerState)
		}
	}
	for i := TriggerPulseWidthSamples; i < SamplesPerChunk; i++ {
		if samples[i].TriggerState != 0 {
			t.Errorf("Sample %d: expected trigger state 0, got %d", i, samples[i].TriggerState)
		}
	}

	// The evoked peak lands ~300 ms after the trigger: table index 75 is
	// sample counter 25+75=100, i.e. sample 0 of the fifth chunk.
	_, peak, err := DecodeChunkPacket(g.packets[5])
	if err != nil {
		t.Fatalf("Failed to decode peak chunk: %v", err)
	}
	_, base, err := DecodeChunkPacket(gb.packets[5])
	if err != nil {
		t.Fatalf("Failed to decode baseline chunk: %v", err)
	}
	diff := int(peak[0].Signals[0]) - int(base[0].Signals[0])
	want := int(float64(evokedWaveformUV[75]) / MicrovoltPerCount)
	if diff < want-1 || diff > want+1 {
		t.Errorf("Expected evoked overlay of ~%d counts at the peak, got %d", want, diff)
	}
	if diff < 300 {
		t.Errorf("Expected a full-scale evoked contribution, got %d counts", diff)
	}
}

func TestSubscriptionEventWakesPendingConfigDelivery(t *testing.T) {
	g := &fakeGateway{subscribed: false}
	e := newTestEngine(g)
	startStreamingFor(e)

	e.apply(Event{Kind: EventSubscriptionChanged})
	if e.state != StateStreaming {
		t.Fatalf("Subscription event must not change state, got %v", e.state)
	}
	e.serviceConfigPacket()
	if !e.configPending || len(g.packets) != 0 {
		t.Fatal("Expected config obligation still pending while unsubscribed")
	}

	g.mu.Lock()
	g.subscribed = true
	g.mu.Unlock()
	e.apply(Event{Kind: EventSubscriptionChanged})
	e.serviceConfigPacket()

	if e.configPending {
		t.Error("Expected config obligation cleared after the wake")
	}
	if len(g.packets) != 1 || g.packets[0][0] != PacketTypeDeviceConfig {
		t.Fatalf("Expected exactly the config packet, got %d packets", len(g.packets))
	}
}

func TestTicksDroppedOutsideStreaming(t *testing.T) {
	g := &fakeGateway{subscribed: true}
	e := newTestEngine(g)
	e.apply(Event{Kind: EventPeerConnected})

	for i := 0; i < 100; i++ {
		e.tick()
	}
	if len(g.packets) != 0 {
		t.Errorf("Expected no packets while not streaming, got %d", len(g.packets))
	}
	if e.sampleCounter != 0 {
		t.Errorf("Expected sample counter untouched, got %d", e.sampleCounter)
	}
}

func TestSampleClockCoalescesPendingTicks(t *testing.T) {
	c := NewSampleClock()

	c.Tick()
	c.Tick()
	c.Tick()

	if !c.TakeTick() {
		t.Fatal("Expected a pending tick")
	}
	if c.TakeTick() {
		t.Fatal("Expected coalesced ticks to be dropped, not queued")
	}

	c.Tick()
	select {
	case <-c.Pending():
	default:
		t.Fatal("Expected pending channel to signal")
	}
}
