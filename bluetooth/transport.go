package bluetooth

import (
	"fmt"
	"log"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/biosig-match/eeg-dummy-firmware/eeg"
)

// deviceEngine is the slice of the acquisition engine the transport drives.
type deviceEngine interface {
	HandleCommand(data []byte)
	PostEvent(ev eeg.Event)
}

// Transport exposes the emulated acquisition device as a BlueZ GATT
// peripheral: it registers the GATT application and LE advertisement, feeds
// connection/capacity/subscription changes into the engine as events, and
// carries packet delivery for the engine's gateway.
type Transport struct {
	conn        *dbus.Conn
	engine      deviceEngine
	deviceName  string
	adapterPath dbus.ObjectPath

	app    *gattApplication
	advert *advertisement

	stopChan chan struct{}

	mu          sync.Mutex
	peerPath    dbus.ObjectPath
	reportedMTU uint16
}

// NewTransport connects to the system bus and builds the GATT object tree.
// The engine remains unaware of D-Bus; it only sees events and the gateway.
// Bind the engine before Start.
func NewTransport(deviceName, adapter string) (*Transport, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system D-Bus: %w", err)
	}

	t := &Transport{
		conn:        conn,
		deviceName:  deviceName,
		adapterPath: dbus.ObjectPath("/org/bluez/" + adapter),
		stopChan:    make(chan struct{}),
	}
	t.app = newGattApplication(conn, t.onCommandWrite, t.onNotifyChanged)
	t.advert = &advertisement{conn: conn, localName: deviceName}
	return t, nil
}

// BindEngine attaches the acquisition engine the transport feeds. The engine
// takes the transport as its gateway, so construction is two-phase.
func (t *Transport) BindEngine(engine *eeg.Engine) {
	t.engine = engine
}

// Subscribed reports whether the central has enabled notifications on the
// data characteristic.
func (t *Transport) Subscribed() bool {
	return t.app.tx.Notifying()
}

// Deliver pushes one packet to the central.
func (t *Transport) Deliver(packet []byte) error {
	return t.app.tx.Notify(packet)
}

// Start exports and registers the GATT application and advertisement, then
// begins watching for connection changes.
func (t *Transport) Start() error {
	log.Println("BLE_GATT: exporting GATT application")
	if err := t.app.export(); err != nil {
		return fmt.Errorf("failed to export GATT application: %w", err)
	}
	if err := t.advert.export(); err != nil {
		return fmt.Errorf("failed to export advertisement: %w", err)
	}

	adapter := t.conn.Object(BLUEZ_BUS_NAME, t.adapterPath)
	if err := adapter.Call(BLUEZ_GATT_MANAGER_IFACE+".RegisterApplication", 0,
		dbus.ObjectPath(APP_OBJECT_PATH), map[string]dbus.Variant{}).Store(); err != nil {
		return fmt.Errorf("failed to register GATT application: %w", err)
	}
	log.Println("BLE_GATT: GATT application registered")

	if err := t.advert.register(adapter); err != nil {
		return fmt.Errorf("failed to register advertisement: %w", err)
	}
	log.Printf("BLE_ADV: advertising started as %q", t.deviceName)

	if err := t.conn.AddMatchSignal(
		dbus.WithMatchInterface(DBUS_PROPERTIES_IFACE),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchArg(0, BLUEZ_DEVICE_INTERFACE),
	); err != nil {
		return fmt.Errorf("failed to add device signal match: %w", err)
	}

	go t.watchDeviceSignals()
	return nil
}

// Stop unregisters the application and advertisement.
func (t *Transport) Stop() {
	close(t.stopChan)

	adapter := t.conn.Object(BLUEZ_BUS_NAME, t.adapterPath)
	if err := t.advert.unregister(adapter); err != nil {
		log.Printf("BLE_ADV: failed to unregister advertisement: %v", err)
	}
	if err := adapter.Call(BLUEZ_GATT_MANAGER_IFACE+".UnregisterApplication", 0,
		dbus.ObjectPath(APP_OBJECT_PATH)).Store(); err != nil {
		log.Printf("BLE_GATT: failed to unregister application: %v", err)
	}
	log.Println("BLE_GATT: transport stopped")
}

// onCommandWrite handles a write to the command characteristic. The ATT MTU
// travels in the write options, which is the peripheral's view of the
// capacity negotiation outcome.
func (t *Transport) onCommandWrite(value []byte, options map[string]dbus.Variant) {
	if v, ok := options["mtu"]; ok {
		if mtu, ok := v.Value().(uint16); ok {
			t.reportMTU(mtu)
		}
	}
	t.engine.HandleCommand(value)
}

func (t *Transport) onNotifyChanged(enabled bool) {
	if enabled {
		t.engine.PostEvent(eeg.Event{Kind: eeg.EventSubscriptionChanged})
	}
}

func (t *Transport) reportMTU(mtu uint16) {
	t.mu.Lock()
	if t.reportedMTU == mtu {
		t.mu.Unlock()
		return
	}
	t.reportedMTU = mtu
	t.mu.Unlock()

	log.Printf("BLE_GATT: ATT MTU reported: %d (required >= %d)", mtu, eeg.RequiredMTU)
	t.engine.PostEvent(eeg.Event{Kind: eeg.EventCapacityNegotiated, MTU: mtu})
}

// watchDeviceSignals tracks Device1.Connected transitions and maps them onto
// engine peer events.
func (t *Transport) watchDeviceSignals() {
	signals := make(chan *dbus.Signal, 32)
	t.conn.Signal(signals)
	defer t.conn.RemoveSignal(signals)

	for {
		select {
		case <-t.stopChan:
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			t.handleDeviceSignal(sig)
		}
	}
}

func (t *Transport) handleDeviceSignal(sig *dbus.Signal) {
	if sig.Name != DBUS_PROPERTIES_IFACE+".PropertiesChanged" || len(sig.Body) < 2 {
		return
	}
	iface, ok := sig.Body[0].(string)
	if !ok || iface != BLUEZ_DEVICE_INTERFACE {
		return
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}
	v, ok := changed["Connected"]
	if !ok {
		return
	}
	connected, ok := v.Value().(bool)
	if !ok {
		return
	}

	if connected {
		t.mu.Lock()
		t.peerPath = sig.Path
		t.reportedMTU = 0
		t.mu.Unlock()
		log.Printf("BLE_GATT: central connected (%s)", sig.Path)
		t.engine.PostEvent(eeg.Event{Kind: eeg.EventPeerConnected})
		return
	}

	t.mu.Lock()
	known := t.peerPath == "" || t.peerPath == sig.Path
	if known {
		t.peerPath = ""
		t.reportedMTU = 0
	}
	t.mu.Unlock()
	if !known {
		return
	}
	log.Printf("BLE_GATT: central disconnected (%s), advertising continues", sig.Path)
	t.engine.PostEvent(eeg.Event{Kind: eeg.EventPeerDisconnected})
}
