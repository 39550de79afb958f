package bluetooth

import (
	"log"
	"sync"

	"github.com/godbus/dbus/v5"
)

// objectProperties is the property tree BlueZ reads through
// org.freedesktop.DBus.Properties and GetManagedObjects.
type objectProperties map[string]map[string]dbus.Variant

// propsHandler answers Properties calls for one exported object.
type propsHandler struct {
	props objectProperties
}

func (p *propsHandler) Get(iface, name string) (dbus.Variant, *dbus.Error) {
	if m, ok := p.props[iface]; ok {
		if v, ok := m[name]; ok {
			return v, nil
		}
	}
	return dbus.Variant{}, dbus.NewError("org.freedesktop.DBus.Error.InvalidArgs", nil)
}

func (p *propsHandler) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if m, ok := p.props[iface]; ok {
		return m, nil
	}
	return nil, dbus.NewError("org.freedesktop.DBus.Error.InvalidArgs", nil)
}

func (p *propsHandler) Set(iface, name string, value dbus.Variant) *dbus.Error {
	return dbus.NewError("org.freedesktop.DBus.Error.PropertyReadOnly", nil)
}

// gattApplication is the object tree registered with BlueZ's GattManager1:
// one service with the command RX characteristic and the data TX
// characteristic.
type gattApplication struct {
	conn *dbus.Conn
	rx   *rxCharacteristic
	tx   *txCharacteristic
}

func newGattApplication(conn *dbus.Conn, onWrite func(value []byte, options map[string]dbus.Variant), onNotifyChanged func(enabled bool)) *gattApplication {
	return &gattApplication{
		conn: conn,
		rx:   &rxCharacteristic{onWrite: onWrite},
		tx:   &txCharacteristic{conn: conn, onNotifyChanged: onNotifyChanged},
	}
}

// GetManagedObjects implements org.freedesktop.DBus.ObjectManager for the
// application root; BlueZ walks this to discover the GATT tree.
func (a *gattApplication) GetManagedObjects() (map[dbus.ObjectPath]objectProperties, *dbus.Error) {
	return map[dbus.ObjectPath]objectProperties{
		SERVICE_OBJECT_PATH: serviceProperties(),
		RX_OBJECT_PATH:      rxProperties(),
		TX_OBJECT_PATH:      txProperties(),
	}, nil
}

func serviceProperties() objectProperties {
	return objectProperties{
		BLUEZ_GATT_SERVICE_IFACE: {
			"UUID":    dbus.MakeVariant(EEG_SERVICE_UUID),
			"Primary": dbus.MakeVariant(true),
		},
	}
}

func rxProperties() objectProperties {
	return objectProperties{
		BLUEZ_GATT_CHRC_IFACE: {
			"UUID":    dbus.MakeVariant(COMMAND_RX_CHARACTERISTIC_UUID),
			"Service": dbus.MakeVariant(dbus.ObjectPath(SERVICE_OBJECT_PATH)),
			"Flags":   dbus.MakeVariant([]string{"write", "write-without-response"}),
		},
	}
}

func txProperties() objectProperties {
	return objectProperties{
		BLUEZ_GATT_CHRC_IFACE: {
			"UUID":    dbus.MakeVariant(DATA_TX_CHARACTERISTIC_UUID),
			"Service": dbus.MakeVariant(dbus.ObjectPath(SERVICE_OBJECT_PATH)),
			"Flags":   dbus.MakeVariant([]string{"notify"}),
		},
	}
}

// export places the application tree on the bus.
func (a *gattApplication) export() error {
	if err := a.conn.Export(a, APP_OBJECT_PATH, DBUS_OBJECT_MANAGER_IFACE); err != nil {
		return err
	}
	if err := a.conn.Export(&propsHandler{props: serviceProperties()}, SERVICE_OBJECT_PATH, DBUS_PROPERTIES_IFACE); err != nil {
		return err
	}
	if err := a.conn.Export(a.rx, RX_OBJECT_PATH, BLUEZ_GATT_CHRC_IFACE); err != nil {
		return err
	}
	if err := a.conn.Export(&propsHandler{props: rxProperties()}, RX_OBJECT_PATH, DBUS_PROPERTIES_IFACE); err != nil {
		return err
	}
	if err := a.conn.Export(a.tx, TX_OBJECT_PATH, BLUEZ_GATT_CHRC_IFACE); err != nil {
		return err
	}
	if err := a.conn.Export(&propsHandler{props: txProperties()}, TX_OBJECT_PATH, DBUS_PROPERTIES_IFACE); err != nil {
		return err
	}
	return nil
}

// rxCharacteristic receives control opcode writes from the central.
type rxCharacteristic struct {
	onWrite func(value []byte, options map[string]dbus.Variant)
}

func (c *rxCharacteristic) WriteValue(value []byte, options map[string]dbus.Variant) *dbus.Error {
	c.onWrite(value, options)
	return nil
}

func (c *rxCharacteristic) ReadValue(options map[string]dbus.Variant) ([]byte, *dbus.Error) {
	return nil, dbus.NewError("org.bluez.Error.NotPermitted", nil)
}

func (c *rxCharacteristic) StartNotify() *dbus.Error {
	return dbus.NewError("org.bluez.Error.NotSupported", nil)
}

func (c *rxCharacteristic) StopNotify() *dbus.Error {
	return dbus.NewError("org.bluez.Error.NotSupported", nil)
}

// txCharacteristic pushes config and chunk packets as notifications. The
// central's CCCD write surfaces here as StartNotify/StopNotify.
type txCharacteristic struct {
	conn            *dbus.Conn
	onNotifyChanged func(enabled bool)

	mu        sync.Mutex
	notifying bool
}

func (c *txCharacteristic) WriteValue(value []byte, options map[string]dbus.Variant) *dbus.Error {
	return dbus.NewError("org.bluez.Error.NotPermitted", nil)
}

func (c *txCharacteristic) ReadValue(options map[string]dbus.Variant) ([]byte, *dbus.Error) {
	return nil, dbus.NewError("org.bluez.Error.NotPermitted", nil)
}

func (c *txCharacteristic) StartNotify() *dbus.Error {
	c.mu.Lock()
	c.notifying = true
	c.mu.Unlock()
	log.Println("BLE_GATT: notifications enabled")
	c.onNotifyChanged(true)
	return nil
}

func (c *txCharacteristic) StopNotify() *dbus.Error {
	c.mu.Lock()
	c.notifying = false
	c.mu.Unlock()
	log.Println("BLE_GATT: notifications disabled")
	c.onNotifyChanged(false)
	return nil
}

func (c *txCharacteristic) Notifying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notifying
}

// Notify pushes one packet to the subscribed central via a PropertiesChanged
// signal on the Value property.
func (c *txCharacteristic) Notify(packet []byte) error {
	return c.conn.Emit(
		TX_OBJECT_PATH,
		DBUS_PROPERTIES_IFACE+".PropertiesChanged",
		BLUEZ_GATT_CHRC_IFACE,
		map[string]dbus.Variant{"Value": dbus.MakeVariant(packet)},
		[]string{},
	)
}
