package bluetooth

import (
	"log"

	"github.com/godbus/dbus/v5"
)

// advertisement is the LEAdvertisement1 object registered with BlueZ so
// centrals can discover the emulated device.
type advertisement struct {
	conn      *dbus.Conn
	localName string
}

func advertisementProperties(localName string) objectProperties {
	return objectProperties{
		BLUEZ_LE_ADVERT_IFACE: {
			"Type":         dbus.MakeVariant("peripheral"),
			"ServiceUUIDs": dbus.MakeVariant([]string{EEG_SERVICE_UUID}),
			"LocalName":    dbus.MakeVariant(localName),
			"Discoverable": dbus.MakeVariant(true),
		},
	}
}

// Release is called by BlueZ when the advertisement is unregistered.
func (a *advertisement) Release() *dbus.Error {
	log.Println("BLE_ADV: advertisement released by BlueZ")
	return nil
}

func (a *advertisement) export() error {
	if err := a.conn.Export(a, ADVERT_OBJECT_PATH, BLUEZ_LE_ADVERT_IFACE); err != nil {
		return err
	}
	return a.conn.Export(&propsHandler{props: advertisementProperties(a.localName)}, ADVERT_OBJECT_PATH, DBUS_PROPERTIES_IFACE)
}

func (a *advertisement) register(adapter dbus.BusObject) error {
	return adapter.Call(BLUEZ_LE_ADVERTISING_IFACE+".RegisterAdvertisement", 0,
		dbus.ObjectPath(ADVERT_OBJECT_PATH), map[string]dbus.Variant{}).Store()
}

func (a *advertisement) unregister(adapter dbus.BusObject) error {
	return adapter.Call(BLUEZ_LE_ADVERTISING_IFACE+".UnregisterAdvertisement", 0,
		dbus.ObjectPath(ADVERT_OBJECT_PATH)).Store()
}
