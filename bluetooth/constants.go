package bluetooth

const (
	BLUEZ_BUS_NAME             = "org.bluez"
	BLUEZ_ADAPTER_INTERFACE    = "org.bluez.Adapter1"
	BLUEZ_DEVICE_INTERFACE     = "org.bluez.Device1"
	BLUEZ_GATT_MANAGER_IFACE   = "org.bluez.GattManager1"
	BLUEZ_GATT_SERVICE_IFACE   = "org.bluez.GattService1"
	BLUEZ_GATT_CHRC_IFACE      = "org.bluez.GattCharacteristic1"
	BLUEZ_LE_ADVERTISING_IFACE = "org.bluez.LEAdvertisingManager1"
	BLUEZ_LE_ADVERT_IFACE      = "org.bluez.LEAdvertisement1"

	DBUS_PROPERTIES_IFACE     = "org.freedesktop.DBus.Properties"
	DBUS_OBJECT_MANAGER_IFACE = "org.freedesktop.DBus.ObjectManager"

	// Nordic UART Service compatible UUIDs, same service layout as the
	// ADS1299 acquisition firmware.
	EEG_SERVICE_UUID               = "6E400001-B5A3-F393-E0A9-E50E24DCCA9E"
	COMMAND_RX_CHARACTERISTIC_UUID = "6E400002-B5A3-F393-E0A9-E50E24DCCA9E" // Write - control opcodes
	DATA_TX_CHARACTERISTIC_UUID    = "6E400003-B5A3-F393-E0A9-E50E24DCCA9E" // Notify - config + chunk packets

	// Exported object paths for the GATT application.
	APP_OBJECT_PATH     = "/com/biosigmatch/eeg"
	SERVICE_OBJECT_PATH = "/com/biosigmatch/eeg/service0"
	RX_OBJECT_PATH      = "/com/biosigmatch/eeg/service0/char0"
	TX_OBJECT_PATH      = "/com/biosigmatch/eeg/service0/char1"
	ADVERT_OBJECT_PATH  = "/com/biosigmatch/eeg/advertisement0"
)
