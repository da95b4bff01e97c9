package protocol

// Device connection states.
const (
	DeviceOffline = "offline"
	DeviceOnline  = "online"
)

// ColorOff is the color a device reports when it is switched off.
const ColorOff = "off"

// Websocket text frames exchanged with devices.
const (
	FrameDeviceName = "DEVICE_NAME:"
	FramePing       = "PING"
	FrameStatus     = "STATUS:"
)

// DeviceState is the last known state of one connected device.
type DeviceState struct {
	DeviceName string `json:"device_name"`
	Status     string `json:"status"`
	Brightness int    `json:"brightness"`
	Color      string `json:"color"`
}

// OfflineState is what the notifier reports for a device that went away.
func OfflineState(name string) DeviceState {
	return DeviceState{DeviceName: name, Status: DeviceOffline, Brightness: 0, Color: ColorOff}
}

// Push frame types sent to browsers and headsets.
const (
	TypeDeviceUpdate = "device_update"
	TypeTaskUpdate   = "task_update"
)

// DeviceUpdate is pushed to browser websocket clients.
type DeviceUpdate struct {
	Type string        `json:"type"`
	Data []DeviceState `json:"data"`
}
