package protocol

// CommandRequest is the body of POST /command.
type CommandRequest struct {
	Device  string `json:"device"`
	Command string `json:"command"`
}

// DeviceNameRequest is the body of POST /set_device_online and POST /enter_device.
type DeviceNameRequest struct {
	DeviceName string `json:"device_name"`
}

// Response statuses used by the phone server.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the envelope every phone server endpoint except GET /devices replies with.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
