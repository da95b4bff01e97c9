package protocol

import "fmt"

// NATS subject constants and helpers.
const (
	SubjectAllEvents = "arhub.events.>"
	SubjectTasks     = "arhub.tasks"

	SourceDevices = "devices"
	SourcePhone   = "phone"
)

func SubjectEvents(source string) string {
	return fmt.Sprintf("arhub.events.%s", source)
}
