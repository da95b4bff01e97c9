package devicehub

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JuweiLin/ARProject/pkg/protocol"
)

// ParseStatus reads a "STATUS:brightness=<int>,color=<name>" frame. Both keys
// must be present; unknown keys are ignored.
func ParseStatus(frame string) (brightness int, color string, err error) {
	body, ok := strings.CutPrefix(frame, protocol.FrameStatus)
	if !ok {
		return 0, "", fmt.Errorf("missing %q prefix", protocol.FrameStatus)
	}

	var haveBrightness, haveColor bool
	for _, item := range strings.Split(body, ",") {
		key, value, ok := strings.Cut(item, "=")
		if !ok {
			return 0, "", fmt.Errorf("malformed item %q", item)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch key {
		case "brightness":
			brightness, err = strconv.Atoi(value)
			if err != nil {
				return 0, "", fmt.Errorf("brightness: %w", err)
			}
			haveBrightness = true
		case "color":
			color = value
			haveColor = true
		}
	}
	if !haveBrightness || !haveColor {
		return 0, "", fmt.Errorf("incomplete status data")
	}
	return brightness, color, nil
}

// ParseCommand reads a "<COLOR> <BRIGHTNESS>" command. Anything else means
// the device is off.
func ParseCommand(command string) (brightness int, color string) {
	parts := strings.Fields(command)
	if len(parts) == 2 {
		if b, err := strconv.Atoi(parts[1]); err == nil {
			return b, parts[0]
		}
	}
	return 0, protocol.ColorOff
}
