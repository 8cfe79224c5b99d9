//go:build linux

package actuator

import (
	"fmt"
)

// soundDirs are searched for the sound catalog.
var soundDirs = []string{
	"/usr/share/sounds/freedesktop/stereo",
	"/usr/share/sounds/alsa",
}

var soundExtensions = []string{".oga", ".ogg", ".wav"}

// playSoundCommand builds the paplay invocation. PulseAudio volume is
// 0..65536, scaled from the configured 0..1.
func playSoundCommand(path string, volume float64) (string, []string) {
	vol := int(volume * 65536)
	return "paplay", []string{fmt.Sprintf("--volume=%d", vol), path}
}

func notifyCommand(title, body string) (string, []string) {
	return "notify-send", []string{"--app-name", "klaxon", title, body}
}

func openLinkCommand(link string) (string, []string) {
	return "xdg-open", []string{link}
}
