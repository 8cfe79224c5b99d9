//go:build darwin

package actuator

import (
	"fmt"
	"strings"
)

// soundDirs are searched for the sound catalog.
var soundDirs = []string{
	"/System/Library/Sounds",
}

var soundExtensions = []string{".aiff", ".aif", ".wav"}

// playSoundCommand builds the osascript invocation that sets the output
// volume and plays the sound file, matching how the original buzzer drove
// afplay.
func playSoundCommand(path string, volume float64) (string, []string) {
	volumeScript := fmt.Sprintf("set volume output volume %d", int(volume*100))
	playScript := fmt.Sprintf(`do shell script "afplay \"%s\""`, escapeAppleScript(path))
	return "osascript", []string{"-e", volumeScript, "-e", playScript}
}

func notifyCommand(title, body string) (string, []string) {
	script := fmt.Sprintf(
		`display notification "%s" with title "%s"`,
		escapeAppleScript(body), escapeAppleScript(title),
	)
	return "osascript", []string{"-e", script}
}

func openLinkCommand(link string) (string, []string) {
	return "open", []string{link}
}

// escapeAppleScript escapes characters that could break AppleScript strings.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
