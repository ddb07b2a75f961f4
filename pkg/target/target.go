package target

import "fmt"

// Framework identifies a supported packaging framework.
type Framework string

const (
	Electron    Framework = "electron"
	Tauri       Framework = "tauri"
	Capacitor   Framework = "capacitor"
	ReactNative Framework = "react-native"
)

// OS identifies a supported build platform.
type OS string

const (
	Windows OS = "windows"
	MacOS   OS = "macos"
	Linux   OS = "linux"
	Android OS = "android"
	IOS     OS = "ios"
)

// Mode selects how the wrapper loads the application.
type Mode string

const (
	ModeWebview Mode = "webview"
	ModePWA     Mode = "pwa"
)

// Source identifies where the application content comes from.
type Source string

const (
	SourceURL    Source = "url"
	SourceGitHub Source = "github"
	SourceZip    Source = "zip"
)

// Pair is a buildable framework/OS combination.
type Pair struct {
	Framework Framework
	OS        OS
}

// desktop frameworks build for desktop platforms, mobile frameworks for
// mobile platforms; the cross combinations have no packaging pipeline.
var pairs = []Pair{
	{Electron, Windows}, {Electron, MacOS}, {Electron, Linux},
	{Tauri, Windows}, {Tauri, MacOS}, {Tauri, Linux},
	{Capacitor, Android}, {Capacitor, IOS},
	{ReactNative, Android}, {ReactNative, IOS},
}

// Pairs returns every supported framework/OS combination.
func Pairs() []Pair {
	out := make([]Pair, len(pairs))
	copy(out, pairs)
	return out
}

// Supported reports whether the framework can produce a build for the OS.
func Supported(fw Framework, os OS) bool {
	for _, p := range pairs {
		if p.Framework == fw && p.OS == os {
			return true
		}
	}
	return false
}

// ParseFramework validates a raw framework value.
func ParseFramework(raw string) (Framework, error) {
	switch Framework(raw) {
	case Electron, Tauri, Capacitor, ReactNative:
		return Framework(raw), nil
	}
	return "", fmt.Errorf("unsupported framework %q", raw)
}

// ParseOS validates a raw target platform value.
func ParseOS(raw string) (OS, error) {
	switch OS(raw) {
	case Windows, MacOS, Linux, Android, IOS:
		return OS(raw), nil
	}
	return "", fmt.Errorf("unsupported target os %q", raw)
}

// ParseMode validates a raw wrapper mode, defaulting to webview when empty.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModeWebview, ModePWA:
		return Mode(raw), nil
	case "":
		return ModeWebview, nil
	}
	return "", fmt.Errorf("unsupported wrapper mode %q", raw)
}

// ParseSource validates a raw source type value.
func ParseSource(raw string) (Source, error) {
	switch Source(raw) {
	case SourceURL, SourceGitHub, SourceZip:
		return Source(raw), nil
	}
	return "", fmt.Errorf("unsupported source type %q", raw)
}

// Mobile reports whether the OS is a mobile platform.
func (o OS) Mobile() bool {
	return o == Android || o == IOS
}
