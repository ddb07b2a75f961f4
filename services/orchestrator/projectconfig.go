package orchestrator

import (
	"github.com/gosimple/slug"
	"gorm.io/datatypes"

	"web2desk/pkg/target"
)

// projectConfig builds the framework-specific configuration payload the CI
// workflow receives as a serialized input. The shape mirrors the native
// config file of each framework so the workflow can write it to disk
// unchanged.
func projectConfig(b *buildModel) datatypes.JSONMap {
	name := slug.Make(b.AppName)
	if name == "" {
		name = "app"
	}
	appID := "com.web2desk." + name

	switch target.Framework(b.Framework) {
	case target.Electron:
		return datatypes.JSONMap{
			"name":    name,
			"version": "1.0.0",
			"main":    "main.js",
			"build": map[string]any{
				"appId":       appID,
				"productName": b.AppName,
				"directories": map[string]any{"output": "dist"},
				"win":         map[string]any{"target": []string{"nsis", "msi"}},
				"mac":         map[string]any{"target": []string{"dmg", "zip"}},
				"linux":       map[string]any{"target": []string{"deb", "AppImage"}},
			},
		}
	case target.Tauri:
		cfg := datatypes.JSONMap{
			"build":   map[string]any{"beforeBuildCommand": ""},
			"package": map[string]any{"productName": b.AppName, "version": "1.0.0"},
			"tauri": map[string]any{
				"bundle":   map[string]any{"identifier": appID, "active": true},
				"windows":  []any{windowConfig(b)},
				"security": map[string]any{"csp": nil},
			},
		}
		return cfg
	case target.Capacitor:
		cfg := datatypes.JSONMap{
			"appId":   appID,
			"appName": b.AppName,
			"webDir":  "www",
		}
		if b.WrapperMode == string(target.ModeWebview) && b.SourceURL != nil {
			cfg["server"] = map[string]any{"url": *b.SourceURL, "cleartext": true}
		}
		return cfg
	default: // react-native
		return datatypes.JSONMap{"name": name, "displayName": b.AppName}
	}
}

func windowConfig(b *buildModel) map[string]any {
	w := map[string]any{"title": b.AppName, "width": 1200, "height": 800}
	if b.WrapperMode == string(target.ModeWebview) && b.SourceURL != nil {
		w["url"] = *b.SourceURL
	}
	return w
}
