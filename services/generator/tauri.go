package generator

import (
	"encoding/json"
	"fmt"

	"web2desk/pkg/target"
)

type tauriConfig struct {
	Build   tauriBuild   `json:"build"`
	Package tauriPackage `json:"package"`
	Tauri   tauriSection `json:"tauri"`
}

type tauriBuild struct {
	DistDir            string `json:"distDir,omitempty"`
	BeforeBuildCommand string `json:"beforeBuildCommand"`
}

type tauriPackage struct {
	ProductName string `json:"productName"`
	Version     string `json:"version"`
}

type tauriSection struct {
	Bundle   tauriBundle   `json:"bundle"`
	Windows  []tauriWindow `json:"windows"`
	Security tauriSecurity `json:"security"`
}

type tauriBundle struct {
	Identifier string   `json:"identifier"`
	Active     bool     `json:"active"`
	Targets    []string `json:"targets"`
}

type tauriWindow struct {
	Title  string `json:"title"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	URL    string `json:"url,omitempty"`
}

type tauriSecurity struct {
	CSP any `json:"csp"`
}

func tauriFiles(p Params, name string) (map[string]string, error) {
	var targets []string
	switch p.OS {
	case target.Windows:
		targets = []string{"msi", "nsis"}
	case target.MacOS:
		targets = []string{"dmg"}
	default:
		targets = []string{"deb", "appimage"}
	}

	pkg, err := json.MarshalIndent(struct {
		Name            string            `json:"name"`
		Version         string            `json:"version"`
		Scripts         map[string]string `json:"scripts"`
		DevDependencies map[string]string `json:"devDependencies"`
	}{
		Name:    name,
		Version: "1.0.0",
		Scripts: map[string]string{
			"dev":   "tauri dev",
			"build": "tauri build",
		},
		DevDependencies: map[string]string{"@tauri-apps/cli": "^1.5.0"},
	}, "", "  ")
	if err != nil {
		return nil, err
	}

	cfg := tauriConfig{
		Build:   tauriBuild{BeforeBuildCommand: ""},
		Package: tauriPackage{ProductName: p.AppName, Version: "1.0.0"},
		Tauri: tauriSection{
			Bundle: tauriBundle{Identifier: appID(name), Active: true, Targets: targets},
			Windows: []tauriWindow{{
				Title:  p.AppName,
				Width:  1200,
				Height: 800,
			}},
			Security: tauriSecurity{CSP: nil},
		},
	}
	if p.Mode == target.ModeWebview {
		cfg.Tauri.Windows[0].URL = p.SourceURL
	} else {
		cfg.Build.DistDir = "../src"
	}

	conf, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}

	files := map[string]string{
		"package.json":              string(pkg),
		"src-tauri/tauri.conf.json": string(conf),
		"src-tauri/Cargo.toml": fmt.Sprintf(`[package]
name = "%s"
version = "1.0.0"
edition = "2021"

[dependencies]
tauri = { version = "1", features = ["shell-open"] }
serde = { version = "1", features = ["derive"] }
serde_json = "1"

[build-dependencies]
tauri-build = { version = "1", features = [] }
`, name),
		"src-tauri/src/main.rs": `#![cfg_attr(not(debug_assertions), windows_subsystem = "windows")]

fn main() {
    tauri::Builder::default()
        .run(tauri::generate_context!())
        .expect("error while running tauri application");
}
`,
		"src-tauri/build.rs": `fn main() {
    tauri_build::build()
}
`,
		"src/index.html": placeholderPage(p.AppName, "Replace the src folder with your site files for offline mode."),
	}

	readme, err := renderReadme("tauri_readme.tmpl", newReadmeData(p, name))
	if err != nil {
		return nil, err
	}
	files["README.md"] = readme

	return files, nil
}
