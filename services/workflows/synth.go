// Package workflows synthesizes the CI job definitions that compile wrapper
// applications. One definition exists per framework/OS pair; definitions are
// deterministic so existence checks can skip redundant publishes.
package workflows

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"web2desk/pkg/target"
)

const (
	checkoutAction  = "actions/checkout@v4"
	nodeAction      = "actions/setup-node@v4"
	javaAction      = "actions/setup-java@v4"
	androidAction   = "android-actions/setup-android@v3"
	rustAction      = "dtolnay/rust-toolchain@stable"
	uploadAction    = "actions/upload-artifact@v4"
	artifactKeepDay = 7
)

// WorkflowFileName maps a framework/OS pair to its definition file name
// under .github/workflows/.
func WorkflowFileName(fw target.Framework, os target.OS) string {
	return fmt.Sprintf("build-%s-%s.yml", fw, os)
}

// BundleName is the artifact bundle name the workflow uploads its installers
// under.
func BundleName(os target.OS) string {
	return fmt.Sprintf("%s-installers", os)
}

// Synthesize builds the workflow definition for the given pair. The result
// depends only on the arguments; repeated calls return byte-identical
// content.
func Synthesize(fw target.Framework, os target.OS) (Definition, error) {
	if !target.Supported(fw, os) {
		return Definition{}, fmt.Errorf("workflows: no pipeline for %s on %s", fw, os)
	}

	var steps []Step
	switch fw {
	case target.Electron:
		steps = electronSteps(os)
	case target.Tauri:
		steps = tauriSteps(os)
	case target.Capacitor:
		steps = capacitorSteps(os)
	case target.ReactNative:
		steps = reactNativeSteps(os)
	}
	steps = append(steps, notifyStep())

	wf := Workflow{
		Name: fmt.Sprintf("Build %s %s", title(string(fw)), title(string(os))),
		// The build id in the run name is the correlation marker status
		// reconciliation matches runs against.
		RunName: "Build ${{ inputs.app_name }} [${{ inputs.build_id }}]",
		On: Trigger{WorkflowDispatch: Dispatch{Inputs: map[string]Input{
			"app_name":       {Description: "Application name", Required: true},
			"source_url":     {Description: "Source URL or GitHub repo", Required: true},
			"source_type":    {Description: "Source type (url, github, zip)", Required: true},
			"build_id":       {Description: "Build ID for status callbacks", Required: true},
			"wrapper_mode":   {Description: "Wrapper mode (webview or pwa)", Required: true},
			"project_config": {Description: "JSON project configuration", Required: true},
		}}},
		Env: map[string]string{
			"WEB2DESK_CALLBACK_URL":   "${{ secrets.WEB2DESK_CALLBACK_URL }}",
			"WEB2DESK_CALLBACK_TOKEN": "${{ secrets.WEB2DESK_CALLBACK_TOKEN }}",
		},
		Jobs: map[string]Job{
			"build": {RunsOn: runnerFor(os), Steps: steps},
		},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(wf); err != nil {
		return Definition{}, fmt.Errorf("workflows: encode definition: %w", err)
	}
	if err := enc.Close(); err != nil {
		return Definition{}, err
	}

	return Definition{FileName: WorkflowFileName(fw, os), Content: buf.Bytes()}, nil
}

func runnerFor(os target.OS) string {
	switch os {
	case target.Windows:
		return "windows-latest"
	case target.MacOS, target.IOS:
		return "macos-latest"
	default:
		return "ubuntu-latest"
	}
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// inputEnv maps the workflow inputs the wrapper scripts consume into env
// vars. Scripts only ever read user-supplied values through the
// environment, never via expression interpolation inside script text.
func inputEnv() map[string]string {
	return map[string]string{
		"APP_NAME":       "${{ inputs.app_name }}",
		"SOURCE_URL":     "${{ inputs.source_url }}",
		"WRAPPER_MODE":   "${{ inputs.wrapper_mode }}",
		"PROJECT_CONFIG": "${{ inputs.project_config }}",
	}
}

func notifyStep() Step {
	return Step{
		Name:  "Report build status",
		If:    "always()",
		Shell: "bash",
		Env: map[string]string{
			"BUILD_ID":   "${{ inputs.build_id }}",
			"JOB_STATUS": "${{ job.status }}",
		},
		Run: `STATUS="completed"
if [ "$JOB_STATUS" != "success" ]; then STATUS="failed"; fi
curl -s -X POST "$WEB2DESK_CALLBACK_URL/v1/builds/$BUILD_ID/status" \
  -H "Authorization: Bearer $WEB2DESK_CALLBACK_TOKEN" \
  -H "Content-Type: application/json" \
  -d "{\"status\": \"$STATUS\"}"`,
	}
}

func uploadStep(os target.OS, globs []string) Step {
	return Step{
		Name: "Upload installers",
		Uses: uploadAction,
		With: map[string]any{
			"name":           BundleName(os),
			"path":           strings.Join(globs, "\n"),
			"retention-days": artifactKeepDay,
		},
	}
}

func checkoutStep() Step {
	return Step{Name: "Checkout template", Uses: checkoutAction}
}

func nodeStep() Step {
	return Step{Name: "Setup Node.js", Uses: nodeAction, With: map[string]any{"node-version": "20"}}
}

func electronSteps(os target.OS) []Step {
	flags := map[target.OS]string{
		target.Windows: "--win --x64",
		target.MacOS:   "--mac --x64 --arm64",
		target.Linux:   "--linux --x64",
	}[os]

	globs := map[target.OS][]string{
		target.Windows: {"app-build/dist/*.exe", "app-build/dist/*.msi"},
		target.MacOS:   {"app-build/dist/*.dmg", "app-build/dist/*.zip"},
		target.Linux:   {"app-build/dist/*.deb", "app-build/dist/*.AppImage"},
	}[os]

	prepare := fmt.Sprintf(`mkdir -p app-build
cd app-build
node <<'SCRIPT'
const fs = require('fs');
const cfg = JSON.parse(process.env.PROJECT_CONFIG);
cfg.devDependencies = { electron: '^28.0.0', 'electron-builder': '^24.0.0' };
cfg.scripts = { start: 'electron .', build: 'electron-builder %s' };
fs.writeFileSync('package.json', JSON.stringify(cfg, null, 2));

const url = process.env.SOURCE_URL;
const load = process.env.WRAPPER_MODE === 'webview'
  ? 'win.loadURL(' + JSON.stringify(url) + ');'
  : "win.loadFile(require('path').join(__dirname, 'web', 'index.html'));";
const main = [
  "const { app, BrowserWindow } = require('electron');",
  'function createWindow() {',
  '  const win = new BrowserWindow({ width: 1200, height: 800, webPreferences: { nodeIntegration: false, contextIsolation: true } });',
  '  ' + load,
  '  win.setMenuBarVisibility(false);',
  '}',
  'app.whenReady().then(createWindow);',
  "app.on('window-all-closed', () => { if (process.platform !== 'darwin') app.quit(); });",
].join('\n');
fs.writeFileSync('main.js', main);

if (process.env.WRAPPER_MODE !== 'webview') {
  fs.mkdirSync('web', { recursive: true });
  const esc = s => s.replace(/&/g, '&amp;').replace(/</g, '&lt;').replace(/>/g, '&gt;');
  fs.writeFileSync('web/index.html', '<!DOCTYPE html><html><body><h1>' + esc(process.env.APP_NAME) + '</h1></body></html>');
}
SCRIPT`, flags)

	return []Step{
		checkoutStep(),
		nodeStep(),
		{Name: "Prepare Electron wrapper", Shell: "bash", Env: inputEnv(), Run: prepare},
		{Name: "Install dependencies", WorkingDirectory: "app-build", Run: "npm install"},
		{
			Name:             "Build Electron app",
			WorkingDirectory: "app-build",
			Run:              "npm run build",
			Env:              map[string]string{"GH_TOKEN": "${{ secrets.GITHUB_TOKEN }}"},
		},
		uploadStep(os, globs),
	}
}

func tauriSteps(os target.OS) []Step {
	globs := map[target.OS][]string{
		target.Windows: {
			"app-build/src-tauri/target/release/bundle/msi/*.msi",
			"app-build/src-tauri/target/release/bundle/nsis/*.exe",
		},
		target.MacOS: {"app-build/src-tauri/target/release/bundle/dmg/*.dmg"},
		target.Linux: {
			"app-build/src-tauri/target/release/bundle/deb/*.deb",
			"app-build/src-tauri/target/release/bundle/appimage/*.AppImage",
		},
	}[os]

	prepare := `mkdir -p app-build/src app-build/src-tauri/src
cd app-build
node <<'SCRIPT'
const fs = require('fs');
const esc = s => s.replace(/&/g, '&amp;').replace(/</g, '&lt;').replace(/>/g, '&gt;');
fs.writeFileSync('src/index.html', '<html><body><h1>' + esc(process.env.APP_NAME) + '</h1></body></html>');
fs.writeFileSync('package.json', JSON.stringify({ name: 'web2desk-app', version: '1.0.0', scripts: {} }, null, 2));
fs.writeFileSync('src-tauri/tauri.conf.json', process.env.PROJECT_CONFIG);
SCRIPT
cat > src-tauri/src/main.rs <<'EOF'
#![cfg_attr(not(debug_assertions), windows_subsystem = "windows")]
fn main() { tauri::Builder::default().run(tauri::generate_context!()).expect("error running app"); }
EOF
cat > src-tauri/Cargo.toml <<'EOF'
[package]
name = "web2desk-app"
version = "1.0.0"
edition = "2021"
[dependencies]
tauri = { version = "1", features = ["shell-open"] }
serde = { version = "1", features = ["derive"] }
serde_json = "1"
[build-dependencies]
tauri-build = { version = "1", features = [] }
EOF
cat > src-tauri/build.rs <<'EOF'
fn main() { tauri_build::build() }
EOF`

	steps := []Step{checkoutStep()}
	if os == target.Linux {
		steps = append(steps, Step{
			Name: "Install system dependencies",
			Run: `sudo apt-get update
sudo apt-get install -y libgtk-3-dev libwebkit2gtk-4.1-dev libappindicator3-dev librsvg2-dev patchelf`,
		})
	}
	steps = append(steps,
		nodeStep(),
		Step{Name: "Install Rust", Uses: rustAction},
		Step{Name: "Prepare Tauri wrapper", Shell: "bash", Env: inputEnv(), Run: prepare},
		Step{Name: "Build Tauri app", WorkingDirectory: "app-build", Run: "npx @tauri-apps/cli@1 build"},
		uploadStep(os, globs),
	)
	return steps
}

func capacitorSteps(os target.OS) []Step {
	isAndroid := os == target.Android

	platform := "ios"
	if isAndroid {
		platform = "android"
	}

	prepare := fmt.Sprintf(`mkdir -p app-build/www
cd app-build
node <<'SCRIPT'
const fs = require('fs');
const esc = s => s.replace(/&/g, '&amp;').replace(/</g, '&lt;').replace(/>/g, '&gt;');
const redirect = process.env.WRAPPER_MODE === 'webview'
  ? '<script>window.location=' + JSON.stringify(process.env.SOURCE_URL) + ';</script>'
  : '<h1>' + esc(process.env.APP_NAME) + '</h1>';
fs.writeFileSync('www/index.html', '<!DOCTYPE html><html><head><meta charset="utf-8"></head><body>' + redirect + '</body></html>');
fs.writeFileSync('capacitor.config.json', process.env.PROJECT_CONFIG);
fs.writeFileSync('package.json', JSON.stringify({
  name: 'capacitor-app',
  version: '1.0.0',
  dependencies: { '@capacitor/core': '^5.0.0', '@capacitor/%s': '^5.0.0', '@capacitor/cli': '^5.0.0' },
}, null, 2));
SCRIPT`, platform)

	steps := []Step{checkoutStep(), nodeStep()}
	if isAndroid {
		steps = append(steps,
			Step{Name: "Set up JDK 17", Uses: javaAction, With: map[string]any{"java-version": "17", "distribution": "temurin"}},
			Step{Name: "Setup Android SDK", Uses: androidAction},
		)
	} else {
		steps = append(steps, Step{Name: "Select Xcode", Run: "sudo xcode-select -s /Applications/Xcode.app"})
	}

	steps = append(steps,
		Step{Name: "Prepare Capacitor wrapper", Shell: "bash", Env: inputEnv(), Run: prepare},
		Step{Name: "Install dependencies", WorkingDirectory: "app-build", Run: "npm install"},
		Step{Name: "Add platform", WorkingDirectory: "app-build", Run: fmt.Sprintf("npx cap add %s", platform)},
		Step{Name: "Sync Capacitor", WorkingDirectory: "app-build", Run: fmt.Sprintf("npx cap sync %s", platform)},
	)

	if isAndroid {
		steps = append(steps,
			Step{Name: "Build APK", WorkingDirectory: "app-build/android", Run: "./gradlew assembleRelease"},
			Step{Name: "Build AAB", WorkingDirectory: "app-build/android", Run: "./gradlew bundleRelease"},
			uploadStep(os, []string{
				"app-build/android/app/build/outputs/apk/release/*.apk",
				"app-build/android/app/build/outputs/bundle/release/*.aab",
			}),
		)
	} else {
		steps = append(steps,
			Step{Name: "Install CocoaPods", WorkingDirectory: "app-build/ios/App", Run: "pod install"},
			Step{
				Name:             "Build IPA (unsigned)",
				WorkingDirectory: "app-build",
				Run: `xcodebuild -workspace ios/App/App.xcworkspace \
  -scheme App -configuration Release \
  -archivePath build/App.xcarchive archive \
  CODE_SIGN_IDENTITY="" CODE_SIGNING_REQUIRED=NO CODE_SIGNING_ALLOWED=NO`,
			},
			Step{
				Name:             "Create IPA",
				WorkingDirectory: "app-build",
				Run: `mkdir -p build/Payload
cp -r build/App.xcarchive/Products/Applications/App.app build/Payload/
cd build && zip -r App.ipa Payload`,
			},
			uploadStep(os, []string{"app-build/build/*.ipa"}),
		)
	}

	return steps
}

func reactNativeSteps(os target.OS) []Step {
	isAndroid := os == target.Android

	create := `npx react-native init WebViewApp --version 0.73.0
cd WebViewApp
npm install react-native-webview
node <<'SCRIPT'
const fs = require('fs');
const src = [
  "import React from 'react';",
  "import { SafeAreaView, StatusBar, StyleSheet } from 'react-native';",
  "import { WebView } from 'react-native-webview';",
  'const App = () => (',
  '  <SafeAreaView style={styles.container}>',
  '    <StatusBar barStyle="dark-content" />',
  '    <WebView source={{ uri: ' + JSON.stringify(process.env.SOURCE_URL) + ' }} style={styles.webview} javaScriptEnabled domStorageEnabled startInLoadingState />',
  '  </SafeAreaView>',
  ');',
  'const styles = StyleSheet.create({ container: { flex: 1 }, webview: { flex: 1 } });',
  'export default App;',
].join('\n');
fs.writeFileSync('App.tsx', src);
SCRIPT`

	steps := []Step{checkoutStep(), nodeStep()}
	if isAndroid {
		steps = append(steps,
			Step{Name: "Set up JDK 17", Uses: javaAction, With: map[string]any{"java-version": "17", "distribution": "temurin"}},
			Step{Name: "Setup Android SDK", Uses: androidAction},
		)
	} else {
		steps = append(steps, Step{Name: "Select Xcode", Run: "sudo xcode-select -s /Applications/Xcode.app"})
	}

	steps = append(steps, Step{Name: "Create React Native WebView app", Shell: "bash", Env: inputEnv(), Run: create})

	if isAndroid {
		steps = append(steps,
			Step{Name: "Build APK", WorkingDirectory: "WebViewApp/android", Run: "./gradlew assembleRelease"},
			Step{Name: "Build AAB", WorkingDirectory: "WebViewApp/android", Run: "./gradlew bundleRelease"},
			uploadStep(os, []string{
				"WebViewApp/android/app/build/outputs/apk/release/*.apk",
				"WebViewApp/android/app/build/outputs/bundle/release/*.aab",
			}),
		)
	} else {
		steps = append(steps,
			Step{Name: "Install CocoaPods", WorkingDirectory: "WebViewApp/ios", Run: "pod install"},
			Step{
				Name:             "Build IPA (unsigned)",
				WorkingDirectory: "WebViewApp",
				Run: `xcodebuild -workspace ios/WebViewApp.xcworkspace \
  -scheme WebViewApp -configuration Release \
  -archivePath build/App.xcarchive archive \
  CODE_SIGN_IDENTITY="" CODE_SIGNING_REQUIRED=NO CODE_SIGNING_ALLOWED=NO`,
			},
			Step{
				Name:             "Create IPA",
				WorkingDirectory: "WebViewApp",
				Run: `mkdir -p build/Payload
cp -r build/App.xcarchive/Products/Applications/WebViewApp.app build/Payload/
cd build && zip -r App.ipa Payload`,
			},
			uploadStep(os, []string{"WebViewApp/build/*.ipa"}),
		)
	}

	return steps
}
