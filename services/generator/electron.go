package generator

import (
	"encoding/json"
	"fmt"
	"html"

	"web2desk/pkg/target"
)

type electronPackage struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Main            string            `json:"main"`
	Scripts         map[string]string `json:"scripts"`
	DevDependencies map[string]string `json:"devDependencies"`
	Build           electronBuild     `json:"build"`
}

type electronBuild struct {
	AppID       string              `json:"appId"`
	ProductName string              `json:"productName"`
	Directories map[string]string   `json:"directories"`
	Win         electronBuildTarget `json:"win"`
	Mac         electronBuildTarget `json:"mac"`
	Linux       electronBuildTarget `json:"linux"`
}

type electronBuildTarget struct {
	Target []string `json:"target"`
}

func electronFiles(p Params, name string) (map[string]string, error) {
	var buildTarget, buildCmd string
	switch p.OS {
	case target.Windows:
		buildTarget, buildCmd = "build:win", "electron-builder --win --x64"
	case target.MacOS:
		buildTarget, buildCmd = "build:mac", "electron-builder --mac --x64 --arm64"
	default:
		buildTarget, buildCmd = "build:linux", "electron-builder --linux --x64"
	}

	pkg, err := json.MarshalIndent(electronPackage{
		Name:    name,
		Version: "1.0.0",
		Main:    "main.js",
		Scripts: map[string]string{
			"start":     "electron .",
			buildTarget: buildCmd,
			"build":     buildCmd,
		},
		DevDependencies: map[string]string{
			"electron":         "^28.0.0",
			"electron-builder": "^24.0.0",
		},
		Build: electronBuild{
			AppID:       appID(name),
			ProductName: p.AppName,
			Directories: map[string]string{"output": "dist"},
			Win:         electronBuildTarget{Target: []string{"nsis", "msi"}},
			Mac:         electronBuildTarget{Target: []string{"dmg", "zip"}},
			Linux:       electronBuildTarget{Target: []string{"deb", "AppImage"}},
		},
	}, "", "  ")
	if err != nil {
		return nil, err
	}

	files := map[string]string{"package.json": string(pkg)}

	if p.Mode == target.ModeWebview {
		url, err := json.Marshal(p.SourceURL)
		if err != nil {
			return nil, err
		}
		files["main.js"] = fmt.Sprintf(`const { app, BrowserWindow } = require('electron');

function createWindow() {
  const win = new BrowserWindow({
    width: 1200,
    height: 800,
    webPreferences: {
      nodeIntegration: false,
      contextIsolation: true,
    },
  });

  win.loadURL(%s);
  win.setMenuBarVisibility(false);
}

app.whenReady().then(createWindow);

app.on('window-all-closed', () => {
  if (process.platform !== 'darwin') app.quit();
});

app.on('activate', () => {
  if (BrowserWindow.getAllWindows().length === 0) createWindow();
});
`, url)
	} else {
		files["main.js"] = `const { app, BrowserWindow } = require('electron');
const path = require('path');

function createWindow() {
  const win = new BrowserWindow({
    width: 1200,
    height: 800,
    webPreferences: {
      nodeIntegration: false,
      contextIsolation: true,
    },
  });

  win.loadFile(path.join(__dirname, 'web', 'index.html'));
  win.setMenuBarVisibility(false);
}

app.whenReady().then(createWindow);

app.on('window-all-closed', () => {
  if (process.platform !== 'darwin') app.quit();
});

app.on('activate', () => {
  if (BrowserWindow.getAllWindows().length === 0) createWindow();
});
`
		files["web/index.html"] = placeholderPage(p.AppName, `Replace this "web" folder with your site files for offline mode.`)
	}

	readme, err := renderReadme("electron_readme.tmpl", newReadmeData(p, name))
	if err != nil {
		return nil, err
	}
	files["README.md"] = readme

	return files, nil
}

func placeholderPage(appName, hint string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>%[1]s</title>
  <style>
    body { margin: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; display: flex; align-items: center; justify-content: center; height: 100vh; background: #0a0a0a; color: #fafafa; }
    .container { text-align: center; }
    h1 { font-size: 2rem; margin-bottom: 0.5rem; }
    p { color: #888; }
  </style>
</head>
<body>
  <div class="container">
    <h1>%[1]s</h1>
    <p>%[2]s</p>
  </div>
</body>
</html>`, html.EscapeString(appName), html.EscapeString(hint))
}
