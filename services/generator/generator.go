// Package generator produces downloadable wrapper project scaffolds. Each
// project is a file tree for one framework/OS pair that the user builds on
// their own machine, packaged as a zip with a signed manifest.
package generator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gosimple/slug"

	"web2desk/pkg/target"
)

// Params describes the project to scaffold.
type Params struct {
	AppName   string
	SourceURL string
	Framework target.Framework
	OS        target.OS
	Mode      target.Mode
}

// Project is a generated scaffold: relative paths mapped to file contents.
type Project struct {
	SanitizedName string
	FileName      string
	Files         map[string]string
}

// Generate builds the scaffold for the given parameters.
func Generate(p Params) (*Project, error) {
	if strings.TrimSpace(p.AppName) == "" {
		return nil, errors.New("generator: app name is required")
	}
	if p.Mode == "" {
		p.Mode = target.ModeWebview
	}
	if !target.Supported(p.Framework, p.OS) {
		return nil, fmt.Errorf("generator: %s does not target %s", p.Framework, p.OS)
	}
	if p.Mode == target.ModeWebview && strings.TrimSpace(p.SourceURL) == "" {
		return nil, errors.New("generator: webview mode requires a source URL")
	}

	name := slug.Make(p.AppName)
	if name == "" {
		name = "app"
	}

	var (
		files map[string]string
		err   error
	)
	switch p.Framework {
	case target.Electron:
		files, err = electronFiles(p, name)
	case target.Tauri:
		files, err = tauriFiles(p, name)
	case target.Capacitor:
		files, err = capacitorFiles(p, name)
	case target.ReactNative:
		files, err = reactNativeFiles(p, name)
	default:
		err = fmt.Errorf("generator: unknown framework %q", p.Framework)
	}
	if err != nil {
		return nil, err
	}

	return &Project{
		SanitizedName: name,
		FileName:      fmt.Sprintf("%s-%s-%s.zip", name, p.Framework, p.OS),
		Files:         files,
	}, nil
}

func appID(name string) string {
	return "com.web2desk." + name
}
