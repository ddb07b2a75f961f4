package generator

import (
	"encoding/json"
	"fmt"
	"html"

	"web2desk/pkg/target"
)

type capacitorConfig struct {
	AppID  string           `json:"appId"`
	Name   string           `json:"appName"`
	WebDir string           `json:"webDir"`
	Server *capacitorServer `json:"server,omitempty"`
}

type capacitorServer struct {
	URL       string `json:"url"`
	Cleartext bool   `json:"cleartext"`
}

func capacitorFiles(p Params, name string) (map[string]string, error) {
	platform := "ios"
	if p.OS == target.Android {
		platform = "android"
	}

	pkg, err := json.MarshalIndent(struct {
		Name         string            `json:"name"`
		Version      string            `json:"version"`
		Scripts      map[string]string `json:"scripts"`
		Dependencies map[string]string `json:"dependencies"`
	}{
		Name:    name,
		Version: "1.0.0",
		Scripts: map[string]string{"build": "cap sync " + platform},
		Dependencies: map[string]string{
			"@capacitor/core":       "^5.0.0",
			"@capacitor/" + platform: "^5.0.0",
			"@capacitor/cli":        "^5.0.0",
		},
	}, "", "  ")
	if err != nil {
		return nil, err
	}

	cfg := capacitorConfig{AppID: appID(name), Name: p.AppName, WebDir: "www"}
	if p.Mode == target.ModeWebview && p.SourceURL != "" {
		cfg.Server = &capacitorServer{URL: p.SourceURL, Cleartext: true}
	}
	conf, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}

	var index string
	if p.Mode == target.ModeWebview {
		url, err := json.Marshal(p.SourceURL)
		if err != nil {
			return nil, err
		}
		index = fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><meta name="viewport" content="width=device-width,initial-scale=1">
<title>%s</title></head>
<body><script>window.location=%s;</script></body>
</html>`, html.EscapeString(p.AppName), url)
	} else {
		index = placeholderPage(p.AppName, `Replace this "www" folder with your site files.`)
	}

	files := map[string]string{
		"package.json":          string(pkg),
		"capacitor.config.json": string(conf),
		"www/index.html":        index,
	}

	readme, err := renderReadme("capacitor_readme.tmpl", newReadmeData(p, name))
	if err != nil {
		return nil, err
	}
	files["README.md"] = readme

	return files, nil
}
