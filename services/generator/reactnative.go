package generator

import (
	"encoding/json"
	"fmt"
	"strings"
)

func reactNativeFiles(p Params, name string) (map[string]string, error) {
	url, err := json.Marshal(p.SourceURL)
	if err != nil {
		return nil, err
	}

	files := map[string]string{
		"App.tsx": fmt.Sprintf(`import React from 'react';
import { SafeAreaView, StatusBar, StyleSheet } from 'react-native';
import { WebView } from 'react-native-webview';

const App = () => (
  <SafeAreaView style={styles.container}>
    <StatusBar barStyle="dark-content" />
    <WebView
      source={{ uri: %s }}
      style={styles.webview}
      javaScriptEnabled
      domStorageEnabled
      startInLoadingState
    />
  </SafeAreaView>
);

const styles = StyleSheet.create({
  container: { flex: 1 },
  webview: { flex: 1 },
});

export default App;
`, url),
	}

	readme, err := renderReadme("reactnative_readme.tmpl", newReadmeData(p, rnProjectName(p.AppName)))
	if err != nil {
		return nil, err
	}
	files["README.md"] = readme

	return files, nil
}

// rnProjectName strips everything react-native init rejects from the app
// name.
func rnProjectName(appName string) string {
	var b strings.Builder
	for _, r := range appName {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "WebViewApp"
	}
	return b.String()
}
