package archiver

import (
	"path"
	"strconv"
	"strings"
)

// installerExtensions is the allow-list of file extensions that count as
// shippable installers when unpacking CI bundles. Logs, manifests and
// intermediate build outputs are dropped.
var installerExtensions = map[string]bool{
	"exe":      true,
	"msi":      true,
	"dmg":      true,
	"pkg":      true,
	"app":      true,
	"deb":      true,
	"rpm":      true,
	"appimage": true,
	"apk":      true,
	"aab":      true,
	"ipa":      true,
}

func installerExt(name string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	return ext, installerExtensions[ext]
}

var contentTypes = map[string]string{
	"exe": "application/vnd.microsoft.portable-executable",
	"msi": "application/x-msi",
	"dmg": "application/x-apple-diskimage",
	"deb": "application/vnd.debian.binary-package",
	"rpm": "application/x-rpm",
	"apk": "application/vnd.android.package-archive",
}

func contentTypeFor(ext string) string {
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatBytes renders a byte count in binary units with two-decimal
// rounding and at most one trailing zero trimmed: 0 -> "0 Bytes",
// 1536 -> "1.5 KB", 1048576 -> "1.0 MB".
func FormatBytes(n int64) string {
	if n == 0 {
		return "0 Bytes"
	}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimSuffix(s, "0")
	return s + " " + sizeUnits[i]
}
