package generator

import (
	"time"

	"gopkg.in/yaml.v3"
)

const manifestFileName = "manifest.yaml"

// Manifest describes the contents of a generated project archive. It is
// written as manifest.yaml at the archive root so downloads can be audited
// and, when a signing key is configured, verified.
type Manifest struct {
	Version          string         `yaml:"version"`
	CreatedAt        time.Time      `yaml:"created_at"`
	App              string         `yaml:"app"`
	Framework        string         `yaml:"framework"`
	TargetOS         string         `yaml:"target_os"`
	SigningPublicKey string         `yaml:"signing_public_key,omitempty"`
	Signature        string         `yaml:"signature,omitempty"`
	Files            []ManifestFile `yaml:"files"`
}

// ManifestFile describes a single file within the archive.
type ManifestFile struct {
	Path   string `yaml:"path"`
	Size   int64  `yaml:"size"`
	SHA256 string `yaml:"sha256"`
}

// SigningBytes marshals the manifest without its signature for
// signing and verification.
func (m Manifest) SigningBytes() ([]byte, error) {
	clone := m
	clone.Signature = ""
	return yaml.Marshal(clone)
}
