package generator

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/klauspost/compress/zip"
	"gopkg.in/yaml.v3"
)

// Archive packages the project into a zip. All files live under the
// sanitized project directory, a manifest.yaml sits beside them, and the
// manifest carries an Ed25519 signature when signer is non-nil. Entries are
// written in sorted path order so identical projects produce identical
// archives.
func (pr *Project) Archive(p Params, signer *Signer, now time.Time) ([]byte, error) {
	paths := make([]string, 0, len(pr.Files))
	for path := range pr.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	manifest := Manifest{
		Version:   "1",
		CreatedAt: now.UTC().Truncate(time.Second),
		App:       p.AppName,
		Framework: string(p.Framework),
		TargetOS:  string(p.OS),
		Files:     make([]ManifestFile, 0, len(paths)),
	}
	for _, path := range paths {
		content := []byte(pr.Files[path])
		sum := sha256.Sum256(content)
		manifest.Files = append(manifest.Files, ManifestFile{
			Path:   pr.SanitizedName + "/" + path,
			Size:   int64(len(content)),
			SHA256: hex.EncodeToString(sum[:]),
		})
	}

	if signer != nil {
		manifest.SigningPublicKey = signer.PublicKeyBase64()
		payload, err := manifest.SigningBytes()
		if err != nil {
			return nil, fmt.Errorf("marshal manifest for signing: %w", err)
		}
		sig, err := signer.Sign(payload)
		if err != nil {
			return nil, fmt.Errorf("sign manifest: %w", err)
		}
		manifest.Signature = sig
	}

	manifestBytes, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	if err := writeEntry(zw, pr.SanitizedName+"/"+manifestFileName, manifestBytes, now); err != nil {
		return nil, err
	}
	for _, path := range paths {
		if err := writeEntry(zw, pr.SanitizedName+"/"+path, []byte(pr.Files[path]), now); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

func writeEntry(zw *zip.Writer, name string, content []byte, now time.Time) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: now.UTC(),
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
