package host

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// BridgeVersion is the version written into the bridge add-on descriptor.
const BridgeVersion = "1.0.0"

//go:embed bridge/addon.xml bridge/default.py
var bridgeFiles embed.FS

// BridgeAddon returns the id of the add-on builtin commands are sent through.
func (c *Client) BridgeAddon() string {
	return c.bridgeAddon
}

// WriteBridge writes the bridge add-on into addonsDir/id and returns the
// folder. The host registers it on its next start.
func WriteBridge(addonsDir, id string) (string, error) {
	if id == "" || id == "." || id == ".." || filepath.Base(id) != id {
		return "", fmt.Errorf("bridge add-on id %q is not a valid folder name", id)
	}
	descriptor, err := template.ParseFS(bridgeFiles, "bridge/addon.xml")
	if err != nil {
		return "", err
	}
	var xml bytes.Buffer
	if err := descriptor.Execute(&xml, struct{ ID, Version string }{id, BridgeVersion}); err != nil {
		return "", fmt.Errorf("rendering addon.xml: %w", err)
	}
	script, err := bridgeFiles.ReadFile("bridge/default.py")
	if err != nil {
		return "", err
	}

	dir := filepath.Join(addonsDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "addon.xml"), xml.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing addon.xml: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "default.py"), script, 0o644); err != nil {
		return "", fmt.Errorf("writing default.py: %w", err)
	}
	logger.Infof("wrote bridge add-on %s to %s", id, dir)
	return dir, nil
}
