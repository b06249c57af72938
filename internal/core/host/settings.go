package host

import (
	"context"
	"fmt"
)

// SkinSetting is the host setting that holds the active skin id.
const SkinSetting = "lookandfeel.skin"

// DefaultMajorVersion is assumed when the host does not report its version.
const DefaultMajorVersion = 21

// GetSetting reads a single host setting.
func (c *Client) GetSetting(ctx context.Context, name string) (any, error) {
	var out struct {
		Value any `json:"value"`
	}
	if err := c.Call(ctx, "Settings.GetSettingValue", map[string]any{"setting": name}, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// SetSetting writes a single host setting.
func (c *Client) SetSetting(ctx context.Context, name string, value any) error {
	var ok bool
	if err := c.Call(ctx, "Settings.SetSettingValue", map[string]any{"setting": name, "value": value}, &ok); err != nil {
		return err
	}
	if !ok {
		return &ProtocolError{Method: "Settings.SetSettingValue", Message: fmt.Sprintf("host refused to set %s", name)}
	}
	return nil
}

// ActiveSkin returns the id of the skin currently in use.
func (c *Client) ActiveSkin(ctx context.Context) (string, error) {
	v, err := c.GetSetting(ctx, SkinSetting)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

// MajorVersion returns the host application's major version. Hosts that omit
// the version report DefaultMajorVersion.
func (c *Client) MajorVersion(ctx context.Context) (int, error) {
	var out struct {
		Version struct {
			Major int `json:"major"`
			Minor int `json:"minor"`
		} `json:"version"`
	}
	if err := c.Call(ctx, "Application.GetProperties", map[string]any{"properties": []string{"version"}}, &out); err != nil {
		return 0, err
	}
	if out.Version.Major == 0 {
		return DefaultMajorVersion, nil
	}
	return out.Version.Major, nil
}
