package model

import "fmt"

// Platform identifies a third-party chat service a destination targets.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformVK       Platform = "vk"
	PlatformMAX      Platform = "max"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformTelegram, PlatformVK, PlatformMAX:
		return true
	default:
		return false
	}
}

func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown platform: %q", s)
	}
	return p, nil
}
