package audio

import (
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/datatone/tonewire/internal/errors"
)

// DeviceKind selects the endpoint direction for enumeration.
type DeviceKind int

const (
	Capture DeviceKind = iota
	Playback
)

func (k DeviceKind) String() string {
	if k == Capture {
		return "capture"
	}
	return "playback"
}

// Devices enumerates the hardware endpoints of one kind.
func Devices(kind DeviceKind) ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(platformBackends(), malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component("audio").
			Category(errors.CategoryAudioDevice).
			Context("operation", "init_context").
			Build()
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	deviceType := malgo.Capture
	if kind == Playback {
		deviceType = malgo.Playback
	}
	infos, err := ctx.Devices(deviceType)
	if err != nil {
		return nil, errors.New(err).
			Component("audio").
			Category(errors.CategoryAudioDevice).
			Context("operation", "enumerate").
			Context("kind", kind.String()).
			Build()
	}

	out := make([]DeviceInfo, 0, len(infos))
	for i := range infos {
		out = append(out, DeviceInfo{
			Index:     i,
			Name:      strings.TrimSpace(strings.Trim(infos[i].Name(), "\x00")),
			ID:        hexToASCII(infos[i].ID.String()),
			IsDefault: infos[i].IsDefault == 1,
		})
	}
	return out, nil
}
