package bootstrap

import (
	"barcodescan/internal/camera"
	"barcodescan/internal/config"
	"barcodescan/internal/decoder"
	"barcodescan/internal/encoder"
	"barcodescan/internal/logger"
	"barcodescan/internal/ports"
	"barcodescan/internal/providers/remotedecode"
	"barcodescan/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Config     config.Config

	closers []func() error
}

// Close releases process-wide resources such as the remote decoder connection.
func (s Services) Close() error {
	var first error
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	logger.Configure(cfg.Log.Level, cfg.Log.Format)

	cameras := camera.NewFFMPEGCamera(camera.Options{
		Command:      cfg.Camera.FFMPEGCommand,
		InputFormat:  cfg.Camera.InputFormat,
		DeviceRoot:   cfg.Camera.DeviceRoot,
		FrontDevices: cfg.Camera.FrontDevices,
		FrameRate:    cfg.Camera.FrameRate,
	})

	var services Services
	var dec ports.Decoder
	switch cfg.Decoder.Kind {
	case config.DecoderRemote:
		remote := remotedecode.NewDecoder(remotedecode.Config{
			URL:     cfg.Decoder.RemoteURL,
			Token:   cfg.Decoder.RemoteToken,
			Timeout: cfg.Decoder.RemoteTimeout,
		})
		services.closers = append(services.closers, remote.Close)
		dec = remote
	default:
		dec = decoder.NewZXingDecoder(cfg.Decoder.TryHarder)
	}

	services.Config = cfg
	services.Controller = usecase.NewSessionController(
		cameras,
		dec,
		encoder.NewQRWriter(cfg.Encode.Dir, cfg.Encode.DefaultSize),
		eventSink,
		usecase.Config{
			Quality:           cfg.Camera.Quality,
			FrameErrorBackoff: cfg.Session.FrameErrorBackoff,
			AwaitPreviewReady: cfg.Session.AwaitPreviewReady,
			DefaultEncodeSize: cfg.Encode.DefaultSize,
		},
	)
	return services, nil
}
