package httpapi

import "net/http"

type uiSettingsResponse struct {
	CaptureSampleRate  int     `json:"capture_sample_rate"`
	CaptureFrameSize   int     `json:"capture_frame_size"`
	PlaybackSampleRate int     `json:"playback_sample_rate"`
	VisualizerFPS      int     `json:"visualizer_fps"`
	VisualizerFFTSize  int     `json:"visualizer_fft_size"`
	CanvasWidth        float64 `json:"canvas_width"`
	RemoteMicrophone   bool    `json:"remote_microphone"`
	RemotePlayback     bool    `json:"remote_playback"`
}

func (s *Server) handleUISettings(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, uiSettingsResponse{
		CaptureSampleRate:  s.cfg.CaptureSampleRate,
		CaptureFrameSize:   s.cfg.CaptureFrameSize,
		PlaybackSampleRate: s.cfg.PlaybackSampleRate,
		VisualizerFPS:      s.cfg.VisualizerFPS,
		VisualizerFFTSize:  s.cfg.VisualizerFFTSize,
		CanvasWidth:        s.cfg.VisualizerCanvasWidth,
		RemoteMicrophone:   s.mic != nil,
		RemotePlayback:     s.cfg.PlaybackSink == "" || s.cfg.PlaybackSink == "remote",
	})
}
