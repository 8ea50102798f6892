package config

import "time"

type Config struct {
	Api    ApiConfig    `yaml:"api"`
	Runner RunnerConfig `yaml:"runner"`
	Nodes  NodesConfig  `yaml:"nodes"`
	Video  VideoConfig  `yaml:"video"`
	Log    LogConfig    `yaml:"log"`
}

type ApiConfig struct {
	Port           string `yaml:"port"`
	AllowedOrigins string `yaml:"allowedOrigins"`
	// BodyLimitMB caps request bodies; inline tensors can be large.
	BodyLimitMB int `yaml:"bodyLimitMB"`
}

type RunnerConfig struct {
	QueueSize     int `yaml:"queueSize"`
	MaxConcurrent int `yaml:"maxConcurrent"`
	RetainJobs    int `yaml:"retainJobs"`
}

type NodesConfig struct {
	// TimeoutsSeconds overrides the per-class request timeout.
	TimeoutsSeconds map[string]int `yaml:"timeoutsSeconds"`
	MaxVideoMB      int            `yaml:"maxVideoMB"`
}

func (n NodesConfig) Timeouts() map[string]time.Duration {
	out := make(map[string]time.Duration, len(n.TimeoutsSeconds))
	for class, s := range n.TimeoutsSeconds {
		if s > 0 {
			out[class] = time.Duration(s) * time.Second
		}
	}
	return out
}

type VideoConfig struct {
	FFmpegPath  string `yaml:"ffmpegPath"`
	FFprobePath string `yaml:"ffprobePath"`
	TempDir     string `yaml:"tempDir"`
	MaxFrames   int    `yaml:"maxFrames"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}
