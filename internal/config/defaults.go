package config

const (
	defaultOutputDir            = "~/.local/share/hlscache/output"
	defaultInputCacheDir        = "~/.local/share/hlscache/input"
	defaultStateDir             = "~/.local/share/hlscache/state"
	defaultBind                 = "127.0.0.1:8080"
	defaultMediaPlaylistName    = "index_0_av.m3u8"
	defaultMasterPlaylistName   = "master"
	defaultInputType            = InputFilesystem
	defaultFetchTimeout         = 1
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultSegmentDuration      = 10
	defaultHLSVersion           = 3
	defaultSegmentAgeMinutes    = 4320
	defaultSegmentCapacityMiB   = 16384
	defaultInputAgeMinutes      = 8640
	defaultInputCapacityMiB     = 8192
	defaultThresholdPercent     = 90
	defaultMaintenanceInterval  = 300
	defaultMaintenanceJitter    = 5
	defaultMaintenanceBackoff   = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultS3Region             = "us-east-1"
	defaultFilesystemSourceDir  = "~/media"
	envPrefix                   = "HLSCACHE"
)

// Input types understood by the source factory.
const (
	InputFilesystem = "filesystem"
	InputHTTP       = "http"
	InputS3         = "s3"
	InputFTP        = "ftp"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:     defaultOutputDir,
			InputCacheDir: defaultInputCacheDir,
			StateDir:      defaultStateDir,
		},
		Server: Server{
			Bind:               defaultBind,
			MediaPlaylistName:  defaultMediaPlaylistName,
			MasterPlaylistName: defaultMasterPlaylistName,
		},
		Input: Input{
			Type:         defaultInputType,
			CacheEnabled: true,
			FetchTimeout: defaultFetchTimeout,
			Filesystem:   FilesystemInput{SourceDir: defaultFilesystemSourceDir},
			S3:           S3Input{Region: defaultS3Region, UseSSL: true},
		},
		Segmenter: Segmenter{
			FFmpegBinary:    defaultFFmpegBinary,
			FFprobeBinary:   defaultFFprobeBinary,
			SegmentDuration: defaultSegmentDuration,
			HLSVersion:      defaultHLSVersion,
		},
		Cache: Cache{
			Segment: CacheNamespace{
				AgeMinutes:       defaultSegmentAgeMinutes,
				CapacityMiB:      defaultSegmentCapacityMiB,
				ThresholdPercent: defaultThresholdPercent,
			},
			Input: CacheNamespace{
				AgeMinutes:       defaultInputAgeMinutes,
				CapacityMiB:      defaultInputCapacityMiB,
				ThresholdPercent: defaultThresholdPercent,
			},
		},
		Maintenance: Maintenance{
			Enabled:             true,
			IntervalSeconds:     defaultMaintenanceInterval,
			MaxJitterSeconds:    defaultMaintenanceJitter,
			ErrorBackoffSeconds: defaultMaintenanceBackoff,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
