package config

const (
	defaultWorkDir     = "~/.local/share/vidpipe/work"
	defaultLogDir      = "~/.local/share/vidpipe/logs"
	defaultJournalPath = "~/.local/share/vidpipe/journal.db"
	defaultSocketPath  = "~/.local/share/vidpipe/vidpipe.sock"
	defaultLockPath    = "~/.local/share/vidpipe/vidpipe.lock"
	defaultAPIBind     = "127.0.0.1:7489"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultPollInterval           = 300
	defaultReclaimTimeout         = 5400 // 90 minutes
	defaultStageAttempts          = 3
	defaultRetryDelay             = 2
	defaultAnalysisTimeout        = 600
	defaultSynthesisTimeout       = 900
	defaultAssetTimeout           = 600
	defaultRenderTimeout          = 600
	defaultRenderTimeoutPerMinute = 120
	defaultValidationTimeout      = 120
	defaultPublishTimeout         = 3600

	defaultSheetName       = "대본"
	defaultHeaderStatus    = "상태"
	defaultHeaderScript    = "대본"
	defaultHeaderScheduled = "예약시간"
	defaultHeaderTitle     = "제목"
	defaultHeaderThumbnail = "썸네일"
	defaultHeaderResultURL = "영상링크"
	defaultHeaderError     = "오류"
	defaultHeaderCost      = "비용"
	defaultHeaderStartedAt = "처리시작"

	defaultSynthesisVoice        = "ko-KR-standard-a"
	defaultSynthesisRate         = 1.0
	defaultChunkByteLimit        = 2800
	defaultChunkByteCeiling      = 3000
	defaultSynthesisTimeoutHTTP  = 120
	defaultSynthesisCostPer1K    = 0.016
	defaultAnalysisBaseURL       = "https://openrouter.ai/api/v1/chat/completions"
	defaultAnalysisModel         = "google/gemini-3-flash-preview"
	defaultAnalysisTimeoutHTTP   = 180
	defaultAnalysisMaxScenes     = 12
	defaultAnalysisCostPerCall   = 0.004
	defaultImageEndpoint         = "https://image.pollinations.ai/prompt"
	defaultImageTimeoutHTTP      = 60
	defaultImageMinBytes         = 1024
	defaultImageCost             = 0.0
	defaultRenderWidth           = 1920
	defaultRenderHeight          = 1080
	defaultRenderFPS             = 30
	defaultRenderPreset          = "medium"
	defaultRenderCRF             = 23
	defaultRenderAudioBitrate    = "192k"
	defaultSceneWorkers          = 1
	defaultTransitionDuration    = 0.5
	defaultStderrTailLines       = 40
	defaultSubtitleStyle         = "FontName=NanumGothic,FontSize=18,PrimaryColour=&H00FFFFFF,OutlineColour=&H00000000,Outline=2"
	defaultMinDurationSeconds    = 10.0
	defaultMinSizeBytes          = 256 * 1024
	defaultMinWidth              = 1280
	defaultMinHeight             = 720
	defaultDecodeProbeSeconds    = 15
	defaultPublishPrivacy        = "private"
	defaultPublishCategory       = "22"
	defaultPublishCaptionLang    = "ko"
	defaultPublishPollInterval   = 20
	defaultPublishPollBudget     = 1800
	defaultNotifyRequestTimeout  = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:     defaultWorkDir,
			LogDir:      defaultLogDir,
			JournalPath: defaultJournalPath,
		},
		Workflow: Workflow{
			PollInterval:           defaultPollInterval,
			ReclaimTimeout:         defaultReclaimTimeout,
			StageAttempts:          defaultStageAttempts,
			RetryDelay:             defaultRetryDelay,
			AnalysisTimeout:        defaultAnalysisTimeout,
			SynthesisTimeout:       defaultSynthesisTimeout,
			AssetTimeout:           defaultAssetTimeout,
			RenderTimeout:          defaultRenderTimeout,
			RenderTimeoutPerMinute: defaultRenderTimeoutPerMinute,
			ValidationTimeout:      defaultValidationTimeout,
			PublishTimeout:         defaultPublishTimeout,
		},
		Sheet: Sheet{
			SheetName:       defaultSheetName,
			HeaderStatus:    defaultHeaderStatus,
			HeaderScript:    defaultHeaderScript,
			HeaderScheduled: defaultHeaderScheduled,
			HeaderTitle:     defaultHeaderTitle,
			HeaderThumbnail: defaultHeaderThumbnail,
			HeaderResultURL: defaultHeaderResultURL,
			HeaderError:     defaultHeaderError,
			HeaderCost:      defaultHeaderCost,
			HeaderStartedAt: defaultHeaderStartedAt,
		},
		Synthesis: Synthesis{
			Voice:            defaultSynthesisVoice,
			SpeakingRate:     defaultSynthesisRate,
			ChunkByteLimit:   defaultChunkByteLimit,
			ChunkByteCeiling: defaultChunkByteCeiling,
			RequestTimeout:   defaultSynthesisTimeoutHTTP,
			CostPer1KChars:   defaultSynthesisCostPer1K,
		},
		ScriptAnalysis: ScriptAnalysis{
			BaseURL:        defaultAnalysisBaseURL,
			Model:          defaultAnalysisModel,
			RequestTimeout: defaultAnalysisTimeoutHTTP,
			MaxScenes:      defaultAnalysisMaxScenes,
			CostPerCall:    defaultAnalysisCostPerCall,
		},
		ImageGen: ImageGen{
			Endpoint:       defaultImageEndpoint,
			Width:          defaultRenderWidth,
			Height:         defaultRenderHeight,
			RequestTimeout: defaultImageTimeoutHTTP,
			MinBytes:       defaultImageMinBytes,
			CostPerImage:   defaultImageCost,
		},
		Render: Render{
			FFmpegBinary:       "ffmpeg",
			FFprobeBinary:      "ffprobe",
			Width:              defaultRenderWidth,
			Height:             defaultRenderHeight,
			FPS:                defaultRenderFPS,
			Preset:             defaultRenderPreset,
			CRF:                defaultRenderCRF,
			AudioBitrate:       defaultRenderAudioBitrate,
			SceneWorkers:       defaultSceneWorkers,
			TransitionDuration: defaultTransitionDuration,
			StderrTailLines:    defaultStderrTailLines,
			SubtitleStyle:      defaultSubtitleStyle,
		},
		Validation: Validation{
			MinDurationSeconds: defaultMinDurationSeconds,
			MinSizeBytes:       defaultMinSizeBytes,
			MinWidth:           defaultMinWidth,
			MinHeight:          defaultMinHeight,
			DecodeProbeSeconds: defaultDecodeProbeSeconds,
		},
		Publish: Publish{
			Privacy:           defaultPublishPrivacy,
			CategoryID:        defaultPublishCategory,
			NotifySubscribers: true,
			CaptionLanguage:   defaultPublishCaptionLang,
			PollInterval:      defaultPublishPollInterval,
			PollBudget:        defaultPublishPollBudget,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobCompleted:   true,
			JobFailed:      true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Daemon: Daemon{
			APIBind:    defaultAPIBind,
			SocketPath: defaultSocketPath,
			LockPath:   defaultLockPath,
		},
	}
}
