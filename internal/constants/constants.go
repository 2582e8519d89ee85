package constants

import "time"

// Application
const (
	AppID             = "com.conservelee.flashbuyer"
	AppName           = "flash-buyer"
	DefaultConfigFile = "config.yaml"
	ConfigEnvVar      = "FLASHBUY_CONFIG" // overrides DefaultConfigFile
	TessdataEnvVar    = "TESSDATA_PREFIX"
)

// Monitoring defaults
const (
	DefaultCheckInterval = 100 * time.Millisecond // Countdown poll interval
	DefaultClickDelay    = 50 * time.Millisecond  // Pointer move duration and pause between buy and confirm
	DefaultMaxRetries    = 3                      // Consecutive unreadable polls before assuming expiry
)

// OCR defaults
const (
	DefaultLanguage       = "eng"
	DefaultPageSegMode    = 8 // single word, same as "--psm 8"
	DefaultContrastFactor = 2.0
	DefaultScale          = 2.0 // Upscale factor before OCR
)

// Default positions, placeholders until the user picks real ones
var (
	DefaultCountdownBox = []int{100, 200, 300, 240}
	DefaultBuyButton    = []int{500, 600}
	DefaultConfirmBtn   = []int{550, 650}
)

// UI
const (
	WindowTitle       = "智能抢购助手"
	WindowWidth       = 600
	WindowHeight      = 500
	LogHistoryLimit   = 100             // Lines kept in the UI log list
	PickPositionDelay = 3 * time.Second // Time to hover the target before the position is read
	TestClickLeadIn   = 3 * time.Second // Time to switch windows before a test click
	ProgressBuffer    = 64
	SnapshotDir       = "snapshots" // Region screenshots saved from the tools tab
)

// Region probe
const (
	ProbeFrames   = 5
	ProbeInterval = 1100 * time.Millisecond // Slightly over a second so a live countdown always ticks
)
