package constants

import "time"

// HeatmapView is the calendar layout a habit (or the whole document) renders with
type HeatmapView string

// SyncStatus is the observable state of the remote sync coordinator
type SyncStatus string

// ChannelState is the state of the realtime change subscription
type ChannelState string

const (
	AppName             = "habitmap"
	DefaultKeyringUser  = "database-connection"
	DefaultConfigDir    = "~/.config/habitmap"
	DefaultConfigFile   = "config.yaml"
	DefaultDatabaseFile = "habitmap.db"
	Version             = "v0.3.0"

	// StorageNamespace prefixes every local document key as "<namespace>:<accountId>"
	StorageNamespace = "habitmap-data-v2"
	// SessionKey holds the last signed-in account in the local KV store
	SessionKey = "habitmap-session"
	// OfflineAccountID is used when no remote account is signed in
	OfflineAccountID = "local"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// Heatmap views
	ViewWeekDays HeatmapView = "weekDays"
	ViewMonth    HeatmapView = "month"
	ViewWeek     HeatmapView = "week"
	ViewYear     HeatmapView = "year"

	DefaultHeatmapView = ViewMonth

	// Weekly goal bounds
	MinWeeklyTarget     = 1
	MaxWeeklyTarget     = 7
	DefaultWeeklyTarget = 3

	// StreakScanLimit bounds the backward walk when counting streaks.
	// Streaks longer than this are undercounted.
	StreakScanLimit = 365

	// Calendar windows, in days
	MonthWindowMinDays  = 35
	MonthLookbackDays   = 182
	YearWindowDays      = 371
	WeekWindowMinWeeks  = 12
	WeekLookbackWeeks   = 52
	SummaryWindowDays   = 7
	DefaultCheckpointFn = "Checkpoint %d"

	// Sync timings
	PushDebounce          = 800 * time.Millisecond
	ReconnectDelay        = 3 * time.Second
	PollInterval          = 30 * time.Second
	SessionRefreshMargin  = 60 * time.Second
	AccessTokenTTL        = time.Hour
	RefreshTokenTTL       = 30 * 24 * time.Hour
	RealtimeNotifyChannel = "habitmap_documents"

	// Sync statuses
	SyncIdle        SyncStatus = "idle"
	SyncPendingPush SyncStatus = "pending"
	SyncPushing     SyncStatus = "syncing"
	SyncError       SyncStatus = "error"
	SyncDisabled    SyncStatus = "disabled"

	// Realtime channel states
	ChannelUnsubscribed ChannelState = "unsubscribed"
	ChannelSubscribing  ChannelState = "subscribing"
	ChannelSubscribed   ChannelState = "subscribed"
	ChannelReconnecting ChannelState = "reconnecting"
)

// HeatmapViews lists every valid view in display order
var HeatmapViews = []HeatmapView{ViewWeekDays, ViewMonth, ViewWeek, ViewYear}

// Palette is the starter colour rotation for new habits
var Palette = []string{"#38bdf8", "#f97316", "#a855f7", "#22c55e", "#eab308", "#f43f5e"}

// Valid reports whether v is one of the known heatmap views
func (v HeatmapView) Valid() bool {
	for _, known := range HeatmapViews {
		if v == known {
			return true
		}
	}
	return false
}

// PaletteColor returns the palette entry for the n-th habit
func PaletteColor(n int) string {
	if n < 0 {
		n = 0
	}
	return Palette[n%len(Palette)]
}
