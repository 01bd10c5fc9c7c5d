package constants

import "time"

// AppName names the data directory, log file and desktop notifications.
const AppName = "nok"

// NotificationTTL is how long login and incoming-knock banners stay up.
const NotificationTTL = 3 * time.Second

// ShortNotificationTTL is how long knock-sent and joined-room banners stay up.
const ShortNotificationTTL = 2 * time.Second

// DefaultHomeserver is used when neither config nor environment name one.
const DefaultHomeserver = "http://localhost:6167"

// DefaultServerName is appended to bare usernames: alice -> @alice:nok.local.
const DefaultServerName = "nok.local"

// DefaultOfficeURL is the REST base of the office backend.
const DefaultOfficeURL = "http://localhost:8001"

// DefaultDeviceName is the initial_device_display_name sent on login.
const DefaultDeviceName = "nok terminal"

// SyncTimeout is the server-side long-poll timeout for /sync.
const SyncTimeout = 30 * time.Second

// SyncTimeoutMargin is added to SyncTimeout for the HTTP deadline of a sync.
const SyncTimeoutMargin = 10 * time.Second

// RequestTimeout caps every non-sync HTTP request.
const RequestTimeout = 15 * time.Second

// SyncBackoffMin and SyncBackoffMax bound the retry delay after a failed sync
// or a dropped websocket.
const (
	SyncBackoffMin = 1 * time.Second
	SyncBackoffMax = 30 * time.Second
)

// RequestRateLimit is the steady request rate allowed per second.
const RequestRateLimit = 10.0

// RequestRateBurst is the request burst allowed above the steady rate.
const RequestRateBurst = 20

// WebsocketHandshakeTimeout caps the office websocket dial.
const WebsocketHandshakeTimeout = 10 * time.Second

// KnockBeeps is how many beeps announce an incoming knock.
const KnockBeeps = 3

// KnockBeepFrequency and KnockBeepDuration shape each knock beep.
const (
	KnockBeepFrequency = 200.0
	KnockBeepDuration  = 100 * time.Millisecond
	KnockBeepGap       = 50 * time.Millisecond
)

// StopTimeout bounds how long shutdown waits for background tasks.
const StopTimeout = 5 * time.Second
