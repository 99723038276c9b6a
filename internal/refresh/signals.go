package refresh

import "github.com/zoobzio/capitan"

// Refresh loop signals.
var (
	// RefreshStarted is emitted when a looping job starts.
	RefreshStarted = capitan.NewSignal(
		"webcore.refresh.started",
		"Refresh loop started",
	)

	// RefreshSucceeded is emitted after an iteration whose refresh and
	// self-check both passed.
	RefreshSucceeded = capitan.NewSignal(
		"webcore.refresh.succeeded",
		"Refresh iteration succeeded",
	)

	// RefreshFailed is emitted after an iteration that failed.
	RefreshFailed = capitan.NewSignal(
		"webcore.refresh.failed",
		"Refresh iteration failed",
	)

	// RefreshStopped is emitted when the loop exits at shutdown.
	RefreshStopped = capitan.NewSignal(
		"webcore.refresh.stopped",
		"Refresh loop stopped",
	)
)

// Field keys for refresh events.
var (
	// KeyJob is the job name.
	KeyJob = capitan.NewStringKey("job")

	// KeyIteration is the 1-based iteration number.
	KeyIteration = capitan.NewIntKey("iteration")

	// KeyInterval is the configured interval.
	KeyInterval = capitan.NewDurationKey("interval")

	// KeyError is the failure message.
	KeyError = capitan.NewStringKey("error")
)
