// Package schedule runs configured exports on cron schedules.
//
// Schedules use the standard five-field cron syntax plus descriptors such as
// "@daily" and "@every 15m":
//   - "0 3 * * *"    - Daily at 3 AM
//   - "*/15 * * * *" - Every 15 minutes
//   - "0 0 * * 0"    - Weekly on Sunday at midnight
//
// Each run is an independent pipeline export with its own context and
// optional timeout. If a job is still running when it comes due again, the
// new run is skipped and counted in dbxport_scheduled_runs_skipped_total.
// Reload swaps the job set in place when the configuration changes.
package schedule
