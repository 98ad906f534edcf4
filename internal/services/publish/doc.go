// Package publish uploads finished videos to YouTube and waits for the
// platform to accept them.
//
// Upload goes through youtube/v3 Videos.Insert with snippet and status
// parts. Scheduled jobs are uploaded private with a publishAt timestamp;
// everything else uses the configured privacy. After the upload the client
// polls the video's processing status until the platform reports it
// processed, rejects it (the stated reason is surfaced verbatim), or the
// poll budget runs out. Caption and thumbnail uploads are accessories: once
// the video itself is live their failures are logged, not fatal.
package publish
