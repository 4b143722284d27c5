// Package checkpoint records which images of a post have been downloaded
// so an interrupted `socialsnap download --resume` skips them.
//
// Checkpoints live under $XDG_DATA_HOME/socialsnap/checkpoints/ when
// XDG_DATA_HOME is set, otherwise under the socialsnap folder of the user
// configuration directory (~/.config on Linux, ~/Library/Application
// Support on macOS, %AppData% on Windows).
//
// One file is kept per post URL and written atomically.
package checkpoint
