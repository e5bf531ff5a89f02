// Package lockfile provides the named, timestamped lock files tmuxsnap uses
// for mutual exclusion between its processes.
//
// Each [Kind] maps to one file at <lockDir>/<Kind> holding
// {"timestamp": <epoch-ms>}. A lock is live while the file exists and its age
// is within the kind's timeout. Readers that find a stale lock delete it, so
// a crashed holder never blocks anyone for longer than that timeout.
//
// # Basic Usage
//
//	reg := lockfile.New(dir, lockfile.TimeoutsFromConfig(&cfg.Locks), lockfile.WithLogger(logger))
//
//	if reg.IsLive(lockfile.LoadInProgress) {
//		return // a restore is running
//	}
//	if err := reg.Acquire(lockfile.AutoSaveInProgress); err != nil {
//		return err
//	}
//	defer reg.Release(lockfile.AutoSaveInProgress)
//
// Acquire does not check for an existing holder; callers that must not race
// check IsLive first. Malformed lock files are treated as absent.
package lockfile
