// Package logging provides structured logging for tmuxsnap.
//
// It wraps log/slog with a JSON handler. Foreground commands and the
// autosave daemon each write to their own file under the state directory's
// logs/ folder; the daemon has no terminal attached, so its log file is the
// only place its failures ever appear.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(logging.Options{
//	    Path:     filepath.Join(stateDir, "logs", "daemon.log"),
//	    Level:    "INFO",
//	    Rotation: logging.DefaultRotationConfig(),
//	})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.WithComponent("autosave").Info("save cycle finished", "sessions", 3)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"save cycle finished","component":"autosave","sessions":3}
//
// # Rotation
//
// Log files are rotated by size through [RotatingWriter]. Backups are named
// daemon.log.1 (newest) through daemon.log.N (oldest) and may be gzip
// compressed.
//
// # Thread Safety
//
// [Logger] and [RotatingWriter] are safe for concurrent use. Child loggers
// created via With* share the parent's writer.
package logging
