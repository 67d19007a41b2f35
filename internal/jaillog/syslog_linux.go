package jaillog

import (
	"log/syslog"
)

// AddSyslog registers a logger writing to the local syslog daemon under
// LOG_DAEMON, used when the engine daemonizes under --detach.
func AddSyslog(tag string, level Level) error {
	w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, tag)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	AddLoggerUnlocked("syslog", w, level, false)
	return nil
}
