package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"
)

var logFile *os.File

// Init sets up dual logging to stdout and a log file. An empty path leaves
// logging on stdout only.
func Init(path string) {
	if path == "" {
		return
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Printf("WARNING: cannot create log directory: %v", err)
		return
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("WARNING: cannot open log file %s: %v", path, err)
		return
	}

	logFile = f
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))
	log.Printf("Logging to file: %s", path)
}

// Close releases the log file, if one was opened.
func Close() {
	if logFile != nil {
		log.SetOutput(os.Stdout)
		_ = logFile.Close()
		logFile = nil
	}
}
