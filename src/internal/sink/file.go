// FILE: logfan/src/internal/sink/file.go
package sink

import (
	"bytes"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"logfan/src/internal/config"
	"logfan/src/internal/core"
	"logfan/src/internal/directory"
	"logfan/src/internal/format"

	"github.com/lixenwraith/log"
)

// FileSink writes messages to a file. In "rotating" mode a dedicated logger
// instance owns rotation and retention; in "backup" mode the sink appends to
// a plain file and shifts numbered backups through a directory.Directory
// when the size limit trips.
type FileSink struct {
	config    config.FileSinkConfig
	writer    *log.Logger
	dir       directory.Directory
	open      func() (directory.File, error)
	file      directory.File
	maxBytes  int64
	formatter format.Formatter
	startTime time.Time
	logger    *log.Logger

	// Statistics
	totalProcessed atomic.Uint64
	errors         atomic.Uint64
	rotations      atomic.Uint64
	rotateErrors   atomic.Uint64
	lastProcessed  atomic.Value // time.Time
}

// NewFileSink creates a file sink from configuration.
func NewFileSink(cfg config.FileSinkConfig, formatter format.Formatter, logger *log.Logger) (*FileSink, error) {
	if cfg.Directory == "" {
		return nil, fmt.Errorf("file sink requires 'directory'")
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("file sink requires 'name'")
	}

	fs := &FileSink{
		config:    cfg,
		formatter: formatter,
		startTime: time.Now(),
		logger:    logger,
	}
	fs.lastProcessed.Store(time.Time{})

	switch cfg.Mode {
	case "", "rotating":
		if err := fs.startWriter(); err != nil {
			return nil, err
		}
	case "backup":
		local, err := directory.NewLocal(cfg.Directory, cfg.Include, cfg.Exclude, int(cfg.MaxBackups))
		if err != nil {
			return nil, err
		}
		if err := fs.useDirectory(local, func() (directory.File, error) { return local.Open(cfg.Name) }, cfg.MaxSizeMB*1024*1024); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown file sink mode '%s'", cfg.Mode)
	}

	logger.Info("msg", "File sink created",
		"component", "file_sink",
		"directory", cfg.Directory,
		"name", cfg.Name,
		"mode", fs.mode())
	return fs, nil
}

// NewDirectorySink creates a backup mode sink over an arbitrary Directory.
// open is called initially and after every rotation.
func NewDirectorySink(dir directory.Directory, open func() (directory.File, error), maxBytes int64, formatter format.Formatter, logger *log.Logger) (*FileSink, error) {
	fs := &FileSink{
		config:    config.FileSinkConfig{Mode: "backup"},
		formatter: formatter,
		startTime: time.Now(),
		logger:    logger,
	}
	fs.lastProcessed.Store(time.Time{})
	if err := fs.useDirectory(dir, open, maxBytes); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileSink) startWriter() error {
	// Create configuration for the internal log writer
	writerConfig := log.DefaultConfig()
	writerConfig.Directory = fs.config.Directory
	writerConfig.Name = fs.config.Name
	writerConfig.EnableConsole = false
	writerConfig.ShowTimestamp = false
	writerConfig.ShowLevel = false
	writerConfig.Format = "raw"

	if fs.config.MaxSizeMB > 0 {
		writerConfig.MaxSizeKB = fs.config.MaxSizeMB * 1000
	}
	if fs.config.MaxTotalSizeMB > 0 {
		writerConfig.MaxTotalSizeKB = fs.config.MaxTotalSizeMB * 1000
	}
	if fs.config.MinDiskFreeMB > 0 {
		writerConfig.MinDiskFreeKB = fs.config.MinDiskFreeMB * 1000
	}
	writerConfig.RetentionPeriodHrs = fs.config.RetentionHours

	writer := log.NewLogger()
	if err := writer.ApplyConfig(writerConfig); err != nil {
		return fmt.Errorf("failed to initialize file writer: %w", err)
	}
	if err := writer.Start(); err != nil {
		return fmt.Errorf("failed to start file writer: %w", err)
	}
	fs.writer = writer
	return nil
}

func (fs *FileSink) useDirectory(dir directory.Directory, open func() (directory.File, error), maxBytes int64) error {
	f, err := open()
	if err != nil {
		return err
	}
	fs.dir = dir
	fs.open = open
	fs.file = f
	fs.maxBytes = maxBytes

	names, err := dir.IncludeList()
	if err != nil {
		fs.logger.Warn("msg", "Failed to list rotation candidates",
			"component", "file_sink",
			"error", err)
	}
	fs.logger.Debug("msg", "File sink directory ready",
		"component", "file_sink",
		"path", f.Path(),
		"patterns", dir.IncludeListToString(),
		"files", len(names))
	return nil
}

func (fs *FileSink) mode() string {
	if fs.writer != nil {
		return "rotating"
	}
	return "backup"
}

func (fs *FileSink) Name() string       { return "file" }
func (fs *FileSink) Type() core.LogType { return core.LogToFile }

// Write formats and appends one message. Called only from the delivery
// goroutine, so rotation needs no lock of its own.
func (fs *FileSink) Write(msg core.LogMessage) error {
	fs.totalProcessed.Add(1)
	fs.lastProcessed.Store(time.Now())

	formatted, err := fs.formatter.Format(msg)
	if err != nil {
		fs.errors.Add(1)
		return err
	}

	if fs.writer != nil {
		// The writer appends its own newline
		fs.writer.Message(string(bytes.TrimSuffix(formatted, []byte{'\n'})))
		return nil
	}

	if fs.file == nil {
		if err := fs.reopen(); err != nil {
			fs.errors.Add(1)
			return err
		}
	}

	// A failed rotation is reported but the message still goes to the
	// reopened active file
	var rotateErr error
	if fs.maxBytes > 0 && fs.file.Size() > 0 && fs.file.Size()+int64(len(formatted)) > fs.maxBytes {
		if rotateErr = fs.rotate(); rotateErr != nil {
			fs.errors.Add(1)
			fs.rotateErrors.Add(1)
			if fs.file == nil {
				return rotateErr
			}
		}
	}

	if err := fs.file.Append(formatted); err != nil {
		fs.errors.Add(1)
		return errors.Join(rotateErr, fmt.Errorf("failed to append to %s: %w", fs.file.Path(), err))
	}
	return rotateErr
}

func (fs *FileSink) rotate() error {
	path := fs.file.Path()
	if err := fs.file.Close(); err != nil {
		fs.logger.Warn("msg", "Failed to close file before rotation",
			"component", "file_sink",
			"path", path,
			"error", err)
	}
	fs.file = nil

	// Rotation failure still reopens so writes continue to the active file
	rotateErr := fs.dir.BackupFiles(path)
	if rotateErr == nil {
		fs.rotations.Add(1)
	}
	if err := fs.reopen(); err != nil {
		return err
	}
	if rotateErr != nil {
		return fmt.Errorf("failed to rotate %s: %w", path, rotateErr)
	}
	return nil
}

func (fs *FileSink) reopen() error {
	f, err := fs.open()
	if err != nil {
		return err
	}
	fs.file = f
	return nil
}

func (fs *FileSink) Flush() error {
	if fs.writer != nil {
		return fs.writer.Flush(time.Second)
	}
	if s, ok := fs.file.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

func (fs *FileSink) Close() error {
	if fs.writer != nil {
		// Shutdown the writer with timeout
		if err := fs.writer.Shutdown(2 * time.Second); err != nil {
			fs.logger.Error("msg", "Error shutting down file writer",
				"component", "file_sink",
				"error", err)
			return err
		}
		return nil
	}
	if fs.file != nil {
		err := fs.file.Close()
		fs.file = nil
		return err
	}
	return nil
}

func (fs *FileSink) GetStats() SinkStats {
	lastProc, _ := fs.lastProcessed.Load().(time.Time)

	details := map[string]any{
		"directory": fs.config.Directory,
		"name":      fs.config.Name,
		"mode":      fs.mode(),
		"format":    fs.formatter.Name(),
	}
	if fs.dir != nil {
		details["rotations"] = fs.rotations.Load()
		details["rotate_errors"] = fs.rotateErrors.Load()
		details["patterns"] = fs.dir.IncludeListToString()
	}

	return SinkStats{
		Name:           fs.Name(),
		Type:           "file",
		TotalProcessed: fs.totalProcessed.Load(),
		Errors:         fs.errors.Load(),
		StartTime:      fs.startTime,
		LastProcessed:  lastProc,
		Details:        details,
	}
}
