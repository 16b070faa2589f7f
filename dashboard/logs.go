package dashboard

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalgonoise/bansuri/runner"
)

// tailLog reproduces the original dashboard's get_task_logs byte-range
// algorithm: offset counts back from end-of-file, limit bounds how
// many bytes are read from that point.
func tailLog(inst *runner.Runner, logType string, offset, limit int) (string, error) {
	d := inst.Descriptor()

	var path string

	switch logType {
	case "stderr":
		if d.Stderr == "combined" {
			path = d.Stdout
		} else {
			path = d.Stderr
		}
	default:
		path = d.Stdout
	}

	if path == "" {
		return "", fmt.Errorf("No log file configured for task %q (%s)", d.Name, logType)
	}

	if d.WorkingDirectory != "" && !filepath.IsAbs(path) {
		path = filepath.Join(d.WorkingDirectory, path)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("Log file not found for task %q: %s", d.Name, path)
		}

		return "", fmt.Errorf("Failed to read log file for task %q: %w", d.Name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("Failed to stat log file for task %q: %w", d.Name, err)
	}

	size := info.Size()
	endPos := size - int64(offset)

	if endPos <= 0 {
		return "", nil
	}

	startPos := endPos - int64(limit)
	if startPos < 0 {
		startPos = 0
	}

	readLen := endPos - startPos

	if _, err := f.Seek(startPos, io.SeekStart); err != nil {
		return "", fmt.Errorf("Failed to seek log file for task %q: %w", d.Name, err)
	}

	buf := make([]byte, readLen)

	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("Failed to read log file for task %q: %w", d.Name, err)
	}

	return strings.ToValidUTF8(string(buf[:n]), "�"), nil
}
