package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
)

// ProgressDisplay renders batch progress as a single rewritten line on a
// terminal, or as one line per finished item otherwise.
type ProgressDisplay struct {
	mu              sync.Mutex
	out             io.Writer
	label           string
	width           int
	interactive     bool
	progress        models.Progress
	currentFile     string
	startTime       time.Time
	bytesDownloaded int64
	now             func() time.Time
}

// NewProgressDisplay creates a new progress display. width is the
// terminal width used to clear the line in interactive mode.
func NewProgressDisplay(out io.Writer, label string, total int, interactive bool, width int) *ProgressDisplay {
	if width <= 0 {
		width = 100
	}
	return &ProgressDisplay{
		out:         out,
		label:       label,
		width:       width,
		interactive: interactive,
		progress:    models.NewProgress(total, 0, 0, 0, 0),
		startTime:   time.Now(),
		now:         time.Now,
	}
}

// Update records a new progress snapshot and redraws
func (p *ProgressDisplay) Update(progress models.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = progress
	if p.interactive {
		p.printProgress()
	}
}

// StartDownload shows the file currently being fetched
func (p *ProgressDisplay) StartDownload(filename string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentFile = filename
	if p.interactive {
		p.printProgress()
	}
}

// CompleteDownload marks a download as complete
func (p *ProgressDisplay) CompleteDownload(filename string, size int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bytesDownloaded += size
	if p.currentFile == filename {
		p.currentFile = ""
	}
	if p.interactive {
		p.printProgress()
		return
	}
	fmt.Fprintf(p.out, "%s %s • %s\n", Green("✓"), filename, formatBytes(size))
}

// FailDownload marks a download as failed
func (p *ProgressDisplay) FailDownload(filename string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.currentFile == filename {
		p.currentFile = ""
	}
	if p.interactive {
		p.printProgress()
		return
	}
	fmt.Fprintf(p.out, "%s %s - %v\n", Red("✗"), filename, err)
}

// Line returns the current progress line without control characters
func (p *ProgressDisplay) Line() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.line()
}

func (p *ProgressDisplay) line() string {
	pr := p.progress
	const barWidth = 20
	filled := int(pr.Percentage / 100 * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %d/%d • %3.0f%% • %s • %s",
		Cyan(p.label),
		bar,
		pr.Completed+pr.Failed,
		pr.Total,
		pr.Percentage,
		formatBytes(p.bytesDownloaded),
		p.calculateETA(),
	)
	if p.currentFile != "" {
		line += fmt.Sprintf(" • %s", p.currentFile)
	}
	if pr.Failed > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d failed", pr.Failed)))
	}
	return line
}

// printProgress clears the line and prints the current state
func (p *ProgressDisplay) printProgress() {
	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", p.width-1), p.line())
}

// Complete prints the final summary
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := p.now().Sub(p.startTime)
	pr := p.progress

	if p.interactive {
		fmt.Fprintln(p.out)
	}
	fmt.Fprintf(p.out, "\n%s Downloaded %d of %d images from %s\n",
		Green("✓"), pr.Completed, pr.Total, p.label)
	fmt.Fprintf(p.out, "  %s %s in %s\n",
		Dim("•"), formatBytes(p.bytesDownloaded), formatDuration(elapsed))
	if pr.Failed > 0 {
		fmt.Fprintf(p.out, "  %s %d downloads failed\n", Dim("•"), pr.Failed)
	}
	if pr.Cancelled > 0 {
		fmt.Fprintf(p.out, "  %s %d downloads cancelled\n", Dim("•"), pr.Cancelled)
	}
}

// calculateETA estimates time remaining
func (p *ProgressDisplay) calculateETA() string {
	done := p.progress.Completed + p.progress.Failed
	if done == 0 {
		return "calculating..."
	}

	remaining := p.progress.Total - done
	if remaining <= 0 {
		return "done"
	}
	elapsed := p.now().Sub(p.startTime)
	rate := float64(done) / elapsed.Seconds()
	if rate == 0 {
		return "calculating..."
	}

	return formatDuration(time.Duration(float64(remaining)/rate) * time.Second)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// formatBytes formats bytes in a human-readable way
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
