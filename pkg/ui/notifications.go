package ui

import (
	"fmt"
	"html"
	"os/exec"
	"runtime"
	"strings"

	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
)

// AppName is the title used for desktop notifications
const AppName = "socialsnap"

// NotificationSender delivers one desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// commandSender runs an external notifier built by argv
type commandSender struct {
	argv func(title, message string) []string
}

func (c commandSender) Send(title, message string) error {
	args := c.argv(title, message)
	return exec.Command(args[0], args[1:]...).Run()
}

const windowsToast = `[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
$doc.LoadXml('<toast><visual><binding template="ToastText02"><text id="1">%s</text><text id="2">%s</text></binding></visual></toast>')
[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier('%s').Show([Windows.UI.Notifications.ToastNotification]::new($doc))`

// senderFor returns the notifier command for an operating system, or nil
// where none is known
func senderFor(goos string) NotificationSender {
	switch goos {
	case "linux", "freebsd", "openbsd":
		return commandSender{argv: func(title, message string) []string {
			return []string{"notify-send", "--app-name=" + AppName, title, message}
		}}
	case "darwin":
		return commandSender{argv: func(title, message string) []string {
			script := fmt.Sprintf(`display notification "%s" with title "%s"`, appleScriptEscape(message), appleScriptEscape(title))
			return []string{"osascript", "-e", script}
		}}
	case "windows":
		return commandSender{argv: func(title, message string) []string {
			script := fmt.Sprintf(windowsToast, powershellEscape(title), powershellEscape(message), AppName)
			return []string{"powershell", "-NoProfile", "-NonInteractive", "-Command", script}
		}}
	default:
		return nil
	}
}

func appleScriptEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// powershellEscape makes s safe inside the single-quoted toast XML
func powershellEscape(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "'", "''")
}

// Notifier echoes events to Out and, best effort, to the desktop
type Notifier struct {
	sender NotificationSender
}

// NewNotifier picks the sender for the running operating system
func NewNotifier() *Notifier {
	return &Notifier{sender: senderFor(runtime.GOOS)}
}

// NewNotifierWithSender creates a Notifier using sender, which may be nil
// to print to the console only
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

func (n *Notifier) send(title, message string, color func(string) string) {
	fmt.Fprintf(Out, "\n%s: %s\n", color(title), color(message))
	if n.sender != nil {
		_ = n.sender.Send(title, message)
	}
}

// SendNotification sends a neutral notification
func (n *Notifier) SendNotification(title, message string) {
	n.send(title, message, Cyan)
}

// SendError sends an error notification
func (n *Notifier) SendError(title, message string) {
	n.send(title, message, Red)
}

// SendSuccess sends a success notification
func (n *Notifier) SendSuccess(title, message string) {
	n.send(title, message, Green)
}

// BatchFinished reports the outcome of a download batch
func (n *Notifier) BatchFinished(platform models.Platform, p models.Progress) {
	switch {
	case p.Cancelled > 0:
		n.SendError(AppName, fmt.Sprintf("Download from %s interrupted, %d of %d images saved", platform, p.Completed, p.Total))
	case p.Failed > 0:
		n.SendError(AppName, fmt.Sprintf("%d of %d %s downloads failed", p.Failed, p.Total, platform))
	default:
		n.SendSuccess(AppName, fmt.Sprintf("%d images downloaded from %s", p.Completed, platform))
	}
}
