package infrastructure

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

// NotificationService sends desktop notifications about requests
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
	run    func(name string, args ...string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		config: config,
		logger: logger,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if n == nil || n.config == nil || !n.config.Enabled {
		return nil
	}

	var err error
	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`, appleScriptEscape(message), appleScriptEscape(title))
		if n.config.Sound {
			script += ` sound name "Glass"`
		}
		err = n.run("osascript", "-e", script)
	case "notify-send":
		err = n.run("notify-send", title, message)
	case "log":
		n.logger.Info("Notification", zap.String("title", title), zap.String("message", message))
		return nil
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}

	if err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", n.config.Method),
			zap.Error(err))
		return err
	}

	n.logger.Debug("Notification sent",
		zap.String("title", title),
		zap.String("message", message))
	return nil
}

// NotifyQueued sends notification when a request is queued
func (n *NotificationService) NotifyQueued(req *domain.Request) {
	n.Send("Request Queued", fmt.Sprintf("%s (%s)", truncateString(req.URL, 40), req.Kind))
}

// NotifyDelivered sends notification when an artifact has been delivered
func (n *NotificationService) NotifyDelivered(req *domain.Request) {
	n.Send("Download Complete",
		fmt.Sprintf("%s (%s)", truncateString(req.Filename, 40), humanize.Bytes(uint64(req.SizeBytes))))
}

// NotifyFailed sends notification when a request ends without an artifact
func (n *NotificationService) NotifyFailed(req *domain.Request) {
	title := "Download Failed"
	if req.FailureKind.IsNotice() {
		title = "Download Stopped"
	}
	n.Send(title, req.FailureKind.UserMessage())
}

func appleScriptEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
