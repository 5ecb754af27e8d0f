package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Command runs a shell command per notification, e.g.
// "notify-send 'Sponsormatch' '{{.Title}}'".
type Command struct {
	Template string
}

// Notify runs the templated command.
func (c Command) Notify(ctx context.Context, n Notification) error {
	if c.Template == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", templateNotification(c.Template, n))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notify: command failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// templateNotification replaces placeholders in the command template with
// notification values.
func templateNotification(command string, n Notification) string {
	r := strings.NewReplacer(
		"{{.Title}}", n.Title,
		"{{.Message}}", n.Message,
		"{{.Account}}", n.AccountID,
		"{{.Kind}}", n.Kind,
		"{{.RelatedID}}", n.RelatedID,
	)
	return r.Replace(command)
}
