package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"visionrecall/internal/ipc"
	"visionrecall/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if client, err := ipc.Dial(ctx.socketPath()); err == nil {
				defer client.Close()
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				printNotifyResult(cmd, resp.Sent, resp.Message)
				return nil
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
				fmt.Fprintln(out, "ntfy topic not configured")
				return nil
			}
			service := notifications.NewService(cfg)
			if err := service.Publish(cmd.Context(), notifications.EventTest, nil); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			printNotifyResult(cmd, true, "")
			return nil
		},
	}
}

func printNotifyResult(cmd *cobra.Command, sent bool, message string) {
	out := cmd.OutOrStdout()
	switch {
	case message != "":
		fmt.Fprintln(out, message)
	case sent:
		fmt.Fprintln(out, "Test notification sent")
	default:
		fmt.Fprintln(out, "Notification not sent")
	}
}
