package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"focussync/internal/app"
	"focussync/internal/config"
	"focussync/internal/logging"
	"focussync/internal/models"
	"focussync/internal/reconcile"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type cli struct {
	userID string
	debug  bool
	a      *app.App
}

// NewRootCmd builds the command tree; each invocation gets fresh state.
func NewRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "focussync",
		Short:         "Reconcile this device's focus data with a cloud account",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if c.debug {
				cfg.LogLevel = "debug"
			}
			if c.userID == "" {
				c.userID = cfg.UserID
			}
			log := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel, "focussync")
			a, err := app.Open(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			c.a = a
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.a == nil {
				return nil
			}
			return c.a.Close()
		},
	}
	root.PersistentFlags().StringVarP(&c.userID, "user", "u", "", "account user id (defaults to FOCUSSYNC_USER_ID)")
	root.PersistentFlags().BoolVarP(&c.debug, "debug", "d", false, "enable debug logging")

	root.AddCommand(
		c.decideCmd(),
		c.statusCmd(),
		c.signInCmd(),
		c.resolveCmd(),
		c.uploadCmd(),
		c.downloadCmd(),
		c.pullCmd(),
		c.mergeCmd(),
		c.saveCmd(),
		c.presenceCmd(),
		c.watchCmd(),
		c.remindersCmd(),
	)
	return root
}

func (c *cli) printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) decideCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decide",
		Short: "Print the sync action without moving data",
		RunE: func(cmd *cobra.Command, args []string) error {
			obs, err := c.a.Session.Observe(cmd.Context(), c.userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reconcile.Decide(obs.HasLocal, obs.HasCloud, obs.Migrated))
			return nil
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what this device knows about the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			obs, err := c.a.Session.Observe(ctx, c.userID)
			if err != nil {
				return err
			}
			last, err := c.a.Local.LastSyncAt(ctx, c.userID)
			if err != nil {
				return err
			}
			return c.printJSON(cmd, struct {
				UserID      string                `json:"userId"`
				DeviceID    string                `json:"deviceId"`
				Action      string                `json:"action"`
				LastSyncAt  int64                 `json:"lastSyncAt"`
				Observation reconcile.Observation `json:"observation"`
			}{
				UserID:      c.userID,
				DeviceID:    c.a.Config.DeviceID,
				Action:      reconcile.Decide(obs.HasLocal, obs.HasCloud, obs.Migrated).String(),
				LastSyncAt:  last,
				Observation: obs,
			})
		},
	}
}

func (c *cli) signInCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signin",
		Short: "Evaluate the sign-in decision and pull if the device is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := c.a.Session.SignIn(cmd.Context(), c.userID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, action)
			switch action {
			case reconcile.ActionPromptUpload:
				fmt.Fprintln(out, "this device has data the account does not; run `resolve --choice upload` or `--choice keep-local`")
			case reconcile.ActionPromptMerge:
				fmt.Fprintln(out, "both sides have data; run `resolve --choice merge|replace|keep-local`")
			}
			return nil
		},
	}
}

func (c *cli) resolveCmd() *cobra.Command {
	var choice string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Answer an upload or merge prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := reconcile.ParseChoice(choice)
			if err != nil {
				return err
			}
			res, err := c.a.Session.Resolve(cmd.Context(), c.userID, ch)
			if err != nil {
				return err
			}
			return c.printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&choice, "choice", "", "upload | replace | merge | keep-local")
	_ = cmd.MarkFlagRequired("choice")
	return cmd
}

func (c *cli) uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload",
		Short: "Replace the cloud copy with this device's data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.a.Engine.Upload(cmd.Context(), c.userID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "uploaded")
			return nil
		},
	}
}

func (c *cli) downloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Print the cloud snapshot as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := c.a.Engine.Download(cmd.Context(), c.userID)
			if err != nil {
				return err
			}
			return c.printJSON(cmd, snap)
		},
	}
}

func (c *cli) pullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Overwrite local data with the cloud copy",
		RunE: func(cmd *cobra.Command, args []string) error {
			pulled, err := c.a.Engine.Pull(cmd.Context(), c.userID)
			if err != nil {
				return err
			}
			if !pulled {
				fmt.Fprintln(cmd.OutOrStdout(), "cloud is empty; local data left unchanged")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "pulled")
			return nil
		},
	}
}

func (c *cli) mergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Merge the cloud copy into local data",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.a.Engine.Merge(cmd.Context(), c.userID)
			if err != nil {
				return err
			}
			return c.printJSON(cmd, res)
		},
	}
}

func (c *cli) saveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Merge and upload now, ignoring the cooldown",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.a.Session.SaveToAccount(cmd.Context(), c.userID)
			if err != nil {
				return err
			}
			return c.printJSON(cmd, res)
		},
	}
}

func (c *cli) presenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presence",
		Short: "Report whether the account has any cloud rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			has, err := c.a.Engine.HasCloudData(cmd.Context(), c.userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), has)
			return nil
		},
	}
}

func (c *cli) watchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run foreground syncs on an interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if interval <= 0 {
				interval = c.a.Config.ForegroundInterval
			}
			c.a.Log.Info().Str("user_id", c.userID).Dur("interval", interval).Msg("watching")
			c.a.Session.Run(ctx, c.userID, interval)
			return c.printJSON(cmd, c.a.Session.Status())
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "foreground interval (defaults to FOCUSSYNC_FOREGROUND_INTERVAL)")
	return cmd
}

func (c *cli) remindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Edit local reminders",
	}
	cmd.AddCommand(c.remindersAddCmd(), c.remindersListCmd())
	return cmd
}

func (c *cli) remindersAddCmd() *cobra.Command {
	var r models.Reminder
	var kind string
	var disabled bool
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or update a local reminder",
		RunE: func(cmd *cobra.Command, args []string) error {
			r.Type = models.ReminderType(strings.ToLower(kind))
			if !r.Type.Valid() {
				return fmt.Errorf("%w: reminder type %q", models.ErrInvalidArgument, kind)
			}
			if strings.TrimSpace(r.Title) == "" {
				return fmt.Errorf("%w: title is required", models.ErrInvalidArgument)
			}
			if r.ID == "" {
				r.ID = uuid.NewString()
			}
			r.Enabled = !disabled
			r.UpdatedAt = time.Now().UnixMilli()

			ctx := cmd.Context()
			items, err := c.a.Local.Reminders(ctx)
			if err != nil {
				return err
			}
			replaced := false
			for i := range items {
				if items[i].ID == r.ID {
					items[i] = r
					replaced = true
					break
				}
			}
			if !replaced {
				items = append(items, r)
			}
			if err := c.a.Local.SetReminders(ctx, items); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&r.ID, "id", "", "reminder id (generated when empty)")
	f.StringVar(&r.Title, "title", "", "reminder title")
	f.StringVar(&kind, "type", string(models.ReminderDaily), "daily | weekly | weekday | once | custom")
	f.StringVar(&r.Time, "time", "", "time of day, HH:MM")
	f.StringVar(&r.ScheduledDate, "date", "", "scheduled date for once reminders")
	f.IntSliceVar(&r.Weekdays, "weekdays", nil, "weekday numbers for weekday reminders")
	f.BoolVar(&disabled, "disabled", false, "store the reminder disabled")
	return cmd
}

func (c *cli) remindersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print local reminders as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := c.a.Local.Reminders(cmd.Context())
			if err != nil {
				return err
			}
			return c.printJSON(cmd, items)
		},
	}
}
