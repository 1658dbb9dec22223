package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hackgods/appointment-reminders/internal/appointment"
	"github.com/hackgods/appointment-reminders/internal/bootstrap"
	"github.com/hackgods/appointment-reminders/internal/config"
	"github.com/hackgods/appointment-reminders/internal/db"
	"github.com/hackgods/appointment-reminders/internal/reminder"
	"github.com/hackgods/appointment-reminders/pkg/logging"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "remindctl",
		Short:        "Operate the appointment reminder engine",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(rescheduleCmd())
	rootCmd.AddCommand(cancelCmd())
	rootCmd.AddCommand(listCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// withRuntime loads config and wires the engine for a single command.
func withRuntime(ctx context.Context, fn func(rt *bootstrap.Runtime) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.ServiceName = "remindctl"
	logger := logging.New(cfg.LogLevel, cfg.Env).With().Str("service", "remindctl").Logger()

	rt, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	return fn(rt)
}

func parseAppointmentID(args []string) (uuid.UUID, error) {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid appointment id %q: %w", args[0], err)
	}
	return id, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			pool, err := db.ConnectPostgres(cmd.Context(), cfg.PostgresDSN, db.PoolOptions{MaxConns: 2, AppName: "remindctl"})
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := db.NewMigrator(pool, db.Migrations()).Up(cmd.Context())
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			}
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Send every reminder that is due now and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				runner := bootstrap.NewSweepRunner(rt.Scheduler, rt.SweepLocker(), rt.Config.SweepTimeout, rt.Logger)
				n, err := runner.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "processed %d reminders\n", n)
				return nil
			})
		},
	}
}

func scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule <appointment-id>",
		Short: "Rebuild the reminders of an appointment and send its confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAppointmentID(args)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				ok, err := rt.Scheduler.ScheduleAppointmentReminders(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "appointment is not active, nothing scheduled")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "reminders scheduled")
				return nil
			})
		},
	}
}

func rescheduleCmd() *cobra.Command {
	var previous string

	cmd := &cobra.Command{
		Use:   "reschedule <appointment-id>",
		Short: "Rebuild the reminders of a moved appointment and send the rescheduling notice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAppointmentID(args)
			if err != nil {
				return err
			}
			prev, err := time.Parse(time.RFC3339, previous)
			if err != nil {
				return fmt.Errorf("invalid --previous %q: %w", previous, err)
			}
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				ok, err := rt.Scheduler.RescheduleAppointmentReminders(cmd.Context(), id, prev)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "appointment is not active, nothing scheduled")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "reminders rescheduled")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&previous, "previous", "", "previous start time (RFC3339)")
	_ = cmd.MarkFlagRequired("previous")
	return cmd
}

func cancelCmd() *cobra.Command {
	var notify bool

	cmd := &cobra.Command{
		Use:   "cancel <appointment-id>",
		Short: "Drop the pending reminders of an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAppointmentID(args)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				removed, err := rt.Scheduler.CancelAppointmentReminders(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pending reminders removed: %t\n", removed)

				if notify {
					sent, err := rt.Scheduler.SendCancellationNotice(cmd.Context(), id)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "cancellation notice delivered: %t\n", sent)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", false, "also send the cancellation notice")
	return cmd
}

// writeReminderList prints the appointment header (appt may be nil when the
// host already deleted it) and the pending reminders as a table.
func writeReminderList(out io.Writer, appt *appointment.Appointment, entries []reminder.ScheduledReminder) error {
	if appt != nil {
		fmt.Fprintf(out, "appointment %s  status=%s  starts=%s\n", appt.ID, appt.Status, appt.StartsAt.UTC().Format(time.RFC3339))
	} else {
		fmt.Fprintln(out, "appointment not found")
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "no pending reminders")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tSEND AT\tCHANNELS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%v\n", e.Kind, e.SendAt.UTC().Format(time.RFC3339), e.Channels)
	}
	return w.Flush()
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <appointment-id>",
		Short: "Show the pending reminders of an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAppointmentID(args)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				appt, err := rt.Appointments.GetAppointmentByID(cmd.Context(), id)
				if err != nil && !errors.Is(err, appointment.ErrAppointmentNotFound) {
					return err
				}
				entries, err := rt.Scheduler.ListAppointmentReminders(cmd.Context(), id)
				if err != nil {
					return err
				}
				return writeReminderList(cmd.OutOrStdout(), appt, entries)
			})
		},
	}
}
