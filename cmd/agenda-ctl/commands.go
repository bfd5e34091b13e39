package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"agenda/internal/calendar"
	"agenda/internal/ipc"
)

const requestTimeout = 10 * time.Second

type options struct {
	socket string
}

func newRoot() *cobra.Command {
	o := &options{}

	socket := os.Getenv("AGENDA_SOCKET")
	if socket == "" {
		socket = ipc.DefaultSocketPath
	}

	cmd := &cobra.Command{
		Use:           "agenda-ctl",
		Short:         "Control a running agenda-daemon.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVarP(&o.socket, "socket", "s", socket, "Control socket path")

	addTrigger(cmd, o)
	addChat(cmd, o)
	addTasks(cmd, o)
	addDates(cmd, o)
	addToday(cmd, o)
	addAlarms(cmd, o)
	addRollover(cmd, o)
	addNote(cmd, o)
	return cmd
}

func (o *options) send(msg ipc.ControlMessage, timeout time.Duration) (ipc.Response, error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := ipc.Send(ctx, o.socket, msg)
	if err != nil {
		return resp, fmt.Errorf("not running: %w", err)
	}
	return resp, resp.Err()
}

func addTrigger(topLevel *cobra.Command, o *options) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "trigger",
		Short: "Listen for one spoken command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := o.send(ipc.ControlMessage{Cmd: ipc.CmdTrigger}, 0)
			return err
		},
	})
}

func addChat(topLevel *cobra.Command, o *options) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "chat",
		Short: "Talk to the agenda by typing",
		Long:  "Every line typed is one utterance. Type salir or end the input to leave.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ipc.Chat(cmd.Context(), o.socket, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	})
}

func addTasks(topLevel *cobra.Command, o *options) {
	topLevel.AddCommand(&cobra.Command{
		Use:     "tasks DDMMYYYY",
		Short:   "List the tasks of a date",
		Example: "agenda-ctl tasks 27122025",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, ok := calendar.ParseDate(args[0])
			if !ok {
				return fmt.Errorf("invalid date %q, want DDMMYYYY", args[0])
			}
			resp, err := o.send(ipc.ControlMessage{Cmd: ipc.CmdTasks, Date: date}, requestTimeout)
			if err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), date, resp.Tasks)
			return nil
		},
	})
}

func addDates(topLevel *cobra.Command, o *options) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "dates",
		Short: "List the dates that have tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := o.send(ipc.ControlMessage{Cmd: ipc.CmdDates}, requestTimeout)
			if err != nil {
				return err
			}
			printDates(cmd.OutOrStdout(), resp.Dates)
			return nil
		},
	})
}

func addToday(topLevel *cobra.Command, o *options) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "today",
		Short: "Show today's tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := o.send(ipc.ControlMessage{Cmd: ipc.CmdToday}, requestTimeout)
			if err != nil {
				return err
			}
			printToday(cmd.OutOrStdout(), resp.Today)
			return nil
		},
	})
}

func addAlarms(topLevel *cobra.Command, o *options) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "alarms",
		Short: "List alarms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := o.send(ipc.ControlMessage{Cmd: ipc.CmdAlarms}, requestTimeout)
			if err != nil {
				return err
			}
			printAlarms(cmd.OutOrStdout(), resp.Alarms)
			return nil
		},
	})
}

func addRollover(topLevel *cobra.Command, o *options) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "rollover",
		Short: "Move today's tasks to the today list now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := o.send(ipc.ControlMessage{Cmd: ipc.CmdRollover}, requestTimeout)
			if err != nil {
				return err
			}
			printToday(cmd.OutOrStdout(), resp.Today)
			return nil
		},
	})
}

func addNote(topLevel *cobra.Command, o *options) {
	topLevel.AddCommand(&cobra.Command{
		Use:     "note FILE",
		Short:   "Run a recorded voice note as a command",
		Example: "agenda-ctl note ~/nota.ogg",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			resp, err := o.send(ipc.ControlMessage{Cmd: ipc.CmdNote, Path: path}, 0)
			if resp.Text != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%q\n", resp.Text)
			}
			return err
		},
	})
}
