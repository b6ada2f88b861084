package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/k-negishi/chat-scheduler/internal/app"
	"github.com/k-negishi/chat-scheduler/internal/config"
	"github.com/k-negishi/chat-scheduler/internal/domain"
	"github.com/k-negishi/chat-scheduler/internal/usecase"
)

// cli コマンド間で共有する状態
type cli struct {
	userID  string
	jsonOut bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "schedulectl",
		Short: "Natural-language scheduling assistant",
		Long: `schedulectl runs scheduling commands against the same store as the Lambda function.

Examples:
  schedulectl chat "schedule a 30 minute call with Ana tomorrow"
  schedulectl chat --json "what's on my calendar this week"
  schedulectl free-slot --duration 90m --from 2024-03-04
  schedulectl migrate`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&c.userID, "user", "u", "local", "user id the commands act on")

	chatCmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Interpret one natural-language command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.chat(cmd, strings.Join(args, " "))
		},
	}
	chatCmd.Flags().BoolVar(&c.jsonOut, "json", false, "print the full result as JSON")
	rootCmd.AddCommand(chatCmd)

	var (
		from     string
		duration string
		days     int
	)
	freeSlotCmd := &cobra.Command{
		Use:   "free-slot",
		Short: "Find the earliest free slot within working hours",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.freeSlot(cmd, from, duration, days)
		},
	}
	freeSlotCmd.Flags().StringVar(&from, "from", "", "first date to search (YYYY-MM-DD, default today)")
	freeSlotCmd.Flags().StringVar(&duration, "duration", "1h", "slot length such as 30m, 1.5h")
	freeSlotCmd.Flags().IntVar(&days, "days", 0, "number of days to search (default SLOT_SEARCH_DAYS)")
	rootCmd.AddCommand(freeSlotCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// app.New がスキーマを作成する
			a, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	})

	return rootCmd
}

func (c *cli) load(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

func (c *cli) chat(cmd *cobra.Command, message string) error {
	a, err := c.load(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.Interpreter.Execute(cmd.Context(), usecase.CommandRequest{
		UserID:    c.userID,
		Message:   message,
		LocalTime: time.Now().In(a.Location),
	})

	if c.jsonOut {
		encoded, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.ResponseText)
	if result.ActionTaken == usecase.ActionError {
		return fmt.Errorf("コマンドの処理に失敗しました")
	}
	return nil
}

func (c *cli) freeSlot(cmd *cobra.Command, from, duration string, days int) error {
	a, err := c.load(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	start := civil.DateOf(time.Now().In(a.Location))
	if from != "" {
		if start, err = civil.ParseDate(from); err != nil {
			return fmt.Errorf("--from の解析に失敗しました: %w", err)
		}
	}

	slot, found, err := a.FreeSlot.Execute(cmd.Context(), c.userID, start, domain.ParseDuration(duration), days)
	if err != nil {
		log.Printf("空き時間の検索に失敗しました: %v", err)
		return err
	}
	if !found {
		fmt.Fprintln(cmd.OutOrStdout(), "no free slot found")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s–%s\n",
		slot.Start.Format("2006-01-02"), slot.Start.Format("15:04"), slot.End.Format("15:04"))
	return nil
}
