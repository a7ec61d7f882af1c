package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"focusflow/internal/config"
	"focusflow/internal/notify"
)

func addDigest(topLevel *cobra.Command) {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Send the Telegram digest to every registered user now",
		Example: `
focusflow digest
focusflow digest --dry-run
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if dryRun {
				users, err := a.users.ListWithTelegram(cmd.Context())
				if err != nil {
					return err
				}
				digests := a.digest()
				for _, u := range users {
					text, err := digests.DailySummary(cmd.Context(), u, time.Now())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s\n\n", u.Email, text)
				}
				return nil
			}

			if cfg.TelegramToken == "" {
				return errors.New("TELEGRAM_TOKEN is required")
			}
			api, err := notify.NewBotAPI(cfg.TelegramToken)
			if err != nil {
				return err
			}
			sent, err := notify.NewTelegram(api, a.users, a.digest(), a.log).SendDigests(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d digests\n", sent)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print digests instead of sending them")
	topLevel.AddCommand(cmd)
}
