package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mmcdole/lector/internal/domain"
	"github.com/mmcdole/lector/internal/tui/styles"
	"github.com/spf13/cobra"
)

const commandTimeout = 2 * time.Minute

var voicesCmd = &cobra.Command{
	Use:   "voices [query]",
	Short: "List synthesis voices, optionally fuzzy filtered",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runVoices,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <file>",
	Short: "Print a summary of a PDF or text file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummarize,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the signed-in user and clear the cache",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Start or confirm a plan upgrade",
	Long: `Without payment flags, creates a subscription for --plan-id and prints
the checkout details. After paying, run it again with --payment-id,
--subscription-id and --signature to confirm the upgrade.`,
	Args: cobra.NoArgs,
	RunE: runUpgrade,
}

var (
	summarySentences int

	planID         string
	planName       string
	paymentID      string
	subscriptionID string
	signature      string
)

func init() {
	summarizeCmd.Flags().IntVarP(&summarySentences, "sentences", "n", 0, "summary length in sentences (default from config)")

	upgradeCmd.Flags().StringVar(&planID, "plan-id", "", "payment provider plan ID")
	upgradeCmd.Flags().StringVar(&planName, "plan", "Pro", "plan name to activate (Pro, Enterprise)")
	upgradeCmd.Flags().StringVar(&paymentID, "payment-id", "", "payment ID returned by checkout")
	upgradeCmd.Flags().StringVar(&subscriptionID, "subscription-id", "", "subscription ID returned by checkout")
	upgradeCmd.Flags().StringVar(&signature, "signature", "", "payment signature returned by checkout")

	rootCmd.AddCommand(voicesCmd, summarizeCmd, logoutCmd, upgradeCmd)
}

func runVoices(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()
	if _, err := a.voices.Load(ctx); err != nil {
		return fmt.Errorf("failed to load voices: %w", err)
	}

	query := ""
	if len(args) == 1 {
		query = args[0]
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("NAME", "LOCALE", "GENDER", "ID").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.AccentStyle.Bold(true).PaddingRight(2)
			}
			return lipgloss.NewStyle().PaddingRight(2)
		})
	for _, r := range a.voices.Filter(query) {
		t.Row(r.Voice.Label(), r.Voice.Locale, r.Voice.Gender, r.Voice.ShortName)
	}
	fmt.Println(t)
	return nil
}

func runSummarize(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	if _, err := a.session.Sync(ctx); err != nil && !errors.Is(err, domain.ErrNotSignedIn) {
		a.logger.Warn("user sync failed", "error", err)
	}
	if err := a.session.Require(domain.FeatureSummarize); err != nil {
		return err
	}

	text, err := a.client.Upload(ctx, args[0])
	if err != nil {
		return err
	}
	n := summarySentences
	if n <= 0 {
		n = a.cfg.Reader.SummaryLength
	}
	summary, err := a.client.Summarize(ctx, text, n)
	if err != nil {
		return err
	}
	fmt.Println(summary)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	a.store.InvalidateAll()
	if err := a.session.Logout(); err != nil {
		return err
	}
	fmt.Println("✓ Signed out.")
	return nil
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	if paymentID != "" || subscriptionID != "" || signature != "" {
		if paymentID == "" || subscriptionID == "" || signature == "" {
			return errors.New("--payment-id, --subscription-id and --signature are all required to confirm")
		}
		plan, err := a.session.ConfirmUpgrade(ctx, domain.PaymentConfirmation{
			PaymentID:      paymentID,
			SubscriptionID: subscriptionID,
			Signature:      signature,
			PlanName:       planName,
		})
		if err != nil {
			return err
		}
		fmt.Printf("✓ Upgraded to the %s plan\n", plan)
		return nil
	}

	if planID == "" {
		return errors.New("--plan-id is required to start an upgrade")
	}
	sub, err := a.session.StartUpgrade(ctx, planID)
	if err != nil {
		return err
	}
	fmt.Println("Subscription created. Complete checkout with:")
	fmt.Printf("  subscription: %s\n", sub.ID)
	fmt.Printf("  key:          %s\n", sub.KeyID)
	fmt.Println()
	fmt.Println("Then run lector upgrade with the payment details to confirm.")
	return nil
}
