package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmcdole/lector/internal/adapter"
	"github.com/mmcdole/lector/internal/backend"
	"github.com/mmcdole/lector/internal/domain"
	"github.com/mmcdole/lector/internal/service"
	"github.com/mmcdole/lector/internal/tui/styles"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// clearSpinnerLine clears the spinner line from the terminal
const clearSpinnerLine = "\r                                    \r"

const detectTimeout = 15 * time.Second

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Connect to a reading backend and sign in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return runSetup(cmd, a)
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

// runSetup prompts for the backend URL and the user identity, then saves
// the configuration.
func runSetup(cmd *cobra.Command, a *app) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("setup needs an interactive terminal; set LECTOR_BACKEND_URL and LECTOR_USER_ID instead")
	}

	fmt.Println()
	fmt.Println("Welcome to Lector!")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	cfg := a.cfg

	// Loop until we reach a backend
	for {
		url, err := prompt(reader, "Backend URL", cfg.Backend.URL)
		if err != nil {
			return err
		}
		if url == "" {
			fmt.Println("Backend URL cannot be empty. Please try again.")
			continue
		}

		fmt.Println()
		if err := detectWithSpinner(cmd.Context(), url); err != nil {
			fmt.Printf("\n✗ Could not reach the backend: %v\n", err)
			fmt.Println("Please check the URL and try again.")
			fmt.Println()
			continue
		}
		cfg.Backend.URL = strings.TrimRight(url, "/")
		break
	}

	fmt.Println()
	fmt.Println("Account")
	fmt.Println("━━━━━━━")

	email, err := prompt(reader, "Email", cfg.User.Email)
	if err != nil {
		return err
	}
	name, err := prompt(reader, "Name", cfg.User.Name)
	if err != nil {
		return err
	}
	id, err := prompt(reader, "User ID (from your account page)", cfg.User.ID)
	if err != nil {
		return err
	}
	if id == "" {
		return errors.New("user ID cannot be empty")
	}
	cfg.User = adapter.UserConfig{ID: id, Email: email, Name: name}

	if err := adapter.SaveConfig(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	// The client built at startup may point at the old URL
	client := backend.NewClient(cfg.Backend.URL, backend.Options{
		Timeout:           cfg.Backend.Timeout,
		RequestsPerSecond: cfg.Backend.RequestsPerSecond,
		MaxRetries:        cfg.Backend.Retries,
	}, a.logger)
	session := service.NewSessionService(client, domain.User{ID: id, Email: email, Name: name}, a.logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), detectTimeout)
	defer cancel()

	fmt.Println()
	fmt.Println("✓ Configuration saved!")
	if plan, err := session.Sync(ctx); err != nil {
		fmt.Printf("! Could not sync your account yet: %v\n", err)
	} else {
		fmt.Printf("✓ Signed in on the %s plan\n", plan)
	}
	fmt.Println()
	fmt.Println("Run lector again to start reading.")
	return nil
}

// prompt reads one line, returning def when the answer is blank
func prompt(reader *bufio.Reader, label, def string) (string, error) {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return def, nil
	}
	return input, nil
}

// detectWithSpinner probes the backend with a visual spinner
func detectWithSpinner(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	type result struct {
		message string
		err     error
	}
	resultCh := make(chan result, 1)

	go func() {
		message, err := backend.Detect(ctx, url)
		resultCh <- result{message, err}
	}()

	frame := 0
	fmt.Printf("\r%s Contacting backend...", styles.SpinnerFrames[frame])

	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case res := <-resultCh:
			fmt.Print(clearSpinnerLine)
			if res.err != nil {
				return res.err
			}
			if res.message != "" {
				fmt.Printf("✓ Connected: %s\n", res.message)
			} else {
				fmt.Println("✓ Connected")
			}
			return nil

		case <-ticker.C:
			frame++
			fmt.Printf("\r%s Contacting backend...", styles.SpinnerFrames[frame%len(styles.SpinnerFrames)])

		case <-ctx.Done():
			fmt.Print(clearSpinnerLine)
			return fmt.Errorf("detection timed out")
		}
	}
}
