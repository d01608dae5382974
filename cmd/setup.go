package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/tburn/internal/config"
	"github.com/theirongolddev/tburn/internal/tibber"
	"github.com/theirongolddev/tburn/internal/tui/theme"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

type setupValues struct {
	token    string
	email    string
	password string
	timezone string
	theme    string
	notify   bool
	mqtt     bool
	broker   string
	homeID   string
}

func runSetup(_ *cobra.Command, _ []string) error {
	cfg, _ := config.LoadFrom(flagConfig)

	vals := setupValues{
		token:    cfg.Tibber.AccessToken,
		email:    cfg.Tibber.Email,
		password: cfg.Tibber.Password,
		timezone: cfg.General.Timezone,
		theme:    cfg.General.Theme,
		notify:   cfg.Daemon.Notify,
		mqtt:     cfg.MQTT.Enabled,
		broker:   cfg.MQTT.Broker,
		homeID:   cfg.Tibber.HomeID,
	}

	if err := newCredentialsForm(&vals).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}

	homes := lookupHomes(vals.token)
	if len(homes) > 1 {
		if err := newHomeForm(homes, &vals).Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return err
		}
	} else if len(homes) == 1 {
		vals.homeID = homes[0].ID
	}

	if err := newPreferencesForm(&vals).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}

	cfg.Tibber.AccessToken = strings.TrimSpace(vals.token)
	cfg.Tibber.Email = strings.TrimSpace(vals.email)
	cfg.Tibber.Password = vals.password
	cfg.Tibber.HomeID = vals.homeID
	cfg.General.Timezone = strings.TrimSpace(vals.timezone)
	cfg.General.Theme = vals.theme
	cfg.Daemon.Notify = vals.notify
	cfg.MQTT.Enabled = vals.mqtt
	if vals.mqtt {
		applyBroker(&cfg.MQTT, vals.broker)
	}

	if err := config.SaveTo(flagConfig, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", flagConfig)
	fmt.Println("  Run `tburn setup` anytime to reconfigure.")
	fmt.Println()
	return nil
}

func newCredentialsForm(v *setupValues) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to tburn!").
				Description("Get a personal access token at developer.tibber.com."),
			huh.NewInput().
				Title("Tibber access token").
				EchoMode(huh.EchoModePassword).
				Value(&v.token).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("an access token is required")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewNote().
				Title("Grid prices (optional)").
				Description("Grid tariffs need your Tibber app login. Leave blank to skip."),
			huh.NewInput().
				Title("Email").
				Value(&v.email),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&v.password).
				Validate(func(s string) error {
					if (strings.TrimSpace(v.email) == "") != (s == "") {
						return errors.New("email and password go together")
					}
					return nil
				}),
		),
	)
}

func newHomeForm(homes []tibber.HomeInfo, v *setupValues) *huh.Form {
	opts := make([]huh.Option[string], 0, len(homes))
	for _, h := range homes {
		label := h.Name
		if h.Address != "" {
			label += " (" + h.Address + ")"
		}
		opts = append(opts, huh.NewOption(label, h.ID))
	}
	return huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Which home?").
			Options(opts...).
			Value(&v.homeID),
	))
}

func newPreferencesForm(v *setupValues) *huh.Form {
	themes := make([]huh.Option[string], 0, len(theme.All))
	for _, t := range theme.All {
		themes = append(themes, huh.NewOption(t.Name, t.Name))
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Timezone").
				Description("IANA name such as Europe/Oslo. Blank uses the system zone.").
				Value(&v.timezone).
				Validate(func(s string) error {
					if s = strings.TrimSpace(s); s == "" {
						return nil
					}
					_, err := time.LoadLocation(s)
					return err
				}),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themes...).
				Value(&v.theme),
			huh.NewConfirm().
				Title("Desktop notification when tomorrow's prices arrive?").
				Value(&v.notify),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Publish to Home Assistant over MQTT?").
				Value(&v.mqtt),
			huh.NewInput().
				Title("MQTT broker").
				Description("host or host:port").
				Placeholder("localhost:1883").
				Value(&v.broker),
		),
	)
}

// lookupHomes lists the account's homes, or nil when the token does not work.
func lookupHomes(token string) []tibber.HomeInfo {
	client := tibber.NewClient(strings.TrimSpace(token))
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	homes, err := client.Homes(ctx)
	if err != nil {
		progressf("  Could not list homes: %v\n", err)
		return nil
	}
	return homes
}

func applyBroker(m *config.MQTTConfig, broker string) {
	broker = strings.TrimSpace(broker)
	if broker == "" {
		broker = "localhost"
	}
	if host, port, ok := strings.Cut(broker, ":"); ok {
		if p, err := strconv.Atoi(port); err == nil {
			m.Broker = host
			m.Port = p
			return
		}
	}
	m.Broker = broker
}
