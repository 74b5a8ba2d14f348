package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"captchaclient/cmd/captcha/tui"
	"captchaclient/cmd/captcha/ui"
	"captchaclient/internal/captcha"
	"captchaclient/internal/logging"
	"captchaclient/internal/session"
	"captchaclient/internal/ux"
)

var (
	startVariant string
	noAutoStart  bool
)

// runInteractive launches the bubbletea client. The starting variant is the
// --type flag, else the one remembered from the last run, else the config
// default.
func runInteractive(cmd *cobra.Command, args []string) error {
	prefs := ux.NewPreferencesManager(ux.DefaultPreferencesPath(configPath))
	if err := prefs.Load(); err != nil {
		logging.Get(logging.CategoryBoot).Warn("ignoring preferences: %v", err)
	}

	variant := cfg.UI.GetDefaultVariant()
	if last, ok := prefs.LastVariant(); ok {
		variant = last
	}
	if startVariant != "" {
		v, err := captcha.ParseVariant(startVariant)
		if err != nil {
			return err
		}
		variant = v
	}

	model := tui.New(tui.Config{
		Backend: newClient(),
		Styles:  ui.NewStyles(ui.ThemeFor(cfg.UI.Theme)),
		Variant: variant,
		Timeout: cfg.GetServerTimeout(),
		Session: session.Options{
			TrackMax:       cfg.UI.TrackLength,
			Threshold:      cfg.UI.SampleThreshold,
			AutoResetDelay: cfg.UI.GetAutoReset(),
		},
		AutoStart: !noAutoStart,
		Recorder:  prefs,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseAllMotion())
	_, runErr := p.Run()

	if err := prefs.Save(); err != nil {
		logging.Get(logging.CategoryBoot).Warn("failed to save preferences: %v", err)
	}
	if runErr != nil {
		return fmt.Errorf("interactive client failed: %w", runErr)
	}
	return nil
}
