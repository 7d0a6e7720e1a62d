package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/goclaw/router/internal/gwconfig"
	"github.com/goclaw/router/internal/urlsynth"
)

var (
	docOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	docFail = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	docHead = lipgloss.NewStyle().Bold(true).Underline(true)
)

func doctorCmd() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the provider registry and probe upstream reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				fmt.Println(docFail.Render("config FAILED"), err)
				return nil
			}
			fmt.Println(docOK.Render("config OK"))

			providers := cfg.Providers
			if interactive {
				providers, err = pickProviders(providers)
				if err != nil {
					return err
				}
			}

			fmt.Println()
			fmt.Println(docHead.Render(fmt.Sprintf("%-14s %-28s %-10s", "PROVIDER", "BASE URL", "STATUS")))
			for _, p := range providers {
				probeOne(&p)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&interactive, "interactive", false, "pick which providers to probe via an interactive form")
	return cmd
}

func pickProviders(all []gwconfig.ProviderConfig) ([]gwconfig.ProviderConfig, error) {
	var selected []string
	opts := make([]huh.Option[string], 0, len(all))
	for _, p := range all {
		opts = append(opts, huh.NewOption(p.ID, p.ID))
	}
	form := huh.NewForm(huh.NewGroup(
		huh.NewMultiSelect[string]().
			Title("Select providers to probe").
			Options(opts...).
			Value(&selected),
	))
	if err := form.Run(); err != nil {
		return nil, err
	}
	want := map[string]bool{}
	for _, id := range selected {
		want[id] = true
	}
	var out []gwconfig.ProviderConfig
	for _, p := range all {
		if want[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

// probeOne issues a minimal reachability request against p's base URL. GET
// is enough to confirm the origin accepts connections and TLS handshakes;
// a 2xx/3xx/4xx all count as "reachable" since an API key rejection still
// proves the host is up. This only reports reachability, not auth validity.
func probeOne(p *gwconfig.ProviderConfig) {
	paths := urlsynth.PathOverrides{
		ResponsesPath:       p.Endpoints.ResponsesPath,
		ChatCompletionsPath: p.Endpoints.ChatCompletionsPath,
		MessagesPath:        p.Endpoints.MessagesPath,
	}
	urls := urlsynth.Synthesize(p.BaseURL, urlsynth.Dialect(p.Type), paths, "", false)
	if len(urls) == 0 {
		fmt.Printf("%-14s %-28s %s\n", p.ID, p.BaseURL, docFail.Render("NO URL"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urls[0], nil)
	if err != nil {
		fmt.Printf("%-14s %-28s %s\n", p.ID, p.BaseURL, docFail.Render(err.Error()))
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("%-14s %-28s %s\n", p.ID, p.BaseURL, docFail.Render("UNREACHABLE"))
		return
	}
	resp.Body.Close()
	fmt.Printf("%-14s %-28s %s\n", p.ID, p.BaseURL, docOK.Render(fmt.Sprintf("HTTP %d", resp.StatusCode)))
}
