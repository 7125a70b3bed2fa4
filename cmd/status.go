package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/angeloszaimis/authguard/internal/circuitbreaker"
	"github.com/angeloszaimis/authguard/internal/credcache"
)

type breakerReport struct {
	State                string     `json:"state"`
	FailureCount         int        `json:"failure_count"`
	ConsecutiveSuccesses int        `json:"consecutive_successes"`
	OpenedAt             *time.Time `json:"opened_at,omitempty"`
	RetryAfter           string     `json:"retry_after,omitempty"`
	Error                string     `json:"error,omitempty"`
}

type cacheReport struct {
	Present      bool   `json:"present"`
	AccessKeyID  string `json:"access_key_id,omitempty"`
	Expiration   string `json:"expiration,omitempty"`
	Remaining    string `json:"remaining,omitempty"`
	NeedsRefresh bool   `json:"needs_refresh"`
	Error        string `json:"error,omitempty"`
}

type statusReport struct {
	Config   string        `json:"config"`
	Profile  string        `json:"profile"`
	Endpoint string        `json:"endpoint,omitempty"`
	CacheDir string        `json:"cache_dir"`
	Breaker  breakerReport `json:"breaker"`
	Cache    cacheReport   `json:"cache"`
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show circuit breaker state and cached credential expiry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.close()

			report := a.status(cmd)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			renderStatus(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the status as JSON")
	return cmd
}

func (a *app) status(cmd *cobra.Command) statusReport {
	ctx := cmd.Context()
	now := time.Now()

	report := statusReport{
		Config:   a.cfg.File(),
		Profile:  a.cfg.Environment.Current,
		CacheDir: a.cfg.CacheDir,
	}
	if p, err := a.cfg.ActiveProfile(); err == nil {
		report.Endpoint = p.Endpoint
	}

	snap, err := a.breaker().Snapshot(ctx)
	if err != nil {
		report.Breaker.Error = err.Error()
	} else {
		report.Breaker.State = snap.State.String()
		report.Breaker.FailureCount = snap.FailureCount
		report.Breaker.ConsecutiveSuccesses = snap.ConsecutiveSuccesses
		if snap.State == circuitbreaker.StateOpen {
			opened := snap.OpenedAt
			report.Breaker.OpenedAt = &opened
			if wait := a.cfg.CoolDown() - now.Sub(opened); wait > 0 {
				report.Breaker.RetryAfter = wait.Round(time.Second).String()
			}
		}
	}

	cache := a.cache()
	rec, err := cache.Read(ctx)
	switch {
	case err != nil:
		report.Cache.Error = err.Error()
		report.Cache.NeedsRefresh = true
	case rec == nil:
		report.Cache.NeedsRefresh = true
	default:
		report.Cache.Present = true
		report.Cache.AccessKeyID = rec.AccessKeyID
		report.Cache.Expiration = rec.Expiration
		report.Cache.NeedsRefresh = credcache.NeedsRefresh(rec.Set, now, a.cfg.RefreshMargin())
		if exp, err := rec.ExpiresAt(); err == nil && exp.After(now) {
			report.Cache.Remaining = exp.Sub(now).Round(time.Second).String()
		}
	}
	return report
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Width(14)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func renderStatus(w io.Writer, r statusReport) {
	styled := isTerminal(w)
	style := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}
	line := func(label, value string) string {
		if !styled {
			return fmt.Sprintf("%-14s%s", label, value)
		}
		return labelStyle.Render(label) + value
	}

	breaker := r.Breaker.State
	switch {
	case r.Breaker.Error != "":
		breaker = style(errStyle, "UNREADABLE") + " " + r.Breaker.Error
	case r.Breaker.State == circuitbreaker.StateClosed.String():
		breaker = style(okStyle, breaker)
	case r.Breaker.State == circuitbreaker.StateOpen.String():
		breaker = style(errStyle, breaker)
		if r.Breaker.RetryAfter != "" {
			breaker += " (probe in " + r.Breaker.RetryAfter + ")"
		}
	default:
		breaker = style(warnStyle, breaker)
	}
	breaker += fmt.Sprintf(", %d failures", r.Breaker.FailureCount)

	var cache string
	switch {
	case r.Cache.Error != "":
		cache = style(errStyle, "CORRUPT") + " " + r.Cache.Error
	case !r.Cache.Present:
		cache = style(warnStyle, "empty")
	case r.Cache.NeedsRefresh:
		cache = style(warnStyle, "stale") + ", expires " + r.Cache.Expiration
	default:
		cache = style(okStyle, "valid") + ", expires " + r.Cache.Expiration + " (" + r.Cache.Remaining + " left)"
	}

	lines := lipgloss.JoinVertical(lipgloss.Left,
		line("Config", r.Config),
		line("Profile", r.Profile),
		line("Endpoint", r.Endpoint),
		line("Cache dir", r.CacheDir),
		line("Breaker", breaker),
		line("Credentials", cache),
	)
	if styled {
		lines = boxStyle.Render(lines)
	}
	fmt.Fprintln(w, lines)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
