package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evaders/hwid-sentinel/internal/fingerprint"
	"github.com/evaders/hwid-sentinel/internal/worker"
)

var banCmd = &cobra.Command{
	Use:   "ban [fingerprint]",
	Short: "Ban the current hardware, or a specific fingerprint",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return runOneShot(cmd, worker.KindBanCurrent)
		}
		return withRegistry(cmd, func(s banSurface) (any, error) {
			ok, msg := s.Ban(fingerprint.Fingerprint(args[0]))
			return banOutcome{OK: ok, Message: msg}, nil
		})
	},
}

var unbanCmd = &cobra.Command{
	Use:   "unban <fingerprint>",
	Short: "Remove a fingerprint from the ban list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd, func(s banSurface) (any, error) {
			ok, msg := s.Unban(fingerprint.Fingerprint(args[0]))
			return banOutcome{OK: ok, Message: msg}, nil
		})
	},
}

var bansCmd = &cobra.Command{
	Use:   "bans",
	Short: "List banned fingerprints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRegistry(cmd, func(s banSurface) (any, error) {
			return s.BannedList(), nil
		})
	},
}

var clearBansCmd = &cobra.Command{
	Use:   "clear-bans",
	Short: "Remove every fingerprint from the ban list",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRegistry(cmd, func(s banSurface) (any, error) {
			count := s.ClearAllBans()
			return banOutcome{OK: true, Message: fmt.Sprintf("%d fingerprints removed", count)}, nil
		})
	},
}

type banOutcome struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// banSurface is the slice of the Sentinel the ban commands need.
type banSurface interface {
	Ban(fp fingerprint.Fingerprint) (bool, string)
	Unban(fp fingerprint.Fingerprint) (bool, string)
	BannedList() []fingerprint.Fingerprint
	ClearAllBans() int
}

func withRegistry(cmd *cobra.Command, fn func(banSurface) (any, error)) error {
	_, snl, _, _, err := bootstrap(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = snl.Stop(context.Background()) }()

	out, err := fn(snl)
	if err != nil {
		return err
	}
	return printJSON(out)
}
