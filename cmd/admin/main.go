package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"garrison.ai/internal/config"
	persistlog "garrison.ai/internal/persistence/log"
	"garrison.ai/internal/sim/garrison"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "garrison":
			garrisonCmd(os.Args[2:])
			return
		case "audit":
			auditCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin garrison -player ID | admin audit [-player ID]")
	os.Exit(2)
}

func auditCmd(args []string) {
	env, err := config.LoadServer()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", env.DataDir, "runtime data directory")
	player := fs.Uint64("player", 0, "only this player (optional)")
	_ = fs.Parse(args)

	if err := printAudit(os.Stdout, *dataDir, *player); err != nil {
		fmt.Fprintln(os.Stderr, "audit:", err)
		os.Exit(1)
	}
}

// printAudit lists matching entries followed by a per-action count.
func printAudit(w io.Writer, dataDir string, player uint64) error {
	counts := map[string]int{}
	err := persistlog.ReadAudit(dataDir, func(e garrison.AuditEntry) error {
		if player != 0 && e.OwnerID != player {
			return nil
		}
		counts[e.Action]++
		fmt.Fprintf(w, "%s owner=%d %s%s\n", time.Unix(e.Time, 0).UTC().Format(time.RFC3339), e.OwnerID, e.Action, detail(e))
		return nil
	})
	if err != nil {
		return err
	}

	actions := make([]string, 0, len(counts))
	for a := range counts {
		actions = append(actions, a)
	}
	sort.Strings(actions)
	for _, a := range actions {
		fmt.Fprintf(w, "total %s=%d\n", a, counts[a])
	}
	return nil
}

func detail(e garrison.AuditEntry) string {
	s := ""
	if e.SiteLevelID != 0 {
		s += fmt.Sprintf(" site_level=%d", e.SiteLevelID)
	}
	if e.PlotInstanceID != 0 {
		s += fmt.Sprintf(" plot=%d", e.PlotInstanceID)
	}
	if e.BuildingID != 0 {
		s += fmt.Sprintf(" building=%d", e.BuildingID)
	}
	if e.FollowerID != 0 {
		s += fmt.Sprintf(" follower=%d", e.FollowerID)
	}
	if e.Refund {
		s += " refund"
	}
	return s
}
