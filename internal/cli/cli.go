// Package cli is the desktop command line front end. Each subcommand maps to
// one repository or credential operation and prints either aligned text or
// JSON.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/atotto/clipboard"

	"matchplayer/internal/credentials"
	"matchplayer/internal/models"
	"matchplayer/internal/repository"
	"matchplayer/internal/util"
)

// Exit codes.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitUsage  = 2
)

var errUsage = errors.New("usage")

type Env struct {
	Repo   repository.TournamentRepository
	Keys   credentials.Store
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// ReadClipboard defaults to the system clipboard.
	ReadClipboard func() (string, error)
}

type runner struct {
	env  Env
	json bool
}

const usageText = `usage: matchplay [-json] <command> [args]

commands:
  greet
  key set [-clipboard] [value]   (reads stdin when no value is given)
  key status
  key clear
  tournaments
  tournament <id>
  standings <tournament id>
  rounds [-status s] <tournament id>
  round <round id>
  suggest <round id> <game id> <player id> <score>
`

// Run executes one command and returns the process exit code.
func Run(ctx context.Context, env Env, args []string) int {
	if env.ReadClipboard == nil {
		env.ReadClipboard = clipboard.ReadAll
	}
	fs := flag.NewFlagSet("matchplay", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	fs.Usage = func() { fmt.Fprint(env.Stderr, usageText) }
	asJSON := fs.Bool("json", false, "print JSON instead of text")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		return ExitUsage
	}

	r := &runner{env: env, json: *asJSON}
	err := r.dispatch(ctx, fs.Args())
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errUsage):
		fmt.Fprintf(env.Stderr, "%v\n\n%s", err, usageText)
		return ExitUsage
	default:
		fmt.Fprintf(env.Stderr, "error: %v\n", err)
		return ExitFailed
	}
}

func usage(format string, a ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errUsage}, a...)...)
}

func (r *runner) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("missing command")
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "greet":
		return r.print(map[string]string{"greeting": util.Greeting()}, func(w io.Writer) {
			fmt.Fprintln(w, util.Greeting())
		})
	case "key":
		return r.key(ctx, rest)
	case "tournaments":
		return r.tournaments(ctx, rest)
	case "tournament":
		id, err := oneArg("tournament", rest)
		if err != nil {
			return err
		}
		return r.tournament(ctx, id)
	case "standings":
		id, err := oneArg("standings", rest)
		if err != nil {
			return err
		}
		return r.standings(ctx, id)
	case "rounds":
		return r.rounds(ctx, rest)
	case "round":
		id, err := oneArg("round", rest)
		if err != nil {
			return err
		}
		return r.round(ctx, id)
	case "suggest":
		return r.suggest(ctx, rest)
	default:
		return usage("unknown command %q", cmd)
	}
}

func oneArg(cmd string, args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", usage("%s takes exactly one id", cmd)
	}
	return args[0], nil
}

// print writes v as indented JSON in -json mode and calls text otherwise.
func (r *runner) print(v any, text func(w io.Writer)) error {
	if r.json {
		enc := json.NewEncoder(r.env.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(r.env.Stdout, 0, 4, 2, ' ', 0)
	text(tw)
	return tw.Flush()
}

// ---------- key ----------

func (r *runner) key(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("key needs a subcommand: set, status or clear")
	}
	switch args[0] {
	case "set":
		return r.keySet(ctx, args[1:])
	case "status":
		key, ok, err := r.env.Keys.Get(ctx)
		if err != nil {
			return fmt.Errorf("read api key: %w", err)
		}
		masked := util.MaskKey(key)
		return r.print(map[string]any{"configured": ok, "key": masked}, func(w io.Writer) {
			if !ok {
				fmt.Fprintln(w, "API key: not set")
				return
			}
			fmt.Fprintln(w, "API key: "+masked)
		})
	case "clear":
		if err := r.env.Keys.Clear(ctx); err != nil {
			return fmt.Errorf("clear api key: %w", err)
		}
		return r.print(map[string]bool{"cleared": true}, func(w io.Writer) {
			fmt.Fprintln(w, "API key removed.")
		})
	default:
		return usage("unknown key subcommand %q", args[0])
	}
}

func (r *runner) keySet(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("key set", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fromClipboard := fs.Bool("clipboard", false, "read the key from the clipboard")
	if err := fs.Parse(args); err != nil {
		return usage("key set: %v", err)
	}

	var key string
	switch {
	case *fromClipboard && fs.NArg() > 0:
		return usage("key set: give a value or -clipboard, not both")
	case *fromClipboard:
		v, err := r.env.ReadClipboard()
		if err != nil {
			return fmt.Errorf("read clipboard: %w", err)
		}
		key = v
	case fs.NArg() == 1:
		key = fs.Arg(0)
	case fs.NArg() == 0 && r.env.Stdin != nil:
		b, err := io.ReadAll(io.LimitReader(r.env.Stdin, 64<<10))
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		key = string(b)
	default:
		return usage("key set takes at most one value")
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("api key is empty")
	}
	if err := r.env.Keys.Set(ctx, key); err != nil {
		return fmt.Errorf("save api key: %w", err)
	}
	masked := util.MaskKey(key)
	return r.print(map[string]any{"configured": true, "key": masked}, func(w io.Writer) {
		fmt.Fprintln(w, "API key saved: "+masked)
	})
}

// ---------- tournaments ----------

func (r *runner) tournaments(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return usage("tournaments takes no arguments")
	}
	ts, err := r.env.Repo.Tournaments(ctx).Get()
	if err != nil {
		return err
	}
	return r.print(ts, func(w io.Writer) {
		if len(ts) == 0 {
			fmt.Fprintln(w, "No tournaments found.")
			return
		}
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tFORMAT\tSTART")
		for _, t := range ts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Status, t.Format, deref(t.DateStart))
		}
	})
}

func (r *runner) tournament(ctx context.Context, id string) error {
	t, err := r.env.Repo.TournamentDetails(ctx, id).Get()
	if err != nil {
		return err
	}
	return r.print(t, func(w io.Writer) {
		fmt.Fprintf(w, "ID:\t%s\n", t.ID)
		fmt.Fprintf(w, "Name:\t%s\n", t.Name)
		fmt.Fprintf(w, "Status:\t%s\n", t.Status)
		fmt.Fprintf(w, "Format:\t%s\n", t.Format)
		if t.DateStart != nil {
			fmt.Fprintf(w, "Start:\t%s\n", *t.DateStart)
		}
	})
}

func (r *runner) standings(ctx context.Context, tournamentID string) error {
	ss, err := r.env.Repo.TournamentStandings(ctx, tournamentID).Get()
	if err != nil {
		return err
	}
	return r.print(ss, func(w io.Writer) {
		if len(ss) == 0 {
			fmt.Fprintln(w, "No standings yet.")
			return
		}
		fmt.Fprintln(w, "RANK\tPLAYER\tNAME\tPOINTS\tGAMES")
		for _, s := range ss {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", s.Rank, s.PlayerID, s.PlayerName,
				strconv.FormatFloat(s.Points, 'f', -1, 64), s.GamesPlayed)
		}
	})
}

func (r *runner) rounds(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rounds", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	status := fs.String("status", "", "only rounds with this status")
	if err := fs.Parse(args); err != nil {
		return usage("rounds: %v", err)
	}
	id, err := oneArg("rounds", fs.Args())
	if err != nil {
		return err
	}
	rs, err := r.env.Repo.TournamentRounds(ctx, id, *status).Get()
	if err != nil {
		return err
	}
	return r.print(rs, func(w io.Writer) {
		if len(rs) == 0 {
			fmt.Fprintln(w, "No rounds found.")
			return
		}
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tGAMES")
		for _, rd := range rs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", rd.ID, rd.Name, rd.Status, len(rd.Games))
		}
	})
}

func (r *runner) round(ctx context.Context, roundID string) error {
	rd, err := r.env.Repo.RoundDetails(ctx, roundID).Get()
	if err != nil {
		return err
	}
	return r.print(rd, func(w io.Writer) {
		fmt.Fprintf(w, "%s (%s)\t%s\n", rd.Name, rd.ID, rd.Status)
		if len(rd.Games) == 0 {
			fmt.Fprintln(w, "No games.")
			return
		}
		fmt.Fprintln(w, "GAME\tARENA\tSTATUS\tPLAYERS\tSCORES")
		for _, g := range rd.Games {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", g.ID, g.ArenaName, g.Status,
				strings.Join(g.PlayerIDs, ","), formatScores(g.PlayerScores))
		}
	})
}

func (r *runner) suggest(ctx context.Context, args []string) error {
	if len(args) != 4 {
		return usage("suggest takes <round id> <game id> <player id> <score>")
	}
	score, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil {
		return usage("score must be a whole number, got %q", args[3])
	}
	s := models.ScoreSuggestion{GameID: args[1], PlayerID: args[2], Score: score}
	resp, err := r.env.Repo.SuggestScore(ctx, args[0], s).Get()
	if err != nil {
		return err
	}
	if perr := r.print(resp, func(w io.Writer) {
		if resp.Success {
			fmt.Fprintln(w, resp.MessageOr("Score suggestion accepted."))
			return
		}
		fmt.Fprintln(w, resp.MessageOr("Score suggestion rejected."))
	}); perr != nil {
		return perr
	}
	if !resp.Success {
		return errors.New("suggestion rejected by server")
	}
	return nil
}

func formatScores(scores []models.PlayerScore) string {
	parts := make([]string, 0, len(scores))
	for _, ps := range scores {
		parts = append(parts, ps.PlayerID+":"+strconv.FormatInt(ps.Score, 10))
	}
	return strings.Join(parts, ",")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
