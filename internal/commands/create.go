// Package commands implements the CLI commands
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/prtwin/internal/app"
	"github.com/tildaslashalef/prtwin/internal/apply"
	"github.com/tildaslashalef/prtwin/internal/changeset"
	"github.com/tildaslashalef/prtwin/internal/commands/confirm"
	"github.com/tildaslashalef/prtwin/internal/git"
	"github.com/tildaslashalef/prtwin/internal/github"
	"github.com/tildaslashalef/prtwin/internal/loggy"
	"github.com/tildaslashalef/prtwin/internal/pipeline"
)

// CreateCommand returns the CLI command that runs the full pipeline:
// fetch a reference PR, derive differences, confirm them, and produce
// a new changeset
func CreateCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Derive a new changeset from a reference pull request",
		ArgsUsage: "<pr-url>",
		Description: "Fetches the reference pull request, derives the differences needed to\n" +
			"satisfy the given intent, confirms each one interactively, and applies the\n" +
			"confirmed set. With --submit the result is pushed and opened as a new PR.",
		Flags:  createFlags(),
		Action: createAction,
	}
}

func createFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "intent",
			Aliases: []string{"i"},
			Usage:   "What the new changeset should accomplish",
		},
		&cli.StringFlag{
			Name:  "intent-file",
			Usage: "Read the intent from a file instead of --intent",
		},
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "Accept every derived difference without prompting",
		},
		&cli.StringFlag{
			Name:  "base-branch",
			Usage: "Base branch for the submitted PR (default: the reference PR's base)",
		},
		&cli.StringFlag{
			Name:  "repo",
			Usage: "Path to the local working copy (default: from config)",
		},
		&cli.BoolFlag{
			Name:  "submit",
			Usage: "Materialize the result, push a branch, and open a PR",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Print the resulting changeset without touching the working copy",
		},
		&cli.BoolFlag{
			Name:  "include-unchanged",
			Usage: "Carry reference files untouched by any difference into the result",
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "Concurrent per-file synthesis calls (default: from config)",
		},
	}
}

func createAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	prURL := c.Args().First()
	if prURL == "" {
		return fmt.Errorf("a reference pull request URL is required")
	}

	intent, err := resolveIntent(c)
	if err != nil {
		return err
	}

	if c.Bool("include-unchanged") {
		application.Config.Apply.IncludeUnchanged = true
	}
	if n := c.Int("concurrency"); n > 0 {
		application.Config.Apply.Concurrency = n
	}
	if repo := c.String("repo"); repo != "" {
		application.Config.Git.RepoPath = repo
	}

	loggy.Info("Starting changeset creation", "ref", prURL)

	outcome, err := runPipeline(c.Context, application, prURL, intent, c.Bool("yes"))
	if err != nil {
		reportUsage(application)
		switch {
		case errors.Is(err, pipeline.ErrCancelled):
			return cli.Exit("Run cancelled; no changes were made.", 1)
		case errors.Is(err, pipeline.ErrNoDifferences):
			fmt.Println("The reference already satisfies the intent; nothing to do.")
			return nil
		}
		return err
	}

	printResult(outcome.Result)
	reportUsage(application)

	if c.Bool("dry-run") || !c.Bool("submit") {
		return nil
	}

	return submit(c.Context, application, outcome, c.String("base-branch"))
}

// resolveIntent reads the intent from --intent or --intent-file
func resolveIntent(c *cli.Context) (string, error) {
	if intent := c.String("intent"); intent != "" {
		return intent, nil
	}

	if path := c.String("intent-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading intent file: %w", err)
		}
		intent := strings.TrimSpace(string(data))
		if intent == "" {
			return "", fmt.Errorf("intent file %s is empty", path)
		}
		return intent, nil
	}

	return "", fmt.Errorf("an intent is required (--intent or --intent-file)")
}

// runPipeline wires the confirmation flow and executes one run
func runPipeline(ctx context.Context, application *app.App, prURL, intent string, autoAccept bool) (*pipeline.Outcome, error) {
	confirmFn := confirm.Interactive(func(ref *changeset.ChangeSet) {
		// Show the reference files once before the first prompt
		fmt.Printf("Reference: %s (%s -> %s)\n", ref.Title, ref.BaseBranch, ref.HeadBranch)
		printSummaryTable(ref)
	})
	if autoAccept {
		confirmFn = confirm.AutoAccept()
	}
	return application.Pipeline.Run(ctx, prURL, intent, confirmFn)
}

// printResult renders the produced changeset summary and any conflicts
func printResult(result *apply.Result) {
	if result == nil || result.ChangeSet == nil {
		return
	}

	printSummaryTable(result.ChangeSet)

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s %d difference(s) applied across %d file(s)\n",
		green("✓"), len(result.Applied), len(result.ChangeSet.Edits))

	if len(result.Conflicts) > 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("%s %d conflict(s):\n", yellow("!"), len(result.Conflicts))
		for _, conflict := range result.Conflicts {
			detail := conflict.Detail
			if detail != "" {
				detail = ": " + detail
			}
			fmt.Printf("  %s %s (%s)%s\n",
				yellow("-"), conflict.Path, conflict.Reason, detail)
		}
	}
}

// printSummaryTable renders a per-file table of the changeset
func printSummaryTable(cs *changeset.ChangeSet) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"File", "Kind", "Added", "Removed"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Added", Align: text.AlignRight},
		{Name: "Removed", Align: text.AlignRight},
	})

	for _, s := range cs.DiffSummary() {
		t.AppendRow(table.Row{s.Path, s.Kind, s.Added, s.Removed})
	}

	added, removed := cs.TotalChanges()
	t.AppendFooter(table.Row{"Total", "", added, removed})
	t.Render()
}

// reportUsage prints cumulative LLM spend for this invocation
func reportUsage(application *app.App) {
	usage := application.Pipeline.Usage()
	calls := application.Pipeline.Calls()
	if calls == 0 {
		return
	}

	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("%s %d LLM call(s), %d token(s), $%.4f\n",
		cyan("$"), calls, usage.TotalTokens, usage.Cost)
}

// submit materializes the result in the working copy, pushes a branch,
// and opens a pull request against the reference repository
func submit(ctx context.Context, application *app.App, outcome *pipeline.Outcome, baseBranch string) error {
	result := outcome.Result
	if result == nil || len(result.ChangeSet.Edits) == 0 {
		return fmt.Errorf("nothing to submit: the resulting changeset is empty")
	}

	gitService, err := git.NewService(application.Config.Git, loggy.GetGlobalLogger())
	if err != nil {
		return fmt.Errorf("opening working copy: %w", err)
	}

	branch := gitService.GenerateBranchName()
	if err := gitService.CreateBranch(branch); err != nil {
		return fmt.Errorf("creating branch %s: %w", branch, err)
	}

	if err := gitService.Materialize(result.ChangeSet); err != nil {
		return fmt.Errorf("materializing changeset: %w", err)
	}

	title := result.ChangeSet.Title
	if title == "" {
		title = "Derived changes from " + outcome.Reference.Ref
	}

	hash, err := gitService.Commit(title)
	if err != nil {
		return fmt.Errorf("committing changeset: %w", err)
	}
	loggy.Info("Committed changeset", "branch", branch, "commit", hash)

	if err := gitService.Push(ctx, application.Config.GitHub.Token); err != nil {
		return fmt.Errorf("pushing branch %s: %w", branch, err)
	}

	ref, err := github.ParsePRURL(outcome.Reference.Ref)
	if err != nil {
		return fmt.Errorf("resolving reference repository: %w", err)
	}

	if baseBranch == "" {
		baseBranch = outcome.Reference.BaseBranch
	}

	pr, err := application.GitHub.CreatePR(ctx, ref.Owner, ref.Repo, github.CreatePRParams{
		Title: title,
		Body:  buildPRBody(outcome),
		Head:  branch,
		Base:  baseBranch,
	})
	if err != nil {
		return fmt.Errorf("opening pull request: %w", err)
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s Opened pull request #%d: %s\n", green("✓"), pr.Number, pr.URL)
	return nil
}

// buildPRBody summarizes the run for the pull request description
func buildPRBody(outcome *pipeline.Outcome) string {
	var sb strings.Builder

	if body := outcome.Result.ChangeSet.Body; body != "" {
		sb.WriteString(body)
		sb.WriteString("\n\n")
	}

	sb.WriteString(fmt.Sprintf("Derived from %s with %d confirmed difference(s).\n",
		outcome.Reference.Ref, len(outcome.Result.Applied)))
	return sb.String()
}
