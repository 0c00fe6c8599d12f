package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/doclearn/doclearn/internal/netx"
	"github.com/doclearn/doclearn/internal/server/config"
	"github.com/doclearn/doclearn/internal/server/models"
	"github.com/doclearn/doclearn/internal/server/moderation"
	"github.com/doclearn/doclearn/internal/server/services"
)

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

// codeError returns an exitErr for the given code.
func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// domainError turns a rejected moderation call into exit code 2 and leaves
// everything else at 1.
func domainError(err error) error {
	var de *common.Error
	if errors.As(err, &de) {
		return codeError(2, "%s", de.Error())
	}
	return codeError(1, "%s", err)
}

type globalFlags struct {
	dsn       string
	moderator string
	timeout   time.Duration
}

type pendingFlags struct {
	search string
	page   int
	limit  int
	json   bool
}

type decisionFlags struct {
	fields  []string
	comment string
}

func newRootCmd(open opener, out io.Writer) *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:          "doclearnctl",
		Short:        "Operate the doclearn profile moderation backend",
		SilenceUsage: true,
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&g.dsn, "dsn", "", "PostgreSQL DSN (defaults to DOCLEARN_DATABASE_DSN)")
	pf.StringVar(&g.moderator, "moderator", "", "id of the admin account acting")
	pf.DurationVar(&g.timeout, "timeout", 30*time.Second, "overall deadline for the command")

	// withBackend opens the backend, runs fn and closes it again.
	withBackend := func(fn func(ctx context.Context, b *backend) error) error {
		cfg := config.LoadEnvConfig()
		if g.dsn != "" {
			cfg.DatabaseDSN = g.dsn
		}

		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()

		b, err := open(ctx, cfg)
		if err != nil {
			return codeError(3, "%s", err)
		}
		defer func() { _ = b.close() }()

		return fn(ctx, b)
	}

	requireModerator := func() error {
		if strings.TrimSpace(g.moderator) == "" {
			return codeError(3, "--moderator is required")
		}
		return nil
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(ctx context.Context, b *backend) error {
				if err := b.migrate(ctx); err != nil {
					return codeError(1, "migrations: %s", err)
				}
				fmt.Fprintln(out, "migrations applied")
				return nil
			})
		},
	}

	var pflags pendingFlags
	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "Inspect the moderation queue",
	}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List users with changes awaiting review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireModerator(); err != nil {
				return err
			}
			return withBackend(func(ctx context.Context, b *backend) error {
				page, err := b.admin.ListPending(ctx, g.moderator, services.PendingQuery{
					Search: pflags.search,
					Page:   pflags.page,
					Limit:  pflags.limit,
				})
				if err != nil {
					return domainError(err)
				}
				if pflags.json {
					return writeJSON(out, newPendingJSON(page))
				}
				return renderPending(out, page)
			})
		},
	}
	lf := listCmd.Flags()
	lf.StringVar(&pflags.search, "search", "", "substring of first name, last name or email")
	lf.IntVar(&pflags.page, "page", 1, "page number")
	lf.IntVar(&pflags.limit, "limit", services.DefaultPageLimit, "page size (1..100)")
	lf.BoolVar(&pflags.json, "json", false, "print JSON instead of a table")

	diffCmd := &cobra.Command{
		Use:   "diff <userId>",
		Short: "Show current and proposed values of a user's pending fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireModerator(); err != nil {
				return err
			}
			return withBackend(func(ctx context.Context, b *backend) error {
				diff, err := b.admin.Diff(ctx, g.moderator, args[0])
				if err != nil {
					return domainError(err)
				}
				renderDiff(out, diff)
				return nil
			})
		},
	}
	pendingCmd.AddCommand(listCmd, diffCmd)

	var aflags decisionFlags
	approveCmd := &cobra.Command{
		Use:   "approve <userId>",
		Short: "Approve all pending changes, or only --fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireModerator(); err != nil {
				return err
			}
			return withBackend(func(ctx context.Context, b *backend) error {
				var (
					o   *moderation.Outcome
					err error
				)
				if len(aflags.fields) > 0 {
					o, err = b.admin.ApproveSpecific(ctx, g.moderator, args[0], aflags.fields, aflags.comment)
				} else {
					o, err = b.admin.ApproveAll(ctx, g.moderator, args[0], aflags.comment)
				}
				if err != nil {
					return domainError(err)
				}
				renderOutcome(out, o)
				return nil
			})
		},
	}
	approveCmd.Flags().StringSliceVar(&aflags.fields, "fields", nil, "comma separated field names to approve")
	approveCmd.Flags().StringVar(&aflags.comment, "comment", "", "optional note for the user")

	var rflags decisionFlags
	rejectCmd := &cobra.Command{
		Use:   "reject <userId>",
		Short: "Reject all pending changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireModerator(); err != nil {
				return err
			}
			return withBackend(func(ctx context.Context, b *backend) error {
				o, err := b.admin.RejectAll(ctx, g.moderator, args[0], rflags.comment)
				if err != nil {
					return domainError(err)
				}
				renderOutcome(out, o)
				return nil
			})
		},
	}
	rejectCmd.Flags().StringVar(&rflags.comment, "comment", "", "reason shown to the user (required)")

	avatarCmd := &cobra.Command{
		Use:   "avatar",
		Short: "Manage profile avatars",
	}
	setAvatarCmd := &cobra.Command{
		Use:   "set <userId> <image-file>",
		Short: "Upload an image to object storage and make it the user's avatar",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := os.ReadFile(args[1])
			if err != nil {
				return codeError(3, "reading image: %s", err)
			}
			return withBackend(func(ctx context.Context, b *backend) error {
				key, err := setAvatar(ctx, b.avatars, httpClient, args[0], img)
				if err != nil {
					return domainError(err)
				}
				fmt.Fprintf(out, "avatar set: %s\n", key)
				return nil
			})
		},
	}
	avatarCmd.AddCommand(setAvatarCmd)

	root.AddCommand(migrateCmd, pendingCmd, approveCmd, rejectCmd, avatarCmd)
	return root
}

type pendingUserJSON struct {
	ID             string                 `json:"id"`
	FirstName      string                 `json:"firstName"`
	LastName       string                 `json:"lastName"`
	Email          string                 `json:"email"`
	PendingChanges *models.PendingChanges `json:"pendingChanges"`
}

type pendingJSON struct {
	Users      []pendingUserJSON `json:"users"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	TotalPages int               `json:"totalPages"`
}

func newPendingJSON(page *services.PendingPage) pendingJSON {
	out := pendingJSON{Users: []pendingUserJSON{}, Total: page.Total, Page: page.Page, TotalPages: page.TotalPages}
	for _, u := range page.Users {
		out.Users = append(out.Users, pendingUserJSON{
			ID:             u.ID,
			FirstName:      u.FirstName,
			LastName:       u.LastName,
			Email:          u.Email,
			PendingChanges: u.PendingChanges,
		})
	}
	return out
}

// httpClient performs avatar uploads.
var httpClient = &http.Client{Timeout: time.Minute}

// setAvatar uploads img under a fresh key and points the profile at it.
func setAvatar(ctx context.Context, w avatarWriter, client *http.Client, userID string, img []byte) (string, error) {
	key, url, err := w.AvatarUploadURL(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := netx.PutPresigned(ctx, client, url, http.DetectContentType(img), img); err != nil {
		return "", err
	}

	value, err := json.Marshal(key)
	if err != nil {
		return "", err
	}
	if _, err := w.Submit(ctx, userID, moderation.Payload{moderation.FieldAvatar: value}); err != nil {
		return "", err
	}
	return key, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderPending(out io.Writer, page *services.PendingPage) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tSTATUS\tSUBMITTED\tFIELDS")
	for _, u := range page.Users {
		var status, submitted, fields string
		if pc := u.PendingChanges; pc != nil {
			status = string(pc.GlobalStatus)
			submitted = pc.SubmittedAt.UTC().Format(time.RFC3339)
			names := make([]string, 0, len(pc.Data))
			for name, f := range pc.Data {
				names = append(names, name+"="+string(f.Status))
			}
			sort.Strings(names)
			fields = strings.Join(names, ",")
		}
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\t%s\t%s\n", u.ID, u.FirstName, u.LastName, u.Email, status, submitted, fields)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "page %d of %d, %d total\n", page.Page, page.TotalPages, page.Total)
	return nil
}

func renderDiff(out io.Writer, diff []moderation.FieldDiff) {
	for _, d := range diff {
		fmt.Fprintf(out, "== %s (%s)\n", d.Field, d.Status)
		fmt.Fprintf(out, "- %s\n+ %s\n", d.Current, d.Proposed)
	}
}

func renderOutcome(out io.Writer, o *moderation.Outcome) {
	if len(o.Committed) > 0 {
		fmt.Fprintf(out, "committed: %s\n", strings.Join(o.Committed, ", "))
	}
	if len(o.Rejected) > 0 {
		fmt.Fprintf(out, "rejected: %s\n", strings.Join(o.Rejected, ", "))
	}
	if len(o.Remaining) > 0 {
		fmt.Fprintf(out, "remaining: %s\n", strings.Join(o.Remaining, ", "))
	}
	fmt.Fprintf(out, "status: %s\n", o.GlobalStatus)
}
