// Package cli はコメントモデレーション用コマンド moderate の実装。
package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"
)

// listLimit は list コマンドで取得する最大件数。
const listLimit = 50

const usage = `Comment Moderation CLI

Usage:
  moderate stats              - Show statistics
  moderate list [status]      - List comments (all, pending, approved, spam)
  moderate approve <id>       - Approve a comment
  moderate reject <id>        - Mark comment as spam
  moderate delete <id>        - Delete a comment

Environment:
  API_URL    API base URL (default http://localhost:4321)
  ADMIN_KEY  admin key (required, may be set in .dev.vars)

Examples:
  moderate stats
  moderate list pending
  moderate approve 42
  moderate delete 13
`

// Run は args に従ってコマンドを実行し、プロセスの終了コードを返す。
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := LoadConfig(".")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return run(ctx, NewClient(cfg.APIURL, cfg.AdminKey, nil), args, stdout, stderr)
}

func run(ctx context.Context, client *Client, args []string, stdout, stderr io.Writer) int {
	var command, arg string
	if len(args) > 0 {
		command = args[0]
	}
	if len(args) > 1 {
		arg = args[1]
	}

	var err error
	switch command {
	case "stats":
		err = showStats(ctx, client, stdout)
	case "list":
		status := arg
		if status == "" {
			status = "all"
		}
		err = listComments(ctx, client, status, stdout)
	case "approve", "reject", "delete":
		if arg == "" {
			fmt.Fprintln(stderr, "Error: Comment ID required")
			return 1
		}
		err = updateComment(ctx, client, arg, command, stdout)
	default:
		fmt.Fprint(stdout, usage)
		return 0
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func showStats(ctx context.Context, client *Client, w io.Writer) error {
	stats, err := client.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "Comment Moderation Statistics")
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total Comments:\t%d\n", stats.Comments.Total)
	fmt.Fprintf(tw, "Approved:\t%d\n", stats.Comments.Approved)
	fmt.Fprintf(tw, "Pending:\t%d\n", stats.Comments.Pending)
	fmt.Fprintf(tw, "Spam:\t%d\n", stats.Comments.Spam)
	fmt.Fprintf(tw, "Total Likes:\t%d\n", stats.Likes)
	return tw.Flush()
}

func listComments(ctx context.Context, client *Client, status string, w io.Writer) error {
	comments, err := client.ListComments(ctx, status, listLimit)
	if err != nil {
		return err
	}
	if len(comments) == 0 {
		fmt.Fprintf(w, "No %s comments found.\n", status)
		return nil
	}

	fmt.Fprintf(w, "Comments (%s):\n\n", status)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tStatus\tPost\tAuthor\tContent\tDate")
	for _, c := range comments {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			c.ID,
			c.Status,
			truncate(c.PostSlug, 23),
			truncate(c.AuthorName, 18),
			truncate(c.Content, 38),
			formatDate(c.CreatedAt),
		)
	}
	return tw.Flush()
}

func updateComment(ctx context.Context, client *Client, rawID, action string, w io.Writer) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid comment ID: %q", rawID)
	}
	msg, err := client.UpdateComment(ctx, id, action)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, msg)
	return nil
}

// truncate は n 文字を超える文字列を n 文字に切り詰めて "..." を付ける。
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func formatDate(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}
